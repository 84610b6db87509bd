package zk

import (
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/pkg/errors"

	"sagittarius-zk/internal/game"
	"sagittarius-zk/internal/merkle"
)

// Assignments are built from the off-circuit mirror in the game package, so
// a satisfied witness always publishes exactly what the mirror computed.

func InitAssignment(s game.GameState) (*InitCircuit, error) {
	c, err := s.Commit()
	if err != nil {
		return nil, err
	}
	var a InitCircuit
	for k, sh := range s.Ships {
		a.Rows[k] = sh.Row
		a.Cols[k] = sh.Col
		a.Vertical[k] = boolVar(sh.Vertical)
	}
	a.Salt = s.Salt.Big()
	a.Digest = c.Digest.Big()
	return &a, nil
}

func TurnAssignment(p game.ShotParams) (*TurnCircuit, error) {
	commit, _, err := p.Apply()
	if err != nil {
		return nil, err
	}
	o, err := openState(&p.State)
	if err != nil {
		return nil, err
	}
	var a TurnCircuit
	a.Salt = p.State.Salt.Big()
	a.Health = o.healthVars()
	a.Code, a.Path, err = o.leaf(p.Shot)
	if err != nil {
		return nil, err
	}
	a.OldDigest = commit.OldStateDigest.Big()
	a.NewDigest = commit.NewStateDigest.Big()
	a.Row, a.Col = p.Shot.Row, p.Shot.Col
	a.Hit = uint8(commit.Hit)
	return &a, nil
}

func ScoutAssignment(p game.ScoutParams) (*ScoutCircuit, error) {
	res, err := p.Apply()
	if err != nil {
		return nil, err
	}
	area, err := game.ScoutArea(p.Shot)
	if err != nil {
		return nil, err
	}
	o, err := openState(&p.State)
	if err != nil {
		return nil, err
	}
	var a ScoutCircuit
	a.Salt = p.State.Salt.Big()
	a.Health = o.healthVars()
	for i, pos := range area {
		if a.Codes[i], a.Paths[i], err = o.leaf(pos); err != nil {
			return nil, err
		}
		a.Cells[i] = uint8(res.Cells[i])
	}
	a.Digest = res.Digest.Big()
	a.Row, a.Col = p.Shot.Row, p.Shot.Col
	return &a, nil
}

func ClusterAssignment(p game.ClusterBombParams) (*ClusterCircuit, error) {
	commit, _, err := p.Apply()
	if err != nil {
		return nil, err
	}
	if len(commit.Shots) != game.ClusterShots {
		return nil, errors.New("unexpected cluster size")
	}
	o, err := openState(&p.State)
	if err != nil {
		return nil, err
	}
	var a ClusterCircuit
	a.Salt = p.State.Salt.Big()
	a.Health = o.healthVars()
	for i, pos := range commit.Shots {
		// each path is taken against the state left by the previous shot
		if a.Codes[i], a.Paths[i], err = o.leaf(pos); err != nil {
			return nil, err
		}
		if err := o.strike(pos); err != nil {
			return nil, err
		}
		a.ShotRows[i], a.ShotCols[i] = pos.Row, pos.Col
		a.Hits[i] = uint8(commit.Hits[i])
	}
	if game.DigestOf(p.State.Salt, o.tree.Root(), o.health) != commit.NewStateDigest {
		return nil, errors.New("cluster witness diverged from the board")
	}
	a.OldDigest = commit.OldStateDigest.Big()
	a.NewDigest = commit.NewStateDigest.Big()
	a.UpperRow, a.UpperCol = p.Config.UpperLeft.Row, p.Config.UpperLeft.Col
	a.DownRow, a.DownCol = p.Config.DownRight.Row, p.Config.DownRight.Col
	a.Seed = p.Config.Seed
	return &a, nil
}

// opened is a state with its tree and health precomputed.
type opened struct {
	codes  []uint8
	tree   *merkle.Tree
	health [game.NumShips]uint8
}

func openState(s *game.GameState) (*opened, error) {
	codes, err := s.Codes()
	if err != nil {
		return nil, err
	}
	t, err := merkle.BuildFixedTree(codes, game.TreeLeaves)
	if err != nil {
		return nil, err
	}
	h, err := s.Health()
	if err != nil {
		return nil, err
	}
	return &opened{codes: codes, tree: t, health: h}, nil
}

func (o *opened) healthVars() (out [game.NumShips]frontend.Variable) {
	for k, v := range o.health {
		out[k] = v
	}
	return out
}

// leaf opens the cell at p: its code and authentication path, checked
// against the current root.
func (o *opened) leaf(p game.Position) (frontend.Variable, [MerkleDepth]frontend.Variable, error) {
	var out [MerkleDepth]frontend.Variable
	code := o.codes[p.Index()]
	path, dir, err := o.tree.Path(p.Index())
	if err != nil {
		return nil, out, err
	}
	if len(path) != MerkleDepth {
		return nil, out, errors.New("bad path length")
	}
	if merkle.RootFromPath(merkle.HashLeaf(code), path, dir).Cmp(o.tree.Root()) != 0 {
		return nil, out, errors.Errorf("path for %s does not reach the root", p)
	}
	for i := range path {
		out[i] = new(big.Int).Set(path[i])
	}
	return code, out, nil
}

// strike marks a ship cell hit in place, updating only the touched branch
// of the tree. Water and cells already hit are left alone.
func (o *opened) strike(p game.Position) error {
	idx := p.Index()
	code := o.codes[idx]
	id := code &^ game.HitFlag
	if id == 0 || code&game.HitFlag != 0 {
		return nil
	}
	o.codes[idx] = code | game.HitFlag
	o.health[id-1]--
	return o.tree.Set(idx, o.codes[idx])
}

func boolVar(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
