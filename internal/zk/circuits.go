package zk

import (
	"github.com/consensys/gnark/frontend"

	"sagittarius-zk/internal/game"
)

// InitCircuit proves Digest commits to a legal, untouched fleet.
type InitCircuit struct {
	Rows     [game.NumShips]frontend.Variable `gnark:",secret"`
	Cols     [game.NumShips]frontend.Variable `gnark:",secret"`
	Vertical [game.NumShips]frontend.Variable `gnark:",secret"`
	Salt     frontend.Variable                `gnark:",secret"`

	Digest frontend.Variable `gnark:",public"`
}

func (c *InitCircuit) Define(api frontend.API) error {
	hs, err := newHasher(api)
	if err != nil {
		return err
	}

	var cells, cover [game.Cells]frontend.Variable
	for i := range cells {
		cells[i], cover[i] = 0, 0
	}
	for k, L := range game.Fleet {
		api.AssertIsBoolean(c.Vertical[k])
		horiz := api.Sub(1, c.Vertical[k])

		// both ends on the board
		boundCoord(api, c.Rows[k], game.Size-1)
		boundCoord(api, c.Cols[k], game.Size-1)
		boundCoord(api, api.Add(c.Rows[k], api.Mul(c.Vertical[k], L-1)), game.Size-1)
		boundCoord(api, api.Add(c.Cols[k], api.Mul(horiz, L-1)), game.Size-1)

		start := api.Add(api.Mul(c.Rows[k], game.Size), c.Cols[k])
		step := api.Add(1, api.Mul(c.Vertical[k], game.Size-1)) // 1 or 10
		for j := 0; j < L; j++ {
			p := api.Add(start, api.Mul(step, j))
			for i := 0; i < game.Cells; i++ {
				on := api.IsZero(api.Sub(p, i))
				cells[i] = api.Add(cells[i], api.Mul(on, k+1))
				cover[i] = api.Add(cover[i], on)
			}
		}
	}
	// no overlaps
	for i := range cover {
		api.AssertIsBoolean(cover[i])
	}

	level := make([]frontend.Variable, game.TreeLeaves)
	for i := range level {
		if i < game.Cells {
			level[i] = hs.sum(cells[i])
		} else {
			level[i] = hs.sum(0)
		}
	}
	for len(level) > 1 {
		up := make([]frontend.Variable, len(level)/2)
		for i := range up {
			up[i] = hs.sum(level[2*i], level[2*i+1])
		}
		level = up
	}

	b := board{root: level[0]}
	for k, L := range game.Fleet {
		b.health[k] = L
	}
	api.AssertIsEqual(b.digest(hs, c.Salt), c.Digest)
	return nil
}

// TurnCircuit proves a single shot against OldDigest and the resulting NewDigest.
type TurnCircuit struct {
	Salt   frontend.Variable                `gnark:",secret"`
	Health [game.NumShips]frontend.Variable `gnark:",secret"`
	Code   frontend.Variable                `gnark:",secret"`
	Path   [MerkleDepth]frontend.Variable   `gnark:",secret"`

	OldDigest frontend.Variable `gnark:",public"`
	NewDigest frontend.Variable `gnark:",public"`
	Row       frontend.Variable `gnark:",public"`
	Col       frontend.Variable `gnark:",public"`
	Hit       frontend.Variable `gnark:",public"`
}

func (c *TurnCircuit) Define(api frontend.API) error {
	hs, err := newHasher(api)
	if err != nil {
		return err
	}
	b := openBoard(api, c.Health)
	// the root is not a witness; take it from the opened leaf
	b.root = hs.walk(c.Code, c.Path[:], cellIndex(api, c.Row, c.Col))
	api.AssertIsEqual(b.digest(hs, c.Salt), c.OldDigest)

	api.AssertIsEqual(b.shoot(hs, c.Row, c.Col, c.Code, c.Path[:]), c.Hit)
	api.AssertIsEqual(b.digest(hs, c.Salt), c.NewDigest)
	return nil
}

// ScoutCircuit reveals ship presence in the 3x3 area centred on (Row, Col).
type ScoutCircuit struct {
	Salt   frontend.Variable                               `gnark:",secret"`
	Health [game.NumShips]frontend.Variable                `gnark:",secret"`
	Codes  [game.ScoutCells]frontend.Variable              `gnark:",secret"`
	Paths  [game.ScoutCells][MerkleDepth]frontend.Variable `gnark:",secret"`

	Digest frontend.Variable                  `gnark:",public"`
	Row    frontend.Variable                  `gnark:",public"`
	Col    frontend.Variable                  `gnark:",public"`
	Cells  [game.ScoutCells]frontend.Variable `gnark:",public"`
}

func (c *ScoutCircuit) Define(api frontend.API) error {
	hs, err := newHasher(api)
	if err != nil {
		return err
	}
	// centre keeps the whole area on the board
	api.AssertIsLessOrEqual(api.Sub(c.Row, 1), game.Size-3)
	api.AssertIsLessOrEqual(api.Sub(c.Col, 1), game.Size-3)

	b := openBoard(api, c.Health)
	i := 0
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			dir := cellIndex(api, api.Add(c.Row, dr), api.Add(c.Col, dc))
			root := hs.walk(c.Codes[i], c.Paths[i][:], dir)
			if i == 0 {
				b.root = root
			} else {
				api.AssertIsEqual(root, b.root)
			}
			id, _ := splitCode(api, c.Codes[i])
			api.AssertIsEqual(c.Cells[i], api.Sub(1, api.IsZero(id)))
			i++
		}
	}
	api.AssertIsEqual(b.digest(hs, c.Salt), c.Digest)
	return nil
}

// ClusterCircuit derives ClusterShots cells from Seed inside the rectangle
// and applies them in order.
type ClusterCircuit struct {
	Salt   frontend.Variable                                 `gnark:",secret"`
	Health [game.NumShips]frontend.Variable                  `gnark:",secret"`
	Codes  [game.ClusterShots]frontend.Variable              `gnark:",secret"`
	Paths  [game.ClusterShots][MerkleDepth]frontend.Variable `gnark:",secret"`

	OldDigest frontend.Variable                    `gnark:",public"`
	NewDigest frontend.Variable                    `gnark:",public"`
	UpperRow  frontend.Variable                    `gnark:",public"`
	UpperCol  frontend.Variable                    `gnark:",public"`
	DownRow   frontend.Variable                    `gnark:",public"`
	DownCol   frontend.Variable                    `gnark:",public"`
	Seed      frontend.Variable                    `gnark:",public"`
	ShotRows  [game.ClusterShots]frontend.Variable `gnark:",public"`
	ShotCols  [game.ClusterShots]frontend.Variable `gnark:",public"`
	Hits      [game.ClusterShots]frontend.Variable `gnark:",public"`
}

func (c *ClusterCircuit) Define(api frontend.API) error {
	hs, err := newHasher(api)
	if err != nil {
		return err
	}
	boundCoord(api, c.UpperRow, game.Size-1)
	boundCoord(api, c.UpperCol, game.Size-1)
	boundCoord(api, c.DownRow, game.Size-1)
	boundCoord(api, c.DownCol, game.Size-1)
	api.AssertIsLessOrEqual(c.UpperRow, c.DownRow)
	api.AssertIsLessOrEqual(c.UpperCol, c.DownCol)
	height := api.Add(api.Sub(c.DownRow, c.UpperRow), 1)
	width := api.Add(api.Sub(c.DownCol, c.UpperCol), 1)

	state := c.Seed
	api.ToBinary(state, 8)
	next := func() frontend.Variable {
		bits := api.ToBinary(api.Add(api.Mul(state, 73), 41), 15)
		state = api.FromBinary(bits[:8]...)
		return state
	}
	// floor(b*n/256) for b < 256, n <= 10
	scale := func(b, n frontend.Variable) frontend.Variable {
		bits := api.ToBinary(api.Mul(b, n), 12)
		return api.FromBinary(bits[8:]...)
	}

	b := openBoard(api, c.Health)
	for i := 0; i < game.ClusterShots; i++ {
		api.AssertIsEqual(c.ShotRows[i], api.Add(c.UpperRow, scale(next(), height)))
		api.AssertIsEqual(c.ShotCols[i], api.Add(c.UpperCol, scale(next(), width)))

		if i == 0 {
			b.root = hs.walk(c.Codes[0], c.Paths[0][:], cellIndex(api, c.ShotRows[0], c.ShotCols[0]))
			api.AssertIsEqual(b.digest(hs, c.Salt), c.OldDigest)
		}
		api.AssertIsEqual(b.shoot(hs, c.ShotRows[i], c.ShotCols[i], c.Codes[i], c.Paths[i][:]), c.Hits[i])
	}
	api.AssertIsEqual(b.digest(hs, c.Salt), c.NewDigest)
	return nil
}

// openBoard seeds a board view from private health values; the caller sets
// the root from an opened leaf and checks the digest.
func openBoard(api frontend.API, health [game.NumShips]frontend.Variable) board {
	var b board
	for k := range health {
		api.ToBinary(health[k], 3)
		b.health[k] = health[k]
	}
	return b
}
