// Package action is the closed catalog of game actions. Each kind is bound to
// one program, one private-input type and one public-commitment type.
package action

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
	"github.com/pkg/errors"

	"sagittarius-zk/internal/codec"
	"sagittarius-zk/internal/game"
	"sagittarius-zk/internal/zk"
)

type Kind uint8

const (
	Init Kind = iota
	Turn
	Scout
	Cluster

	numKinds
)

var kindNames = [numKinds]string{"init", "turn", "scout", "cluster"}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Kinds lists every action kind.
func Kinds() []Kind { return []Kind{Init, Turn, Scout, Cluster} }

func ParseKind(s string) (Kind, error) {
	for k, n := range kindNames {
		if n == s {
			return Kind(k), nil
		}
	}
	return 0, errors.Errorf("unknown action %q", s)
}

// Spec is the catalog entry of one action: P is its private input, C the
// commitment its program publishes.
type Spec[P, C any] struct {
	Kind    Kind
	shape   func() frontend.Circuit
	assign  func(P) (frontend.Circuit, error)
	decode  func(*journalReader) C
	journal func(C) frontend.Circuit
}

// Encode serializes params as prover input.
func (s Spec[P, C]) Encode(p P) ([]byte, error) { return codec.Marshal(p) }

// Decode extracts the commitment from a journal.
func (s Spec[P, C]) Decode(journal []byte) (C, error) {
	var zero C
	vals, err := zk.ReadJournal(journal)
	if err != nil {
		return zero, err
	}
	r := &journalReader{vals: vals}
	c := s.decode(r)
	if err := r.done(); err != nil {
		return zero, errors.Wrapf(err, "%s journal", s.Kind)
	}
	return c, nil
}

// Journal encodes a commitment as the journal its program would publish.
func (s Spec[P, C]) Journal(c C) ([]byte, error) { return zk.EncodeJournal(s.journal(c)) }

// Program binds the entry to the proving system.
func (s Spec[P, C]) Program() zk.Program {
	return zk.Program{
		Name:    s.Kind.String(),
		Circuit: s.shape(),
		Assign: func(input []byte) (frontend.Circuit, error) {
			var p P
			if err := codec.Unmarshal(input, &p); err != nil {
				return nil, err
			}
			return s.assign(p)
		},
	}
}

// Programs returns the program of every catalog entry, in Kinds order.
func Programs() []zk.Program {
	return []zk.Program{
		InitSpec.Program(),
		TurnSpec.Program(),
		ScoutSpec.Program(),
		ClusterSpec.Program(),
	}
}

var InitSpec = Spec[game.GameState, game.InitCommit]{
	Kind:   Init,
	shape:  func() frontend.Circuit { return &zk.InitCircuit{} },
	assign: func(s game.GameState) (frontend.Circuit, error) { return zk.InitAssignment(s) },
	decode: func(r *journalReader) game.InitCommit {
		return game.InitCommit{Digest: r.digest("digest")}
	},
	journal: func(c game.InitCommit) frontend.Circuit {
		return &zk.InitCircuit{Digest: c.Digest.Big()}
	},
}

var TurnSpec = Spec[game.ShotParams, game.ShotCommit]{
	Kind:   Turn,
	shape:  func() frontend.Circuit { return &zk.TurnCircuit{} },
	assign: func(p game.ShotParams) (frontend.Circuit, error) { return zk.TurnAssignment(p) },
	decode: func(r *journalReader) game.ShotCommit {
		var c game.ShotCommit
		c.OldStateDigest = r.digest("old_state_digest")
		c.NewStateDigest = r.digest("new_state_digest")
		c.Shot = r.position("shot")
		c.Hit = r.hit("hit")
		return c
	},
	journal: func(c game.ShotCommit) frontend.Circuit {
		return &zk.TurnCircuit{
			OldDigest: c.OldStateDigest.Big(),
			NewDigest: c.NewStateDigest.Big(),
			Row:       c.Shot.Row,
			Col:       c.Shot.Col,
			Hit:       uint8(c.Hit),
		}
	},
}

var ScoutSpec = Spec[game.ScoutParams, game.ScoutResult]{
	Kind:   Scout,
	shape:  func() frontend.Circuit { return &zk.ScoutCircuit{} },
	assign: func(p game.ScoutParams) (frontend.Circuit, error) { return zk.ScoutAssignment(p) },
	decode: func(r *journalReader) game.ScoutResult {
		var c game.ScoutResult
		c.Digest = r.digest("digest")
		c.Shot = r.position("shot")
		c.Cells = make([]game.HitType, game.ScoutCells)
		for i := range c.Cells {
			c.Cells[i] = r.hit("cells")
		}
		return c
	},
	journal: func(c game.ScoutResult) frontend.Circuit {
		a := &zk.ScoutCircuit{Digest: c.Digest.Big(), Row: c.Shot.Row, Col: c.Shot.Col}
		for i := range a.Cells {
			a.Cells[i] = 0
			if i < len(c.Cells) {
				a.Cells[i] = uint8(c.Cells[i])
			}
		}
		return a
	},
}

var ClusterSpec = Spec[game.ClusterBombParams, game.ClusterCommit]{
	Kind:   Cluster,
	shape:  func() frontend.Circuit { return &zk.ClusterCircuit{} },
	assign: func(p game.ClusterBombParams) (frontend.Circuit, error) { return zk.ClusterAssignment(p) },
	decode: func(r *journalReader) game.ClusterCommit {
		var c game.ClusterCommit
		c.OldStateDigest = r.digest("old_state_digest")
		c.NewStateDigest = r.digest("new_state_digest")
		c.Config.UpperLeft = r.position("upper_left")
		c.Config.DownRight = r.position("down_right")
		c.Config.Seed = r.small("seed", 255)
		rows := make([]uint8, game.ClusterShots)
		for i := range rows {
			rows[i] = r.small("shots", game.Size-1)
		}
		c.Shots = make([]game.Position, game.ClusterShots)
		for i := range c.Shots {
			c.Shots[i] = game.Position{Row: rows[i], Col: r.small("shots", game.Size-1)}
		}
		c.Hits = make([]game.HitType, game.ClusterShots)
		for i := range c.Hits {
			c.Hits[i] = r.hit("hits")
		}
		return c
	},
	journal: func(c game.ClusterCommit) frontend.Circuit {
		a := &zk.ClusterCircuit{
			OldDigest: c.OldStateDigest.Big(),
			NewDigest: c.NewStateDigest.Big(),
			UpperRow:  c.Config.UpperLeft.Row,
			UpperCol:  c.Config.UpperLeft.Col,
			DownRow:   c.Config.DownRight.Row,
			DownCol:   c.Config.DownRight.Col,
			Seed:      c.Config.Seed,
		}
		for i := 0; i < game.ClusterShots; i++ {
			a.ShotRows[i], a.ShotCols[i], a.Hits[i] = 0, 0, 0
			if i < len(c.Shots) {
				a.ShotRows[i], a.ShotCols[i] = c.Shots[i].Row, c.Shots[i].Col
			}
			if i < len(c.Hits) {
				a.Hits[i] = uint8(c.Hits[i])
			}
		}
		return a
	},
}
