package proof

import (
	"github.com/pkg/errors"

	"sagittarius-zk/internal/action"
	"sagittarius-zk/internal/game"
	"sagittarius-zk/internal/zk"
)

// Expected holds the public values the verifying side asked for. It is one of
// InitExpected, TurnExpected, ScoutExpected or ClusterExpected.
type Expected interface {
	Kind() action.Kind
}

type InitExpected struct{}

type TurnExpected struct {
	Shot      game.Position
	OldDigest game.Digest
}

type ScoutExpected struct {
	Shot game.Position
}

type ClusterExpected struct {
	OldDigest game.Digest
	UpperLeft game.Position
	DownRight game.Position
	Seed      uint8
}

func (InitExpected) Kind() action.Kind    { return action.Init }
func (TurnExpected) Kind() action.Kind    { return action.Turn }
func (ScoutExpected) Kind() action.Kind   { return action.Scout }
func (ClusterExpected) Kind() action.Kind { return action.Cluster }

// Result is the outcome of a verified action. NewDigest is the state the
// caller adopts as its chain head; for Scout it is the scouted, unchanged
// state.
type Result struct {
	Kind      action.Kind
	NewDigest game.Digest
	Hit       game.HitType    // turn
	Cells     []game.HitType  // scout
	Shots     []game.Position // cluster
	Hits      []game.HitType  // cluster
}

// Verifier checks receipts in two phases: cryptographic validity against the
// kind's program, then the binding of the commitment to the expected values.
// It never mutates anything; verifying the same receipt twice gives the same
// answer.
type Verifier struct {
	oracle Oracle
	reg    *action.Registry
	opts   options
}

func NewVerifier(o Oracle, reg *action.Registry, opts ...Option) *Verifier {
	return &Verifier{oracle: o, reg: reg, opts: newOptions(opts)}
}

// Verify dispatches on the kind of exp.
func (v *Verifier) Verify(r *zk.Receipt, exp Expected) (*Result, error) {
	res, err := v.verify(r, exp)
	if err != nil {
		var kind action.Kind
		if exp != nil {
			kind = exp.Kind()
		}
		v.opts.log.Warn().Err(err).Stringer("action", kind).Msg("receipt rejected")
		return nil, err
	}
	return res, nil
}

func (v *Verifier) verify(r *zk.Receipt, exp Expected) (*Result, error) {
	switch e := exp.(type) {
	case InitExpected:
		c, err := open(v, action.InitSpec, r)
		if err != nil {
			return nil, err
		}
		// nothing precedes init, so there is nothing to bind
		return &Result{Kind: action.Init, NewDigest: c.Digest}, nil

	case TurnExpected:
		c, err := open(v, action.TurnSpec, r)
		if err != nil {
			return nil, err
		}
		if c.OldStateDigest != e.OldDigest {
			return nil, mismatch(action.Turn, "old_state_digest", e.OldDigest, c.OldStateDigest)
		}
		if c.Shot != e.Shot {
			return nil, mismatch(action.Turn, "shot", e.Shot, c.Shot)
		}
		return &Result{Kind: action.Turn, NewDigest: c.NewStateDigest, Hit: c.Hit}, nil

	case ScoutExpected:
		c, err := open(v, action.ScoutSpec, r)
		if err != nil {
			return nil, err
		}
		if c.Shot != e.Shot {
			return nil, mismatch(action.Scout, "shot", e.Shot, c.Shot)
		}
		return &Result{Kind: action.Scout, NewDigest: c.Digest, Cells: c.Cells}, nil

	case ClusterExpected:
		c, err := open(v, action.ClusterSpec, r)
		if err != nil {
			return nil, err
		}
		if c.OldStateDigest != e.OldDigest {
			return nil, mismatch(action.Cluster, "old_state_digest", e.OldDigest, c.OldStateDigest)
		}
		if c.Config.UpperLeft != e.UpperLeft {
			return nil, mismatch(action.Cluster, "upper_left", e.UpperLeft, c.Config.UpperLeft)
		}
		if c.Config.DownRight != e.DownRight {
			return nil, mismatch(action.Cluster, "down_right", e.DownRight, c.Config.DownRight)
		}
		if c.Config.Seed != e.Seed {
			return nil, mismatch(action.Cluster, "seed", e.Seed, c.Config.Seed)
		}
		// which cells the seed selects is the program's business, not ours
		return &Result{Kind: action.Cluster, NewDigest: c.NewStateDigest, Shots: c.Shots, Hits: c.Hits}, nil
	}
	return nil, errors.Errorf("unsupported expectation %T", exp)
}

// open runs both decoding phases that precede the binding check.
func open[P, C any](v *Verifier, s action.Spec[P, C], r *zk.Receipt) (C, error) {
	var zero C
	id, err := v.reg.ID(s.Kind)
	if err != nil {
		return zero, err
	}
	if r == nil {
		return zero, errors.Wrapf(ErrInvalidReceipt, "%s: nil receipt", s.Kind)
	}
	if err := v.oracle.Verify(id, r); err != nil {
		return zero, errors.Wrapf(ErrInvalidReceipt, "%s: %v", s.Kind, err)
	}
	c, err := s.Decode(r.Journal)
	if err != nil {
		return zero, errors.Wrapf(ErrMalformedJournal, "%s: %v", s.Kind, err)
	}
	return c, nil
}

func (v *Verifier) CheckInit(r *zk.Receipt) (game.Digest, error) {
	res, err := v.Verify(r, InitExpected{})
	if err != nil {
		return game.Digest{}, err
	}
	return res.NewDigest, nil
}

func (v *Verifier) CheckTurn(r *zk.Receipt, shot game.Position, old game.Digest) (game.HitType, game.Digest, error) {
	res, err := v.Verify(r, TurnExpected{Shot: shot, OldDigest: old})
	if err != nil {
		return game.Miss, game.Digest{}, err
	}
	return res.Hit, res.NewDigest, nil
}

func (v *Verifier) CheckScout(r *zk.Receipt, shot game.Position) ([]game.HitType, error) {
	res, err := v.Verify(r, ScoutExpected{Shot: shot})
	if err != nil {
		return nil, err
	}
	return res.Cells, nil
}

func (v *Verifier) CheckCluster(r *zk.Receipt, ul, dr game.Position, seed uint8, old game.Digest) ([]game.Position, []game.HitType, game.Digest, error) {
	res, err := v.Verify(r, ClusterExpected{OldDigest: old, UpperLeft: ul, DownRight: dr, Seed: seed})
	if err != nil {
		return nil, nil, game.Digest{}, err
	}
	return res.Shots, res.Hits, res.NewDigest, nil
}
