// Package proof creates receipts for game actions and verifies them, binding
// each receipt's commitment to the public values the verifying side expects.
package proof

import (
	"context"
	"runtime"
	"time"

	"github.com/consensys/gnark/logger"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sagittarius-zk/internal/action"
	"sagittarius-zk/internal/game"
	"sagittarius-zk/internal/zk"
)

// Oracle is the proving system as the protocol sees it.
type Oracle interface {
	Prove(ctx context.Context, id zk.ProgramID, input []byte) (*zk.Receipt, error)
	Verify(id zk.ProgramID, r *zk.Receipt) error
}

type options struct {
	log      zerolog.Logger
	parallel int
}

type Option func(*options)

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithParallelism bounds CreateBatch; default GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(o *options) { o.parallel = n }
}

func newOptions(opts []Option) options {
	o := options{log: logger.Logger(), parallel: runtime.GOMAXPROCS(0)}
	for _, f := range opts {
		f(&o)
	}
	if o.parallel < 1 {
		o.parallel = 1
	}
	return o
}

// Creator encodes private input and asks the oracle for receipts. It holds no
// mutable state; calls may run concurrently.
type Creator struct {
	oracle Oracle
	reg    *action.Registry
	opts   options
}

func NewCreator(o Oracle, reg *action.Registry, opts ...Option) *Creator {
	return &Creator{oracle: o, reg: reg, opts: newOptions(opts)}
}

func (c *Creator) CreateInit(ctx context.Context, s game.GameState) (*zk.Receipt, error) {
	if _, err := s.Commit(); err != nil {
		return nil, errors.Wrapf(ErrProvingFailed, "init: %v", err)
	}
	return create(ctx, c, action.InitSpec, s)
}

func (c *Creator) CreateTurn(ctx context.Context, p game.ShotParams) (*zk.Receipt, error) {
	if err := p.Validate(); err != nil {
		return nil, errors.Wrapf(ErrProvingFailed, "turn: %v", err)
	}
	return create(ctx, c, action.TurnSpec, p)
}

func (c *Creator) CreateScout(ctx context.Context, p game.ScoutParams) (*zk.Receipt, error) {
	if err := p.Validate(); err != nil {
		return nil, errors.Wrapf(ErrProvingFailed, "scout: %v", err)
	}
	return create(ctx, c, action.ScoutSpec, p)
}

// CreateCluster also returns the cells the bomb struck, read back from the
// receipt's journal.
func (c *Creator) CreateCluster(ctx context.Context, p game.ClusterBombParams) (*zk.Receipt, []game.Position, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, errors.Wrapf(ErrProvingFailed, "cluster: %v", err)
	}
	r, err := create(ctx, c, action.ClusterSpec, p)
	if err != nil {
		return nil, nil, err
	}
	commit, err := action.ClusterSpec.Decode(r.Journal)
	if err != nil {
		return nil, nil, errors.Wrapf(ErrMalformedJournal, "cluster: %v", err)
	}
	return r, commit.Shots, nil
}

func create[P, C any](ctx context.Context, c *Creator, s action.Spec[P, C], p P) (*zk.Receipt, error) {
	id, err := c.reg.ID(s.Kind)
	if err != nil {
		return nil, err
	}
	input, err := s.Encode(p)
	if err != nil {
		return nil, errors.Wrapf(ErrProvingFailed, "%s: encode: %v", s.Kind, err)
	}

	start := time.Now()
	r, err := c.oracle.Prove(ctx, id, input)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(ErrProvingFailed, "%s: %v", s.Kind, err)
	}
	c.opts.log.Debug().
		Stringer("action", s.Kind).
		Dur("took", time.Since(start)).
		Int("seal", len(r.Seal)).
		Msg("receipt created")
	return r, nil
}

// Request is one entry of a batch; Params must be the input type of Kind.
type Request struct {
	Kind   action.Kind
	Params any
}

type Created struct {
	Kind    action.Kind
	Receipt *zk.Receipt
	Shots   []game.Position // cluster only
}

// Create dispatches a request to the typed creator of its kind.
func (c *Creator) Create(ctx context.Context, req Request) (*Created, error) {
	out := &Created{Kind: req.Kind}
	var err error
	switch req.Kind {
	case action.Init:
		p, ok := req.Params.(game.GameState)
		if !ok {
			return nil, paramsMismatch(req)
		}
		out.Receipt, err = c.CreateInit(ctx, p)
	case action.Turn:
		p, ok := req.Params.(game.ShotParams)
		if !ok {
			return nil, paramsMismatch(req)
		}
		out.Receipt, err = c.CreateTurn(ctx, p)
	case action.Scout:
		p, ok := req.Params.(game.ScoutParams)
		if !ok {
			return nil, paramsMismatch(req)
		}
		out.Receipt, err = c.CreateScout(ctx, p)
	case action.Cluster:
		p, ok := req.Params.(game.ClusterBombParams)
		if !ok {
			return nil, paramsMismatch(req)
		}
		out.Receipt, out.Shots, err = c.CreateCluster(ctx, p)
	default:
		return nil, errors.Errorf("unknown action %s", req.Kind)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func paramsMismatch(req Request) error {
	return errors.Errorf("%s takes different params than %T", req.Kind, req.Params)
}

// CreateBatch proves independent requests concurrently. Results keep the
// order of reqs; the first failure cancels the remaining work.
func (c *Creator) CreateBatch(ctx context.Context, reqs []Request) ([]*Created, error) {
	out := make([]*Created, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.parallel)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := c.Create(ctx, req)
			if err != nil {
				return errors.WithMessagef(err, "request %d", i)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
