// Package chain tracks the accepted state digest of every game. A game's head
// only moves by compare-and-swap from the digest the accepted receipt was
// proven against, and a receipt can move it once.
package chain

import (
	"sync"

	"github.com/consensys/gnark/logger"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"sagittarius-zk/internal/game"
	"sagittarius-zk/internal/zk"
)

var (
	ErrUnknownGame   = errors.New("unknown game")
	ErrGameExists    = errors.New("game already open")
	ErrStaleDigest   = errors.New("stale state digest")
	ErrReceiptReused = errors.New("receipt already applied")
)

type GameID string

// Head is the current position of one game's chain.
type Head struct {
	Digest game.Digest
	Height uint64
}

type entry struct {
	mu    sync.Mutex
	head  Head
	spent map[zk.ReceiptID]struct{}
}

type Chain struct {
	log   zerolog.Logger
	mu    sync.RWMutex
	games map[GameID]*entry
}

type Option func(*Chain)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Chain) { c.log = l }
}

func New(opts ...Option) *Chain {
	c := &Chain{log: logger.Logger(), games: make(map[GameID]*entry)}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Open starts a game at the digest its init receipt committed to.
func (c *Chain) Open(id GameID, genesis game.Digest, opening zk.ReceiptID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.games[id]; ok {
		return errors.Wrapf(ErrGameExists, "game %q", id)
	}
	c.games[id] = &entry{
		head:  Head{Digest: genesis},
		spent: map[zk.ReceiptID]struct{}{opening: {}},
	}
	c.log.Debug().Str("game", string(id)).Stringer("digest", genesis).Msg("game opened")
	return nil
}

func (c *Chain) get(id GameID) (*entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.games[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownGame, "game %q", id)
	}
	return e, nil
}

func (c *Chain) Head(id GameID) (Head, error) {
	e, err := c.get(id)
	if err != nil {
		return Head{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.head, nil
}

// Advance moves the head from `from` to next on behalf of receipt r. from is
// the head the caller read before verifying r; any change since then, in
// digest or height, fails with ErrStaleDigest. A miss leaves the digest as it
// was, so the height is what tells two advances from the same digest apart.
func (c *Chain) Advance(id GameID, r zk.ReceiptID, from Head, next game.Digest) (Head, error) {
	e, err := c.get(id)
	if err != nil {
		return Head{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.spent[r]; ok {
		return Head{}, errors.Wrapf(ErrReceiptReused, "receipt %s", r)
	}
	if e.head != from {
		return Head{}, errors.Wrapf(ErrStaleDigest, "game %q at %s height %d, receipt accepted at %s height %d",
			id, e.head.Digest, e.head.Height, from.Digest, from.Height)
	}
	e.spent[r] = struct{}{}
	e.head = Head{Digest: next, Height: e.head.Height + 1}
	c.log.Debug().
		Str("game", string(id)).
		Uint64("height", e.head.Height).
		Stringer("digest", next).
		Msg("head advanced")
	return e.head, nil
}
