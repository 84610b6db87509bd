// Package prooftest provides an in-memory Oracle that runs the game mirror
// instead of a proving system. Its seals are keyed hashes, so receipts are
// unforgeable only within one process; use it in tests only.
package prooftest

import (
	"bytes"
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"

	"sagittarius-zk/internal/action"
	"sagittarius-zk/internal/codec"
	"sagittarius-zk/internal/game"
	"sagittarius-zk/internal/zk"
)

// Oracle proves by recomputing the commitment off-circuit.
type Oracle struct {
	reg *action.Registry
	key []byte

	mu     sync.Mutex
	proves int
	// Journal, when set, rewrites every journal before it is sealed.
	Journal func(k action.Kind, journal []byte) []byte
}

// ProgramID is the identity the fake assigns to a kind.
func ProgramID(k action.Kind) zk.ProgramID {
	var id zk.ProgramID
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte("prooftest/" + k.String()))
	copy(id[:], h.Sum(nil))
	return id
}

// Registry maps every kind to ProgramID(kind).
func Registry() *action.Registry {
	ids := make(map[action.Kind]zk.ProgramID)
	for _, k := range action.Kinds() {
		ids[k] = ProgramID(k)
	}
	r, err := action.NewRegistry(ids)
	if err != nil {
		panic(err)
	}
	return r
}

func New() *Oracle {
	return &Oracle{reg: Registry(), key: []byte("prooftest seal key")}
}

func (o *Oracle) Registry() *action.Registry { return o.reg }

// Proves counts successful Prove calls.
func (o *Oracle) Proves() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.proves
}

func (o *Oracle) Prove(ctx context.Context, id zk.ProgramID, input []byte) (*zk.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k, ok := o.reg.Kind(id)
	if !ok {
		return nil, errors.Errorf("unknown program %s", id)
	}
	journal, err := run(k, input)
	if err != nil {
		return nil, err
	}
	if o.Journal != nil {
		journal = o.Journal(k, journal)
	}
	o.mu.Lock()
	o.proves++
	o.mu.Unlock()
	return &zk.Receipt{Program: id, Seal: o.seal(id, journal), Journal: journal}, nil
}

func (o *Oracle) Verify(id zk.ProgramID, r *zk.Receipt) error {
	if r.Program != id {
		return errors.Errorf("receipt is for program %s, want %s", r.Program, id)
	}
	if !bytes.Equal(r.Seal, o.seal(id, r.Journal)) {
		return errors.New("seal does not match journal")
	}
	return nil
}

func (o *Oracle) seal(id zk.ProgramID, journal []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(o.key)
	h.Write(id[:])
	h.Write(journal)
	return h.Sum(nil)
}

func run(k action.Kind, input []byte) ([]byte, error) {
	switch k {
	case action.Init:
		var s game.GameState
		if err := codec.Unmarshal(input, &s); err != nil {
			return nil, err
		}
		c, err := s.Commit()
		if err != nil {
			return nil, err
		}
		return action.InitSpec.Journal(c)
	case action.Turn:
		var p game.ShotParams
		if err := codec.Unmarshal(input, &p); err != nil {
			return nil, err
		}
		c, _, err := p.Apply()
		if err != nil {
			return nil, err
		}
		return action.TurnSpec.Journal(c)
	case action.Scout:
		var p game.ScoutParams
		if err := codec.Unmarshal(input, &p); err != nil {
			return nil, err
		}
		c, err := p.Apply()
		if err != nil {
			return nil, err
		}
		return action.ScoutSpec.Journal(c)
	case action.Cluster:
		var p game.ClusterBombParams
		if err := codec.Unmarshal(input, &p); err != nil {
			return nil, err
		}
		c, _, err := p.Apply()
		if err != nil {
			return nil, err
		}
		return action.ClusterSpec.Journal(c)
	}
	return nil, errors.Errorf("unknown action %s", k)
}
