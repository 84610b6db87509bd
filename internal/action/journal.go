package action

import (
	"math/big"

	"github.com/pkg/errors"

	"sagittarius-zk/internal/game"
)

// journalReader walks the public values of a journal in circuit field order.
// The first failure sticks; later reads return zero values.
type journalReader struct {
	vals []*big.Int
	pos  int
	err  error
}

func (r *journalReader) next(field string) *big.Int {
	if r.err != nil {
		return new(big.Int)
	}
	if r.pos >= len(r.vals) {
		r.err = errors.Errorf("journal ends before %s", field)
		return new(big.Int)
	}
	v := r.vals[r.pos]
	r.pos++
	return v
}

func (r *journalReader) digest(field string) game.Digest {
	return game.DigestFromBig(r.next(field))
}

func (r *journalReader) small(field string, max uint64) uint8 {
	v := r.next(field)
	if r.err == nil && (!v.IsUint64() || v.Uint64() > max) {
		r.err = errors.Errorf("%s out of range: %s", field, v)
		return 0
	}
	return uint8(v.Uint64())
}

func (r *journalReader) position(field string) game.Position {
	return game.Position{Row: r.small(field, game.Size-1), Col: r.small(field, game.Size-1)}
}

func (r *journalReader) hit(field string) game.HitType {
	return game.HitType(r.small(field, uint64(game.Sunk)))
}

func (r *journalReader) done() error {
	if r.err != nil {
		return r.err
	}
	if r.pos != len(r.vals) {
		return errors.Errorf("journal has %d trailing values", len(r.vals)-r.pos)
	}
	return nil
}
