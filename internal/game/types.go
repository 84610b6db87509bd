package game

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	Size       = 10
	Cells      = Size * Size
	TreeLeaves = 128
	TreeDepth  = 7
)

// Position is a board coordinate.
type Position struct {
	Row uint8 `json:"row"`
	Col uint8 `json:"col"`
}

func (p Position) Valid() bool { return p.Row < Size && p.Col < Size }

// Index is the row-major cell index, also the Merkle leaf index.
func (p Position) Index() int { return int(p.Row)*Size + int(p.Col) }

func (p Position) String() string { return fmt.Sprintf("(%d,%d)", p.Row, p.Col) }

type HitType uint8

const (
	Miss HitType = iota
	Hit
	Sunk
)

func (h HitType) Valid() bool { return h <= Sunk }

func (h HitType) String() string {
	switch h {
	case Miss:
		return "MISS"
	case Hit:
		return "HIT"
	case Sunk:
		return "SUNK"
	}
	return fmt.Sprintf("HitType(%d)", uint8(h))
}

// Digest commits to a full board state. It is a BN254 scalar, big-endian.
type Digest [32]byte

func DigestFromBig(x *big.Int) Digest {
	var d Digest
	x.FillBytes(d[:])
	return d
}

func (d Digest) Big() *big.Int { return new(big.Int).SetBytes(d[:]) }

func (d Digest) String() string { return hexutil.Encode(d[:]) }

func (d Digest) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Digest) UnmarshalText(b []byte) error { return unmarshalField(d[:], b) }

// Salt blinds the board tree root inside the digest.
type Salt [32]byte

// NewSalt draws a uniformly random field element.
func NewSalt() (Salt, error) {
	var e fr.Element
	if _, err := e.SetRandom(); err != nil {
		return Salt{}, err
	}
	return Salt(e.Bytes()), nil
}

func (s Salt) Big() *big.Int { return new(big.Int).SetBytes(s[:]) }

// Canonical reports whether s is reduced modulo the scalar field.
func (s Salt) Canonical() bool {
	var e fr.Element
	return e.SetBytesCanonical(s[:]) == nil
}

func (s Salt) MarshalText() ([]byte, error) { return []byte(hexutil.Encode(s[:])), nil }

func (s *Salt) UnmarshalText(b []byte) error { return unmarshalField(s[:], b) }

func unmarshalField(dst []byte, text []byte) error {
	raw, err := hexutil.Decode(string(text))
	if err != nil {
		return err
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("want %d bytes, got %d", len(dst), len(raw))
	}
	copy(dst, raw)
	return nil
}
