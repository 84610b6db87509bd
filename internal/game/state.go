package game

import (
	"errors"
	"fmt"
	"math/big"
	"math/rand"

	"sagittarius-zk/internal/merkle"
)

// HitFlag is or-ed into a leaf code once a ship cell has been hit.
const HitFlag = 8

// GameState is a player's full secret board.
type GameState struct {
	Ships [NumShips]Ship   `json:"ships"`
	Hits  [Size][Size]bool `json:"hits"`
	Salt  Salt             `json:"salt"`
}

// NewGameState places a random fleet and draws a fresh salt.
func NewGameState(rng *rand.Rand) (GameState, error) {
	ships, err := GenerateRandomFleet(rng)
	if err != nil {
		return GameState{}, err
	}
	salt, err := NewSalt()
	if err != nil {
		return GameState{}, err
	}
	return GameState{Ships: ships, Salt: salt}, nil
}

func (s *GameState) Board() (Board, error) { return PlaceFleet(s.Ships) }

// Validate checks placement, that hits only mark ship cells, and the salt.
func (s *GameState) Validate() error {
	b, err := s.Board()
	if err != nil {
		return err
	}
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if s.Hits[r][c] && b.Cells[r][c] == 0 {
				return fmt.Errorf("hit recorded on water at (%d,%d)", r, c)
			}
		}
	}
	if !s.Salt.Canonical() {
		return errors.New("salt is not a canonical field element")
	}
	return nil
}

// Codes returns the 100 leaf codes (ship id, plus HitFlag when hit).
func (s *GameState) Codes() ([]uint8, error) {
	b, err := s.Board()
	if err != nil {
		return nil, err
	}
	out := b.Flatten()
	for i := range out {
		if s.Hits[i/Size][i%Size] {
			out[i] |= HitFlag
		}
	}
	return out, nil
}

func (s *GameState) Tree() (*merkle.Tree, error) {
	codes, err := s.Codes()
	if err != nil {
		return nil, err
	}
	return merkle.BuildFixedTree(codes, TreeLeaves)
}

// Health is the number of un-hit cells left per ship.
func (s *GameState) Health() ([NumShips]uint8, error) {
	var h [NumShips]uint8
	b, err := s.Board()
	if err != nil {
		return h, err
	}
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if id := b.Cells[r][c]; id != 0 && !s.Hits[r][c] {
				h[id-1]++
			}
		}
	}
	return h, nil
}

func (s *GameState) Digest() (Digest, error) {
	t, err := s.Tree()
	if err != nil {
		return Digest{}, err
	}
	h, err := s.Health()
	if err != nil {
		return Digest{}, err
	}
	return DigestOf(s.Salt, t.Root(), h), nil
}

// DigestOf is MiMC(salt, root, health...), matching the circuits.
func DigestOf(salt Salt, root *big.Int, health [NumShips]uint8) Digest {
	elems := make([]*big.Int, 0, 2+NumShips)
	elems = append(elems, salt.Big(), root)
	for _, v := range health {
		elems = append(elems, new(big.Int).SetUint64(uint64(v)))
	}
	return DigestFromBig(merkle.Hash(elems...))
}

// Shoot returns the outcome at p and the state after it. s is not modified.
func (s *GameState) Shoot(p Position) (HitType, GameState, error) {
	next := *s
	if !p.Valid() {
		return Miss, next, fmt.Errorf("shot %s out of range", p)
	}
	b, err := s.Board()
	if err != nil {
		return Miss, next, err
	}
	id := b.Cells[p.Row][p.Col]
	if id == 0 {
		return Miss, next, nil
	}
	next.Hits[p.Row][p.Col] = true
	h, err := next.Health()
	if err != nil {
		return Miss, next, err
	}
	if h[id-1] == 0 {
		return Sunk, next, nil
	}
	return Hit, next, nil
}

// ScoutCells is the size of the 3x3 scouted area.
const ScoutCells = 9

// ScoutArea lists the cells around center in row-major order. The whole
// area must be on the board.
func ScoutArea(center Position) ([ScoutCells]Position, error) {
	var out [ScoutCells]Position
	if center.Row < 1 || center.Row > Size-2 || center.Col < 1 || center.Col > Size-2 {
		return out, fmt.Errorf("scout center %s too close to the edge", center)
	}
	i := 0
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			out[i] = Position{Row: uint8(int(center.Row) + dr), Col: uint8(int(center.Col) + dc)}
			i++
		}
	}
	return out, nil
}

// Scout reports ship presence around center.
func (s *GameState) Scout(center Position) ([ScoutCells]HitType, error) {
	var out [ScoutCells]HitType
	area, err := ScoutArea(center)
	if err != nil {
		return out, err
	}
	b, err := s.Board()
	if err != nil {
		return out, err
	}
	for i, p := range area {
		if b.Cells[p.Row][p.Col] != 0 {
			out[i] = Hit
		}
	}
	return out, nil
}
