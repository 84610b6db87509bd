package game

import (
	"errors"
	"fmt"
	"math/rand"
)

// Fleet lists ship lengths; ship k (0-based) is stored on the board as id k+1.
var Fleet = [NumShips]int{5, 4, 3, 3, 2} // total 17

const NumShips = 5

// Ship is a placement: upper-left cell plus orientation.
type Ship struct {
	Row      uint8 `json:"row"`
	Col      uint8 `json:"col"`
	Vertical bool  `json:"vertical"`
}

// Board is a 10x10 grid. Cell: 0=water, 1..5=ship id.
type Board struct{ Cells [Size][Size]uint8 }

// PlaceFleet lays out ships, rejecting out-of-bounds or overlapping placements.
func PlaceFleet(ships [NumShips]Ship) (Board, error) {
	var b Board
	for k, s := range ships {
		L := Fleet[k]
		r, c := int(s.Row), int(s.Col)
		if r >= Size || c >= Size {
			return Board{}, fmt.Errorf("ship %d starts off board", k+1)
		}
		if s.Vertical && r+L > Size || !s.Vertical && c+L > Size {
			return Board{}, fmt.Errorf("ship %d runs off board", k+1)
		}
		for i := 0; i < L; i++ {
			rr, cc := r, c+i
			if s.Vertical {
				rr, cc = r+i, c
			}
			if b.Cells[rr][cc] != 0 {
				return Board{}, fmt.Errorf("ship %d overlaps ship %d", k+1, b.Cells[rr][cc])
			}
			b.Cells[rr][cc] = uint8(k + 1)
		}
	}
	return b, nil
}

func (b *Board) Flatten() []uint8 {
	out := make([]uint8, Cells)
	k := 0
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			out[k] = b.Cells[r][c]
			k++
		}
	}
	return out
}

// GenerateRandomFleet places the standard ships without overlap (no adjacency rule).
func GenerateRandomFleet(rng *rand.Rand) ([NumShips]Ship, error) {
	var ships [NumShips]Ship
	var b Board
	tries := 0
	for k, L := range Fleet {
	retry:
		if tries > 10000 {
			return ships, errors.New("failed to place ships")
		}
		tries++
		vert := rng.Intn(2) == 0
		r := rng.Intn(Size)
		c := rng.Intn(Size)
		if vert {
			if r+L > Size {
				goto retry
			}
			for i := 0; i < L; i++ {
				if b.Cells[r+i][c] != 0 {
					goto retry
				}
			}
			for i := 0; i < L; i++ {
				b.Cells[r+i][c] = uint8(k + 1)
			}
		} else {
			if c+L > Size {
				goto retry
			}
			for i := 0; i < L; i++ {
				if b.Cells[r][c+i] != 0 {
					goto retry
				}
			}
			for i := 0; i < L; i++ {
				b.Cells[r][c+i] = uint8(k + 1)
			}
		}
		ships[k] = Ship{Row: uint8(r), Col: uint8(c), Vertical: vert}
	}
	return ships, nil
}
