package zk

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"

	"sagittarius-zk/internal/game"
)

const MerkleDepth = game.TreeDepth // 128 leaves

// boundCoord asserts 0 <= v <= max.
func boundCoord(api frontend.API, v frontend.Variable, max int) {
	api.ToBinary(v, 4)
	api.AssertIsLessOrEqual(v, max)
}

// cellIndex range-checks a position and returns its Merkle direction bits.
func cellIndex(api frontend.API, row, col frontend.Variable) []frontend.Variable {
	boundCoord(api, row, game.Size-1)
	boundCoord(api, col, game.Size-1)
	idx := api.Add(api.Mul(row, game.Size), col)
	return api.ToBinary(idx, MerkleDepth)
}

// splitCode breaks a leaf code into ship id and hit flag.
func splitCode(api frontend.API, code frontend.Variable) (id, hit frontend.Variable) {
	bits := api.ToBinary(code, 4)
	id = api.FromBinary(bits[0], bits[1], bits[2])
	api.AssertIsLessOrEqual(id, game.NumShips)
	return id, bits[3]
}

type hasher struct {
	api frontend.API
	h   mimc.MiMC
}

func newHasher(api frontend.API) (*hasher, error) {
	// v0.14 returns (MiMC, error)
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return nil, err
	}
	return &hasher{api: api, h: h}, nil
}

func (hs *hasher) sum(v ...frontend.Variable) frontend.Variable {
	hs.h.Reset()
	hs.h.Write(v...)
	return hs.h.Sum()
}

// walk folds a leaf code up a Merkle path.
func (hs *hasher) walk(code frontend.Variable, path []frontend.Variable, dir []frontend.Variable) frontend.Variable {
	curr := hs.sum(code)
	for i := 0; i < MerkleDepth; i++ {
		left := hs.api.Select(dir[i], path[i], curr)
		right := hs.api.Select(dir[i], curr, path[i])
		curr = hs.sum(left, right)
	}
	return curr
}

// board is the hashed view of a committed state: tree root plus ship health.
type board struct {
	root   frontend.Variable
	health [game.NumShips]frontend.Variable
}

func (b *board) digest(hs *hasher, salt frontend.Variable) frontend.Variable {
	v := make([]frontend.Variable, 0, 2+game.NumShips)
	v = append(v, salt, b.root)
	v = append(v, b.health[:]...)
	return hs.sum(v...)
}

// shoot opens the leaf at (row,col), applies the shot and returns the HitType.
func (b *board) shoot(hs *hasher, row, col, code frontend.Variable, path []frontend.Variable) frontend.Variable {
	api := hs.api
	dir := cellIndex(api, row, col)
	id, wasHit := splitCode(api, code)
	api.AssertIsEqual(hs.walk(code, path, dir), b.root)

	isShip := api.Sub(1, api.IsZero(id))
	fresh := api.Mul(isShip, api.Sub(1, wasHit))
	newCode := api.Add(code, api.Mul(fresh, game.HitFlag))

	var left frontend.Variable = 0
	for k := 0; k < game.NumShips; k++ {
		sel := api.IsZero(api.Sub(id, k+1))
		b.health[k] = api.Sub(b.health[k], api.Mul(sel, fresh))
		left = api.Add(left, api.Mul(sel, b.health[k]))
	}
	b.root = hs.walk(newCode, path, dir)

	sunk := api.Mul(isShip, api.IsZero(left))
	return api.Add(isShip, sunk)
}
