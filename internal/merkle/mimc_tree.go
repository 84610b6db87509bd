package merkle

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	bnmimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/pkg/errors"
)

// HashLeaf hashes a single cell code, consistent with the in-circuit leaf hash.
func HashLeaf(code uint8) *big.Int {
	return Hash(new(big.Int).SetUint64(uint64(code)))
}

// HashNode merges two children.
func HashNode(left, right *big.Int) *big.Int { return Hash(left, right) }

// Hash is MiMC over the given field elements, one block each. Every input must
// already be reduced modulo the BN254 scalar field.
func Hash(elems ...*big.Int) *big.Int {
	h := bnmimc.NewMiMC()
	var block [fr.Bytes]byte
	for _, e := range elems {
		h.Write(e.FillBytes(block[:]))
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}

// Tree keeps every level of a complete binary tree, leaves first.
type Tree struct {
	Depth  int          `json:"depth"`
	Levels [][]*big.Int `json:"levels"` // Levels[Depth][0] is the root
}

// BuildFixedTree hashes codes into a tree of size leaves, padding with
// HashLeaf(0). size must be a power of two.
func BuildFixedTree(codes []uint8, size int) (*Tree, error) {
	if size <= 0 || size&(size-1) != 0 {
		return nil, errors.Errorf("tree size %d is not a power of two", size)
	}
	if len(codes) > size {
		return nil, errors.Errorf("%d codes do not fit %d leaves", len(codes), size)
	}
	leaves := make([]*big.Int, size)
	pad := HashLeaf(0)
	for i := range leaves {
		if i < len(codes) {
			leaves[i] = HashLeaf(codes[i])
		} else {
			leaves[i] = new(big.Int).Set(pad)
		}
	}
	t := &Tree{Levels: [][]*big.Int{leaves}}
	for below := leaves; len(below) > 1; t.Depth++ {
		above := make([]*big.Int, len(below)/2)
		for i := range above {
			above[i] = HashNode(below[2*i], below[2*i+1])
		}
		t.Levels = append(t.Levels, above)
		below = above
	}
	return t, nil
}

func (t *Tree) Root() *big.Int { return new(big.Int).Set(t.Levels[len(t.Levels)-1][0]) }

// Set replaces leaf idx with the hash of code and rehashes its ancestors.
func (t *Tree) Set(idx int, code uint8) error {
	if idx < 0 || idx >= len(t.Levels[0]) {
		return errors.Errorf("leaf %d outside a tree of %d", idx, len(t.Levels[0]))
	}
	t.Levels[0][idx] = HashLeaf(code)
	for h := 1; h <= t.Depth; h++ {
		idx >>= 1
		t.Levels[h][idx] = HashNode(t.Levels[h-1][2*idx], t.Levels[h-1][2*idx+1])
	}
	return nil
}

// Path lists the siblings from leaf idx up to the root. dir[i] is 1 when the
// node at height i is a right child.
func (t *Tree) Path(idx int) (path []*big.Int, dir []uint8, err error) {
	if idx < 0 || idx >= len(t.Levels[0]) {
		return nil, nil, errors.Errorf("leaf %d outside a tree of %d", idx, len(t.Levels[0]))
	}
	path = make([]*big.Int, t.Depth)
	dir = make([]uint8, t.Depth)
	for h := 0; h < t.Depth; h++ {
		dir[h] = uint8(idx & 1)
		path[h] = new(big.Int).Set(t.Levels[h][idx^1])
		idx >>= 1
	}
	return path, dir, nil
}

// RootFromPath folds a leaf hash up a path produced by Path.
func RootFromPath(leaf *big.Int, path []*big.Int, dir []uint8) *big.Int {
	curr := new(big.Int).Set(leaf)
	for i := range path {
		if dir[i] == 1 {
			curr = HashNode(path[i], curr)
		} else {
			curr = HashNode(curr, path[i])
		}
	}
	return curr
}
