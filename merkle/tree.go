// Package merkle builds sorted-pair keccak Merkle trees.
//
// Leaves are sorted before the tree is built and every internal node hashes
// its two children in ascending byte order, so a proof is a plain list of
// sibling hashes without left/right flags. An odd node at the end of a level
// is promoted to the next level unchanged.
package merkle

import (
	"bytes"
	"errors"
	"hash"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/errgroup"
)

var (
	ErrEmptyTree     = errors.New("merkle tree without leaves")
	ErrDuplicateLeaf = errors.New("duplicate leaf")
	ErrUnknownLeaf   = errors.New("leaf not in tree")
	ErrAmountRange   = errors.New("amount does not fit 256 bits")
)

// parallelLevel is the level width above which pair hashing is split
// between goroutines.
const parallelLevel = 4096

// Tree is an immutable sorted-pair Merkle tree.
type Tree struct {
	levels   [][]common.Hash // levels[0] are the sorted leaves
	position map[common.Hash]int
}

// New builds a tree over leaves. The input slice is not modified.
func New(leaves []common.Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	sorted := make([]common.Hash, len(leaves))
	copy(sorted, leaves)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	t := &Tree{
		levels:   [][]common.Hash{sorted},
		position: make(map[common.Hash]int, len(sorted)),
	}
	for i, leaf := range sorted {
		if _, ok := t.position[leaf]; ok {
			return nil, ErrDuplicateLeaf
		}
		t.position[leaf] = i
	}
	for level := sorted; len(level) > 1; {
		level = nextLevel(level)
		t.levels = append(t.levels, level)
	}
	return t, nil
}

func nextLevel(level []common.Hash) []common.Hash {
	next := make([]common.Hash, (len(level)+1)/2)
	hashRange := func(from, to int) {
		h := newHasher()
		for i := from; i < to; i++ {
			if 2*i+1 < len(level) {
				next[i] = h.pair(level[2*i], level[2*i+1])
			} else {
				next[i] = level[2*i]
			}
		}
	}
	if len(level) < parallelLevel {
		hashRange(0, len(next))
		return next
	}

	var g errgroup.Group
	const chunk = parallelLevel / 2
	for from := 0; from < len(next); from += chunk {
		from, to := from, from+chunk
		if to > len(next) {
			to = len(next)
		}
		g.Go(func() error {
			hashRange(from, to)
			return nil
		})
	}
	_ = g.Wait()
	return next
}

// Root returns the root hash.
func (t *Tree) Root() common.Hash {
	return t.levels[len(t.levels)-1][0]
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	return len(t.levels[0])
}

// Proof returns the sibling path from leaf to root.
func (t *Tree) Proof(leaf common.Hash) ([]common.Hash, error) {
	pos, ok := t.position[leaf]
	if !ok {
		return nil, ErrUnknownLeaf
	}
	proof := make([]common.Hash, 0, len(t.levels)-1)
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := pos ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		pos /= 2
	}
	return proof, nil
}

// Verify folds proof bottom-up from leaf and compares the result with root.
func Verify(root common.Hash, leaf common.Hash, proof []common.Hash) bool {
	h := newHasher()
	node := leaf
	for _, sibling := range proof {
		node = h.pair(node, sibling)
	}
	return node == root
}

// LeafHash commits to one claim:
// keccak256(uint256(index) ++ address ++ uint256(amount)),
// the abi.encodePacked layout of (uint256, address, uint256).
// The layout is part of every published root and must not change.
func LeafHash(index uint32, account common.Address, amount *big.Int) (common.Hash, error) {
	if amount.Sign() < 0 {
		return common.Hash{}, ErrAmountRange
	}
	amt, overflow := uint256.FromBig(amount)
	if overflow {
		return common.Hash{}, ErrAmountRange
	}
	idx := uint256.NewInt(uint64(index)).Bytes32()
	val := amt.Bytes32()

	h := newHasher()
	h.state.Write(idx[:])
	h.state.Write(account.Bytes())
	h.state.Write(val[:])
	return h.sum(), nil
}

// VerifyClaim recomputes the leaf of (index, account, amount) and checks it
// against root.
func VerifyClaim(root common.Hash, index uint32, account common.Address, amount *big.Int, proof []common.Hash) bool {
	leaf, err := LeafHash(index, account, amount)
	if err != nil {
		return false
	}
	return Verify(root, leaf, proof)
}

// keccakState wraps sha3.state. In addition to the usual hash methods, it also supports
// Read to get a variable amount of data from the hash state.
type keccakState interface {
	hash.Hash
	Read([]byte) (int, error)
}

type hasher struct {
	state keccakState
}

func newHasher() *hasher {
	return &hasher{state: sha3.NewLegacyKeccak256().(keccakState)}
}

func (h *hasher) pair(a, b common.Hash) common.Hash {
	h.state.Reset()
	if bytes.Compare(a[:], b[:]) <= 0 {
		h.state.Write(a[:])
		h.state.Write(b[:])
	} else {
		h.state.Write(b[:])
		h.state.Write(a[:])
	}
	return h.sum()
}

func (h *hasher) sum() common.Hash {
	var out common.Hash
	h.state.Read(out[:])
	h.state.Reset()
	return out
}
