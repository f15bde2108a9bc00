package distribution

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/unicornultrafoundation/go-u2u-distribution/merkle"
)

// Commitment is a built Merkle commitment over a set of entries.
type Commitment struct {
	Root      common.Hash
	LeafCount uint32
	// Entries carry their proofs.
	Entries []Entry

	byIndex   map[uint32]int
	byAddress map[common.Address]int
}

// Commit hashes every entry into a leaf, builds the tree and fills in the
// proofs. Indices must be unique. The same entry set always yields the same
// root.
func Commit(entries []Entry) (*Commitment, error) {
	c := &Commitment{
		Entries:   make([]Entry, len(entries)),
		byIndex:   make(map[uint32]int, len(entries)),
		byAddress: make(map[common.Address]int, len(entries)),
	}
	leaves := make([]common.Hash, len(entries))
	for i, e := range entries {
		if _, dup := c.byIndex[e.Index]; dup {
			return nil, fmt.Errorf("%w: duplicate index %d", ErrInvalidInput, e.Index)
		}
		if e.Amount == nil {
			return nil, fmt.Errorf("%w: missing amount for index %d", ErrInvalidInput, e.Index)
		}
		leaf, err := merkle.LeafHash(e.Index, e.Address, e.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: index %d: %v", ErrInvalidInput, e.Index, err)
		}
		leaves[i] = leaf
		c.byIndex[e.Index] = i
		c.byAddress[e.Address] = i
		c.Entries[i] = Entry{Index: e.Index, Address: e.Address, Amount: new(big.Int).Set(e.Amount)}
	}
	tree, err := merkle.New(leaves)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	for i := range c.Entries {
		proof, err := tree.Proof(leaves[i])
		if err != nil {
			return nil, err
		}
		c.Entries[i].Proof = proof
	}
	c.Root = tree.Root()
	c.LeafCount = uint32(len(leaves))
	return c, nil
}

// ProofFor returns the sibling path of the entry with the given index.
func (c *Commitment) ProofFor(index uint32) ([]common.Hash, error) {
	i, ok := c.byIndex[index]
	if !ok {
		return nil, merkle.ErrUnknownLeaf
	}
	return c.Entries[i].Proof, nil
}

// EntryOf returns the entry of addr.
func (c *Commitment) EntryOf(addr common.Address) (Entry, bool) {
	i, ok := c.byAddress[addr]
	if !ok {
		return Entry{}, false
	}
	return c.Entries[i], true
}

// Total returns the sum of committed amounts.
func (c *Commitment) Total() *big.Int {
	sum := new(big.Int)
	for _, e := range c.Entries {
		sum.Add(sum, e.Amount)
	}
	return sum
}

// Publication is the file handed to claimants.
type Publication struct {
	MerkleRoot common.Hash `json:"merkleRoot"`
	TokenTotal string      `json:"tokenTotal"`
	Claims     []Entry     `json:"claims"`
}

// WriteTo encodes the commitment as an indented Publication.
func (c *Commitment) WriteTo(w io.Writer) (int64, error) {
	out, err := json.MarshalIndent(Publication{
		MerkleRoot: c.Root,
		TokenTotal: c.Total().String(),
		Claims:     c.Entries,
	}, "", "  ")
	if err != nil {
		return 0, err
	}
	n, err := w.Write(append(out, '\n'))
	return int64(n), err
}

// ReadCommitment decodes a Publication, rebuilds the tree from its claims
// and rejects it if the recomputed root differs from the published one.
func ReadCommitment(r io.Reader) (*Commitment, error) {
	var pub Publication
	if err := json.NewDecoder(r).Decode(&pub); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	c, err := Commit(pub.Claims)
	if err != nil {
		return nil, err
	}
	if c.Root != pub.MerkleRoot {
		return nil, fmt.Errorf("%w: published root %s does not match claims (recomputed %s)",
			ErrInvalidInput, pub.MerkleRoot.Hex(), c.Root.Hex())
	}
	return c, nil
}
