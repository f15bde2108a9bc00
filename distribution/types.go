package distribution

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ScoredRecipient is one raw row of a scoring snapshot.
// Address may use any hex case; duplicates are merged by summation.
type ScoredRecipient struct {
	Address string
	Score   *big.Int
}

// Entry is one claimable allocation. Index is baked into the Merkle leaf
// and must never be reassigned once a root is published.
type Entry struct {
	Index   uint32
	Address common.Address
	Amount  *big.Int
	Proof   []common.Hash
}

// Distribution is the output of a calculator run.
type Distribution struct {
	Entries []Entry

	// TotalSupply equals the sum of score-derived amounts.
	TotalSupply *big.Int
	// OverlayTotal is the sum of the fixed overlay table.
	OverlayTotal *big.Int
	// CarriedTotal is the sum carried over from the previous period.
	CarriedTotal *big.Int
	// Excluded counts scored recipients dropped by the floor.
	Excluded int
}

// Total returns the sum of all entries.
func (d *Distribution) Total() *big.Int {
	sum := new(big.Int)
	for _, e := range d.Entries {
		sum.Add(sum, e.Amount)
	}
	return sum
}

type entryJSON struct {
	Index   uint32        `json:"index"`
	Address string        `json:"address"`
	Balance string        `json:"balance"`
	Proof   []common.Hash `json:"proof"`
}

// MarshalJSON renders the record published to claimants.
func (e Entry) MarshalJSON() ([]byte, error) {
	proof := e.Proof
	if proof == nil {
		proof = []common.Hash{}
	}
	return json.Marshal(entryJSON{
		Index:   e.Index,
		Address: strings.ToLower(e.Address.Hex()),
		Balance: e.Amount.String(),
		Proof:   proof,
	})
}

func (e *Entry) UnmarshalJSON(input []byte) error {
	var dec entryJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	if !common.IsHexAddress(dec.Address) {
		return fmt.Errorf("%w: bad address %q", ErrInvalidInput, dec.Address)
	}
	amount, ok := new(big.Int).SetString(dec.Balance, 10)
	if !ok || amount.Sign() < 0 {
		return fmt.Errorf("%w: bad balance %q", ErrInvalidInput, dec.Balance)
	}
	e.Index = dec.Index
	e.Address = common.HexToAddress(dec.Address)
	e.Amount = amount
	e.Proof = dec.Proof
	return nil
}
