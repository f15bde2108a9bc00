package distribution

import (
	"math/big"

	mapset "github.com/deckarep/golang-set"
	"github.com/ethereum/go-ethereum/common"
)

// Well-known addresses that never receive a share.
var (
	ZeroAddress = common.Address{}
	BurnAddress = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
)

// Allocation is an address-keyed amount.
type Allocation struct {
	Address common.Address
	Amount  *big.Int
}

// SumAllocations returns the sum of all amounts.
func SumAllocations(allocs []Allocation) *big.Int {
	sum := new(big.Int)
	for _, a := range allocs {
		sum.Add(sum, a.Amount)
	}
	return sum
}

// Config holds every parameter of a distribution run.
type Config struct {
	// TotalSupply is the exact sum of all score-derived amounts.
	TotalSupply *big.Int
	// FloorThreshold is the smallest amount a scored recipient may keep.
	FloorThreshold *big.Int
	// Blacklist is removed before shares are computed.
	Blacklist []common.Address
	// Overlay is a fixed allocation table added on top of the
	// score-derived amounts. It is never floored or redistributed.
	Overlay []Allocation
}

// DefaultConfig returns a config with the zero and burn addresses
// blacklisted and no supply.
func DefaultConfig() Config {
	return Config{
		TotalSupply:    new(big.Int),
		FloorThreshold: new(big.Int),
		Blacklist:      []common.Address{ZeroAddress, BurnAddress},
	}
}

func (c Config) blacklistSet() mapset.Set {
	set := mapset.NewThreadUnsafeSet()
	for _, addr := range c.Blacklist {
		set.Add(addr)
	}
	return set
}

func (c Config) floor() *big.Int {
	if c.FloorThreshold == nil {
		return new(big.Int)
	}
	return c.FloorThreshold
}
