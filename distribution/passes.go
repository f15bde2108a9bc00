package distribution

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set"
	"github.com/ethereum/go-ethereum/common"

	"github.com/unicornultrafoundation/go-u2u-distribution/utils"
)

// Every pass below is pure: inputs are never mutated.

// Normalize validates a scoring snapshot, canonicalises addresses and merges
// duplicates by summation. The result is sorted by address.
func Normalize(scores []ScoredRecipient) ([]Allocation, error) {
	merged := make(map[common.Address]*big.Int, len(scores))
	for _, s := range scores {
		addr := strings.ToLower(strings.TrimSpace(s.Address))
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("%w: malformed address %q", ErrInvalidInput, s.Address)
		}
		if s.Score == nil || s.Score.Sign() < 0 {
			return nil, fmt.Errorf("%w: negative or missing score for %s", ErrInvalidInput, addr)
		}
		key := common.HexToAddress(addr)
		if prev, ok := merged[key]; ok {
			prev.Add(prev, s.Score)
		} else {
			merged[key] = new(big.Int).Set(s.Score)
		}
	}
	out := make([]Allocation, 0, len(merged))
	for addr, score := range merged {
		out = append(out, Allocation{Address: addr, Amount: score})
	}
	sortByAddress(out)
	return out, nil
}

// RemoveBlacklisted drops every allocation whose address is in blacklist.
func RemoveBlacklisted(allocs []Allocation, blacklist mapset.Set) []Allocation {
	out := make([]Allocation, 0, len(allocs))
	for _, a := range allocs {
		if blacklist.Contains(a.Address) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Allocate splits total proportionally to the weights, rounding every share
// half up with utils.MulDivRound.
func Allocate(weights []Allocation, total *big.Int) ([]Allocation, error) {
	sum := new(big.Int)
	for _, w := range weights {
		sum.Add(sum, w.Amount)
	}
	if sum.Sign() == 0 {
		return nil, fmt.Errorf("%w: total weight is zero", ErrInvalidInput)
	}
	out := make([]Allocation, len(weights))
	for i, w := range weights {
		out[i] = Allocation{
			Address: w.Address,
			Amount:  utils.MulDivRound(w.Amount, total, sum),
		}
	}
	return out, nil
}

// CheckDrift returns sum(allocs) - total. Rounding moves every share by at
// most one unit, so a drift larger than the number of shares is a gross
// input error rather than a rounding artifact.
func CheckDrift(allocs []Allocation, total *big.Int) (*big.Int, error) {
	diff := new(big.Int).Neg(total)
	for _, a := range allocs {
		diff.Add(diff, a.Amount)
	}
	if new(big.Int).Abs(diff).Cmp(big.NewInt(int64(len(allocs)))) > 0 {
		return nil, fmt.Errorf("%w: precision drift %s exceeds recipient count %d", ErrInvalidInput, diff, len(allocs))
	}
	return diff, nil
}

// Reconcile nudges the smallest non-zero amounts by one unit each until the
// sum equals total exactly. An amount is only decremented while it stays at
// or above floor, so reconciling after the floor pass cannot reintroduce
// sub-floor amounts. When every amount rounded down to zero, increments
// land on zero amounts, lowest address first among equals.
func Reconcile(allocs []Allocation, total, floor *big.Int) ([]Allocation, error) {
	diff, err := CheckDrift(allocs, total)
	if err != nil {
		return nil, err
	}
	out := cloneAllocations(allocs)
	sortByAmount(out)

	step := big.NewInt(1)
	if diff.Sign() > 0 {
		step.Neg(step)
	}
	remaining := new(big.Int).Abs(diff).Int64()
	fillZero := step.Sign() > 0 && allZero(out)
	for remaining > 0 {
		progressed := false
		for i := range out {
			if remaining == 0 {
				break
			}
			amt := out[i].Amount
			if amt.Sign() == 0 && !fillZero {
				continue
			}
			if step.Sign() < 0 && amt.Cmp(floor) <= 0 {
				continue
			}
			amt.Add(amt, step)
			remaining--
			progressed = true
		}
		if !progressed {
			return nil, fmt.Errorf("%w: cannot reconcile drift %s", ErrInvalidInput, diff)
		}
	}
	return out, nil
}

func allZero(allocs []Allocation) bool {
	for _, a := range allocs {
		if a.Amount.Sign() != 0 {
			return false
		}
	}
	return true
}

// ApplyFloor removes every amount strictly below floor and redistributes the
// whole total among the remaining ones, using their amounts as weights.
// Zero amounts are always removed. It returns the kept allocations and the
// number of removed ones.
func ApplyFloor(allocs []Allocation, total, floor *big.Int) ([]Allocation, int, error) {
	kept := make([]Allocation, 0, len(allocs))
	removed := 0
	for _, a := range allocs {
		if a.Amount.Sign() == 0 {
			continue
		}
		if a.Amount.Cmp(floor) < 0 {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	if len(kept) == 0 {
		return nil, removed, fmt.Errorf("%w: no recipient reaches floor %s", ErrInvalidInput, floor)
	}
	if removed == 0 {
		return cloneAllocations(kept), 0, nil
	}
	redistributed, err := Allocate(kept, total)
	if err != nil {
		return nil, removed, err
	}
	return redistributed, removed, nil
}

// Order sorts allocations by ascending amount, ties by address, and assigns
// dense zero-based indices.
func Order(allocs []Allocation) []Entry {
	sorted := cloneAllocations(allocs)
	sortByAmount(sorted)
	entries := make([]Entry, len(sorted))
	for i, a := range sorted {
		entries[i] = Entry{
			Index:   uint32(i),
			Address: a.Address,
			Amount:  a.Amount,
		}
	}
	return entries
}

func cloneAllocations(allocs []Allocation) []Allocation {
	out := make([]Allocation, len(allocs))
	for i, a := range allocs {
		out[i] = Allocation{Address: a.Address, Amount: new(big.Int).Set(a.Amount)}
	}
	return out
}

func sortByAddress(allocs []Allocation) {
	sort.Slice(allocs, func(i, j int) bool {
		return bytes.Compare(allocs[i].Address[:], allocs[j].Address[:]) < 0
	})
}

func sortByAmount(allocs []Allocation) {
	sort.Slice(allocs, func(i, j int) bool {
		if c := allocs[i].Amount.Cmp(allocs[j].Amount); c != 0 {
			return c < 0
		}
		return bytes.Compare(allocs[i].Address[:], allocs[j].Address[:]) < 0
	})
}
