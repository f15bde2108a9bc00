package distribution

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/unicornultrafoundation/go-u2u-distribution/logger"
)

// Calculator turns scoring snapshots into final distributions.
type Calculator struct {
	cfg Config

	logger.Instance
}

// NewCalculator validates cfg and returns a calculator for it.
func NewCalculator(cfg Config) (*Calculator, error) {
	if cfg.TotalSupply == nil || cfg.TotalSupply.Sign() <= 0 {
		return nil, fmt.Errorf("%w: total supply must be positive", ErrInvalidInput)
	}
	if cfg.FloorThreshold != nil && cfg.FloorThreshold.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative floor threshold", ErrInvalidInput)
	}
	for _, o := range cfg.Overlay {
		if o.Amount == nil || o.Amount.Sign() < 0 {
			return nil, fmt.Errorf("%w: bad overlay amount for %s", ErrInvalidInput, o.Address.Hex())
		}
	}
	return &Calculator{
		cfg:      cfg,
		Instance: logger.New("distribution"),
	}, nil
}

// Compute runs the full pipeline over a scoring snapshot:
// normalise, blacklist, allocate, reconcile, floor and redistribute,
// reconcile again, then add the overlay table and the carried-over balances
// of the previous period, and order the result.
// carry may be nil for one-shot distributions.
func (c *Calculator) Compute(scores []ScoredRecipient, carry []Allocation) (*Distribution, error) {
	total := c.cfg.TotalSupply
	floor := c.cfg.floor()

	weights, err := Normalize(scores)
	if err != nil {
		return nil, err
	}
	weights = RemoveBlacklisted(weights, c.cfg.blacklistSet())
	c.Log.Debug("Normalized scores", "input", len(scores), "recipients", len(weights))

	amounts, err := Allocate(weights, total)
	if err != nil {
		return nil, err
	}
	amounts, err = Reconcile(amounts, total, new(big.Int))
	if err != nil {
		return nil, err
	}
	amounts, excluded, err := ApplyFloor(amounts, total, floor)
	if err != nil {
		return nil, err
	}
	amounts, err = Reconcile(amounts, total, floor)
	if err != nil {
		return nil, err
	}

	final := make(map[common.Address]*big.Int, len(amounts))
	for _, a := range amounts {
		final[a.Address] = a.Amount
	}
	overlayTotal, err := merge(final, c.cfg.Overlay)
	if err != nil {
		return nil, err
	}
	carriedTotal, err := merge(final, carry)
	if err != nil {
		return nil, err
	}

	merged := make([]Allocation, 0, len(final))
	for addr, amount := range final {
		if amount.Sign() == 0 {
			continue
		}
		merged = append(merged, Allocation{Address: addr, Amount: amount})
	}
	d := &Distribution{
		Entries:      Order(merged),
		TotalSupply:  new(big.Int).Set(total),
		OverlayTotal: overlayTotal,
		CarriedTotal: carriedTotal,
		Excluded:     excluded,
	}
	c.Log.Info("Distribution computed", "recipients", len(d.Entries), "excluded", excluded,
		"supply", total, "overlay", overlayTotal, "carried", carriedTotal)
	return d, nil
}

// merge adds extra on top of final, creating entries as needed,
// and returns the sum of extra.
func merge(final map[common.Address]*big.Int, extra []Allocation) (*big.Int, error) {
	sum := new(big.Int)
	for _, e := range extra {
		if e.Amount == nil || e.Amount.Sign() < 0 {
			return nil, fmt.Errorf("%w: bad additive amount for %s", ErrInvalidInput, e.Address.Hex())
		}
		if prev, ok := final[e.Address]; ok {
			final[e.Address] = new(big.Int).Add(prev, e.Amount)
		} else {
			final[e.Address] = new(big.Int).Set(e.Amount)
		}
		sum.Add(sum, e.Amount)
	}
	return sum, nil
}
