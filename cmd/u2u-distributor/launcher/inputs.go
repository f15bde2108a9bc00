package launcher

import (
	"encoding/json"
	"math/big"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/unicornultrafoundation/go-u2u-distribution/distribution"
	"github.com/unicornultrafoundation/go-u2u-distribution/utils"
	"github.com/unicornultrafoundation/go-u2u-distribution/vesting"
)

// readScores reads a JSON object mapping addresses to integer scores.
// Scores may be JSON numbers or decimal strings.
func readScores(file string) ([]distribution.ScoredRecipient, error) {
	raw := make(map[string]json.Number)
	if err := readJSON(file, &raw); err != nil {
		return nil, err
	}
	out := make([]distribution.ScoredRecipient, 0, len(raw))
	for addr, num := range raw {
		score, ok := new(big.Int).SetString(num.String(), 10)
		if !ok {
			return nil, errors.Errorf("%s: score of %s is not an integer: %s", file, addr, num)
		}
		out = append(out, distribution.ScoredRecipient{Address: addr, Score: score})
	}
	// map order is random, the calculator sorts anyway
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Address) < strings.ToLower(out[j].Address)
	})
	return out, nil
}

// readOverlay reads a JSON object mapping addresses to token amounts.
func readOverlay(file string) ([]distribution.Allocation, error) {
	raw := make(map[string]string)
	if err := readJSON(file, &raw); err != nil {
		return nil, err
	}
	out := make([]distribution.Allocation, 0, len(raw))
	for addr, amount := range raw {
		if !common.IsHexAddress(addr) {
			return nil, errors.Errorf("%s: bad address %q", file, addr)
		}
		wei, err := utils.ParseTokens(amount)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: amount of %s", file, addr)
		}
		out = append(out, distribution.Allocation{Address: common.HexToAddress(addr), Amount: wei})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.Cmp(out[j].Address) < 0
	})
	return out, nil
}

type grantJSON struct {
	Address common.Address `json:"address"`
	Amount  string         `json:"amount"`
	Start   uint64         `json:"start"`
}

// readGrants reads a JSON array of {address, amount, start} vesting grants.
// Amounts are in tokens, start in unix seconds.
func readGrants(file string) ([]vesting.Grant, error) {
	var raw []grantJSON
	if err := readJSON(file, &raw); err != nil {
		return nil, err
	}
	out := make([]vesting.Grant, len(raw))
	for i, g := range raw {
		wei, err := utils.ParseTokens(g.Amount)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: grant #%d", file, i)
		}
		out[i] = vesting.Grant{Address: g.Address, Amount: wei, Start: g.Start}
	}
	return out, nil
}

func readPublication(file string) (*distribution.Commitment, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	com, err := distribution.ReadCommitment(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read publication %s", file)
	}
	return com, nil
}

func readJSON(file string, v interface{}) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return errors.Wrapf(err, "failed to decode %s", file)
	}
	return nil
}
