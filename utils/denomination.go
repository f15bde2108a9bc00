// Copyright 2023 The go-u2u Authors
// This file is part of the go-u2u library.
//
// The go-u2u library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-u2u library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-u2u library. If not, see <http://www.gnu.org/licenses/>.

package utils

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Token amounts are scaled integers: 1 token = 10^Decimals base units.
const (
	Decimals = 18
	WEI      = 1
	GWEI     = 1e9
	U2U      = 1e18
)

var (
	// ErrBadAmount is returned for unparsable or negative amounts.
	ErrBadAmount = errors.New("bad amount")

	unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)
)

func ToU2U(amount uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(amount), big.NewInt(U2U))
}

// ParseAmount parses either a plain scaled integer ("1500000000000000000")
// or a decimal token string ("1.5"), returning base units.
// Negative values and more than Decimals fractional digits are rejected.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("%w: %q", ErrBadAmount, s)
	}
	whole, frac, isDecimal := strings.Cut(s, ".")
	if !isDecimal {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrBadAmount, s)
		}
		return v, nil
	}
	if len(frac) > Decimals {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrBadAmount, s, Decimals)
	}
	if whole == "" {
		whole = "0"
	}
	frac += strings.Repeat("0", Decimals-len(frac))
	v, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBadAmount, s)
	}
	return v, nil
}

// ParseTokens parses a token count, integer or decimal, into base units.
func ParseTokens(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s != "" && !strings.Contains(s, ".") {
		s += "."
	}
	return ParseAmount(s)
}

// FormatTokens renders base units as a decimal token string without
// trailing fractional zeros.
func FormatTokens(v *big.Int) string {
	if v == nil {
		return "0"
	}
	sign := ""
	abs := new(big.Int).Set(v)
	if abs.Sign() < 0 {
		sign = "-"
		abs.Neg(abs)
	}
	q, r := new(big.Int).QuoRem(abs, unit, new(big.Int))
	if r.Sign() == 0 {
		return sign + q.String()
	}
	frac := fmt.Sprintf("%0*s", Decimals, r.String())
	return sign + q.String() + "." + strings.TrimRight(frac, "0")
}

// TokensFloat converts base units into an approximate token count,
// for metrics and display only.
func TokensFloat(v *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v), new(big.Float).SetInt(unit)).Float64()
	return f
}
