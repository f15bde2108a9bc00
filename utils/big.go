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

import "math/big"

var (
	big0 = big.NewInt(0)
	big1 = big.NewInt(1)
	big2 = big.NewInt(2)
)

// BigMin returns the smallest of the provided big.Ints.
// None of the arguments must be nil. If no arguments
// are provided, nil is returned.
func BigMin(values ...*big.Int) *big.Int {
	if len(values) == 0 {
		return nil
	}
	res := values[0]
	for _, b := range values[1:] {
		if res.Cmp(b) > 0 {
			res = b
		}
	}
	return res
}

// BigMax returns the largest of the provided big.Ints.
// None of the arguments must be nil. If no arguments
// are provided, nil is returned.
func BigMax(values ...*big.Int) *big.Int {
	if len(values) == 0 {
		return nil
	}
	res := values[0]
	for _, b := range values[1:] {
		if res.Cmp(b) < 0 {
			res = b
		}
	}
	return res
}

// BigSum returns a new big.Int holding the sum of values.
func BigSum(values ...*big.Int) *big.Int {
	sum := new(big.Int)
	for _, v := range values {
		sum.Add(sum, v)
	}
	return sum
}

// MulDivFloor returns floor(a*b/c) for non-negative operands.
// c must be positive.
func MulDivFloor(a, b, c *big.Int) *big.Int {
	res := new(big.Int).Mul(a, b)
	return res.Quo(res, c)
}

// MulDivRound returns a*b/c rounded half up for non-negative operands.
// It is the single rounding rule used by every proportional split.
func MulDivRound(a, b, c *big.Int) *big.Int {
	num := new(big.Int).Mul(a, b)
	q, r := new(big.Int).QuoRem(num, c, new(big.Int))
	// r/c >= 1/2  <=>  2r >= c
	if r.Mul(r, big2).Cmp(c) >= 0 {
		q.Add(q, big1)
	}
	return q
}

// Sub0 returns max(a-b, 0).
func Sub0(a, b *big.Int) *big.Int {
	res := new(big.Int).Sub(a, b)
	if res.Sign() < 0 {
		return res.Set(big0)
	}
	return res
}
