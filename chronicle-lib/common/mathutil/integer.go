// Copyright 2017 The go-ethereum Authors
// (original work)
// Copyright 2024 The Erigon Authors
// (modifications)
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package mathutil holds the small set of overflow-checked integer helpers
// the ledger needs: bumping the per-namespace disambiguation counter and
// validating the hex tail of an address (§4.5/§9).
package mathutil

import (
	"fmt"
	"strconv"
)

// ParseUint64 parses s as an integer in decimal or hexadecimal syntax.
// Leading zeros are accepted. The empty string parses as zero.
func ParseUint64(s string) (uint64, bool) {
	if s == "" {
		return 0, true
	}
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 64)
		return v, err == nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	return v, err == nil
}

// MustParseUint64 parses s as an integer and panics if the string is invalid.
func MustParseUint64(s string) uint64 {
	v, ok := ParseUint64(s)
	if !ok {
		panic("invalid unsigned 64 bit integer: " + s)
	}
	return v
}

// SafeAdd returns x+y and reports whether the addition overflowed. The
// disambiguation counter (§9) calls this on every increment rather than
// trusting wraparound silently.
func SafeAdd(x, y uint64) (sum uint64, overflow bool) {
	sum = x + y
	overflow = sum < x
	return sum, overflow
}

// SafeMul returns x*y and reports whether the multiplication overflowed.
func SafeMul(x, y uint64) (product uint64, overflow bool) {
	if x == 0 || y == 0 {
		return 0, false
	}
	product = x * y
	overflow = product/y != x
	return product, overflow
}

// IsHex64 reports whether s is exactly 64 lowercase hex characters, the
// shape required of the address hash tail in §4.5.
func IsHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			return false
		}
	}
	return true
}

// FormatCounter renders a disambiguation counter suffix the way the
// projection's naming scheme expects: "-1", "-2", ... with no leading zero.
func FormatCounter(n uint64) string {
	return fmt.Sprintf("-%d", n)
}
