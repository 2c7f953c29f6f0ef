// Package core holds the ledger domain model: entry kinds, drafts, persisted
// entries, monthly totals and the error classes shared by the store.
//
// This file contains helpers for reading and printing amounts. Amounts are
// whole minor currency units (e.g. won), never floating point.
package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// ParseAmount converts user input to minor units.
//
// Digits may be grouped with commas or spaces ("10,000", "10 000"). An empty
// string is zero, matching an untouched price field. Signs, decimal points and
// anything else are rejected with ErrValidation, combined with
// ErrNegativeAmount for a leading minus.
//
// Examples:
//
//	ParseAmount("10000")  -> 10000, nil
//	ParseAmount("10,000") -> 10000, nil
//	ParseAmount("")       -> 0, nil
//	ParseAmount("-5")     -> 0, ErrValidation + ErrNegativeAmount
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("%w: %w", ErrValidation, ErrNegativeAmount)
	}
	s = strings.NewReplacer(",", "", " ", "").Replace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: amount has no digits", ErrValidation)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: amount %q is not a whole number", ErrValidation, s)
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// only overflow is possible here
		return 0, fmt.Errorf("%w: amount %q is too large", ErrValidation, s)
	}
	return v, nil
}

// FormatAmount renders minor units with thousands separators, e.g. 1234567 ->
// "1,234,567".
func FormatAmount(v int64) string {
	return humanize.Comma(v)
}
