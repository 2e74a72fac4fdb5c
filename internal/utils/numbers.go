// Package utils holds small helpers for parsing request input and shaping
// text. Nothing here knows about the billing domain.
package utils

import (
	"cmp"
	"strconv"
	"strings"
)

// ParseIntOr parses a query or form value as a base-10 int. Blank or
// malformed input yields def.
func ParseIntOr(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// Clamp bounds v to [lo, hi].
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}
