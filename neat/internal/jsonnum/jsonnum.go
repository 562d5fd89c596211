// Package jsonnum encodes integer identifiers and counts as decimal strings,
// the convention used by every serialized entity in this module.
package jsonnum

import (
	"errors"
	"fmt"
	"strconv"
)

// Format renders v as a decimal string.
func Format(v int) string {
	return strconv.Itoa(v)
}

// Parse reads a decimal string written by Format.
// Syntax errors are returned to the caller and abort the load. Values that
// overflow an int are mapped to 0 instead of failing.
func Parse(s string) (int, error) {
	v, err := strconv.ParseInt(s, 10, strconv.IntSize)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, nil
		}
		return 0, fmt.Errorf("invalid numeric field %q: %w", s, err)
	}
	return int(v), nil
}

// ParseAll parses each element of ss with Parse.
func ParseAll(ss []string) ([]int, error) {
	out := make([]int, len(ss))
	for i, s := range ss {
		v, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// FormatAll renders each element of vs with Format.
func FormatAll(vs []int) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = Format(v)
	}
	return out
}
