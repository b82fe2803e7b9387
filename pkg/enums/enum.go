// Package enums holds the string-backed enumerations persisted by the
// fulfillment engine.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

func member[T ~string](v T, set []T) bool {
	return slices.Contains(set, v)
}

// parse matches value case-insensitively after trimming; label names the
// enum in the returned error.
func parse[T ~string](label, value string, set []T) (T, error) {
	needle := strings.TrimSpace(value)
	for _, candidate := range set {
		if strings.EqualFold(string(candidate), needle) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid %s %q", label, value)
}
