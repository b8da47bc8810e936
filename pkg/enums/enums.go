// Package enums holds the closed string sets stored in the database and accepted on the wire.
package enums

import (
	"fmt"
	"slices"
)

// parse accepts raw only when it is an exact member of set.
func parse[T ~string](set []T, kind, raw string) (T, error) {
	if v := T(raw); slices.Contains(set, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
