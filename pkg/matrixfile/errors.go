// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrInvalidPolicy indicates a run policy field that cannot be used.
var ErrInvalidPolicy = errors.New("invalid policy")

// InvalidPolicyError reports why a policy field was rejected.
type InvalidPolicyError struct {
	Field  string
	Reason string
}

func (e *InvalidPolicyError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidPolicyError) Unwrap() error { return ErrInvalidPolicy }

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
