// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAxis indicates an axis declaration that cannot be used.
var ErrInvalidAxis = errors.New("invalid axis")

// InvalidAxisError reports why a single axis declaration was rejected.
type InvalidAxisError struct {
	Name   string
	Reason string
}

func (e *InvalidAxisError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("invalid axis: %s", e.Reason)
	}
	return fmt.Sprintf("invalid axis %q: %s", e.Name, e.Reason)
}

func (e *InvalidAxisError) Unwrap() error { return ErrInvalidAxis }

// Axis is one dimension of the matrix: a name and the ordered values it
// takes. Declaration order in the file is the nesting order of the
// expansion, with the first axis varying slowest.
type Axis struct {
	Name   string   `json:"name"   yaml:"name"   toml:"name"`
	Values []string `json:"values" yaml:"values" toml:"values"`
}

// IsValid reports whether the axis can be used, along with every reason
// it cannot.
func (a Axis) IsValid() (bool, []error) {
	var errs []error
	switch {
	case a.Name == "":
		errs = append(errs, &InvalidAxisError{Reason: "name is empty"})
	case strings.ContainsAny(a.Name, "=/"):
		errs = append(errs, &InvalidAxisError{Name: a.Name, Reason: "name contains '=' or '/'"})
	case strings.TrimSpace(a.Name) != a.Name:
		errs = append(errs, &InvalidAxisError{Name: a.Name, Reason: "name has surrounding whitespace"})
	}
	if len(a.Values) == 0 {
		errs = append(errs, &InvalidAxisError{Name: a.Name, Reason: "no values"})
	}
	for i, v := range a.Values {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, &InvalidAxisError{Name: a.Name, Reason: fmt.Sprintf("value %d is empty", i)})
		}
	}
	return len(errs) == 0, errs
}
