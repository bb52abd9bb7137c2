// SPDX-License-Identifier: MPL-2.0

package matrix

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidDescriptor is the sentinel wrapped by all descriptor
	// validation errors, so callers can classify them with errors.Is().
	ErrInvalidDescriptor = errors.New("invalid matrix descriptor")
)

type (
	// AxisName identifies one dimension of the matrix (e.g. "version").
	AxisName string

	// Axis is one independent dimension of variation: a name and an ordered,
	// non-empty list of values. Value order is preserved into the expansion.
	Axis struct {
		// Name must be unique within a descriptor.
		Name AxisName `json:"name"`
		// Values must be non-empty and free of duplicates; duplicates would
		// produce two cells with the same ID.
		Values []string `json:"values"`
	}

	// AxisValue is one axis's chosen value within a cell.
	AxisValue struct {
		Name  AxisName `json:"name"`
		Value string   `json:"value"`
	}

	// Spec is one concrete matrix cell: the chosen value for every axis, in
	// descriptor axis order. Specs are created by Descriptor.Expand and are
	// immutable afterwards.
	Spec struct {
		// Index is the cell's position in the expansion (0-based). Reports
		// and outcome arrays are addressed by this index.
		Index int `json:"index"`
		// Pairs holds one entry per axis, in descriptor axis order.
		Pairs []AxisValue `json:"pairs"`
	}

	// Descriptor is an ordered sequence of axes. Its expansion is the
	// cross-product of all axis values.
	Descriptor struct {
		Axes []Axis `json:"axes"`
	}

	// EmptyAxisError reports an axis with no values.
	EmptyAxisError struct {
		Name AxisName
	}

	// DuplicateAxisError reports two axes sharing a name.
	DuplicateAxisError struct {
		Name AxisName
	}

	// DuplicateValueError reports a value listed twice within one axis.
	DuplicateValueError struct {
		Axis  AxisName
		Value string
	}

	// InvalidAxisNameError reports an axis name that is empty or contains
	// characters reserved by the cell ID syntax ('=' and '/').
	InvalidAxisNameError struct {
		Name AxisName
	}
)

// Error implements the error interface.
func (e *EmptyAxisError) Error() string {
	return fmt.Sprintf("axis %q has no values", e.Name)
}

// Unwrap returns ErrInvalidDescriptor for errors.Is() compatibility.
func (e *EmptyAxisError) Unwrap() error { return ErrInvalidDescriptor }

// Error implements the error interface.
func (e *DuplicateAxisError) Error() string {
	return fmt.Sprintf("duplicate axis name %q", e.Name)
}

// Unwrap returns ErrInvalidDescriptor for errors.Is() compatibility.
func (e *DuplicateAxisError) Unwrap() error { return ErrInvalidDescriptor }

// Error implements the error interface.
func (e *DuplicateValueError) Error() string {
	return fmt.Sprintf("axis %q lists value %q more than once", e.Axis, e.Value)
}

// Unwrap returns ErrInvalidDescriptor for errors.Is() compatibility.
func (e *DuplicateValueError) Unwrap() error { return ErrInvalidDescriptor }

// Error implements the error interface.
func (e *InvalidAxisNameError) Error() string {
	return fmt.Sprintf("invalid axis name %q (must be non-empty, without '=' or '/')", e.Name)
}

// Unwrap returns ErrInvalidDescriptor for errors.Is() compatibility.
func (e *InvalidAxisNameError) Unwrap() error { return ErrInvalidDescriptor }

// String returns the string representation of the AxisName.
func (n AxisName) String() string { return string(n) }

// Validate returns nil if the AxisName is usable as a cell ID component.
// '=' and '/' are rejected because cell IDs are built as "name=value/...".
func (n AxisName) Validate() error {
	if n == "" || strings.ContainsAny(string(n), "=/") || strings.TrimSpace(string(n)) != string(n) {
		return &InvalidAxisNameError{Name: n}
	}
	return nil
}

// EnvName returns the environment variable name carrying this axis's value
// inside a provisioned cell: "MATRUN_" plus the upper-cased axis name with
// every non-alphanumeric rune mapped to '_'.
func (n AxisName) EnvName() string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - ('a' - 'A')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, string(n))
	return "MATRUN_" + mapped
}

// Validate returns nil if the axis has a valid name and a non-empty,
// duplicate-free value list.
func (a *Axis) Validate() error {
	if err := a.Name.Validate(); err != nil {
		return err
	}
	if len(a.Values) == 0 {
		return &EmptyAxisError{Name: a.Name}
	}
	seen := make(map[string]struct{}, len(a.Values))
	for _, v := range a.Values {
		if _, dup := seen[v]; dup {
			return &DuplicateValueError{Axis: a.Name, Value: v}
		}
		seen[v] = struct{}{}
	}
	return nil
}

// Validate checks every axis and the uniqueness of axis names. It collects
// nothing: the first violation is returned, wrapped for errors.Is() against
// ErrInvalidDescriptor.
func (d *Descriptor) Validate() error {
	seen := make(map[AxisName]struct{}, len(d.Axes))
	for i := range d.Axes {
		a := &d.Axes[i]
		if err := a.Validate(); err != nil {
			return err
		}
		if _, dup := seen[a.Name]; dup {
			return &DuplicateAxisError{Name: a.Name}
		}
		seen[a.Name] = struct{}{}
	}
	return nil
}

// Size returns the number of cells Expand would produce: the product of all
// axis cardinalities. A descriptor with no axes has size 1 (one empty cell).
func (d *Descriptor) Size() int {
	n := 1
	for i := range d.Axes {
		n *= len(d.Axes[i].Values)
	}
	return n
}

// Expand returns the full cross-product of the descriptor's axes as an
// ordered []Spec, one per cell. Ordering is row-major: the last axis varies
// fastest, so for axes (version: [a b], os: [x y]) the cells are
// a/x, a/y, b/x, b/y. Expand validates the descriptor first and returns a
// descriptor validation error (wrapping ErrInvalidDescriptor) on failure.
//
// Expand is pure: repeated calls on the same descriptor yield equal slices.
func (d *Descriptor) Expand() ([]Spec, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	total := d.Size()
	specs := make([]Spec, 0, total)

	// counters[i] indexes into d.Axes[i].Values; odometer increment with the
	// last axis as the fastest-moving digit yields the documented order.
	counters := make([]int, len(d.Axes))
	for idx := 0; idx < total; idx++ {
		pairs := make([]AxisValue, len(d.Axes))
		for i := range d.Axes {
			pairs[i] = AxisValue{
				Name:  d.Axes[i].Name,
				Value: d.Axes[i].Values[counters[i]],
			}
		}
		specs = append(specs, Spec{Index: idx, Pairs: pairs})

		for i := len(counters) - 1; i >= 0; i-- {
			counters[i]++
			if counters[i] < len(d.Axes[i].Values) {
				break
			}
			counters[i] = 0
		}
	}
	return specs, nil
}

// AxisNames returns the descriptor's axis names in order.
func (d *Descriptor) AxisNames() []AxisName {
	names := make([]AxisName, len(d.Axes))
	for i := range d.Axes {
		names[i] = d.Axes[i].Name
	}
	return names
}

// Value returns the cell's value for the named axis, and whether the axis
// exists in this cell.
func (s *Spec) Value(name AxisName) (string, bool) {
	for i := range s.Pairs {
		if s.Pairs[i].Name == name {
			return s.Pairs[i].Value, true
		}
	}
	return "", false
}

// ID returns the cell's stable human-readable identity:
// "name=value/name=value" in axis order. IDs are unique within an expansion
// because axis names and per-axis values are unique.
func (s *Spec) ID() string {
	if len(s.Pairs) == 0 {
		return "default"
	}
	parts := make([]string, len(s.Pairs))
	for i, p := range s.Pairs {
		parts[i] = string(p.Name) + "=" + p.Value
	}
	return strings.Join(parts, "/")
}

// Env returns the environment variables derived from the cell's axis values,
// one "MATRUN_<AXIS>=<value>" entry per axis in axis order.
func (s *Spec) Env() []string {
	env := make([]string, len(s.Pairs))
	for i, p := range s.Pairs {
		env[i] = p.Name.EnvName() + "=" + p.Value
	}
	return env
}

// Equal reports whether two cells carry the same axis values in the same
// order. Index is ignored so a cell can be matched across expansions of the
// same descriptor.
func (s *Spec) Equal(other *Spec) bool {
	if len(s.Pairs) != len(other.Pairs) {
		return false
	}
	for i := range s.Pairs {
		if s.Pairs[i] != other.Pairs[i] {
			return false
		}
	}
	return true
}
