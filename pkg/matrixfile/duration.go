// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDuration indicates a duration field that does not parse or
// is not positive.
var ErrInvalidDuration = errors.New("invalid duration")

// parseDuration parses a Go duration string from a matrix file field.
// An empty value yields zero with no error so callers can apply their
// own default.
func parseDuration(fieldName, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q: %v", ErrInvalidDuration, fieldName, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s %q must be positive", ErrInvalidDuration, fieldName, value)
	}
	return d, nil
}

// PerCommandTimeoutDuration parses the perCommandTimeout field. Zero
// means the field was not set.
func (m *Matrixfile) PerCommandTimeoutDuration() (time.Duration, error) {
	return parseDuration("perCommandTimeout", m.PerCommandTimeout)
}

// TimeoutDuration parses the toolchain timeout field. Zero means the
// field was not set.
func (t *ToolchainConfig) TimeoutDuration() (time.Duration, error) {
	if t == nil {
		return 0, nil
	}
	return parseDuration("toolchain.timeout", t.Timeout)
}
