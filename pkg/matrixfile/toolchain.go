// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"errors"
	"fmt"
)

// ToolchainConfig declares a toolchain the run depends on. The probe
// command prints the installed version; a run refuses to start when the
// probe fails or reports less than MinVersion, unless Install names a
// command that can put the toolchain in place first.
type ToolchainConfig struct {
	Probe      string `json:"probe"                yaml:"probe"                toml:"probe"`
	MinVersion string `json:"minVersion,omitempty" yaml:"minVersion,omitempty" toml:"minVersion,omitempty"`
	Install    string `json:"install,omitempty"    yaml:"install,omitempty"    toml:"install,omitempty"`
	Timeout    string `json:"timeout,omitempty"    yaml:"timeout,omitempty"    toml:"timeout,omitempty"`
}

// ErrInvalidToolchain indicates a toolchain block that cannot be used.
var ErrInvalidToolchain = errors.New("invalid toolchain")

// InvalidToolchainError reports why a toolchain block was rejected.
type InvalidToolchainError struct {
	Reason string
}

func (e *InvalidToolchainError) Error() string {
	return fmt.Sprintf("invalid toolchain: %s", e.Reason)
}

func (e *InvalidToolchainError) Unwrap() error { return ErrInvalidToolchain }

// IsValid reports whether the toolchain block can be used, along with
// every reason it cannot.
func (t *ToolchainConfig) IsValid() (bool, []error) {
	if t == nil {
		return true, nil
	}
	var errs []error
	if t.Probe == "" {
		errs = append(errs, &InvalidToolchainError{Reason: "probe command is empty"})
	}
	if _, err := t.TimeoutDuration(); err != nil {
		errs = append(errs, &InvalidToolchainError{Reason: err.Error()})
	}
	return len(errs) == 0, errs
}
