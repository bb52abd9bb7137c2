// SPDX-License-Identifier: EPL-2.0

package matrixfile

import (
	"errors"
	"fmt"
)

type (
	// IsolationMode selects where cell commands run.
	IsolationMode string

	// IsolationConfig declares the isolation for every cell of a run.
	// For container mode the image may reference axis values with
	// {axis.<name>} placeholders, so different cells can run in
	// different images.
	IsolationConfig struct {
		Mode    IsolationMode `json:"mode"              yaml:"mode"              toml:"mode"`
		Image   string        `json:"image,omitempty"   yaml:"image,omitempty"   toml:"image,omitempty"`
		Engine  string        `json:"engine,omitempty"  yaml:"engine,omitempty"  toml:"engine,omitempty"`
		Network string        `json:"network,omitempty" yaml:"network,omitempty" toml:"network,omitempty"`
	}
)

const (
	// IsolationHost runs commands directly on the host.
	IsolationHost IsolationMode = "host"
	// IsolationContainer runs commands inside a container per cell.
	IsolationContainer IsolationMode = "container"
)

// ErrInvalidIsolation indicates an isolation block that cannot be used.
var ErrInvalidIsolation = errors.New("invalid isolation")

// InvalidIsolationError reports why an isolation block was rejected.
type InvalidIsolationError struct {
	Reason string
}

func (e *InvalidIsolationError) Error() string {
	return fmt.Sprintf("invalid isolation: %s", e.Reason)
}

func (e *InvalidIsolationError) Unwrap() error { return ErrInvalidIsolation }

// IsValid reports whether the mode is a known isolation mode.
func (m IsolationMode) IsValid() (bool, []error) {
	switch m {
	case IsolationHost, IsolationContainer:
		return true, nil
	default:
		return false, []error{&InvalidIsolationError{Reason: fmt.Sprintf("unknown mode %q", string(m))}}
	}
}

// IsValid reports whether the isolation block can be used, along with
// every reason it cannot.
func (c *IsolationConfig) IsValid() (bool, []error) {
	if c == nil {
		return true, nil
	}
	var errs []error
	if ok, modeErrs := c.Mode.IsValid(); !ok {
		errs = append(errs, modeErrs...)
	}
	if c.Mode == IsolationContainer && c.Image == "" {
		errs = append(errs, &InvalidIsolationError{Reason: "container mode requires an image"})
	}
	if c.Mode == IsolationHost && c.Image != "" {
		errs = append(errs, &InvalidIsolationError{Reason: "host mode does not take an image"})
	}
	switch c.Engine {
	case "", "docker", "podman":
	default:
		errs = append(errs, &InvalidIsolationError{Reason: fmt.Sprintf("unknown engine %q", c.Engine)})
	}
	return len(errs) == 0, errs
}
