// SPDX-License-Identifier: EPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"

	"matrun-cli/internal/execute"
)

const (
	// EngineDocker selects the docker CLI.
	EngineDocker EngineType = "docker"
	// EnginePodman selects the podman CLI.
	EnginePodman EngineType = "podman"
)

// ErrEngineNotAvailable is the sentinel wrapped by EngineNotAvailableError.
var ErrEngineNotAvailable = errors.New("container engine not available")

type (
	// EngineType identifies a supported container engine CLI.
	EngineType string

	// Engine executes commands inside container images. Implementations
	// shell out to an engine CLI and are safe for concurrent use.
	Engine interface {
		// Type returns the engine type.
		Type() EngineType
		// Available reports whether the engine CLI responds to a version
		// probe (for docker this requires a reachable daemon).
		Available() bool
		// Version returns the engine's reported version string.
		Version(ctx context.Context) (string, error)
		// ImageExists reports whether the image is present locally.
		ImageExists(ctx context.Context, image string) bool
		// Pull fetches the image from its registry.
		Pull(ctx context.Context, image string) error
		// Run executes one command inside a fresh container and captures
		// its outcome. Non-zero container exits are reported in the
		// result; err is reserved for invalid specs and invocations that
		// never produced an exit status.
		Run(ctx context.Context, spec RunSpec) (*execute.CommandResult, error)
	}

	// EngineNotAvailableError reports why an engine cannot be used.
	EngineNotAvailableError struct {
		Engine EngineType
		Reason string
	}
)

// Error implements the error interface.
func (e *EngineNotAvailableError) Error() string {
	return fmt.Sprintf("container engine %q not available: %s", e.Engine, e.Reason)
}

// Unwrap returns ErrEngineNotAvailable for errors.Is() compatibility.
func (e *EngineNotAvailableError) Unwrap() error { return ErrEngineNotAvailable }

// String returns the string representation of the EngineType.
func (t EngineType) String() string { return string(t) }

// Validate returns nil if the EngineType is a supported engine. The zero
// value ("") is not valid; it means "no engine selected".
func (t EngineType) Validate() error {
	switch t {
	case EngineDocker, EnginePodman:
		return nil
	default:
		return &EngineNotAvailableError{Engine: t, Reason: "unsupported engine type"}
	}
}

// NewEngine returns the preferred engine when it is available, falling back
// to the other supported engine otherwise. When neither engine responds the
// returned error wraps ErrEngineNotAvailable.
func NewEngine(preferred EngineType, opts ...Option) (Engine, error) {
	if err := preferred.Validate(); err != nil {
		return nil, err
	}
	fallback := EnginePodman
	if preferred == EnginePodman {
		fallback = EngineDocker
	}

	first := newEngineOfType(preferred, opts...)
	if first.Available() {
		return first, nil
	}
	second := newEngineOfType(fallback, opts...)
	if second.Available() {
		return second, nil
	}
	return nil, &EngineNotAvailableError{
		Engine: preferred,
		Reason: fmt.Sprintf("neither %s nor %s answered a version probe", preferred, fallback),
	}
}

// AutoDetect probes the supported engines in preference order, docker then
// podman, and returns the first available one.
func AutoDetect(opts ...Option) (Engine, error) {
	return NewEngine(EngineDocker, opts...)
}

func newEngineOfType(t EngineType, opts ...Option) Engine {
	if t == EnginePodman {
		return NewPodmanEngine(opts...)
	}
	return NewDockerEngine(opts...)
}
