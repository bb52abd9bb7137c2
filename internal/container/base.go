// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"os/exec"
	"slices"
	"strings"
	"time"

	"matrun-cli/internal/execute"
)

const (
	// probeTimeout bounds the version probe behind Available.
	probeTimeout = 5 * time.Second
	// killTimeout bounds the best-effort kill of a named container whose
	// context expired before the engine CLI exited.
	killTimeout = 10 * time.Second
)

// ErrInvalidRunSpec is the sentinel returned when a RunSpec is missing
// required fields.
var ErrInvalidRunSpec = errors.New("invalid container run spec")

type (
	// ExecCommandFunc creates the exec.Cmd used to invoke the engine CLI.
	// Tests replace it to intercept invocations.
	ExecCommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

	// MountFormatter renders a Mount into the engine's -v argument syntax.
	// Podman installs a formatter that appends SELinux relabeling flags.
	MountFormatter func(Mount) string

	// Mount binds a host path into the container filesystem.
	Mount struct {
		HostPath      string `json:"host_path"`
		ContainerPath string `json:"container_path"`
		ReadOnly      bool   `json:"read_only,omitempty"`
	}

	// RunSpec describes a single containerized command: the image to run,
	// the argv executed inside it, and the cell state mounted and injected
	// into the container.
	RunSpec struct {
		// Image is the fully resolved image reference.
		Image string `json:"image"`
		// Command is the argv executed inside the container.
		Command []string `json:"command"`
		// WorkDir is the container-side working directory.
		WorkDir string `json:"workdir,omitempty"`
		// Env is injected via -e flags, emitted in sorted key order.
		Env map[string]string `json:"env,omitempty"`
		// Mounts are bind mounts applied in order.
		Mounts []Mount `json:"mounts,omitempty"`
		// Name names the container so it can still be killed when the
		// context expires before the engine CLI exits.
		Name string `json:"name,omitempty"`
		// Network selects a container network; empty keeps the default.
		Network string `json:"network,omitempty"`
		// TTY allocates a pseudo-terminal inside the container.
		TTY bool `json:"tty,omitempty"`
	}

	// Option configures a CLI engine at construction time.
	Option func(*cliEngine)

	// cliEngine is the shared docker/podman implementation. Every Engine
	// operation is one engine CLI invocation; the engines differ only in
	// binary name, probe arguments and mount syntax.
	cliEngine struct {
		typ             EngineType
		binary          string
		versionArgs     []string
		imageExistsArgs []string
		execCommand     ExecCommandFunc
		formatMount     MountFormatter
	}
)

// WithBinaryPath overrides the engine CLI binary resolved on PATH.
func WithBinaryPath(path string) Option {
	return func(e *cliEngine) {
		if path != "" {
			e.binary = path
		}
	}
}

// WithExecCommand replaces the exec.Cmd factory, letting tests intercept
// engine CLI invocations.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(e *cliEngine) {
		if fn != nil {
			e.execCommand = fn
		}
	}
}

// WithMountFormatter replaces the -v argument renderer.
func WithMountFormatter(fn MountFormatter) Option {
	return func(e *cliEngine) {
		if fn != nil {
			e.formatMount = fn
		}
	}
}

func newCLIEngine(typ EngineType, versionArgs, imageExistsArgs []string, opts ...Option) *cliEngine {
	e := &cliEngine{
		typ:             typ,
		binary:          string(typ),
		versionArgs:     versionArgs,
		imageExistsArgs: imageExistsArgs,
		execCommand:     defaultExecCommand(),
		formatMount:     Mount.flag,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// flag renders the mount in the engine CLI's -v syntax.
func (m Mount) flag() string {
	s := m.HostPath + ":" + m.ContainerPath
	if m.ReadOnly {
		s += ":ro"
	}
	return s
}

// Validate returns nil if the RunSpec carries everything a run needs.
func (s RunSpec) Validate() error {
	var errs []error
	if s.Image == "" {
		errs = append(errs, fmt.Errorf("%w: image is required", ErrInvalidRunSpec))
	}
	if len(s.Command) == 0 {
		errs = append(errs, fmt.Errorf("%w: command is required", ErrInvalidRunSpec))
	}
	return errors.Join(errs...)
}

// Type returns the engine type.
func (e *cliEngine) Type() EngineType { return e.typ }

// Available reports whether the engine CLI answers a version probe. There
// is no separate PATH lookup; a missing binary fails the probe the same way
// an unreachable daemon does.
func (e *cliEngine) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	_, err := e.Version(ctx)
	return err == nil
}

// Version returns the engine's reported version string.
func (e *cliEngine) Version(ctx context.Context) (string, error) {
	stdout, stderr, err := e.output(ctx, e.versionArgs...)
	if err != nil {
		reason := strings.TrimSpace(stderr)
		if reason == "" {
			reason = err.Error()
		}
		return "", &EngineNotAvailableError{Engine: e.typ, Reason: reason}
	}
	return strings.TrimSpace(stdout), nil
}

// ImageExists reports whether the image is already present locally.
func (e *cliEngine) ImageExists(ctx context.Context, image string) bool {
	_, _, err := e.output(ctx, append(slices.Clone(e.imageExistsArgs), image)...)
	return err == nil
}

// Pull fetches the image from its registry.
func (e *cliEngine) Pull(ctx context.Context, image string) error {
	if _, stderr, err := e.output(ctx, "pull", image); err != nil {
		return fmt.Errorf("%s pull %s: %w: %s", e.binary, image, err, strings.TrimSpace(stderr))
	}
	return nil
}

// Run executes one command inside a fresh container. A context deadline is
// reported as a timed-out result with ExitCodeTimeout; cancellation is
// returned as the context's error.
func (e *cliEngine) Run(ctx context.Context, spec RunSpec) (*execute.CommandResult, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	cmd := e.execCommand(ctx, e.binary, e.runArgs(spec)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	res := &execute.CommandResult{
		Command:  strings.Join(spec.Command, " "),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if ctx.Err() != nil {
		// The CLI died with the context but the container may not have;
		// kill it by name so --rm can collect it.
		e.reap(spec.Name)
	}

	switch {
	case runErr == nil:
		return res, nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		res.ExitCode = execute.ExitCodeTimeout
		return res, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("%s run: %w", e.binary, runErr)
		}
		res.ExitCode = execute.ExitCode(exitErr.ExitCode())
		return res, nil
	}
}

// runArgs builds the engine CLI argument list for a RunSpec. Env entries
// are emitted in sorted key order so invocations are reproducible.
func (e *cliEngine) runArgs(spec RunSpec) []string {
	args := []string{"run", "--rm"}
	if spec.Name != "" {
		args = append(args, "--name", spec.Name)
	}
	if spec.WorkDir != "" {
		args = append(args, "-w", spec.WorkDir)
	}
	if spec.Network != "" {
		args = append(args, "--network", spec.Network)
	}
	if spec.TTY {
		args = append(args, "-t")
	}
	for _, k := range slices.Sorted(maps.Keys(spec.Env)) {
		args = append(args, "-e", k+"="+spec.Env[k])
	}
	for _, m := range spec.Mounts {
		args = append(args, "-v", e.formatMount(m))
	}
	args = append(args, spec.Image)
	return append(args, spec.Command...)
}

// reap best-effort kills a named container left behind by an expired
// context.
func (e *cliEngine) reap(name string) {
	if name == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), killTimeout)
	defer cancel()
	_, _, _ = e.output(ctx, "kill", name)
}

// output runs one engine CLI invocation and captures both streams.
func (e *cliEngine) output(ctx context.Context, args ...string) (stdout, stderr string, err error) {
	var outBuf, errBuf bytes.Buffer
	cmd := e.execCommand(ctx, e.binary, args...)
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.String(), errBuf.String(), err
}
