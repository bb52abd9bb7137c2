// SPDX-License-Identifier: MPL-2.0

package execute

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Runner mode constants for the two execution backends.
const (
	ModeNative  Mode = "native"
	ModeBuiltin Mode = "builtin"
)

type (
	// Mode identifies the execution backend for a command sequence.
	Mode string

	// Command is one command line to run inside a cell.
	Command struct {
		// Line is the shell command line, after axis templating.
		Line string `json:"line"`
		// PTY requests execution under a pseudo-terminal for tools that
		// suppress progress output when not attached to one. Capture is the
		// combined PTY stream in the Stdout slot.
		PTY bool `json:"pty,omitempty"`
	}

	// ExecutionContext is the provisioned surface a command sequence runs
	// against: the cell's working directory and its environment variables.
	// It is created by the provisioner and owned by exactly one cell run.
	ExecutionContext struct {
		// WorkDir is the cell's isolated working directory.
		WorkDir string
		// Env holds the cell's environment variables. They are merged over
		// the ambient process environment; Env wins on name collision.
		Env map[string]string
	}

	// CommandResult records one executed command: exit status, separately
	// captured stdout/stderr, and wall-clock duration. TimedOut marks a
	// forced termination on timeout, distinct from a plain non-zero exit.
	CommandResult struct {
		Command  string        `json:"command"`
		ExitCode ExitCode      `json:"exit_code"`
		Stdout   string        `json:"stdout"`
		Stderr   string        `json:"stderr"`
		Duration time.Duration `json:"duration_ns"`
		TimedOut bool          `json:"timed_out,omitempty"`
	}

	// Options bound the execution of each command in a sequence.
	Options struct {
		// Timeout limits each command's wall-clock time; zero means no limit.
		Timeout time.Duration
		// GracePeriod is the delay between SIGTERM and SIGKILL when a
		// timeout fires. Zero kills the process group immediately.
		GracePeriod time.Duration
	}

	// Runner executes single commands inside an ExecutionContext.
	Runner interface {
		// Name returns the runner name.
		Name() string
		// Available reports whether this runner can execute on this host.
		Available() bool
		// Validate checks a command before execution (e.g. syntax).
		Validate(cmd Command) error
		// RunCommand executes one command and captures its result. The
		// returned result is never nil; failures to even start the command
		// are reported in the result, not as a Go error.
		RunCommand(ctx context.Context, ectx *ExecutionContext, cmd Command, opts Options) *CommandResult
	}

	// Registry holds the available runners by mode.
	Registry struct {
		runners map[Mode]Runner
	}

	// InvalidModeError is returned when a Mode value is not recognized.
	InvalidModeError struct {
		Value Mode
	}
)

// Error implements the error interface.
func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("invalid execution mode %q (valid: native, builtin)", e.Value)
}

// String returns the string representation of the Mode.
func (m Mode) String() string { return string(m) }

// Validate returns nil if the Mode is one of the defined execution modes.
// The zero value ("") is not valid; it means "no mode selected".
func (m Mode) Validate() error {
	switch m {
	case ModeNative, ModeBuiltin:
		return nil
	default:
		return &InvalidModeError{Value: m}
	}
}

// Failed reports whether this command counts as a failure for
// short-circuiting: any non-zero exit or a timeout.
func (r *CommandResult) Failed() bool {
	return r.TimedOut || !r.ExitCode.IsSuccess()
}

// NewRegistry creates an empty runner registry.
func NewRegistry() *Registry {
	return &Registry{runners: make(map[Mode]Runner)}
}

// Register adds a runner for a mode, replacing any previous registration.
func (r *Registry) Register(mode Mode, runner Runner) {
	r.runners[mode] = runner
}

// Get returns the runner for a mode.
func (r *Registry) Get(mode Mode) (Runner, error) {
	runner, ok := r.runners[mode]
	if !ok {
		return nil, fmt.Errorf("execution mode %q not registered", mode)
	}
	return runner, nil
}

// DefaultRegistry returns a registry with the native and builtin runners
// registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ModeNative, NewNativeRunner())
	r.Register(ModeBuiltin, NewBuiltinRunner())
	return r
}

// RunSequence executes commands strictly in order inside the context,
// stopping at the first failure. The returned slice holds one result per
// command actually started; commands after a failure are never started.
// A command that cannot start at all is recorded with ExitCodeStartFailure
// and the error text in its stderr capture, and stops the sequence like any
// other failure.
func RunSequence(ctx context.Context, runner Runner, ectx *ExecutionContext, commands []Command, opts Options) []CommandResult {
	results := make([]CommandResult, 0, len(commands))
	for _, cmd := range commands {
		res := runner.RunCommand(ctx, ectx, cmd, opts)
		results = append(results, *res)
		if res.Failed() {
			break
		}
	}
	return results
}

// MergeEnviron builds the full environment slice for a cell command: the
// ambient process environment with MATRUN_* entries removed, followed by the
// cell's own variables in sorted key order. Later entries win in both
// os/exec and the embedded interpreter, which gives cell variables
// precedence on collision.
func MergeEnviron(ambient []string, cellEnv map[string]string) []string {
	merged := FilterCellEnviron(ambient)
	keys := make([]string, 0, len(cellEnv))
	for k := range cellEnv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		merged = append(merged, k+"="+cellEnv[k])
	}
	return merged
}

// FilterCellEnviron removes MATRUN_* variables from an environment slice so
// a matrun invocation running inside a cell does not leak its cell identity
// into nested runs.
func FilterCellEnviron(environ []string) []string {
	out := make([]string, 0, len(environ))
	for _, e := range environ {
		name, _, ok := strings.Cut(e, "=")
		if ok && strings.HasPrefix(name, "MATRUN_") {
			continue
		}
		out = append(out, e)
	}
	return out
}
