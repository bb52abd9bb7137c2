// SPDX-License-Identifier: MPL-2.0

package execute

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// BuiltinRunner executes commands with an embedded POSIX shell interpreter
// (mvdan/sh). It needs no system shell, which makes it the fallback for
// minimal hosts, and it dispatches a small set of built-in utilities before
// falling back to external binaries.
type BuiltinRunner struct {
	// Builtins resolves built-in utility names. Defaults to
	// DefaultBuiltins when nil.
	Builtins *BuiltinRegistry
}

// NewBuiltinRunner creates a new builtin runner using DefaultBuiltins.
func NewBuiltinRunner() *BuiltinRunner {
	return &BuiltinRunner{Builtins: DefaultBuiltins}
}

// Name returns the runner name.
func (r *BuiltinRunner) Name() string {
	return "builtin"
}

// Available always returns true; the interpreter is compiled in.
func (r *BuiltinRunner) Available() bool {
	return true
}

// Validate parses the command line and rejects syntax errors and PTY
// requests (the in-process interpreter has no terminal to attach).
func (r *BuiltinRunner) Validate(cmd Command) error {
	if cmd.PTY {
		return fmt.Errorf("pty is not supported by the builtin runner")
	}
	if err := CheckSyntax(cmd.Line); err != nil {
		return err
	}
	return nil
}

// RunCommand executes one command with the embedded interpreter, capturing
// stdout and stderr separately. Timeout expiry surfaces through the context
// and is recorded with the Timeout marker.
func (r *BuiltinRunner) RunCommand(ctx context.Context, ectx *ExecutionContext, cmd Command, opts Options) *CommandResult {
	res := &CommandResult{Command: cmd.Line}

	if err := r.Validate(cmd); err != nil {
		res.ExitCode = ExitCodeStartFailure
		res.Stderr = err.Error()
		return res
	}

	prog, err := syntax.NewParser().Parse(strings.NewReader(cmd.Line), "command")
	if err != nil {
		res.ExitCode = ExitCodeStartFailure
		res.Stderr = fmt.Sprintf("failed to parse command: %v", err)
		return res
	}

	runCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	runner, err := interp.New(
		interp.Dir(ectx.WorkDir),
		interp.Env(expand.ListEnviron(MergeEnviron(os.Environ(), ectx.Env)...)),
		interp.StdIO(nil, &stdout, &stderr),
		interp.ExecHandlers(r.execHandler),
	)
	if err != nil {
		res.ExitCode = ExitCodeStartFailure
		res.Stderr = fmt.Sprintf("failed to create interpreter: %v", err)
		return res
	}

	start := time.Now()
	err = runner.Run(runCtx, prog)
	res.Duration = time.Since(start)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = ExitCodeTimeout
		res.Stderr = appendLine(res.Stderr, fmt.Sprintf("command timed out after %s", opts.Timeout))
		return res
	}
	if err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			res.ExitCode = ExitCode(exitStatus)
			return res
		}
		res.ExitCode = ExitCodeStartFailure
		res.Stderr = appendLine(res.Stderr, err.Error())
		return res
	}
	res.ExitCode = 0
	return res
}

// execHandler dispatches built-in utilities before external binaries.
func (r *BuiltinRunner) execHandler(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		builtins := r.Builtins
		if builtins == nil {
			builtins = DefaultBuiltins
		}
		if handled, err := builtins.TryRun(ctx, args); handled {
			return err
		}
		return next(ctx, args)
	}
}

// CheckSyntax parses a command line with the embedded shell parser and
// returns a descriptive error when the line is not valid POSIX shell.
// Used at validation time so syntax mistakes surface before any cell runs.
func CheckSyntax(line string) error {
	if _, err := syntax.NewParser().Parse(strings.NewReader(line), "command"); err != nil {
		return fmt.Errorf("command syntax error: %w", err)
	}
	return nil
}
