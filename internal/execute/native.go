// SPDX-License-Identifier: MPL-2.0

package execute

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// NativeRunner executes commands using the system's default shell.
type NativeRunner struct {
	// Shell overrides the default shell resolution.
	Shell string
	// ShellArgs overrides the arguments passed to the shell before the
	// command line.
	ShellArgs []string
}

// NewNativeRunner creates a new native runner.
func NewNativeRunner() *NativeRunner {
	return &NativeRunner{}
}

// Name returns the runner name.
func (r *NativeRunner) Name() string {
	return "native"
}

// Available returns whether a usable shell exists on this host.
func (r *NativeRunner) Available() bool {
	_, err := r.getShell()
	return err == nil
}

// Validate checks if a command can be executed.
func (r *NativeRunner) Validate(cmd Command) error {
	if strings.TrimSpace(cmd.Line) == "" {
		return fmt.Errorf("command line is empty")
	}
	return nil
}

// RunCommand executes one command under the system shell, capturing stdout
// and stderr separately. Timeouts kill the whole process group so children
// spawned by the shell cannot outlive the command; a timed-out result
// carries the Timeout marker and ExitCodeTimeout.
func (r *NativeRunner) RunCommand(ctx context.Context, ectx *ExecutionContext, cmd Command, opts Options) *CommandResult {
	res := &CommandResult{Command: cmd.Line}

	shell, err := r.getShell()
	if err != nil {
		res.ExitCode = ExitCodeStartFailure
		res.Stderr = err.Error()
		return res
	}

	runCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	args := append(r.getShellArgs(shell), cmd.Line)
	c := exec.CommandContext(runCtx, shell, args...)
	c.Dir = ectx.WorkDir
	c.Env = MergeEnviron(os.Environ(), ectx.Env)

	start := time.Now()
	if cmd.PTY {
		// The PTY start path sets Setsid for the controlling terminal,
		// which excludes Setpgid; cancellation targets the session group
		// instead.
		setupPTYCancel(c)
		out, runErr := runPTY(c)
		res.Stdout = out
		err = runErr
	} else {
		setupProcessGroup(c, opts.GracePeriod)
		var stdout, stderr bytes.Buffer
		c.Stdout = &stdout
		c.Stderr = &stderr
		err = c.Run()
		res.Stdout = stdout.String()
		res.Stderr = stderr.String()
	}
	res.Duration = time.Since(start)

	r.classify(res, runCtx, opts, err)
	return res
}

// classify fills the result's exit code and markers from the run error.
// Timeout detection comes from the context, not the error: a group-killed
// process reports a signal death (exit code -1), which alone cannot be told
// apart from an external kill.
func (r *NativeRunner) classify(res *CommandResult, runCtx context.Context, opts Options, err error) {
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = ExitCodeTimeout
		res.Stderr = appendLine(res.Stderr, fmt.Sprintf("command timed out after %s", opts.Timeout))
		return
	}
	if err == nil {
		res.ExitCode = 0
		return
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			res.ExitCode = ExitCode(code)
			return
		}
		// Killed by a signal outside our timeout path (e.g. run canceled).
		res.ExitCode = 1
		res.Stderr = appendLine(res.Stderr, err.Error())
		return
	}
	// The command never started.
	res.ExitCode = ExitCodeStartFailure
	res.Stderr = appendLine(res.Stderr, err.Error())
}

// getShell determines which shell to use.
func (r *NativeRunner) getShell() (string, error) {
	if r.Shell != "" {
		return r.Shell, nil
	}

	switch runtime.GOOS {
	case "windows":
		if pwsh, err := exec.LookPath("pwsh"); err == nil {
			return pwsh, nil
		}
		if ps, err := exec.LookPath("powershell"); err == nil {
			return ps, nil
		}
		return exec.LookPath("cmd")
	default:
		if shell := os.Getenv("SHELL"); shell != "" {
			return shell, nil
		}
		if bash, err := exec.LookPath("bash"); err == nil {
			return bash, nil
		}
		if sh, err := exec.LookPath("sh"); err == nil {
			return sh, nil
		}
		return "", fmt.Errorf("no shell found")
	}
}

// getShellArgs returns the arguments to pass to the shell.
func (r *NativeRunner) getShellArgs(shell string) []string {
	if len(r.ShellArgs) > 0 {
		return r.ShellArgs
	}

	base := filepath.Base(shell)
	base = strings.TrimSuffix(base, ".exe")

	switch base {
	case "cmd":
		return []string{"/C"}
	case "powershell", "pwsh":
		return []string{"-NoProfile", "-Command"}
	default:
		// Assume POSIX shell
		return []string{"-c"}
	}
}

// appendLine appends a line to captured output, separating from existing
// content with a newline.
func appendLine(existing, line string) string {
	if existing == "" {
		return line
	}
	if strings.HasSuffix(existing, "\n") {
		return existing + line
	}
	return existing + "\n" + line
}
