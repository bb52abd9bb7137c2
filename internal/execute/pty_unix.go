// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package execute

import (
	"bytes"
	"io"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

// setupPTYCancel installs context cancellation for a PTY command. The child
// becomes a session leader (pty.Start sets Setsid), so its PID doubles as
// its process group ID and a negative-PID kill reaches the whole group.
func setupPTYCancel(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}

// runPTY starts the command attached to a pseudo-terminal and returns the
// combined output stream. Reading the PTY after the child exits yields EIO
// on Linux; that is the normal end-of-stream signal here, so copy errors
// are swallowed and the command's own exit status is what counts.
func runPTY(cmd *exec.Cmd) (string, error) {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, ptmx)
	_ = ptmx.Close()

	return buf.String(), cmd.Wait()
}
