// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package execute

import (
	"os/exec"
	"syscall"
	"time"
)

// setupProcessGroup puts the command in its own process group so that
// timeout cancellation reaches the shell and all its children (negative
// PID = all processes in the group). Without Setpgid, only the shell
// receives the signal; children survive and hold the captured pipes open.
//
// With a zero grace period, SIGKILL is sent immediately on cancellation.
// With a positive grace period, SIGTERM goes first so the process can flush
// and exit cleanly; a background goroutine escalates to SIGKILL after the
// grace period if the group is still alive.
func setupProcessGroup(cmd *exec.Cmd, gracePeriod time.Duration) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if gracePeriod > 0 {
		cmd.Cancel = func() error {
			pgid := -cmd.Process.Pid
			if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil {
				// The group is already gone or SIGTERM cannot be
				// delivered; escalate.
				return syscall.Kill(pgid, syscall.SIGKILL)
			}
			go func() {
				time.Sleep(gracePeriod)
				// ESRCH from an exited group is harmless.
				_ = syscall.Kill(pgid, syscall.SIGKILL)
			}()
			return nil
		}
		return
	}

	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
