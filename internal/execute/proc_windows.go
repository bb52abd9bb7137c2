// SPDX-License-Identifier: MPL-2.0

//go:build windows

package execute

import (
	"os/exec"
	"time"
)

// setupProcessGroup is a no-op on Windows; exec.CommandContext's default
// cancellation (Process.Kill) applies. Child processes spawned by the shell
// are not covered, matching the platform's limited signal model.
func setupProcessGroup(cmd *exec.Cmd, gracePeriod time.Duration) {
	_ = gracePeriod
}
