// SPDX-License-Identifier: MPL-2.0

//go:build windows

package execute

import (
	"fmt"
	"os/exec"
)

// setupPTYCancel is a no-op on Windows; runPTY fails before start anyway.
func setupPTYCancel(cmd *exec.Cmd) {}

// runPTY reports PTY mode as unsupported on Windows. Commands that need a
// terminal should run without the pty option here.
func runPTY(cmd *exec.Cmd) (string, error) {
	return "", fmt.Errorf("pty mode is not supported on windows")
}
