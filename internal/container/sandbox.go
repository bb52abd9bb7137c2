// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"os/exec"

	"matrun-cli/pkg/platform"
)

// defaultExecCommand is the exec.Cmd factory engines get when no
// WithExecCommand option overrides it. DetectSandbox caches process-wide,
// so construction cost is one env/stat probe for the first engine only.
func defaultExecCommand() ExecCommandFunc {
	return hostSpawnExec(platform.DetectSandbox())
}

// hostSpawnExec routes engine CLI invocations through the sandbox's host
// spawn mechanism. Inside an application sandbox (Flatpak, Snap) the engine
// CLI lives on the host and bind-mount paths only resolve there, so the
// whole invocation has to run on the host side. Outside a sandbox it is
// plain exec.CommandContext.
func hostSpawnExec(st platform.SandboxType) ExecCommandFunc {
	spawn := platform.SpawnCommandFor(st)
	if spawn == "" {
		return exec.CommandContext
	}
	spawnArgs := platform.SpawnArgsFor(st)
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		full := make([]string, 0, len(spawnArgs)+1+len(args))
		full = append(full, spawnArgs...)
		full = append(full, name)
		full = append(full, args...)
		return exec.CommandContext(ctx, spawn, full...)
	}
}
