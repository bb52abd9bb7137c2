// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"time"

	"matrun-cli/internal/execute"
	"matrun-cli/internal/matrix"
)

type (
	// Installer is the pluggable dependency-installation capability invoked
	// once per cell during Setup. Implementations capture their own output;
	// a failed result turns the cell's outcome into Errored.
	Installer interface {
		// Name identifies the installer in logs and reports.
		Name() string
		// Install runs the installation step inside the cell's context.
		// The returned result is never nil.
		Install(ctx context.Context, ectx *execute.ExecutionContext) *execute.CommandResult
	}

	// CommandInstaller installs dependencies by running a configured
	// command line (e.g. "pip install -r requirements.txt") through an
	// execution runner. {axis.<name>} placeholders in the line are
	// expanded per cell from the MATRUN_* environment.
	CommandInstaller struct {
		// Line is the installer command line.
		Line string
		// Runner executes the line; typically the same runner the cell's
		// commands use.
		Runner execute.Runner
		// Timeout bounds the installer step; zero means no limit.
		Timeout time.Duration
	}
)

// Name identifies the installer in logs and reports.
func (i *CommandInstaller) Name() string {
	return "command"
}

// Install expands axis placeholders in the line and runs it with
// captured output. An unresolvable placeholder is reported as a start
// failure rather than an error so the cell outcome carries the message.
func (i *CommandInstaller) Install(ctx context.Context, ectx *execute.ExecutionContext) *execute.CommandResult {
	line, err := matrix.ExpandWithEnv(i.Line, ectx.Env)
	if err != nil {
		return &execute.CommandResult{
			Command:  i.Line,
			ExitCode: execute.ExitCodeStartFailure,
			Stderr:   err.Error(),
		}
	}
	return i.Runner.RunCommand(ctx, ectx, execute.Command{Line: line}, execute.Options{Timeout: i.Timeout})
}
