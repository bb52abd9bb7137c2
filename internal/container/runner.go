// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"matrun-cli/internal/execute"
	"matrun-cli/internal/matrix"
)

// DefaultWorkDir is the container-side directory the cell workdir is bound
// to when the Runner is not given one.
const DefaultWorkDir = "/work"

// Runner adapts an Engine to the execute.Runner interface: every command
// runs in a fresh container with the cell workdir bind-mounted at WorkDir
// and the cell environment injected. One Runner serves all cells of a run;
// per-cell variation comes from image placeholders and the execution
// context.
type Runner struct {
	// Engine executes the containers.
	Engine Engine
	// Image is the image reference; {axis.<name>} placeholders are
	// resolved per cell from the MATRUN_* environment.
	Image string
	// WorkDir is the container-side mount point for the cell workdir.
	// Empty means DefaultWorkDir.
	WorkDir string
	// Network selects the container network; empty keeps the engine
	// default.
	Network string
	// Mounts are extra bind mounts added after the workdir mount.
	Mounts []Mount
	// Shell wraps each command line; empty means ["/bin/sh", "-c"].
	Shell []string
}

// NewRunner returns a Runner executing commands in image via engine.
func NewRunner(engine Engine, image string) *Runner {
	return &Runner{Engine: engine, Image: image}
}

// Name returns the runner name.
func (r *Runner) Name() string {
	if r.Engine != nil {
		return "container/" + r.Engine.Type().String()
	}
	return "container"
}

// Available reports whether the underlying engine responds.
func (r *Runner) Available() bool {
	return r.Engine != nil && r.Engine.Available()
}

// Validate checks the runner configuration and the command line. The line
// itself is interpreted by the shell inside the container, so only emptiness
// can be checked up front.
func (r *Runner) Validate(cmd execute.Command) error {
	var errs []error
	if r.Engine == nil {
		errs = append(errs, fmt.Errorf("%w: no engine configured", ErrInvalidRunSpec))
	}
	if r.Image == "" {
		errs = append(errs, fmt.Errorf("%w: no image configured", ErrInvalidRunSpec))
	}
	if strings.TrimSpace(cmd.Line) == "" {
		errs = append(errs, fmt.Errorf("command line is empty"))
	}
	return errors.Join(errs...)
}

// RunCommand executes one command inside a fresh container. Failures to
// start at all, such as an unresolvable image placeholder or an engine
// invocation error, are reported in the result with ExitCodeStartFailure,
// the same convention the host runners follow.
func (r *Runner) RunCommand(ctx context.Context, ectx *execute.ExecutionContext, cmd execute.Command, opts execute.Options) *execute.CommandResult {
	image, err := ExpandImage(r.Image, ectx.Env)
	if err != nil {
		return startFailure(cmd, err)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	workDir := r.WorkDir
	if workDir == "" {
		workDir = DefaultWorkDir
	}
	var mounts []Mount
	if ectx.WorkDir != "" {
		mounts = append(mounts, Mount{HostPath: ectx.WorkDir, ContainerPath: workDir})
	}
	mounts = append(mounts, r.Mounts...)

	shell := r.Shell
	if len(shell) == 0 {
		shell = []string{"/bin/sh", "-c"}
	}

	res, err := r.Engine.Run(ctx, RunSpec{
		Image:   image,
		Command: append(slices.Clone(shell), cmd.Line),
		WorkDir: workDir,
		Env:     ectx.Env,
		Mounts:  mounts,
		Name:    containerName(ectx),
		Network: r.Network,
		TTY:     cmd.PTY,
	})
	if err != nil {
		return startFailure(cmd, err)
	}
	res.Command = cmd.Line
	return res
}

// ExpandImage resolves {axis.<name>} placeholders in an image reference
// from the cell environment, via the MATRUN_* variables the provisioner
// sets. A placeholder with no matching variable returns an
// UnknownPlaceholderError.
func ExpandImage(image string, env map[string]string) (string, error) {
	return matrix.ExpandWithEnv(image, env)
}

// startFailure mirrors the host runners' convention for commands that
// never produced an exit status.
func startFailure(cmd execute.Command, err error) *execute.CommandResult {
	return &execute.CommandResult{
		Command:  cmd.Line,
		ExitCode: execute.ExitCodeStartFailure,
		Stderr:   err.Error(),
	}
}

// containerName derives a unique name so an expired run can be killed by
// name. The cell index is included for debuggability in engine logs.
func containerName(ectx *execute.ExecutionContext) string {
	cell := ectx.Env["MATRUN_CELL_INDEX"]
	if cell == "" {
		cell = "0"
	}
	return "matrun-" + cell + "-" + strconv.FormatInt(time.Now().UnixNano(), 36)
}
