// SPDX-License-Identifier: EPL-2.0

package provision

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"matrun-cli/internal/execute"
	"matrun-cli/internal/matrix"
)

// Provisioning stages, recorded on errors so reports can say what step of
// setup failed.
const (
	StageWorkdir StageName = "workdir"
	StageSource  StageName = "source"
	StageInstall StageName = "install"
)

// ErrProvisioning is the sentinel wrapped by ProvisioningError.
var ErrProvisioning = errors.New("provisioning failed")

type (
	// StageName identifies the setup step a provisioning error came from.
	StageName string

	// ProvisioningError reports a failed cell setup. It carries the
	// captured installer output when the installer step is what failed,
	// so the cell's Errored outcome can show why.
	ProvisioningError struct {
		// CellID identifies the cell whose setup failed.
		CellID string
		// Stage is the setup step that failed.
		Stage StageName
		// Output holds captured installer stdout/stderr, when available.
		Output string
		// Err is the underlying cause.
		Err error
	}

	// Context is one cell's provisioned execution context. It owns the
	// working directory and the derived environment, and it is owned by
	// exactly one cell run; the scheduler never shares it.
	Context struct {
		// Spec is the cell this context was provisioned for.
		Spec matrix.Spec
		// WorkDir is the cell's isolated working directory.
		WorkDir string
		// Env holds the cell's environment variables.
		Env map[string]string
		// InstallResult is the captured installer execution, or nil when
		// no installer is configured.
		InstallResult *execute.CommandResult

		cleanups []func() error
		released atomic.Bool
	}

	// Provisioner creates and destroys per-cell execution contexts.
	Provisioner interface {
		// Setup provisions a cell. On failure it releases any partial
		// state itself and returns a *ProvisioningError; the returned
		// context is nil in that case.
		Setup(ctx context.Context, spec matrix.Spec) (*Context, error)
		// Teardown releases the context's resources. Safe to call on a
		// context whose Setup already released partial state; the release
		// logic runs at most once.
		Teardown(pctx *Context) error
	}
)

// Error implements the error interface.
func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning cell %s failed at %s stage: %v", e.CellID, e.Stage, e.Err)
}

// Unwrap returns the underlying cause chain, keeping both the sentinel and
// the wrapped error reachable through errors.Is/As.
func (e *ProvisioningError) Unwrap() []error {
	return []error{ErrProvisioning, e.Err}
}

// ExecContext returns the execution surface commands run against.
func (c *Context) ExecContext() *execute.ExecutionContext {
	return &execute.ExecutionContext{WorkDir: c.WorkDir, Env: c.Env}
}

// addCleanup registers a release step. Steps run in reverse registration
// order on release, so later acquisitions are released first.
func (c *Context) addCleanup(fn func() error) {
	c.cleanups = append(c.cleanups, fn)
}

// release runs the registered cleanup steps exactly once. Further calls
// return nil without doing anything.
func (c *Context) release() error {
	if !c.released.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	for i := len(c.cleanups) - 1; i >= 0; i-- {
		if err := c.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Released reports whether the context's resources have been released.
func (c *Context) Released() bool {
	return c.released.Load()
}
