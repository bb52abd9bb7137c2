// SPDX-License-Identifier: EPL-2.0

package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"matrun-cli/internal/execute"
	"matrun-cli/internal/matrix"
)

// HostProvisioner provisions cells as directories on the host filesystem,
// under <Root>/cells. It is the default isolation level: cheap, portable,
// and sufficient when the commands themselves respect the working
// directory.
type HostProvisioner struct {
	// Root is the run root; cell directories are created beneath it.
	Root string
	// RunID identifies the overall run, injected as MATRUN_RUN_ID.
	RunID string
	// BaseEnv is run-level configured environment, applied to every cell
	// before the axis variables (axis variables win on collision). Values
	// may reference axis values with {axis.<name>}, resolved per cell.
	BaseEnv map[string]string
	// PathVars are path-list variables (e.g. PYTHONPATH). Values are
	// joined with the platform list separator and prepended to any ambient
	// value of the same name.
	PathVars map[string][]string
	// ListVars are plain list variables, joined with commas.
	ListVars map[string][]string
	// SourceDir, when set, is copied into each cell's working directory so
	// commands operate on a private copy of the tree.
	SourceDir string
	// Installer runs the per-cell dependency installation step. Nil skips
	// the step.
	Installer Installer
	// KeepWorkDir leaves cell directories in place on teardown, for
	// archival or debugging.
	KeepWorkDir bool
	// Logger receives provisioning progress. Nil disables logging.
	Logger *log.Logger
}

// NewHostProvisioner creates a host provisioner rooted at root.
func NewHostProvisioner(root, runID string) *HostProvisioner {
	return &HostProvisioner{Root: root, RunID: runID}
}

// Setup provisions one cell: working directory, environment, source copy,
// installer. On failure the partially created state is released before the
// error returns, and the deferred Teardown in the scheduler becomes a
// no-op for this context.
func (p *HostProvisioner) Setup(ctx context.Context, spec matrix.Spec) (*Context, error) {
	pctx := &Context{Spec: spec}

	workDir := filepath.Join(p.Root, "cells", CellDirName(spec))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, &ProvisioningError{CellID: spec.ID(), Stage: StageWorkdir, Err: err}
	}
	pctx.WorkDir = workDir
	if !p.KeepWorkDir {
		pctx.addCleanup(func() error { return os.RemoveAll(workDir) })
	}

	pctx.Env = p.buildEnv(spec)

	if p.SourceDir != "" {
		if err := copyDir(p.SourceDir, workDir); err != nil {
			relErr := pctx.release()
			return nil, &ProvisioningError{
				CellID: spec.ID(),
				Stage:  StageSource,
				Err:    joinSetupErr(err, relErr),
			}
		}
	}

	if p.Installer != nil {
		if p.Logger != nil {
			p.Logger.Debug("running installer", "cell", spec.ID(), "installer", p.Installer.Name())
		}
		res := p.Installer.Install(ctx, pctx.ExecContext())
		pctx.InstallResult = res
		if res.Failed() {
			relErr := pctx.release()
			return nil, &ProvisioningError{
				CellID: spec.ID(),
				Stage:  StageInstall,
				Output: CombineOutput(res),
				Err:    joinSetupErr(fmt.Errorf("installer exited with code %s", res.ExitCode), relErr),
			}
		}
	}

	if p.Logger != nil {
		p.Logger.Debug("cell provisioned", "cell", spec.ID(), "workdir", workDir)
	}
	return pctx, nil
}

// Teardown releases the cell's resources. The exactly-once guard on the
// context makes repeated calls harmless.
func (p *HostProvisioner) Teardown(pctx *Context) error {
	if pctx == nil {
		return nil
	}
	if err := pctx.release(); err != nil {
		return fmt.Errorf("teardown of cell %s: %w", pctx.Spec.ID(), err)
	}
	if p.Logger != nil {
		p.Logger.Debug("cell released", "cell", pctx.Spec.ID())
	}
	return nil
}

// buildEnv assembles the cell environment: run metadata, configured
// run-level variables, list and path-list variables, then the axis
// variables last so they always win.
func (p *HostProvisioner) buildEnv(spec matrix.Spec) map[string]string {
	env := make(map[string]string)

	env["MATRUN_RUN_ID"] = p.RunID
	env["MATRUN_CELL_ID"] = spec.ID()
	env["MATRUN_CELL_INDEX"] = strconv.Itoa(spec.Index)

	for k, v := range p.BaseEnv {
		if expanded, err := spec.ExpandTemplate(v); err == nil {
			v = expanded
		}
		env[k] = v
	}
	for k, vals := range p.ListVars {
		env[k] = strings.Join(vals, ",")
	}
	for k, vals := range p.PathVars {
		joined := strings.Join(vals, string(os.PathListSeparator))
		if ambient := os.Getenv(k); ambient != "" {
			joined = joined + string(os.PathListSeparator) + ambient
		}
		env[k] = joined
	}
	for _, pair := range spec.Env() {
		name, value, _ := strings.Cut(pair, "=")
		env[name] = value
	}
	return env
}

// CellDirName returns the filesystem-safe directory name for a cell:
// zero-padded index plus the sanitized cell ID, so directory listings sort
// in descriptor order.
func CellDirName(spec matrix.Spec) string {
	id := strings.NewReplacer("/", "__", "=", "-").Replace(spec.ID())
	return fmt.Sprintf("%03d-%s", spec.Index, id)
}

// CombineOutput renders a captured result as one block: stdout then stderr.
func CombineOutput(res *execute.CommandResult) string {
	if res == nil {
		return ""
	}
	switch {
	case res.Stdout == "":
		return res.Stderr
	case res.Stderr == "":
		return res.Stdout
	default:
		return strings.TrimRight(res.Stdout, "\n") + "\n" + res.Stderr
	}
}

// joinSetupErr attaches a cleanup failure to the primary setup error so
// neither is lost.
func joinSetupErr(primary, cleanup error) error {
	if cleanup == nil {
		return primary
	}
	return fmt.Errorf("%w (cleanup also failed: %v)", primary, cleanup)
}
