// SPDX-License-Identifier: MPL-2.0

package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"matrun-cli/internal/config"
	"matrun-cli/internal/execute"
	"matrun-cli/internal/matrix"
	"matrun-cli/internal/provision"
	"matrun-cli/internal/report"
	"matrun-cli/internal/schedule"
	"matrun-cli/internal/statusserver"
	"matrun-cli/internal/toolchain"
	"matrun-cli/pkg/matrixfile"
)

// Run executes one full matrix run: load, gate, resolve, pre-flight,
// schedule, archive. The returned error covers problems that stopped the
// run from producing a report; per-cell failures land in the report and
// its exit code instead.
func Run(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.logger()
	cfg := opts.config()

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}

	path := opts.File
	if path == "" {
		found, err := matrixfile.FindFile(dir)
		if err != nil {
			return nil, err
		}
		path = found
	}
	mf, err := matrixfile.Load(path)
	if err != nil {
		return nil, err
	}

	event := opts.event()
	if ok, errs := event.IsValid(); !ok {
		return nil, errs[0]
	}
	if !mf.TriggeredBy(event, opts.Branch) {
		reason := fmt.Sprintf("triggers exclude event %s", event)
		if opts.Branch != "" {
			reason = fmt.Sprintf("%s on branch %s", reason, opts.Branch)
		}
		logger.Info("run skipped", "file", path, "reason", reason)
		return &Result{ExitCode: report.ExitAllPassed, Skipped: true, SkipReason: reason}, nil
	}

	runID := opts.RunID
	if runID == "" {
		runID = newRunID(time.Now())
	}
	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(dir, ".matrun", runID)
	}

	desc := Descriptor(mf)
	specs, err := desc.Expand()
	if err != nil {
		return nil, err
	}
	if err := desc.CheckTemplates(TemplatedStrings(mf)); err != nil {
		return nil, err
	}
	commands := buildCommands(mf)

	policy, err := ResolvePolicy(&opts, mf, cfg)
	if err != nil {
		return nil, err
	}
	isolation, err := ResolveIsolation(opts.Isolation, mf, cfg)
	if err != nil {
		return nil, err
	}
	grace, err := cfg.GracePeriodDuration()
	if err != nil {
		return nil, err
	}

	if err := ensureToolchain(ctx, mf, logger); err != nil {
		return nil, err
	}

	runner, err := buildRunner(isolation)
	if err != nil {
		return nil, err
	}
	logger.Info("starting run",
		"run", runID,
		"cells", len(specs),
		"concurrency", policy.Concurrency,
		"isolation", string(isolation.Mode()),
		"runner", runner.Name())

	sourceDir := ""
	if mf.Source != "" {
		sourceDir = mf.Source
		if !filepath.IsAbs(sourceDir) {
			sourceDir = filepath.Join(filepath.Dir(path), sourceDir)
		}
		if _, err := os.Stat(sourceDir); err != nil {
			return nil, fmt.Errorf("source directory: %w", err)
		}
	}

	workRoot := filepath.Join(outputDir, "work")
	prov := provision.NewHostProvisioner(workRoot, runID)
	prov.BaseEnv = mf.Env
	prov.PathVars = mf.PathVars
	prov.ListVars = mf.ListVars
	prov.SourceDir = sourceDir
	prov.KeepWorkDir = opts.KeepWorkDirs
	prov.Logger = logger
	if mf.Install != "" {
		prov.Installer = &provision.CommandInstaller{Line: mf.Install, Runner: runner, Timeout: policy.PerCommandTimeout}
	}

	var reuse map[int]report.EnvironmentOutcome
	if opts.RerunFrom != "" {
		prev, err := report.LoadJSON(opts.RerunFrom)
		if err != nil {
			return nil, err
		}
		reuse, err = report.SelectRerun(prev, specs)
		if err != nil {
			return nil, err
		}
		logger.Info("carrying over passed cells", "carried", len(reuse), "total", len(specs))
	}

	observers := []schedule.Observer{&schedule.LogObserver{Logger: logger}}
	if opts.StatusServer {
		board := statusserver.NewBoard(runID)
		board.SeedSpecs(specs)
		if srv := startStatusServer(ctx, board, cfg, logger); srv != nil {
			observers = append(observers, board)
			defer func() {
				if err := srv.Stop(); err != nil {
					logger.Warn("status server stop failed", "err", err)
				}
			}()
		}
	}

	sched := &schedule.Scheduler{
		Provisioner: prov,
		Runner:      runner,
		RunID:       runID,
		Grace:       grace,
		Reuse:       reuse,
		Observer:    schedule.Observers(observers...),
		Logger:      logger,
	}
	if mf.ResultsGlob != "" {
		sched.PostRun = report.ResultsHook(mf.ResultsGlob)
	}

	rep, err := sched.Execute(ctx, desc, commands, policy)
	if err != nil {
		return nil, err
	}

	if err := report.WriteArtifacts(outputDir, rep); err != nil {
		return nil, fmt.Errorf("write artifacts: %w", err)
	}
	logger.Info("artifacts written", "dir", outputDir)

	if !opts.KeepWorkDirs {
		if err := os.RemoveAll(workRoot); err != nil {
			logger.Warn("work root cleanup failed", "dir", workRoot, "err", err)
		}
	}

	if cfg.Store.Enabled {
		if n, err := UploadArtifacts(ctx, cfg.Store, runID, outputDir); err != nil {
			logger.Warn("artifact upload failed", "err", err)
		} else {
			logger.Info("artifacts uploaded", "objects", n, "bucket", cfg.Store.Bucket)
		}
	}

	exit, summary := report.Summarize(rep)
	return &Result{Report: rep, ExitCode: exit, Summary: summary, OutputDir: outputDir}, nil
}

// ensureToolchain runs the matrix file's toolchain pre-step, when one is
// declared. The probe always runs on the host: it gates whether a run may
// start at all, before any cell environment exists.
func ensureToolchain(ctx context.Context, mf *matrixfile.Matrixfile, logger *log.Logger) error {
	if mf.Toolchain == nil {
		return nil
	}
	timeout, err := mf.Toolchain.TimeoutDuration()
	if err != nil {
		return err
	}
	ens := &toolchain.Ensurer{
		Config: toolchain.Config{
			Probe:      mf.Toolchain.Probe,
			MinVersion: mf.Toolchain.MinVersion,
			Install:    mf.Toolchain.Install,
			Timeout:    timeout,
		},
		Runner: hostRunner(),
		Logger: logger,
	}
	info, err := ens.Ensure(ctx)
	if err != nil {
		return err
	}
	logger.Info("toolchain ready", "probe", mf.Toolchain.Probe, "version", info.Version, "installed", info.Installed)
	return nil
}

// startStatusServer brings the scoreboard server up. A server that cannot
// start degrades the run to log-only observation rather than failing it.
func startStatusServer(ctx context.Context, board *statusserver.Board, cfg *config.Config, logger *log.Logger) *statusserver.Server {
	scfg := statusserver.Config{Addr: cfg.Serve.Addr, Token: cfg.Serve.Token}
	if path, err := cfg.HostKeyPath(); err == nil {
		scfg.HostKeyPath = path
	}
	srv, err := statusserver.New(board, scfg, logger)
	if err == nil {
		err = srv.Start(ctx)
	}
	if err != nil {
		logger.Warn("status server unavailable", "err", err)
		return nil
	}
	addr := srv.Address()
	if addr == "" {
		addr = cfg.Serve.Addr
	}
	logger.Info("status server listening", "addr", addr, "token", srv.Token())
	return srv
}

// Descriptor converts the matrix file's axes into a descriptor. The
// expand and validate commands share it so they see exactly the matrix
// a run would.
func Descriptor(mf *matrixfile.Matrixfile) *matrix.Descriptor {
	axes := make([]matrix.Axis, len(mf.Axes))
	for i, a := range mf.Axes {
		axes[i] = matrix.Axis{Name: matrix.AxisName(a.Name), Values: a.Values}
	}
	return &matrix.Descriptor{Axes: axes}
}

// buildCommands converts the matrix file's command list into executable
// commands.
func buildCommands(mf *matrixfile.Matrixfile) []execute.Command {
	cmds := make([]execute.Command, len(mf.Commands))
	for i, c := range mf.Commands {
		cmds[i] = execute.Command{Line: c.Line, PTY: c.PTY}
	}
	return cmds
}

// TemplatedStrings collects every axis-templated string in the document,
// so a reference to an unknown axis is rejected before any cell starts.
func TemplatedStrings(mf *matrixfile.Matrixfile) []string {
	texts := mf.CommandLines()
	if mf.Install != "" {
		texts = append(texts, mf.Install)
	}
	for _, v := range mf.Env {
		texts = append(texts, v)
	}
	if mf.Isolation != nil && mf.Isolation.Image != "" {
		texts = append(texts, mf.Isolation.Image)
	}
	return texts
}
