// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"time"

	"matrun-cli/internal/app"
	"matrun-cli/internal/issue"
	"matrun-cli/internal/report"
	"matrun-cli/pkg/matrixfile"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	runFile         string
	runConcurrency  int
	runFailFast     bool
	runNoFailFast   bool
	runTimeout      time.Duration
	runIsolation    string
	runEvent        string
	runBranch       string
	runRerunFrom    string
	runOutput       string
	runRunID        string
	runStatusServer bool
	runKeepWork     bool

	// runCmd expands the matrix and executes every cell
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Expand the matrix and run every cell",
		Long: `Expand the matrix file into its full cross-product of cells and run
each cell's command sequence in an isolated working directory (or
container), collecting per-command output into a run report.

The exit code tells CI wrappers what happened:
  0  every cell passed
  1  at least one cell failed or errored
  2  the matrix file or the flags are invalid
  3  the toolchain gate blocked the run`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}
)

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "matrix file to run (default: search the current directory)")
	runCmd.Flags().IntVarP(&runConcurrency, "concurrency", "j", 0, "cells to run at once (overrides file and config)")
	runCmd.Flags().BoolVar(&runFailFast, "fail-fast", false, "skip pending cells after the first failure")
	runCmd.Flags().BoolVar(&runNoFailFast, "no-fail-fast", false, "run every cell even after failures")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "per-command timeout (e.g. 90s, 5m)")
	runCmd.Flags().StringVar(&runIsolation, "isolation", "", "isolation mode: host or container")
	runCmd.Flags().StringVar(&runEvent, "event", "", "trigger event to run as: push, pull-request or manual")
	runCmd.Flags().StringVar(&runBranch, "branch", "", "branch name checked against the trigger gate")
	runCmd.Flags().StringVar(&runRerunFrom, "rerun-failed", "", "previous report.json; cells that passed there are carried over")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "artifact directory (default: .matrun/<run-id>)")
	runCmd.Flags().StringVar(&runRunID, "run-id", "", "run identifier (default: UTC timestamp)")
	runCmd.Flags().BoolVar(&runStatusServer, "status-server", false, "serve a live SSH scoreboard while the run is active")
	runCmd.Flags().BoolVar(&runKeepWork, "keep-work-dirs", false, "keep per-cell working directories after the run")
	runCmd.MarkFlagsMutuallyExclusive("fail-fast", "no-fail-fast")
}

func runRun(cmd *cobra.Command, args []string) error {
	opts := app.Options{
		File:         runFile,
		OutputDir:    runOutput,
		RunID:        runRunID,
		Isolation:    runIsolation,
		Branch:       runBranch,
		RerunFrom:    runRerunFrom,
		StatusServer: runStatusServer,
		KeepWorkDirs: runKeepWork,
		Config:       loadedConfig(),
		Logger:       newRunLogger(),
	}
	if cmd.Flags().Changed("concurrency") {
		opts.Concurrency = &runConcurrency
	}
	if runFailFast || runNoFailFast {
		failFast := runFailFast
		opts.FailFast = &failFast
	}
	if cmd.Flags().Changed("timeout") {
		opts.PerCommandTimeout = &runTimeout
	}
	if runEvent != "" {
		opts.Event = matrixfile.EventKind(runEvent)
	}

	res, err := app.Run(cmd.Context(), opts)
	if err != nil {
		return runFailure(err)
	}

	if res.Skipped {
		fmt.Printf("%s %s\n", WarningStyle.Render("!"), res.SkipReason)
		return nil
	}

	fmt.Println(res.Summary)
	fmt.Println(SubtitleStyle.Render("artifacts: ") + res.OutputDir)
	if res.ExitCode != report.ExitAllPassed {
		return &ExitError{Code: res.ExitCode}
	}
	return nil
}

// runFailure renders the matching issue card and a styled message, then
// converts the error into an ExitError carrying the right exit code.
func runFailure(err error) error {
	id, styledMsg := classifyRunError(err, verbose)
	if iss := issue.Get(id); iss != nil {
		if rendered, rerr := iss.Render("dark"); rerr == nil {
			fmt.Fprint(os.Stderr, rendered)
		}
	}
	fmt.Fprint(os.Stderr, styledMsg)
	return &ExitError{Code: exitCodeForRunError(err), Err: err}
}

// newRunLogger builds the logger handed to the run pipeline. Verbose
// mode or MATRUN_DEBUG lowers the level to debug.
func newRunLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "matrun",
		ReportTimestamp: true,
	})
	if verbose || os.Getenv("MATRUN_DEBUG") != "" {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}
