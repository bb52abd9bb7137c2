// SPDX-License-Identifier: MPL-2.0

package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"matrun-cli/internal/config"
	"matrun-cli/internal/report"
	"matrun-cli/pkg/matrixfile"
)

// ErrInvalidOverride is the sentinel error wrapped by InvalidOverrideError.
var ErrInvalidOverride = errors.New("invalid override")

type (
	// Options configures one matrix run. The zero value runs the matrix
	// file found in the current directory under the default config.
	//
	// The pointer fields are three-state overrides: nil defers to the
	// matrix file and the config, a value wins over both.
	Options struct {
		// File is an explicit matrix file path. Empty means discovery of
		// the default file names in Dir.
		File string
		// Dir is where discovery starts and relative paths resolve.
		// Empty means the current directory.
		Dir string
		// OutputDir receives the report and archived logs. Empty means
		// .matrun/<run ID> under Dir.
		OutputDir string
		// RunID labels the run in reports and cell environments. Empty
		// derives one from the start time.
		RunID string

		Concurrency       *int
		FailFast          *bool
		PerCommandTimeout *time.Duration

		// Isolation overrides the matrix file's isolation mode when
		// non-empty. The image still comes from the file.
		Isolation string

		// Event and Branch describe what started the run, for the
		// trigger gate. An empty Event counts as a manual run.
		Event  matrixfile.EventKind
		Branch string

		// RerunFrom is a previous run's report.json; cells that passed
		// there are carried over instead of re-executed.
		RerunFrom string

		// StatusServer starts the SSH scoreboard for the duration of the
		// run. Failures to start it are logged, never fatal.
		StatusServer bool

		// KeepWorkDirs leaves cell working directories in place after the
		// run, for debugging.
		KeepWorkDirs bool

		Config *config.Config
		Logger *log.Logger
	}

	// Result is the outcome of a run that got far enough to produce one.
	Result struct {
		// Report is the aggregate outcome. Nil when the run was skipped.
		Report *report.RunReport
		// ExitCode is the process exit code the run maps to.
		ExitCode int
		// Summary is the plain-text rollup, one line per cell.
		Summary string
		// OutputDir is where the artifacts were written.
		OutputDir string
		// Skipped marks a run suppressed by the trigger gate.
		Skipped bool
		// SkipReason says which gate suppressed the run.
		SkipReason string
	}

	// InvalidOverrideError reports a flag-level override that cannot be
	// applied.
	InvalidOverrideError struct {
		Flag   string
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidOverrideError) Error() string {
	return fmt.Sprintf("invalid --%s: %s", e.Flag, e.Reason)
}

// Unwrap returns ErrInvalidOverride for errors.Is() compatibility.
func (e *InvalidOverrideError) Unwrap() error { return ErrInvalidOverride }

// logger returns the configured logger or the package default.
func (o *Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}

// config returns the configured app config or the defaults.
func (o *Options) config() *config.Config {
	if o.Config != nil {
		return o.Config
	}
	return config.DefaultConfig()
}

// event returns the trigger event, defaulting to a manual run.
func (o *Options) event() matrixfile.EventKind {
	if o.Event != "" {
		return o.Event
	}
	return matrixfile.EventManual
}

// newRunID derives a run identifier from the start time: UTC, second
// resolution, filesystem- and object-key-safe.
func newRunID(t time.Time) string {
	return t.UTC().Format("20060102-150405")
}
