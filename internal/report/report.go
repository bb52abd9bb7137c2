// SPDX-License-Identifier: MPL-2.0

package report

import (
	"fmt"
	"time"

	"matrun-cli/internal/execute"
	"matrun-cli/internal/matrix"
)

// Cell statuses. Pending, Provisioning and Running are transient; the rest
// are terminal.
const (
	StatusPending      Status = "pending"
	StatusProvisioning Status = "provisioning"
	StatusRunning      Status = "running"
	StatusPassed       Status = "passed"
	StatusFailed       Status = "failed"
	StatusErrored      Status = "errored"
	StatusSkipped      Status = "skipped"
)

type (
	// Status is the lifecycle state of one matrix cell.
	Status string

	// ProvisionFailure is the flattened record of a setup error: which stage
	// broke, the captured output of the failing step (installer stdout and
	// stderr), and the error text.
	ProvisionFailure struct {
		Stage   string `json:"stage"`
		Output  string `json:"output,omitempty"`
		Message string `json:"message"`
	}

	// ResultsRollup aggregates the results files a cell's commands produced
	// (JUnit XML counts across all matched files).
	ResultsRollup struct {
		Files    int     `json:"files"`
		Tests    int     `json:"tests"`
		Failures int     `json:"failures"`
		Errors   int     `json:"errors"`
		Skipped  int     `json:"skipped"`
		Time     float64 `json:"time_seconds"`
	}

	// EnvironmentOutcome is the complete record of one cell: its spec, its
	// terminal status, every command that was started, and any provisioning
	// failure or results rollup.
	EnvironmentOutcome struct {
		Spec       matrix.Spec             `json:"spec"`
		Status     Status                  `json:"status"`
		Commands   []execute.CommandResult `json:"commands,omitempty"`
		Provision  *ProvisionFailure       `json:"provision,omitempty"`
		Results    *ResultsRollup          `json:"results,omitempty"`
		StartedAt  time.Time               `json:"started_at"`
		FinishedAt time.Time               `json:"finished_at"`
		// Reused marks an outcome carried over from a previous run instead of
		// being executed again (rerun-failed selection).
		Reused bool `json:"reused,omitempty"`
	}

	// Policy echoes the effective scheduling policy into the report so an
	// archived report is interpretable on its own.
	Policy struct {
		Concurrency       int           `json:"concurrency"`
		FailFast          bool          `json:"fail_fast"`
		PerCommandTimeout time.Duration `json:"per_command_timeout_ns,omitempty"`
	}

	// RunReport is the aggregate outcome of a matrix run. Outcomes are in
	// descriptor expansion order, one per cell, always complete: a cell that
	// never ran still has an outcome (Skipped).
	RunReport struct {
		RunID string `json:"run_id"`
		// DescriptorDigest identifies the expanded descriptor this report
		// belongs to; rerun selection refuses a report from a different
		// matrix.
		DescriptorDigest string               `json:"descriptor_digest"`
		Policy           Policy               `json:"policy"`
		Outcomes         []EnvironmentOutcome `json:"outcomes"`
		StartedAt        time.Time            `json:"started_at"`
		FinishedAt       time.Time            `json:"finished_at"`
	}
)

// String returns the string representation of the Status.
func (s Status) String() string { return string(s) }

// Validate returns nil if the Status is one of the defined cell statuses.
func (s Status) Validate() error {
	switch s {
	case StatusPending, StatusProvisioning, StatusRunning,
		StatusPassed, StatusFailed, StatusErrored, StatusSkipped:
		return nil
	default:
		return fmt.Errorf("invalid cell status %q", string(s))
	}
}

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored, StatusSkipped:
		return true
	default:
		return false
	}
}

// Failure reports whether the status counts as a failure for exit-code and
// fail-fast purposes. Skipped is not a failure; it only ever appears when
// some other cell already failed.
func (s Status) Failure() bool {
	return s == StatusFailed || s == StatusErrored
}

// FirstFailedCommand returns the first command result that failed, or nil.
// Because sequences short-circuit, a failed command is always the last entry.
func (o *EnvironmentOutcome) FirstFailedCommand() *execute.CommandResult {
	for i := range o.Commands {
		if o.Commands[i].Failed() {
			return &o.Commands[i]
		}
	}
	return nil
}

// Duration is the wall-clock time the cell occupied a worker.
func (o *EnvironmentOutcome) Duration() time.Duration {
	if o.StartedAt.IsZero() || o.FinishedAt.IsZero() {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}

// Passed reports whether every cell passed. An empty report passes.
func (r *RunReport) Passed() bool {
	for i := range r.Outcomes {
		if r.Outcomes[i].Status != StatusPassed {
			return false
		}
	}
	return true
}

// FirstFailure returns the failure that decided this run: the failed or
// errored outcome with the smallest cell index. Completion timing never
// influences the choice because Outcomes is in expansion order. Returns nil
// when no cell failed.
func (r *RunReport) FirstFailure() *EnvironmentOutcome {
	for i := range r.Outcomes {
		if r.Outcomes[i].Status.Failure() {
			return &r.Outcomes[i]
		}
	}
	return nil
}

// Counts tallies outcomes by status.
func (r *RunReport) Counts() map[Status]int {
	counts := make(map[Status]int, 4)
	for i := range r.Outcomes {
		counts[r.Outcomes[i].Status]++
	}
	return counts
}

// FailedIndexes returns the cell indexes that did not pass, in order. Used
// for rerun selection.
func (r *RunReport) FailedIndexes() []int {
	var idx []int
	for i := range r.Outcomes {
		if s := r.Outcomes[i].Status; s != StatusPassed {
			idx = append(idx, i)
		}
	}
	return idx
}
