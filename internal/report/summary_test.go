// SPDX-License-Identifier: MPL-2.0

package report

import (
	"strings"
	"testing"
	"time"

	"matrun-cli/internal/execute"
)

func sampleReport() *RunReport {
	return &RunReport{
		RunID: "run-42",
		Outcomes: []EnvironmentOutcome{
			{
				Spec:   cellSpec(0, "version", "3.8"),
				Status: StatusPassed,
				Commands: []execute.CommandResult{
					{Command: "pip install cocotb", ExitCode: 0},
					{Command: "pytest", ExitCode: 0},
				},
			},
			{
				Spec:   cellSpec(1, "version", "3.9"),
				Status: StatusFailed,
				Commands: []execute.CommandResult{
					{Command: "pip install cocotb", ExitCode: 0},
					{
						Command:  "pytest",
						ExitCode: 1,
						Stdout:   "collected 3 items",
						Stderr:   "FAILED tests/test_smoke.py::test_reset",
						Duration: 2300 * time.Millisecond,
					},
				},
			},
			{
				Spec:   cellSpec(2, "version", "3.10"),
				Status: StatusErrored,
				Provision: &ProvisionFailure{
					Stage:   "install",
					Output:  "ERROR: No matching distribution found",
					Message: "installer exited with code 1",
				},
			},
			{
				Spec:   cellSpec(3, "version", "3.11"),
				Status: StatusSkipped,
			},
		},
	}
}

func TestSummarizeFailedRun(t *testing.T) {
	t.Parallel()

	exit, text := Summarize(sampleReport())
	if exit != ExitRunFailed {
		t.Errorf("exit = %d, want %d", exit, ExitRunFailed)
	}

	for _, want := range []string{
		"run run-42: 1/4 cells passed, 1 failed, 1 errored, 1 skipped",
		"version=3.8",
		"version=3.9",
		"version=3.10",
		"version=3.11",
		"$ pytest",
		"FAILED tests/test_smoke.py::test_reset",
		"provisioning failed at stage install",
		"No matching distribution found",
		"first failure: version=3.9",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q\n%s", want, text)
		}
	}
}

func TestSummarizeAllPassed(t *testing.T) {
	t.Parallel()

	r := &RunReport{
		RunID: "run-7",
		Outcomes: []EnvironmentOutcome{
			{Spec: cellSpec(0, "version", "3.8"), Status: StatusPassed},
		},
	}
	exit, text := Summarize(r)
	if exit != ExitAllPassed {
		t.Errorf("exit = %d, want 0", exit)
	}
	if strings.Contains(text, "first failure") {
		t.Error("green summary names a first failure")
	}
	if !strings.Contains(text, "1/1 cells passed") {
		t.Errorf("summary = %q", text)
	}
}

func TestSummarizeTimeoutMarker(t *testing.T) {
	t.Parallel()

	r := &RunReport{
		RunID: "run-9",
		Outcomes: []EnvironmentOutcome{
			{
				Spec:   cellSpec(0, "version", "3.8"),
				Status: StatusFailed,
				Commands: []execute.CommandResult{
					{
						Command:  "pytest",
						ExitCode: execute.ExitCodeTimeout,
						TimedOut: true,
						Duration: 5 * time.Second,
					},
				},
			},
		},
	}
	_, text := Summarize(r)
	if !strings.Contains(text, "timed out after 5s") {
		t.Errorf("summary lacks timeout marker:\n%s", text)
	}
}

func TestSummarizeReusedMarker(t *testing.T) {
	t.Parallel()

	r := &RunReport{
		RunID: "run-11",
		Outcomes: []EnvironmentOutcome{
			{Spec: cellSpec(0, "version", "3.8"), Status: StatusPassed, Reused: true},
			{Spec: cellSpec(1, "version", "3.9"), Status: StatusPassed},
		},
	}
	exit, text := Summarize(r)
	if exit != ExitAllPassed {
		t.Errorf("exit = %d", exit)
	}
	if !strings.Contains(text, "(reused)") {
		t.Errorf("summary lacks reused marker:\n%s", text)
	}
}

func TestSummarizeResultsRollup(t *testing.T) {
	t.Parallel()

	r := &RunReport{
		RunID: "run-13",
		Outcomes: []EnvironmentOutcome{
			{
				Spec:    cellSpec(0, "version", "3.8"),
				Status:  StatusFailed,
				Results: &ResultsRollup{Files: 2, Tests: 10, Failures: 1},
				Commands: []execute.CommandResult{
					{Command: "make sim", ExitCode: 0},
				},
			},
		},
	}
	_, text := Summarize(r)
	if !strings.Contains(text, "results: 10 tests, 1 failures") {
		t.Errorf("summary lacks rollup:\n%s", text)
	}
}
