// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"matrun-cli/internal/execute"
)

// scriptedRunner returns canned results per command line and counts runs.
type scriptedRunner struct {
	mu      sync.Mutex
	results map[string][]execute.CommandResult
	runs    map[string]int
}

func newScriptedRunner() *scriptedRunner {
	return &scriptedRunner{
		results: make(map[string][]execute.CommandResult),
		runs:    make(map[string]int),
	}
}

// script queues results for a line; each run consumes one, the last repeats.
func (r *scriptedRunner) script(line string, results ...execute.CommandResult) {
	r.results[line] = results
}

func (r *scriptedRunner) Name() string                   { return "scripted" }
func (r *scriptedRunner) Available() bool                { return true }
func (r *scriptedRunner) Validate(execute.Command) error { return nil }

func (r *scriptedRunner) RunCommand(_ context.Context, _ *execute.ExecutionContext, cmd execute.Command, _ execute.Options) *execute.CommandResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.runs[cmd.Line]
	r.runs[cmd.Line] = n + 1
	queue := r.results[cmd.Line]
	if len(queue) == 0 {
		return &execute.CommandResult{Command: cmd.Line, ExitCode: 0}
	}
	if n >= len(queue) {
		n = len(queue) - 1
	}
	res := queue[n]
	res.Command = cmd.Line
	return &res
}

func TestEnsureVersionGatePasses(t *testing.T) {
	t.Parallel()

	runner := newScriptedRunner()
	runner.script("ghdl --version", execute.CommandResult{
		Stdout: "GHDL 4.1.0 (tarball) [Dunoon edition]\n",
	})
	e := &Ensurer{
		Config: Config{Probe: "ghdl --version", MinVersion: "4.0.0"},
		Runner: runner,
	}

	info, err := e.Ensure(context.Background())
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if info.Version != "4.1.0" {
		t.Errorf("Version = %q", info.Version)
	}
	if info.Installed {
		t.Error("Installed = true without an install step")
	}
}

func TestEnsureVersionTooOld(t *testing.T) {
	t.Parallel()

	runner := newScriptedRunner()
	runner.script("ghdl --version", execute.CommandResult{Stdout: "GHDL 3.0.0\n"})
	e := &Ensurer{
		Config: Config{Probe: "ghdl --version", MinVersion: "4.0.0"},
		Runner: runner,
	}

	_, err := e.Ensure(context.Background())
	var tooOld *VersionTooOldError
	if !errors.As(err, &tooOld) {
		t.Fatalf("Ensure() error = %v, want VersionTooOldError", err)
	}
	if tooOld.Version != "3.0.0" || tooOld.MinVersion != "4.0.0" {
		t.Errorf("error = %+v", tooOld)
	}
	if !errors.Is(err, ErrToolchain) {
		t.Error("error does not wrap ErrToolchain")
	}
}

func TestEnsureInstallsOnProbeFailure(t *testing.T) {
	t.Parallel()

	runner := newScriptedRunner()
	runner.script("ghdl --version",
		execute.CommandResult{ExitCode: execute.ExitCodeStartFailure, Stderr: "ghdl: command not found"},
		execute.CommandResult{Stdout: "GHDL 4.1.0\n"},
	)
	e := &Ensurer{
		Config: Config{Probe: "ghdl --version", Install: "apt-get install -y ghdl", MinVersion: "4.0.0"},
		Runner: runner,
	}

	info, err := e.Ensure(context.Background())
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if !info.Installed {
		t.Error("Installed = false after install ran")
	}
	if runner.runs["ghdl --version"] != 2 {
		t.Errorf("probe ran %d times, want 2", runner.runs["ghdl --version"])
	}
	if runner.runs["apt-get install -y ghdl"] != 1 {
		t.Errorf("install ran %d times, want 1", runner.runs["apt-get install -y ghdl"])
	}
}

func TestEnsureProbeFailureWithoutInstall(t *testing.T) {
	t.Parallel()

	runner := newScriptedRunner()
	runner.script("ghdl --version", execute.CommandResult{
		ExitCode: execute.ExitCodeStartFailure,
		Stderr:   "ghdl: command not found",
	})
	e := &Ensurer{Config: Config{Probe: "ghdl --version"}, Runner: runner}

	_, err := e.Ensure(context.Background())
	var probeErr *ProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("Ensure() error = %v, want ProbeError", err)
	}
	if !strings.Contains(probeErr.Output, "command not found") {
		t.Errorf("Output = %q", probeErr.Output)
	}
}

func TestEnsureInstallFailure(t *testing.T) {
	t.Parallel()

	runner := newScriptedRunner()
	runner.script("ghdl --version", execute.CommandResult{ExitCode: 127})
	runner.script("apt-get install -y ghdl", execute.CommandResult{
		ExitCode: 100,
		Stderr:   "E: Unable to locate package ghdl",
	})
	e := &Ensurer{
		Config: Config{Probe: "ghdl --version", Install: "apt-get install -y ghdl"},
		Runner: runner,
	}

	_, err := e.Ensure(context.Background())
	var probeErr *ProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("Ensure() error = %v, want ProbeError", err)
	}
	if probeErr.Cmd != "apt-get install -y ghdl" {
		t.Errorf("Cmd = %q, want the install command", probeErr.Cmd)
	}
	if !strings.Contains(probeErr.Output, "Unable to locate") {
		t.Errorf("Output = %q", probeErr.Output)
	}
}

func TestEnsureRunsOnce(t *testing.T) {
	t.Parallel()

	runner := newScriptedRunner()
	runner.script("python --version", execute.CommandResult{Stdout: "Python 3.11.9\n"})
	e := &Ensurer{Config: Config{Probe: "python --version"}, Runner: runner}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.Ensure(context.Background())
		}()
	}
	wg.Wait()

	if got := runner.runs["python --version"]; got != 1 {
		t.Errorf("probe ran %d times, want 1", got)
	}
}

func TestEnsureNoProbeConfigured(t *testing.T) {
	t.Parallel()

	e := &Ensurer{Runner: newScriptedRunner()}
	info, err := e.Ensure(context.Background())
	if err != nil || info == nil {
		t.Fatalf("Ensure() = %v, %v", info, err)
	}
}

func TestEnsureVersionNotFound(t *testing.T) {
	t.Parallel()

	runner := newScriptedRunner()
	runner.script("ghdl --version", execute.CommandResult{Stdout: "no digits here\n"})
	e := &Ensurer{
		Config: Config{Probe: "ghdl --version", MinVersion: "1.0.0"},
		Runner: runner,
	}

	_, err := e.Ensure(context.Background())
	if !errors.Is(err, ErrVersionNotFound) {
		t.Errorf("Ensure() error = %v, want ErrVersionNotFound", err)
	}
}

func TestParseVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"ghdl", "GHDL 4.1.0 (tarball) [Dunoon edition]", "4.1.0"},
		{"python", "Python 3.11.9", "3.11.9"},
		{"short", "tool v2.3", "2.3"},
		{"prerelease", "sim 5.0.0-dev.2 nightly", "5.0.0-dev.2"},
		{"multiline", "header\nverilator 5.020 2024-01-01\n", "5.020"},
		{"none", "command not found", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseVersion(tt.output); got != tt.want {
				t.Errorf("ParseVersion(%q) = %q, want %q", tt.output, got, tt.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	if err := (Config{}).Validate(); err != nil {
		t.Errorf("empty config Validate() = %v", err)
	}
	if err := (Config{Probe: "x --version", MinVersion: "1.2.3"}).Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	if err := (Config{Probe: "x --version", MinVersion: "not-a-version"}).Validate(); err == nil {
		t.Error("Validate() accepted a malformed minVersion")
	}
	if err := (Config{MinVersion: "1.0.0"}).Validate(); err == nil {
		t.Error("Validate() accepted minVersion without a probe")
	}
}
