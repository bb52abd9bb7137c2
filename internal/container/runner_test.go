// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"matrun-cli/internal/execute"
	"matrun-cli/internal/matrix"
)

func cellContext() *execute.ExecutionContext {
	return &execute.ExecutionContext{
		WorkDir: "/tmp/run/cells/001-version-3.11",
		Env: map[string]string{
			"MATRUN_VERSION":    "3.11",
			"MATRUN_CELL_ID":    "version=3.11",
			"MATRUN_CELL_INDEX": "1",
		},
	}
}

func TestRunnerRunCommand(t *testing.T) {
	t.Parallel()

	fake := &fakeEngineExec{stdout: "4 passed\n"}
	r := NewRunner(NewDockerEngine(WithExecCommand(fake.commandFunc())), "python:{axis.version}")

	res := r.RunCommand(context.Background(), cellContext(), execute.Command{Line: "pytest -q"}, execute.Options{})
	if res.Failed() {
		t.Fatalf("RunCommand() failed: exit %s, stderr %q", res.ExitCode, res.Stderr)
	}
	if res.Command != "pytest -q" {
		t.Errorf("Command = %q, want the original line", res.Command)
	}
	if res.Stdout != "4 passed\n" {
		t.Errorf("Stdout = %q", res.Stdout)
	}

	inv := fake.last(t)
	if !inv.hasArgPair("-v", "/tmp/run/cells/001-version-3.11:/work") {
		t.Errorf("cell workdir not mounted: %v", inv.args)
	}
	if !inv.hasArgPair("-w", DefaultWorkDir) {
		t.Errorf("container workdir not set: %v", inv.args)
	}
	if !inv.hasArgPair("-e", "MATRUN_VERSION=3.11") {
		t.Errorf("cell env not injected: %v", inv.args)
	}
	n := len(inv.args)
	if n < 4 || inv.args[n-4] != "python:3.11" {
		t.Errorf("image not resolved from axis value: %v", inv.args)
	}
	if inv.args[n-3] != "/bin/sh" || inv.args[n-2] != "-c" || inv.args[n-1] != "pytest -q" {
		t.Errorf("command not shell-wrapped: %v", inv.args[n-3:])
	}
}

func TestRunnerContainerName(t *testing.T) {
	t.Parallel()

	fake := &fakeEngineExec{}
	r := NewRunner(NewDockerEngine(WithExecCommand(fake.commandFunc())), "alpine")

	r.RunCommand(context.Background(), cellContext(), execute.Command{Line: "true"}, execute.Options{})

	inv := fake.last(t)
	var name string
	for i := 0; i < len(inv.args)-1; i++ {
		if inv.args[i] == "--name" {
			name = inv.args[i+1]
		}
	}
	if !strings.HasPrefix(name, "matrun-1-") {
		t.Errorf("container name = %q, want matrun-<cell index>- prefix", name)
	}
}

func TestRunnerUnknownAxisPlaceholder(t *testing.T) {
	t.Parallel()

	fake := &fakeEngineExec{}
	r := NewRunner(NewDockerEngine(WithExecCommand(fake.commandFunc())), "python:{axis.nope}")

	res := r.RunCommand(context.Background(), cellContext(), execute.Command{Line: "true"}, execute.Options{})
	if res.ExitCode != execute.ExitCodeStartFailure {
		t.Errorf("ExitCode = %s, want %s", res.ExitCode, execute.ExitCodeStartFailure)
	}
	if !strings.Contains(res.Stderr, "placeholder") {
		t.Errorf("Stderr = %q, want placeholder diagnostic", res.Stderr)
	}
	if got := fake.count("docker", "run"); got != 0 {
		t.Errorf("recorded %d run invocations, want none", got)
	}
}

func TestRunnerTimeout(t *testing.T) {
	t.Parallel()

	fake := &fakeEngineExec{runSleepMS: 500}
	r := NewRunner(NewDockerEngine(WithExecCommand(fake.commandFunc())), "alpine")

	res := r.RunCommand(context.Background(), cellContext(), execute.Command{Line: "sleep 60"},
		execute.Options{Timeout: 50 * time.Millisecond})
	if !res.TimedOut {
		t.Fatal("TimedOut not set")
	}
	if res.ExitCode != execute.ExitCodeTimeout {
		t.Errorf("ExitCode = %s, want %s", res.ExitCode, execute.ExitCodeTimeout)
	}
}

func TestRunnerTTYAndShellOverride(t *testing.T) {
	t.Parallel()

	fake := &fakeEngineExec{}
	r := NewRunner(NewDockerEngine(WithExecCommand(fake.commandFunc())), "alpine")
	r.Shell = []string{"/bin/bash", "-lc"}

	r.RunCommand(context.Background(), cellContext(), execute.Command{Line: "make sim", PTY: true}, execute.Options{})

	inv := fake.last(t)
	joined := strings.Join(inv.args, " ")
	if !strings.Contains(joined, " -t ") {
		t.Errorf("TTY flag missing: %v", inv.args)
	}
	if !strings.Contains(joined, "/bin/bash -lc make sim") {
		t.Errorf("shell override not applied: %v", inv.args)
	}
}

func TestRunnerValidate(t *testing.T) {
	t.Parallel()

	eng := NewDockerEngine(WithExecCommand((&fakeEngineExec{}).commandFunc()))
	line := execute.Command{Line: "true"}

	if err := (&Runner{Engine: eng, Image: "alpine"}).Validate(line); err != nil {
		t.Errorf("Validate() = %v for a complete runner", err)
	}
	if err := (&Runner{Image: "alpine"}).Validate(line); !errors.Is(err, ErrInvalidRunSpec) {
		t.Errorf("Validate() without engine = %v, want ErrInvalidRunSpec", err)
	}
	if err := (&Runner{Engine: eng}).Validate(line); !errors.Is(err, ErrInvalidRunSpec) {
		t.Errorf("Validate() without image = %v, want ErrInvalidRunSpec", err)
	}
	if err := (&Runner{Engine: eng, Image: "alpine"}).Validate(execute.Command{Line: "  "}); err == nil {
		t.Error("Validate() accepted a blank command line")
	}
}

func TestRunnerName(t *testing.T) {
	t.Parallel()

	r := NewRunner(NewDockerEngine(WithExecCommand((&fakeEngineExec{}).commandFunc())), "alpine")
	if got := r.Name(); got != "container/docker" {
		t.Errorf("Name() = %q, want %q", got, "container/docker")
	}
}

func TestExpandImage(t *testing.T) {
	t.Parallel()

	env := map[string]string{"MATRUN_VERSION": "3.11", "MATRUN_OS": "bookworm"}

	tests := []struct {
		name    string
		image   string
		want    string
		wantErr bool
	}{
		{"no placeholders", "alpine:3.20", "alpine:3.20", false},
		{"single", "python:{axis.version}", "python:3.11", false},
		{"multiple", "python:{axis.version}-{axis.os}", "python:3.11-bookworm", false},
		{"unknown axis", "python:{axis.nope}", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ExpandImage(tt.image, env)
			if tt.wantErr {
				if !errors.Is(err, matrix.ErrUnknownPlaceholder) {
					t.Fatalf("ExpandImage() error = %v, want ErrUnknownPlaceholder", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExpandImage() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ExpandImage() = %q, want %q", got, tt.want)
			}
		})
	}
}
