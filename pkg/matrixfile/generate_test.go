// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"reflect"
	"strings"
	"testing"
)

func TestGenerateCUERoundTrip(t *testing.T) {
	t.Parallel()

	concurrency := 4
	failFast := false
	src := &Matrixfile{
		Name: "nightly",
		Axes: []Axis{
			{Name: "version", Values: []string{"3.12", "3.13"}},
			{Name: "arch", Values: []string{"amd64", "arm64"}},
		},
		Commands: []Command{
			{Line: "pytest -q"},
			{Line: "make sim", PTY: true},
		},
		Concurrency:       &concurrency,
		FailFast:          &failFast,
		PerCommandTimeout: "15m",
		Isolation:         &IsolationConfig{Mode: IsolationContainer, Image: "python:{axis.version}", Engine: "podman"},
		Env:               map[string]string{"CI": "1", "TERM": "xterm"},
		PathVars:          map[string][]string{"PYTHONPATH": {"./src", "./lib"}},
		ListVars:          map[string][]string{"PYTEST_ADDOPTS": {"-q"}},
		Source:            "./",
		Install:           "pip install -e .",
		Toolchain:         &ToolchainConfig{Probe: "python3 --version", MinVersion: "3.12.0", Timeout: "1m"},
		Triggers:          &TriggerConfig{Events: []EventKind{EventPush}, Branches: []string{"main"}},
		ResultsGlob:       "reports/*.xml",
	}

	text := GenerateCUE(src)
	got, err := Parse([]byte(text), "matrix.cue")
	if err != nil {
		t.Fatalf("generated document does not parse: %v\n%s", err, text)
	}
	got.FilePath = ""
	if !reflect.DeepEqual(got, src) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v\n%s", got, src, text)
	}
}

func TestScaffoldIsValid(t *testing.T) {
	t.Parallel()

	text := GenerateCUE(Scaffold())
	if !strings.HasPrefix(text, "// Matrix file for matrun.") {
		t.Errorf("scaffold does not start with the usage header:\n%s", text)
	}
	m, err := Parse([]byte(text), "matrix.cue")
	if err != nil {
		t.Fatalf("scaffold does not parse: %v\n%s", err, text)
	}
	if m.CellCount() != 2 {
		t.Errorf("scaffold CellCount = %d, want 2", m.CellCount())
	}
	if m.FailFast == nil || !*m.FailFast {
		t.Error("scaffold should enable failFast")
	}
}
