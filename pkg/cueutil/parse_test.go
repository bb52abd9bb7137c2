// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

const matrixSchema = `
#Matrix: {
	name:     string
	axes:     [string]: [...string]
	commands: [...string]
	failFast?: bool
}
`

type matrixDoc struct {
	Name     string              `json:"name"`
	Axes     map[string][]string `json:"axes"`
	Commands []string            `json:"commands"`
	FailFast bool                `json:"failFast,omitempty"`
}

func TestParseAndDecode(t *testing.T) {
	t.Run("valid document decodes", func(t *testing.T) {
		data := []byte(`
name: "cocotb-regression"
axes: version: ["3.11", "3.12"]
commands: ["pip install -e .", "pytest -q"]
failFast: true
`)
		result, err := ParseAndDecode[matrixDoc]([]byte(matrixSchema), data, "#Matrix")
		if err != nil {
			t.Fatalf("ParseAndDecode failed: %v", err)
		}

		if result.Value.Name != "cocotb-regression" {
			t.Errorf("name = %q, want cocotb-regression", result.Value.Name)
		}
		if got := result.Value.Axes["version"]; len(got) != 2 || got[0] != "3.11" {
			t.Errorf("axes.version = %v", got)
		}
		if len(result.Value.Commands) != 2 {
			t.Errorf("commands = %v", result.Value.Commands)
		}
		if !result.Value.FailFast {
			t.Error("failFast not decoded")
		}
	})

	t.Run("optional field can be omitted", func(t *testing.T) {
		data := []byte(`
name: "minimal"
axes: {}
commands: ["true"]
`)
		result, err := ParseAndDecode[matrixDoc]([]byte(matrixSchema), data, "#Matrix")
		if err != nil {
			t.Fatalf("ParseAndDecode failed: %v", err)
		}
		if result.Value.FailFast {
			t.Error("failFast should default to false")
		}
	})

	t.Run("schema violation returns error", func(t *testing.T) {
		data := []byte(`
name: 42
axes: {}
commands: ["true"]
`)
		if _, err := ParseAndDecode[matrixDoc]([]byte(matrixSchema), data, "#Matrix"); err == nil {
			t.Error("expected error for non-string name")
		}
	})

	t.Run("missing required field returns error", func(t *testing.T) {
		data := []byte(`
axes: {}
commands: ["true"]
`)
		if _, err := ParseAndDecode[matrixDoc]([]byte(matrixSchema), data, "#Matrix"); err == nil {
			t.Error("expected error for missing name")
		}
	})

	t.Run("filename appears in errors", func(t *testing.T) {
		data := []byte(`name: 42, axes: {}, commands: []`)
		_, err := ParseAndDecode[matrixDoc](
			[]byte(matrixSchema), data, "#Matrix",
			WithFilename("matrix.cue"),
		)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "matrix.cue") {
			t.Errorf("error should name the file, got: %v", err)
		}
	})

	t.Run("validation failure is a ValidationError", func(t *testing.T) {
		data := []byte(`
name: "bad"
axes: version: [3]
commands: ["true"]
`)
		_, err := ParseAndDecode[matrixDoc](
			[]byte(matrixSchema), data, "#Matrix",
			WithFilename("matrix.cue"),
		)
		if err == nil {
			t.Fatal("expected error")
		}
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("error %v is not a ValidationError", err)
		}
		if vErr.FilePath != "matrix.cue" {
			t.Errorf("FilePath = %q", vErr.FilePath)
		}
	})

	t.Run("unknown schema path is an internal error", func(t *testing.T) {
		_, err := ParseAndDecode[matrixDoc]([]byte(matrixSchema), []byte(`{}`), "#Nope")
		if err == nil || !strings.Contains(err.Error(), "internal error") {
			t.Errorf("error = %v, want internal error for missing definition", err)
		}
	})
}

func TestParseAndDecodeOpenConfig(t *testing.T) {
	configSchema := `
#Config: {
	concurrency?: int & >=1
	isolation?:   "host" | "container"
	failFast?:    bool
}
`
	type config struct {
		Concurrency int    `json:"concurrency,omitempty"`
		Isolation   string `json:"isolation,omitempty"`
		FailFast    bool   `json:"failFast,omitempty"`
	}

	t.Run("empty config parses with WithConcrete(false)", func(t *testing.T) {
		result, err := ParseAndDecode[config]([]byte(configSchema), []byte(`{}`), "#Config", WithConcrete(false))
		if err != nil {
			t.Fatalf("ParseAndDecode failed: %v", err)
		}
		if result.Value.Concurrency != 0 {
			t.Errorf("concurrency = %d, want zero value", result.Value.Concurrency)
		}
	})

	t.Run("invalid enum value returns error", func(t *testing.T) {
		data := []byte(`isolation: "vm"`)
		if _, err := ParseAndDecode[config]([]byte(configSchema), data, "#Config", WithConcrete(false)); err == nil {
			t.Error("expected error for unsupported isolation")
		}
	})

	t.Run("constraint violation returns error", func(t *testing.T) {
		data := []byte(`concurrency: 0`)
		if _, err := ParseAndDecode[config]([]byte(configSchema), data, "#Config", WithConcrete(false)); err == nil {
			t.Error("expected error for concurrency below 1")
		}
	})
}

func TestFileSizeLimit(t *testing.T) {
	t.Run("file within limit parses", func(t *testing.T) {
		data := []byte(`name: "ok", axes: {}, commands: ["true"]`)
		if _, err := ParseAndDecode[matrixDoc]([]byte(matrixSchema), data, "#Matrix", WithMaxFileSize(1024)); err != nil {
			t.Errorf("ParseAndDecode failed: %v", err)
		}
	})

	t.Run("oversized file is rejected before evaluation", func(t *testing.T) {
		data := make([]byte, 200)
		for i := range data {
			data[i] = 'a'
		}
		_, err := ParseAndDecode[matrixDoc]([]byte(matrixSchema), data, "#Matrix", WithMaxFileSize(100))
		if !errors.Is(err, ErrFileTooLarge) {
			t.Errorf("error = %v, want ErrFileTooLarge", err)
		}
	})
}

func TestParseAndDecodeString(t *testing.T) {
	data := []byte(`name: "s", axes: {}, commands: ["true"]`)
	result, err := ParseAndDecodeString[matrixDoc](matrixSchema, data, "#Matrix")
	if err != nil {
		t.Fatalf("ParseAndDecodeString failed: %v", err)
	}
	if result.Value.Name != "s" {
		t.Errorf("name = %q", result.Value.Name)
	}
}

func TestUnifiedValueAccess(t *testing.T) {
	data := []byte(`name: "u", axes: {}, commands: ["true"]`)
	result, err := ParseAndDecode[matrixDoc]([]byte(matrixSchema), data, "#Matrix")
	if err != nil {
		t.Fatalf("ParseAndDecode failed: %v", err)
	}
	if result.Unified.Err() != nil {
		t.Errorf("unified value has error: %v", result.Unified.Err())
	}
}
