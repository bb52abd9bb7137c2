// SPDX-License-Identifier: MPL-2.0

package benchmark

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"matrun-cli/internal/execute"
	"matrun-cli/internal/matrix"
	"matrun-cli/internal/provision"
	"matrun-cli/internal/report"
	"matrun-cli/internal/schedule"
	"matrun-cli/pkg/matrixfile"
)

// sampleCUE is a representative matrix.cue for benchmarking parsing. It
// exercises every section of the schema: axes, mixed command forms,
// policy knobs, container isolation and results collection.
const sampleCUE = `
name: "ci"
axes: [
	{name: "version", values: ["3.10", "3.11", "3.12", "3.13"]},
	{name: "db", values: ["sqlite", "postgres", "mysql"]},
	{name: "os", values: ["debian", "alpine"]},
]
commands: [
	"pip install -r requirements.txt",
	"pytest -q --junitxml=reports/junit.xml",
	{line: "make sim", pty: true},
]
concurrency: 4
failFast: true
perCommandTimeout: "10m"
isolation: {
	mode:  "container"
	image: "python:{axis.version}-{axis.os}"
}
env: {CI: "1", DB: "{axis.db}"}
pathVars: {PYTHONPATH: ["./src", "./lib"]}
resultsGlob: "reports/*.xml"
`

const sampleYAML = `
name: ci
axes:
  - name: version
    values: ["3.10", "3.11", "3.12", "3.13"]
  - name: db
    values: [sqlite, postgres, mysql]
  - name: os
    values: [debian, alpine]
commands:
  - pip install -r requirements.txt
  - pytest -q --junitxml=reports/junit.xml
  - line: make sim
    pty: true
concurrency: 4
failFast: true
perCommandTimeout: 10m
isolation:
  mode: container
  image: "python:{axis.version}-{axis.os}"
env:
  CI: "1"
  DB: "{axis.db}"
pathVars:
  PYTHONPATH: ["./src", "./lib"]
resultsGlob: reports/*.xml
`

const sampleJUnit = `<?xml version="1.0" encoding="UTF-8"?>
<testsuites>
  <testsuite name="unit" tests="40" failures="2" errors="0" skipped="1" time="12.5">
    <testcase name="test_ok"/>
    <testcase name="test_fail"><failure message="assert failed"/></testcase>
  </testsuite>
  <testsuite name="integration" tests="12" failures="0" errors="1" skipped="0" time="33.1">
    <testcase name="test_db"/>
    <testcase name="test_net"><error message="connection refused"/></testcase>
  </testsuite>
</testsuites>
`

// benchDescriptor is a 24-cell matrix, the scale a busy project's CI runs at.
func benchDescriptor() *matrix.Descriptor {
	return &matrix.Descriptor{Axes: []matrix.Axis{
		{Name: "version", Values: []string{"3.10", "3.11", "3.12", "3.13"}},
		{Name: "db", Values: []string{"sqlite", "postgres", "mysql"}},
		{Name: "os", Values: []string{"debian", "alpine"}},
	}}
}

func benchSpecs(b *testing.B) []matrix.Spec {
	b.Helper()
	specs, err := benchDescriptor().Expand()
	if err != nil {
		b.Fatalf("Expand() error = %v", err)
	}
	return specs
}

func benchReport(b *testing.B) *report.RunReport {
	b.Helper()
	specs := benchSpecs(b)
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	outcomes := make([]report.EnvironmentOutcome, len(specs))
	for i, spec := range specs {
		status := report.StatusPassed
		var testExit execute.ExitCode
		if i%7 == 3 {
			status = report.StatusFailed
			testExit = 1
		}
		outcomes[i] = report.EnvironmentOutcome{
			Spec:   spec,
			Status: status,
			Commands: []execute.CommandResult{
				{Command: "pip install -r requirements.txt", ExitCode: 0, Duration: 2 * time.Second},
				{Command: "pytest -q", ExitCode: testExit, Stdout: "collected 40 items", Duration: 9 * time.Second},
			},
			StartedAt:  started,
			FinishedAt: started.Add(11 * time.Second),
		}
	}
	return &report.RunReport{
		RunID:            "bench-run",
		DescriptorDigest: report.DescriptorDigest(specs),
		Policy:           report.Policy{Concurrency: 4, FailFast: true},
		Outcomes:         outcomes,
		StartedAt:        started,
		FinishedAt:       started.Add(90 * time.Second),
	}
}

func BenchmarkMatrixfileParseCUE(b *testing.B) {
	data := []byte(sampleCUE)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := matrixfile.Parse(data, "matrix.cue"); err != nil {
			b.Fatalf("Parse() error = %v", err)
		}
	}
}

func BenchmarkMatrixfileParseYAML(b *testing.B) {
	data := []byte(sampleYAML)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := matrixfile.Parse(data, "matrix.yaml"); err != nil {
			b.Fatalf("Parse() error = %v", err)
		}
	}
}

func BenchmarkGenerateCUE(b *testing.B) {
	mf, err := matrixfile.Parse([]byte(sampleCUE), "matrix.cue")
	if err != nil {
		b.Fatalf("Parse() error = %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if out := matrixfile.GenerateCUE(mf); out == "" {
			b.Fatal("GenerateCUE() returned empty output")
		}
	}
}

func BenchmarkDescriptorExpand(b *testing.B) {
	desc := benchDescriptor()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := desc.Expand(); err != nil {
			b.Fatalf("Expand() error = %v", err)
		}
	}
}

func BenchmarkSpecTemplateExpansion(b *testing.B) {
	specs := benchSpecs(b)
	lines := []string{
		"docker pull python:{axis.version}-{axis.os}",
		"pytest -q --db {axis.db}",
		"echo {axis.version} on {axis.os} with {axis.db}",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		spec := specs[i%len(specs)]
		if _, err := spec.ExpandTemplates(lines); err != nil {
			b.Fatalf("ExpandTemplates() error = %v", err)
		}
	}
}

func BenchmarkDescriptorDigest(b *testing.B) {
	specs := benchSpecs(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if d := report.DescriptorDigest(specs); d == "" {
			b.Fatal("DescriptorDigest() returned empty digest")
		}
	}
}

func BenchmarkSummarize(b *testing.B) {
	r := benchReport(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		report.Summarize(r)
	}
}

func BenchmarkParseJUnitFile(b *testing.B) {
	path := filepath.Join(b.TempDir(), "junit.xml")
	if err := os.WriteFile(path, []byte(sampleJUnit), 0o644); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := report.ParseJUnitFile(path); err != nil {
			b.Fatalf("ParseJUnitFile() error = %v", err)
		}
	}
}

func BenchmarkWriteArtifacts(b *testing.B) {
	r := benchReport(b)
	dir := b.TempDir()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := report.WriteArtifacts(dir, r); err != nil {
			b.Fatalf("WriteArtifacts() error = %v", err)
		}
	}
}

func BenchmarkRunnerBuiltin(b *testing.B) {
	runner := execute.NewBuiltinRunner()
	ectx := &execute.ExecutionContext{WorkDir: b.TempDir(), Env: map[string]string{"CI": "1"}}
	cmd := execute.Command{Line: "echo ok"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res := runner.RunCommand(context.Background(), ectx, cmd, execute.Options{})
		if res.ExitCode != 0 {
			b.Fatalf("exit code = %d, stderr: %s", res.ExitCode, res.Stderr)
		}
	}
}

// BenchmarkSchedulerPipeline drives the whole provision-run-report path
// with a real workdir per cell and the builtin interpreter.
func BenchmarkSchedulerPipeline(b *testing.B) {
	desc := &matrix.Descriptor{Axes: []matrix.Axis{
		{Name: "version", Values: []string{"3.12", "3.13"}},
		{Name: "db", Values: []string{"sqlite", "postgres"}},
	}}
	commands := []execute.Command{{Line: "echo {axis.version}/{axis.db}"}}
	root := b.TempDir()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s := &schedule.Scheduler{
			Provisioner: provision.NewHostProvisioner(root, "bench-run"),
			Runner:      execute.NewBuiltinRunner(),
			RunID:       "bench-run",
		}
		r, err := s.Execute(context.Background(), desc, commands, schedule.Policy{Concurrency: 4, FailFast: true})
		if err != nil {
			b.Fatalf("Execute() error = %v", err)
		}
		if !r.Passed() {
			b.Fatalf("run failed: %s", r.RunID)
		}
	}
}
