// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"

	"matrun-cli/internal/execute"
	"matrun-cli/internal/testutil"
)

const integrationImage = "alpine:latest"

// checkTestcontainersAvailable safely checks if testcontainers can be used.
// Returns true if containers are available, false otherwise.
func checkTestcontainersAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer provider.Close()
	return true
}

// TestEngineIntegration exercises the container runner against a real
// engine. It requires Docker or Podman to be available and is skipped
// otherwise.
func TestEngineIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	// Probe with our own engine detection first; it is more robust than
	// testcontainers-go's detection, which can panic.
	engine, err := AutoDetect()
	if err != nil {
		t.Skipf("skipping container integration tests: %v", err)
	}
	if !checkTestcontainersAvailable() {
		t.Skip("skipping container integration tests: testcontainers provider not available")
	}

	sem := testutil.ContainerSemaphore()
	sem <- struct{}{}
	defer func() { <-sem }()

	t.Run("BasicExecution", func(t *testing.T) { testEngineBasicExecution(t, engine) })
	t.Run("EngineProbes", func(t *testing.T) { testEngineProbes(t, engine) })
	t.Run("CellEnvironment", func(t *testing.T) { testEngineCellEnvironment(t, engine) })
	t.Run("ImagePlaceholder", func(t *testing.T) { testEngineImagePlaceholder(t, engine) })
	t.Run("WorkdirMount", func(t *testing.T) { testEngineWorkdirMount(t, engine) })
	t.Run("ExitCode", func(t *testing.T) { testEngineExitCode(t, engine) })
	t.Run("CommandTimeout", func(t *testing.T) { testEngineCommandTimeout(t, engine) })
}

func testEngineBasicExecution(t *testing.T, engine Engine) {
	runner := NewRunner(engine, integrationImage)
	ectx := &execute.ExecutionContext{Env: map[string]string{}}

	res := runner.RunCommand(context.Background(), ectx, execute.Command{Line: "echo hello from the cell"}, execute.Options{})
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d, stderr: %s", res.ExitCode, res.Stderr)
	}
	if got := strings.TrimSpace(res.Stdout); got != "hello from the cell" {
		t.Errorf("stdout = %q, want %q", got, "hello from the cell")
	}
}

func testEngineProbes(t *testing.T, engine Engine) {
	ctx := context.Background()
	v, err := engine.Version(ctx)
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if v == "" {
		t.Error("Version() returned an empty string")
	}
	// BasicExecution already ran the image, so it must be present now.
	if !engine.ImageExists(ctx, integrationImage) {
		t.Errorf("ImageExists(%q) = false after a successful run", integrationImage)
	}
}

func testEngineCellEnvironment(t *testing.T, engine Engine) {
	runner := NewRunner(engine, integrationImage)
	ectx := &execute.ExecutionContext{Env: map[string]string{
		"MATRUN_VERSION": "3.12",
		"MATRUN_CELL_ID": "version=3.12",
	}}

	res := runner.RunCommand(context.Background(), ectx, execute.Command{Line: `echo "cell=$MATRUN_CELL_ID version=$MATRUN_VERSION"`}, execute.Options{})
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d, stderr: %s", res.ExitCode, res.Stderr)
	}
	if got := strings.TrimSpace(res.Stdout); got != "cell=version=3.12 version=3.12" {
		t.Errorf("stdout = %q", got)
	}
}

func testEngineImagePlaceholder(t *testing.T, engine Engine) {
	runner := NewRunner(engine, "{axis.distro}:latest")
	ectx := &execute.ExecutionContext{Env: map[string]string{"MATRUN_DISTRO": "alpine"}}

	res := runner.RunCommand(context.Background(), ectx, execute.Command{Line: "echo resolved"}, execute.Options{})
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d, stderr: %s", res.ExitCode, res.Stderr)
	}
	if got := strings.TrimSpace(res.Stdout); got != "resolved" {
		t.Errorf("stdout = %q, want %q", got, "resolved")
	}
}

func testEngineWorkdirMount(t *testing.T, engine Engine) {
	host := t.TempDir()
	if err := os.WriteFile(filepath.Join(host, "marker.txt"), []byte("mounted\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := NewRunner(engine, integrationImage)
	ectx := &execute.ExecutionContext{WorkDir: host, Env: map[string]string{}}

	res := runner.RunCommand(context.Background(), ectx, execute.Command{Line: "cat marker.txt && echo collected > result.txt"}, execute.Options{})
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d, stderr: %s", res.ExitCode, res.Stderr)
	}
	if got := strings.TrimSpace(res.Stdout); got != "mounted" {
		t.Errorf("stdout = %q, want %q", got, "mounted")
	}

	// The bind mount must carry files written by the command back to the
	// host, which is how results files get collected after a cell.
	data, err := os.ReadFile(filepath.Join(host, "result.txt"))
	if err != nil {
		t.Fatalf("result file not visible on the host: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != "collected" {
		t.Errorf("result file = %q, want %q", got, "collected")
	}
}

func testEngineExitCode(t *testing.T, engine Engine) {
	runner := NewRunner(engine, integrationImage)
	ectx := &execute.ExecutionContext{Env: map[string]string{}}

	res := runner.RunCommand(context.Background(), ectx, execute.Command{Line: "exit 7"}, execute.Options{})
	if res.ExitCode != 7 {
		t.Errorf("exit code = %d, want 7", res.ExitCode)
	}
	if !res.Failed() {
		t.Error("Failed() = false for a non-zero exit")
	}
}

func testEngineCommandTimeout(t *testing.T, engine Engine) {
	runner := NewRunner(engine, integrationImage)
	ectx := &execute.ExecutionContext{Env: map[string]string{}}

	res := runner.RunCommand(context.Background(), ectx, execute.Command{Line: "sleep 30"}, execute.Options{Timeout: 2 * time.Second})
	if !res.TimedOut {
		t.Fatalf("TimedOut = false, exit code = %d", res.ExitCode)
	}
	if res.ExitCode != execute.ExitCodeTimeout {
		t.Errorf("exit code = %d, want %d", res.ExitCode, execute.ExitCodeTimeout)
	}
}
