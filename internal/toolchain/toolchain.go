// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/mod/semver"

	"matrun-cli/internal/execute"
)

var (
	// ErrToolchain is the sentinel all toolchain pre-step failures wrap.
	// A failed pre-step aborts the run before any cell is provisioned.
	ErrToolchain = errors.New("toolchain pre-step failed")

	// ErrVersionNotFound means the probe ran but its output contained
	// nothing that parses as a version, while a minimum version is
	// configured.
	ErrVersionNotFound = errors.New("no version found in probe output")

	// versionPattern matches the first version-shaped token in probe
	// output, e.g. "GHDL 4.1.0 (tarball)" or "Python 3.11.9".
	versionPattern = regexp.MustCompile(`v?(\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z.-]+)?)`)
)

type (
	// Config describes the global toolchain requirement.
	Config struct {
		// Probe is the command whose output carries the tool version, e.g.
		// "ghdl --version". Empty disables the pre-step entirely.
		Probe string `json:"probe,omitempty" mapstructure:"probe"`
		// MinVersion gates the run; empty accepts any probed version.
		MinVersion string `json:"minVersion,omitempty" mapstructure:"minVersion"`
		// Install is run once when the probe fails, then the probe is
		// retried. Empty means a failing probe is fatal immediately.
		Install string `json:"install,omitempty" mapstructure:"install"`
		// Timeout bounds each toolchain command; zero means no limit.
		Timeout time.Duration `json:"timeout,omitempty" mapstructure:"timeout"`
	}

	// Info is the cached pre-step result.
	Info struct {
		// Version is the parsed tool version, without a "v" prefix. Empty
		// when no minimum version is configured and none was parsed.
		Version string
		// RawOutput is the probe's captured stdout.
		RawOutput string
		// Installed marks that the install command had to run.
		Installed bool
	}

	// ProbeError reports a toolchain command that did not succeed, with its
	// captured output for the summary.
	ProbeError struct {
		Cmd    string
		Output string
	}

	// VersionTooOldError reports a probed version below the configured
	// minimum.
	VersionTooOldError struct {
		Probe      string
		Version    string
		MinVersion string
	}

	// Ensurer runs the pre-step once and caches the outcome.
	Ensurer struct {
		Config Config
		Runner execute.Runner
		Logger *log.Logger

		once sync.Once
		info *Info
		err  error
	}
)

// Error implements the error interface.
func (e *ProbeError) Error() string {
	return fmt.Sprintf("toolchain command %q failed", e.Cmd)
}

// Unwrap ties probe failures to the package sentinel.
func (e *ProbeError) Unwrap() error { return ErrToolchain }

// Error implements the error interface.
func (e *VersionTooOldError) Error() string {
	return fmt.Sprintf("toolchain %q version %s is below the required %s", e.Probe, e.Version, e.MinVersion)
}

// Unwrap ties version gate failures to the package sentinel.
func (e *VersionTooOldError) Unwrap() error { return ErrToolchain }

// Validate checks that the configured minimum version is well-formed.
func (c Config) Validate() error {
	if c.MinVersion == "" {
		return nil
	}
	if _, err := normalizeVersion(c.MinVersion); err != nil {
		return err
	}
	if c.Probe == "" {
		return errors.New("minVersion requires a probe command")
	}
	return nil
}

// Ensure runs the toolchain pre-step exactly once. Every later call,
// including from other goroutines, returns the first call's result.
func (e *Ensurer) Ensure(ctx context.Context) (*Info, error) {
	e.once.Do(func() {
		e.info, e.err = e.ensure(ctx)
	})
	return e.info, e.err
}

func (e *Ensurer) ensure(ctx context.Context) (*Info, error) {
	if e.Config.Probe == "" {
		return &Info{}, nil
	}

	info := &Info{}
	res := e.runStep(ctx, e.Config.Probe)
	if res.Failed() && e.Config.Install != "" {
		e.logf().Info("toolchain probe failed, installing", "probe", e.Config.Probe, "install", e.Config.Install)
		install := e.runStep(ctx, e.Config.Install)
		if install.Failed() {
			return nil, &ProbeError{Cmd: e.Config.Install, Output: combineOutput(install)}
		}
		info.Installed = true
		res = e.runStep(ctx, e.Config.Probe)
	}
	if res.Failed() {
		return nil, &ProbeError{Cmd: e.Config.Probe, Output: combineOutput(res)}
	}

	info.RawOutput = res.Stdout
	info.Version = ParseVersion(res.Stdout)
	if e.Config.MinVersion == "" {
		return info, nil
	}
	if info.Version == "" {
		return nil, fmt.Errorf("%w: %w (probe %q)", ErrToolchain, ErrVersionNotFound, e.Config.Probe)
	}

	got, err := normalizeVersion(info.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrToolchain, err)
	}
	want, err := normalizeVersion(e.Config.MinVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrToolchain, err)
	}
	if semver.Compare(got, want) < 0 {
		return nil, &VersionTooOldError{Probe: e.Config.Probe, Version: info.Version, MinVersion: e.Config.MinVersion}
	}
	e.logf().Debug("toolchain ready", "probe", e.Config.Probe, "version", info.Version)
	return info, nil
}

func (e *Ensurer) runStep(ctx context.Context, line string) *execute.CommandResult {
	return e.Runner.RunCommand(ctx, &execute.ExecutionContext{}, execute.Command{Line: line}, execute.Options{Timeout: e.Config.Timeout})
}

func (e *Ensurer) logf() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

// ParseVersion extracts the first version-shaped token from probe output.
// Returns "" when nothing matches.
func ParseVersion(output string) string {
	m := versionPattern.FindStringSubmatch(output)
	if m == nil {
		return ""
	}
	return m[1]
}

// normalizeVersion gives the version the "v" prefix the semver package
// requires and validates the result.
func normalizeVersion(v string) (string, error) {
	norm := v
	if !strings.HasPrefix(norm, "v") {
		norm = "v" + norm
	}
	if !semver.IsValid(norm) {
		return "", fmt.Errorf("invalid version %q", v)
	}
	return norm, nil
}

func combineOutput(res *execute.CommandResult) string {
	switch {
	case res.Stdout == "":
		return res.Stderr
	case res.Stderr == "":
		return res.Stdout
	default:
		return res.Stdout + "\n" + res.Stderr
	}
}
