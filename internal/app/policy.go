// SPDX-License-Identifier: MPL-2.0

package app

import (
	"matrun-cli/internal/config"
	"matrun-cli/internal/schedule"
	"matrun-cli/pkg/matrixfile"
)

// IsolationSelection is the resolved isolation for a run. Fields are
// unexported for immutability; construct one through ResolveIsolation.
type IsolationSelection struct {
	mode    matrixfile.IsolationMode
	image   string
	engine  config.ContainerEngine
	network string
}

// Mode returns the resolved isolation mode.
func (s IsolationSelection) Mode() matrixfile.IsolationMode { return s.mode }

// Image returns the container image reference, possibly still carrying
// {axis.<name>} placeholders. Empty under host isolation.
func (s IsolationSelection) Image() string { return s.image }

// Engine returns the preferred container engine.
func (s IsolationSelection) Engine() config.ContainerEngine { return s.engine }

// Network returns the container network, empty for the engine default.
func (s IsolationSelection) Network() string { return s.network }

// ResolvePolicy layers the scheduling policy from its sources:
//  1. explicit overrides (hard fail when invalid)
//  2. the matrix file
//  3. the app config
//
// A source that leaves a field unset falls through to the next; the
// scheduler defaults (one worker, fail-fast, no timeout) are the floor.
func ResolvePolicy(opts *Options, mf *matrixfile.Matrixfile, cfg *config.Config) (schedule.Policy, error) {
	policy := schedule.DefaultPolicy()

	if cfg != nil {
		if cfg.Concurrency >= 1 {
			policy.Concurrency = cfg.Concurrency
		}
		policy.FailFast = cfg.FailFast
		d, err := cfg.PerCommandTimeoutDuration()
		if err != nil {
			return schedule.Policy{}, err
		}
		policy.PerCommandTimeout = d
	}

	if mf != nil {
		if mf.Concurrency != nil {
			policy.Concurrency = *mf.Concurrency
		}
		if mf.FailFast != nil {
			policy.FailFast = *mf.FailFast
		}
		if mf.PerCommandTimeout != "" {
			d, err := mf.PerCommandTimeoutDuration()
			if err != nil {
				return schedule.Policy{}, err
			}
			policy.PerCommandTimeout = d
		}
	}

	if opts.Concurrency != nil {
		if *opts.Concurrency < 1 {
			return schedule.Policy{}, &InvalidOverrideError{Flag: "concurrency", Reason: "must be at least 1"}
		}
		policy.Concurrency = *opts.Concurrency
	}
	if opts.FailFast != nil {
		policy.FailFast = *opts.FailFast
	}
	if opts.PerCommandTimeout != nil {
		if *opts.PerCommandTimeout < 0 {
			return schedule.Policy{}, &InvalidOverrideError{Flag: "timeout", Reason: "must not be negative"}
		}
		policy.PerCommandTimeout = *opts.PerCommandTimeout
	}

	return policy, nil
}

// ResolveIsolation applies isolation precedence:
//  1. the override, when non-empty (hard fail when unknown)
//  2. the matrix file's isolation block
//  3. host isolation
//
// The engine preference layers independently: the matrix file's engine
// wins over the config's, which wins over docker. Image and network only
// ever come from the matrix file.
func ResolveIsolation(override string, mf *matrixfile.Matrixfile, cfg *config.Config) (IsolationSelection, error) {
	sel := IsolationSelection{mode: matrixfile.IsolationHost, engine: config.ContainerEngineDocker}

	if cfg != nil && cfg.ContainerEngine != "" {
		if ok, errs := cfg.ContainerEngine.IsValid(); !ok {
			return IsolationSelection{}, errs[0]
		}
		sel.engine = cfg.ContainerEngine
	}

	if mf != nil && mf.Isolation != nil {
		sel.mode = mf.Isolation.Mode
		sel.image = mf.Isolation.Image
		sel.network = mf.Isolation.Network
		if mf.Isolation.Engine != "" {
			sel.engine = config.ContainerEngine(mf.Isolation.Engine)
		}
	}

	if override != "" {
		mode := matrixfile.IsolationMode(override)
		if ok, errs := mode.IsValid(); !ok {
			return IsolationSelection{}, errs[0]
		}
		sel.mode = mode
	}

	if sel.mode == matrixfile.IsolationContainer && sel.image == "" {
		return IsolationSelection{}, &InvalidOverrideError{Flag: "isolation", Reason: "container isolation needs an image in the matrix file"}
	}
	return sel, nil
}
