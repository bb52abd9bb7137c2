// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"errors"
	"strings"
)

// Matrixfile is a fully decoded matrix file. Load and ParseBytes return
// values that already passed IsValid; construct one by hand only in
// tests.
type Matrixfile struct {
	// Name labels the run in reports. Optional.
	Name string `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`

	// Axes is the ordered list of dimensions to sweep. Empty means a
	// single default cell.
	Axes []Axis `json:"axes,omitempty" yaml:"axes,omitempty" toml:"axes,omitempty"`

	// Commands run in order inside every cell.
	Commands []Command `json:"commands" yaml:"commands" toml:"commands"`

	// Concurrency caps how many cells run at once. Nil defers to the
	// app configuration.
	Concurrency *int `json:"concurrency,omitempty" yaml:"concurrency,omitempty" toml:"concurrency,omitempty"`

	// FailFast stops scheduling new cells after the first failure.
	// Nil defers to the app configuration.
	FailFast *bool `json:"failFast,omitempty" yaml:"failFast,omitempty" toml:"failFast,omitempty"`

	// PerCommandTimeout bounds each command, as a Go duration string.
	PerCommandTimeout string `json:"perCommandTimeout,omitempty" yaml:"perCommandTimeout,omitempty" toml:"perCommandTimeout,omitempty"`

	Isolation *IsolationConfig `json:"isolation,omitempty" yaml:"isolation,omitempty" toml:"isolation,omitempty"`

	// Env entries are set in every cell and may reference axis values
	// with {axis.<name>}.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty" toml:"env,omitempty"`

	// PathVars prepend entries to PATH-like variables. ListVars carry
	// plain list-valued variables. Both join with the platform list
	// separator.
	PathVars map[string][]string `json:"pathVars,omitempty" yaml:"pathVars,omitempty" toml:"pathVars,omitempty"`
	ListVars map[string][]string `json:"listVars,omitempty" yaml:"listVars,omitempty" toml:"listVars,omitempty"`

	// Source names a directory copied into each cell's working
	// directory before anything runs.
	Source string `json:"source,omitempty" yaml:"source,omitempty" toml:"source,omitempty"`

	// Install runs once per cell after staging, before the commands.
	Install string `json:"install,omitempty" yaml:"install,omitempty" toml:"install,omitempty"`

	Toolchain *ToolchainConfig `json:"toolchain,omitempty" yaml:"toolchain,omitempty" toml:"toolchain,omitempty"`
	Triggers  *TriggerConfig   `json:"triggers,omitempty"  yaml:"triggers,omitempty"  toml:"triggers,omitempty"`

	// ResultsGlob matches JUnit XML files inside a cell's working
	// directory, relative to it.
	ResultsGlob string `json:"resultsGlob,omitempty" yaml:"resultsGlob,omitempty" toml:"resultsGlob,omitempty"`

	// FilePath is where the document was loaded from. Not part of the
	// document itself.
	FilePath string `json:"-" yaml:"-" toml:"-"`
}

// ValidationErrors aggregates every problem found in a document so users
// can fix all of them in one pass.
type ValidationErrors []error

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "\n")
}

func (e ValidationErrors) Unwrap() []error { return e }

// AxisNames returns the axis names in declaration order.
func (m *Matrixfile) AxisNames() []string {
	names := make([]string, 0, len(m.Axes))
	for _, axis := range m.Axes {
		names = append(names, axis.Name)
	}
	return names
}

// CommandLines returns just the shell lines of the command list.
func (m *Matrixfile) CommandLines() []string {
	lines := make([]string, 0, len(m.Commands))
	for _, cmd := range m.Commands {
		lines = append(lines, cmd.Line)
	}
	return lines
}

// CellCount is the number of cells the matrix expands to: the product
// of the axis value counts, or one for an empty matrix.
func (m *Matrixfile) CellCount() int {
	count := 1
	for _, axis := range m.Axes {
		count *= len(axis.Values)
	}
	return count
}

// TriggeredBy reports whether a run started for the given event and
// branch should proceed. A document without a triggers block always
// proceeds.
func (m *Matrixfile) TriggeredBy(event EventKind, branch string) bool {
	return m.Triggers.Gates(event, branch)
}

// IsValid reports whether the document can drive a run, along with
// every reason it cannot.
func (m *Matrixfile) IsValid() (bool, []error) {
	var errs []error

	seen := make(map[string]bool, len(m.Axes))
	for _, axis := range m.Axes {
		if ok, axisErrs := axis.IsValid(); !ok {
			errs = append(errs, axisErrs...)
		}
		if axis.Name != "" && seen[axis.Name] {
			errs = append(errs, &InvalidAxisError{Name: axis.Name, Reason: "declared twice"})
		}
		seen[axis.Name] = true
	}

	if len(m.Commands) == 0 {
		errs = append(errs, &InvalidCommandError{Reason: "commands list is empty"})
	}
	for i, cmd := range m.Commands {
		if ok, cmdErrs := cmd.IsValid(); !ok {
			for _, err := range cmdErrs {
				var cmdErr *InvalidCommandError
				if errors.As(err, &cmdErr) {
					cmdErr.Index = i
				}
			}
			errs = append(errs, cmdErrs...)
		}
	}

	if m.Concurrency != nil && *m.Concurrency < 1 {
		errs = append(errs, &InvalidPolicyError{Field: "concurrency", Reason: "must be at least 1"})
	}
	if _, err := m.PerCommandTimeoutDuration(); err != nil {
		errs = append(errs, &InvalidPolicyError{Field: "perCommandTimeout", Reason: err.Error()})
	}

	if ok, isoErrs := m.Isolation.IsValid(); !ok {
		errs = append(errs, isoErrs...)
	}
	if ok, trigErrs := m.Triggers.IsValid(); !ok {
		errs = append(errs, trigErrs...)
	}
	if ok, tcErrs := m.Toolchain.IsValid(); !ok {
		errs = append(errs, tcErrs...)
	}

	for _, name := range sortedKeys(m.PathVars) {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, &InvalidPolicyError{Field: "pathVars", Reason: "variable name is empty"})
		}
	}
	for _, name := range sortedKeys(m.ListVars) {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, &InvalidPolicyError{Field: "listVars", Reason: "variable name is empty"})
		}
	}

	return len(errs) == 0, errs
}
