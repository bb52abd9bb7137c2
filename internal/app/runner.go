// SPDX-License-Identifier: MPL-2.0

package app

import (
	"matrun-cli/internal/container"
	"matrun-cli/internal/execute"
	"matrun-cli/pkg/matrixfile"
)

// hostRunner picks the execution backend for host isolation: the native
// shell when one is usable, otherwise the embedded interpreter.
func hostRunner() execute.Runner {
	if native := execute.NewNativeRunner(); native.Available() {
		return native
	}
	return execute.NewBuiltinRunner()
}

// buildRunner constructs the command runner for the resolved isolation.
// For container isolation the engine is probed here, so an unusable
// engine fails the run before any cell starts.
func buildRunner(sel IsolationSelection) (execute.Runner, error) {
	if sel.Mode() != matrixfile.IsolationContainer {
		return hostRunner(), nil
	}
	engine, err := container.NewEngine(container.EngineType(sel.Engine()))
	if err != nil {
		return nil, err
	}
	r := container.NewRunner(engine, sel.Image())
	r.Network = sel.Network()
	return r, nil
}
