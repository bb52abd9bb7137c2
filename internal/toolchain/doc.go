// SPDX-License-Identifier: MPL-2.0

// Package toolchain runs the global pre-step that must succeed before any
// cell is provisioned: probe the shared tool (simulator, compiler), install
// it when a probe fails and an install command is configured, and gate the
// run on a minimum version. The pre-step runs exactly once per process;
// every caller after the first observes the cached result.
package toolchain
