// SPDX-License-Identifier: MPL-2.0

// Package execute runs a cell's command sequence and captures the results.
//
// Two runner implementations are available:
//   - native: executes commands using the host shell (bash/sh/PowerShell)
//   - builtin: executes commands using an embedded shell interpreter
//     (mvdan/sh) with a small registry of built-in utilities, for hosts
//     without a usable system shell
//
// Both implement the Runner interface with Name(), Available(), Validate(),
// and RunCommand(). RunSequence drives a full command list with
// short-circuit semantics: the first failing command stops the sequence and
// later commands are never started.
//
// Every command's environment is the ambient process environment (with
// MATRUN_* variables filtered out) plus the cell environment, cell values
// winning on name collision. stdout and stderr are captured in separate
// buffers; commands requesting a PTY get a combined stream in the stdout
// slot instead.
package execute
