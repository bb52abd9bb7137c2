// SPDX-License-Identifier: MPL-2.0

// Package report defines the outcome model for a matrix run and everything
// that consumes it: per-cell outcomes in descriptor order, the aggregate run
// report, terminal and console summaries, results-file rollups, and the
// persisted report.json used for archival and rerun selection.
//
// The scheduler produces a RunReport; this package never runs anything
// itself. Summarize is the single mapping from a report to the process exit
// code.
package report
