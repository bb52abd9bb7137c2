// SPDX-License-Identifier: MPL-2.0

// Package schedule runs every cell of an expanded matrix through its
// provision, execute and teardown phases on a bounded worker pool.
//
// Outcomes land in an index-addressed array so the final report is always in
// descriptor expansion order, whatever the completion timing. Fail-fast
// preempts cells that have not started yet; cells already provisioning or
// running are left to finish. Teardown runs exactly once per successful
// setup, including when a cell fails mid-run.
package schedule
