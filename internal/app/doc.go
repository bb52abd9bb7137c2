// SPDX-License-Identifier: MPL-2.0

// Package app orchestrates one matrix run end to end: it loads the matrix
// file, applies the trigger gate, layers the scheduling policy from flags,
// file and config, runs the toolchain pre-step, and hands the expanded
// matrix to the scheduler. It decouples CLI-layer flag handling from the
// run pipeline so commands stay thin.
package app
