// SPDX-License-Identifier: MPL-2.0

// Package matrix defines the environment descriptor for a test matrix and
// its expansion into concrete cells.
//
// A Descriptor is an ordered list of axes (name + value list). Expand
// produces the cross-product of all axis values as an ordered list of Spec
// values, one per matrix cell. Expansion is pure and deterministic: the same
// descriptor always yields the same cells in the same order (row-major over
// axis order, then value order), so cell index N refers to the same cell in
// every run and report.
//
// Command templates may reference axis values with {axis.<name>}
// placeholders; see template.go.
package matrix
