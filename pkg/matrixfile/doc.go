// SPDX-License-Identifier: MPL-2.0

// Package matrixfile defines the matrix file document model and its
// loaders. A matrix file declares the axes to sweep, the commands to run
// in every cell, and the run policy; it can be written in CUE (validated
// against the embedded schema), YAML, or TOML, with all three formats
// converging on the same validated Matrixfile value.
//
// The package is a leaf: it models the document and validates its
// structure, but knows nothing about expansion, provisioning, or
// execution.
package matrixfile
