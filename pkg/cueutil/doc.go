// SPDX-License-Identifier: MPL-2.0

// Package cueutil centralizes the schema-validated CUE parsing used for
// matrix files and application configuration.
//
// Every CUE document matrun reads goes through the same flow: compile the
// embedded schema, compile the user's file, unify the two, validate, and
// decode into a Go struct. ParseAndDecode captures that flow once, generic
// over the target type:
//
//	res, err := cueutil.ParseAndDecode[matrixfile.Matrixfile](
//		schemaBytes, data, "#Matrixfile",
//		cueutil.WithFilename("matrix.cue"),
//	)
//
// Validation failures come back as ValidationError values carrying the file
// path and a JSON-style path to the offending field, so callers can print
// messages like:
//
//	matrix.cue: axes.version[2]: conflicting values 3.12 and string
package cueutil
