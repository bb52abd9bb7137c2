// SPDX-License-Identifier: MPL-2.0

// Package issue catalogs the user-facing failures matrun can hit before
// or around a run, with rendered markdown guidance for each, and provides
// the ActionableError builder used to attach operation, resource, and
// suggestions to wrapped errors.
package issue
