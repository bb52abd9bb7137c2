// SPDX-License-Identifier: MPL-2.0

// Package store uploads run artifacts to an S3-compatible object store.
// Uploading is strictly optional: a run without a configured store writes
// its artifacts to the local artifact directory and stops there.
package store
