// SPDX-License-Identifier: MPL-2.0

// Package benchmark provides benchmarks for PGO profile generation.
// These benchmarks cover the hot paths of a matrix run:
//   - Matrix file parsing and schema validation (CUE and YAML)
//   - Descriptor expansion and axis template substitution
//   - Descriptor digesting and report summarization
//   - Command execution through the builtin interpreter
//   - The full provision-run-report pipeline
//
// To generate a PGO profile, run:
//
//	go test -bench . -cpuprofile default.pgo ./internal/benchmark
package benchmark
