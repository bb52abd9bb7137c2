// SPDX-License-Identifier: MPL-2.0

// Package serverbase provides a reusable state machine and lifecycle infrastructure
// for long-running server components such as the status server.
//
// It covers the patterns every server needs: atomic state reads,
// mutex-protected transitions, WaitGroup tracking, and context-based
// cancellation.
package serverbase
