// SPDX-License-Identifier: MPL-2.0

// Package statusserver exposes a running matrix over SSH as a read-only,
// live-updating scoreboard.
//
// The Server is a Wish SSH server guarded by token-based password
// authentication. Each authenticated session sees the current Board: one
// row per matrix cell with its status and elapsed time. Sessions with a
// PTY are refreshed whenever the run progresses; sessions without one
// receive a single snapshot and disconnect.
//
// The Board doubles as a schedule.Observer, so the scheduler feeds it
// directly. Server lifecycle (start, ready, stop, failure) is managed by
// the serverbase state machine.
package statusserver
