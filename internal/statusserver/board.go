// SPDX-License-Identifier: MPL-2.0

package statusserver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"matrun-cli/internal/matrix"
	"matrun-cli/internal/report"
	"matrun-cli/internal/schedule"
)

type (
	// Board is the live scoreboard of one matrix run. It implements
	// schedule.Observer, so the scheduler drives it directly from worker
	// goroutines; every method is safe for concurrent use.
	//
	// Sessions follow the board through Wait: each state change bumps an
	// internal version and wakes all waiters.
	Board struct {
		mu      sync.Mutex
		runID   string
		state   schedule.RunState
		rows    []boardRow
		byIndex map[int]int

		version uint64
		changed chan struct{}
	}

	// boardRow is the tracked state of one cell.
	boardRow struct {
		spec      matrix.Spec
		status    report.Status
		startedAt time.Time
		endedAt   time.Time
	}
)

// Rendering styles. ANSI-256 colors so the board degrades gracefully on
// plain terminals.
var (
	boardTitleStyle = lipgloss.NewStyle().Bold(true)
	boardDimStyle   = lipgloss.NewStyle().Faint(true)

	statusStyles = map[report.Status]lipgloss.Style{
		report.StatusPending:      lipgloss.NewStyle().Faint(true),
		report.StatusProvisioning: lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
		report.StatusRunning:      lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		report.StatusPassed:       lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		report.StatusFailed:       lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		report.StatusErrored:      lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		report.StatusSkipped:      lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	}

	// countsOrder fixes the order of the header tally so renders are stable.
	countsOrder = []report.Status{
		report.StatusPassed,
		report.StatusFailed,
		report.StatusErrored,
		report.StatusSkipped,
		report.StatusRunning,
		report.StatusProvisioning,
		report.StatusPending,
	}
)

// NewBoard creates an empty board for the given run.
func NewBoard(runID string) *Board {
	return &Board{
		runID:   runID,
		state:   schedule.RunNotStarted,
		byIndex: make(map[int]int),
		changed: make(chan struct{}),
	}
}

// SeedSpecs populates the board with one pending row per cell, in
// expansion order. Call it before the run starts so watchers see the whole
// matrix immediately instead of rows trickling in.
func (b *Board) SeedSpecs(specs []matrix.Spec) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, spec := range specs {
		b.rowFor(spec).status = report.StatusPending
	}
	b.bump()
}

// SeedReport populates the board from a finished run's report, for serving
// a scoreboard after the fact. The run state is set to completed.
func (b *Board) SeedReport(r *report.RunReport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runID = r.RunID
	b.state = schedule.RunCompleted
	for i := range r.Outcomes {
		o := &r.Outcomes[i]
		row := b.rowFor(o.Spec)
		row.status = o.Status
		row.startedAt = o.StartedAt
		row.endedAt = o.FinishedAt
	}
	b.bump()
}

// CellStateChanged implements schedule.Observer.
func (b *Board) CellStateChanged(spec matrix.Spec, _, to report.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	row := b.rowFor(spec)
	row.status = to
	switch {
	case to == report.StatusRunning && row.startedAt.IsZero():
		row.startedAt = time.Now()
	case to.Terminal() && row.endedAt.IsZero():
		row.endedAt = time.Now()
	}
	b.bump()
}

// RunStateChanged implements schedule.Observer.
func (b *Board) RunStateChanged(_, to schedule.RunState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = to
	b.bump()
}

// rowFor returns the row tracking the given cell, appending one if the
// cell has not been seen yet. Callers must hold b.mu.
func (b *Board) rowFor(spec matrix.Spec) *boardRow {
	if i, ok := b.byIndex[spec.Index]; ok {
		return &b.rows[i]
	}
	b.byIndex[spec.Index] = len(b.rows)
	b.rows = append(b.rows, boardRow{spec: spec, status: report.StatusPending})
	return &b.rows[len(b.rows)-1]
}

// bump wakes all waiters. Callers must hold b.mu.
func (b *Board) bump() {
	b.version++
	close(b.changed)
	b.changed = make(chan struct{})
}

// Version returns the board's current change counter.
func (b *Board) Version() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}

// Wait blocks until the board has changed since the given version or the
// context is done, and returns the current version. A return value equal
// to since means the wait was cancelled.
func (b *Board) Wait(ctx context.Context, since uint64) uint64 {
	b.mu.Lock()
	if b.version != since {
		v := b.version
		b.mu.Unlock()
		return v
	}
	ch := b.changed
	b.mu.Unlock()

	select {
	case <-ch:
		return b.Version()
	case <-ctx.Done():
		return since
	}
}

// RunState returns the run's current lifecycle state.
func (b *Board) RunState() schedule.RunState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Counts returns how many cells are in each status. Absent statuses are
// omitted.
func (b *Board) Counts() map[report.Status]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	counts := make(map[report.Status]int)
	for i := range b.rows {
		counts[b.rows[i].status]++
	}
	return counts
}

// Render returns the styled scoreboard: a header with the run identity and
// tally, then one row per cell in expansion order.
func (b *Board) Render() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out strings.Builder

	title := "matrun"
	if b.runID != "" {
		title += " " + b.runID
	}
	out.WriteString(boardTitleStyle.Render(title))
	out.WriteString(boardDimStyle.Render(" · " + b.state.String()))
	out.WriteString("\n")

	if tally := b.renderTally(); tally != "" {
		out.WriteString(tally)
		out.WriteString("\n")
	}
	out.WriteString("\n")

	if len(b.rows) == 0 {
		out.WriteString(boardDimStyle.Render("no cells yet"))
		out.WriteString("\n")
		return out.String()
	}

	idWidth := len("CELL")
	for i := range b.rows {
		if w := len(b.rows[i].spec.ID()); w > idWidth {
			idWidth = w
		}
	}

	out.WriteString(boardDimStyle.Render(fmt.Sprintf("  %-*s  %-12s  %s", idWidth, "CELL", "STATUS", "ELAPSED")))
	out.WriteString("\n")
	for i := range b.rows {
		row := &b.rows[i]
		status := statusStyles[row.status].Render(fmt.Sprintf("%-12s", row.status))
		out.WriteString(fmt.Sprintf("  %-*s  %s  %s\n", idWidth, row.spec.ID(), status, row.elapsed()))
	}
	return out.String()
}

// renderTally builds the "3 passed · 1 failed" header line. Callers must
// hold b.mu.
func (b *Board) renderTally() string {
	counts := make(map[report.Status]int)
	for i := range b.rows {
		counts[b.rows[i].status]++
	}
	parts := make([]string, 0, len(counts))
	for _, st := range countsOrder {
		if n := counts[st]; n > 0 {
			parts = append(parts, statusStyles[st].Render(fmt.Sprintf("%d %s", n, st)))
		}
	}
	return strings.Join(parts, boardDimStyle.Render(" · "))
}

// elapsed formats the row's wall-clock column.
func (r *boardRow) elapsed() string {
	switch {
	case !r.endedAt.IsZero() && !r.startedAt.IsZero():
		return r.endedAt.Sub(r.startedAt).Round(100 * time.Millisecond).String()
	case !r.startedAt.IsZero():
		return time.Since(r.startedAt).Round(100 * time.Millisecond).String()
	default:
		return "-"
	}
}
