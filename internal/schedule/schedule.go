// SPDX-License-Identifier: MPL-2.0

package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"matrun-cli/internal/execute"
	"matrun-cli/internal/matrix"
	"matrun-cli/internal/provision"
	"matrun-cli/internal/report"
	"matrun-cli/internal/testutil"
)

// Run lifecycle states.
const (
	RunNotStarted RunState = "not_started"
	RunInProgress RunState = "in_progress"
	RunCompleted  RunState = "completed"
)

// ErrRunnerUnavailable is returned by Execute when the configured runner
// cannot execute on this host (for example, no usable shell).
var ErrRunnerUnavailable = errors.New("command runner unavailable on this host")

type (
	// RunState is the lifecycle state of a whole run.
	RunState string

	// Policy bounds how the matrix is scheduled.
	Policy struct {
		// Concurrency is the worker count. Values below 1 are clamped to 1.
		Concurrency int
		// FailFast preempts cells that have not started once any cell fails.
		FailFast bool
		// PerCommandTimeout limits each command's wall-clock time; zero means
		// no limit.
		PerCommandTimeout time.Duration
	}

	// Observer receives state transitions as they happen. Callbacks fire
	// from worker goroutines; implementations must be safe for concurrent
	// use and must not block.
	Observer interface {
		CellStateChanged(spec matrix.Spec, from, to report.Status)
		RunStateChanged(from, to RunState)
	}

	// Scheduler drives one matrix run. Provisioner and Runner are required;
	// everything else is optional.
	Scheduler struct {
		Provisioner provision.Provisioner
		Runner      execute.Runner
		// RunID labels the run in reports and cell environments.
		RunID string
		// Grace is the delay between SIGTERM and SIGKILL on timeout.
		Grace time.Duration
		// Reuse maps cell indexes to outcomes carried over from a previous
		// run; those cells are never dispatched.
		Reuse map[int]report.EnvironmentOutcome
		// PostRun, when set, runs after a cell's commands all passed and
		// before its workdir is torn down. It may amend the outcome, e.g.
		// demote it to failed from a results-file rollup.
		PostRun  func(ctx context.Context, workDir string, outcome *report.EnvironmentOutcome)
		Observer Observer
		Logger   *log.Logger
		// Clock supplies run and cell timestamps. Nil means system time.
		Clock testutil.Clock
	}

	// cellTransition is an observer event captured under the run lock and
	// emitted after it is released.
	cellTransition struct {
		spec     matrix.Spec
		from, to report.Status
	}

	// runState is the mutable heart of one Execute call. Workers write only
	// their own outcome index; statuses and the fail-fast latch are guarded
	// by mu.
	runState struct {
		mu       sync.Mutex
		statuses []report.Status
		outcomes []report.EnvironmentOutcome
		tripped  bool
	}
)

// String returns the string representation of the RunState.
func (s RunState) String() string { return string(s) }

// normalized clamps the policy to its documented bounds.
func (p Policy) normalized() Policy {
	if p.Concurrency < 1 {
		p.Concurrency = 1
	}
	return p
}

// DefaultPolicy is one worker with fail-fast on and no command timeout.
func DefaultPolicy() Policy {
	return Policy{Concurrency: 1, FailFast: true}
}

// Execute runs every cell of the descriptor's expansion and returns the
// aggregate report. The error return covers configuration-level problems
// only (invalid descriptor, unknown template axis, unusable runner);
// per-cell failures are recorded in the report, never returned.
func (s *Scheduler) Execute(ctx context.Context, desc *matrix.Descriptor, commands []execute.Command, policy Policy) (*report.RunReport, error) {
	policy = policy.normalized()

	specs, err := desc.Expand()
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(commands))
	for i, cmd := range commands {
		lines[i] = cmd.Line
	}
	if err := desc.CheckTemplates(lines); err != nil {
		return nil, err
	}
	if s.Runner == nil || !s.Runner.Available() {
		return nil, fmt.Errorf("%w: %s", ErrRunnerUnavailable, s.runnerName())
	}

	startedAt := s.now()
	st := &runState{
		statuses: make([]report.Status, len(specs)),
		outcomes: make([]report.EnvironmentOutcome, len(specs)),
	}
	for i := range specs {
		st.statuses[i] = report.StatusPending
		st.outcomes[i] = report.EnvironmentOutcome{Spec: specs[i], Status: report.StatusPending}
	}
	for idx, out := range s.Reuse {
		if idx < 0 || idx >= len(specs) {
			continue
		}
		out.Spec = specs[idx]
		out.Reused = true
		st.statuses[idx] = out.Status
		st.outcomes[idx] = out
		s.emitCell(specs[idx], report.StatusPending, out.Status)
	}

	s.emitRun(RunNotStarted, RunInProgress)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < policy.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				s.runCell(ctx, st, i, commands, policy)
			}
		}()
	}
	for i := range specs {
		if _, reused := s.Reuse[i]; reused {
			continue
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	// Anything still pending at this point was never dispatched (context
	// cancellation between feed and claim).
	st.mu.Lock()
	var leftovers []cellTransition
	for i := range st.statuses {
		if st.statuses[i] == report.StatusPending {
			st.statuses[i] = report.StatusSkipped
			st.outcomes[i].Status = report.StatusSkipped
			leftovers = append(leftovers, cellTransition{spec: st.outcomes[i].Spec, from: report.StatusPending, to: report.StatusSkipped})
		}
	}
	st.mu.Unlock()
	for _, tr := range leftovers {
		s.emitCell(tr.spec, tr.from, tr.to)
	}

	s.emitRun(RunInProgress, RunCompleted)

	return &report.RunReport{
		RunID:            s.RunID,
		DescriptorDigest: report.DescriptorDigest(specs),
		Policy: report.Policy{
			Concurrency:       policy.Concurrency,
			FailFast:          policy.FailFast,
			PerCommandTimeout: policy.PerCommandTimeout,
		},
		Outcomes:   st.outcomes,
		StartedAt:  startedAt,
		FinishedAt: s.now(),
	}, nil
}

// runCell takes one cell through provision, run and teardown, writing only
// its own outcome slot.
func (s *Scheduler) runCell(ctx context.Context, st *runState, i int, commands []execute.Command, policy Policy) {
	if !s.claim(ctx, st, i) {
		return
	}

	spec := st.outcomes[i].Spec
	outcome := &st.outcomes[i]
	outcome.StartedAt = s.now()

	pctx, err := s.Provisioner.Setup(ctx, spec)
	if err != nil {
		outcome.Provision = flattenProvisionError(err)
		outcome.FinishedAt = s.now()
		s.finish(st, i, report.StatusErrored, policy)
		return
	}
	defer func() {
		if terr := s.Provisioner.Teardown(pctx); terr != nil {
			s.logf().Warn("cell teardown failed", "cell", spec.ID(), "err", terr)
		}
	}()

	s.transition(st, i, report.StatusRunning)

	expanded, err := expandCommands(spec, commands)
	if err != nil {
		outcome.Provision = &report.ProvisionFailure{Stage: "template", Message: err.Error()}
		outcome.FinishedAt = s.now()
		s.finish(st, i, report.StatusErrored, policy)
		return
	}

	opts := execute.Options{Timeout: policy.PerCommandTimeout, GracePeriod: s.Grace}
	outcome.Commands = execute.RunSequence(ctx, s.Runner, pctx.ExecContext(), expanded, opts)

	status := report.StatusPassed
	if n := len(outcome.Commands); n > 0 && outcome.Commands[n-1].Failed() {
		status = report.StatusFailed
	}
	outcome.Status = status
	if status == report.StatusPassed && s.PostRun != nil {
		s.PostRun(ctx, pctx.WorkDir, outcome)
		status = outcome.Status
	}
	outcome.FinishedAt = s.now()
	s.finish(st, i, status, policy)
}

// claim moves a pending cell to provisioning. It returns false when the
// fail-fast sweep or context cancellation got there first.
func (s *Scheduler) claim(ctx context.Context, st *runState, i int) bool {
	st.mu.Lock()
	if st.statuses[i] != report.StatusPending {
		st.mu.Unlock()
		return false
	}
	if ctx.Err() != nil {
		st.statuses[i] = report.StatusSkipped
		st.outcomes[i].Status = report.StatusSkipped
		spec := st.outcomes[i].Spec
		st.mu.Unlock()
		s.emitCell(spec, report.StatusPending, report.StatusSkipped)
		return false
	}
	st.statuses[i] = report.StatusProvisioning
	spec := st.outcomes[i].Spec
	st.mu.Unlock()
	s.emitCell(spec, report.StatusPending, report.StatusProvisioning)
	return true
}

// transition records an intermediate state change for one cell.
func (s *Scheduler) transition(st *runState, i int, to report.Status) {
	st.mu.Lock()
	from := st.statuses[i]
	st.statuses[i] = to
	spec := st.outcomes[i].Spec
	st.mu.Unlock()
	s.emitCell(spec, from, to)
}

// finish records a cell's terminal status and, on failure with fail-fast,
// sweeps every still-pending cell to skipped under the same lock so no
// pending cell can be claimed in between.
func (s *Scheduler) finish(st *runState, i int, status report.Status, policy Policy) {
	st.mu.Lock()
	from := st.statuses[i]
	st.statuses[i] = status
	st.outcomes[i].Status = status
	transitions := []cellTransition{{spec: st.outcomes[i].Spec, from: from, to: status}}
	if status.Failure() && policy.FailFast && !st.tripped {
		st.tripped = true
		for j := range st.statuses {
			if st.statuses[j] != report.StatusPending {
				continue
			}
			st.statuses[j] = report.StatusSkipped
			st.outcomes[j].Status = report.StatusSkipped
			transitions = append(transitions, cellTransition{spec: st.outcomes[j].Spec, from: report.StatusPending, to: report.StatusSkipped})
		}
	}
	st.mu.Unlock()
	for _, tr := range transitions {
		s.emitCell(tr.spec, tr.from, tr.to)
	}
}

func (s *Scheduler) emitCell(spec matrix.Spec, from, to report.Status) {
	if s.Observer != nil {
		s.Observer.CellStateChanged(spec, from, to)
	}
}

func (s *Scheduler) emitRun(from, to RunState) {
	if s.Observer != nil {
		s.Observer.RunStateChanged(from, to)
	}
}

func (s *Scheduler) logf() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}

func (s *Scheduler) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now()
	}
	return time.Now()
}

func (s *Scheduler) runnerName() string {
	if s.Runner == nil {
		return "none"
	}
	return s.Runner.Name()
}

// expandCommands resolves axis placeholders in every command line for one
// cell. Unknown axes were rejected at validation time; an error here means
// the descriptor and commands went out of sync.
func expandCommands(spec matrix.Spec, commands []execute.Command) ([]execute.Command, error) {
	out := make([]execute.Command, len(commands))
	for i, cmd := range commands {
		line, err := spec.ExpandTemplate(cmd.Line)
		if err != nil {
			return nil, err
		}
		cmd.Line = line
		out[i] = cmd
	}
	return out, nil
}

// flattenProvisionError converts a setup error into its report form.
func flattenProvisionError(err error) *report.ProvisionFailure {
	var perr *provision.ProvisioningError
	if errors.As(err, &perr) {
		msg := ""
		if perr.Err != nil {
			msg = perr.Err.Error()
		}
		return &report.ProvisionFailure{
			Stage:   string(perr.Stage),
			Output:  perr.Output,
			Message: msg,
		}
	}
	return &report.ProvisionFailure{Stage: "setup", Message: err.Error()}
}
