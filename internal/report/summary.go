// SPDX-License-Identifier: MPL-2.0

package report

import (
	"fmt"
	"strings"
	"time"
)

// Process exit codes derived from a run report. ExitToolchainBlocked is
// reserved for the pre-step: the run never started, which is neither a
// cell failure nor a usage error.
const (
	ExitAllPassed        = 0
	ExitRunFailed        = 1
	ExitUsageError       = 2
	ExitToolchainBlocked = 3
)

// Summarize maps a report to its process exit code and a plain-text summary.
// Every cell appears in expansion order, whatever its status. Non-passed
// cells carry the first failing command's captured output, or the
// provisioning failure. The text is colorless so it can go to logs and
// archives unchanged.
func Summarize(r *RunReport) (int, string) {
	var b strings.Builder

	counts := r.Counts()
	total := len(r.Outcomes)
	fmt.Fprintf(&b, "run %s: %d/%d cells passed", r.RunID, counts[StatusPassed], total)
	if n := counts[StatusFailed]; n > 0 {
		fmt.Fprintf(&b, ", %d failed", n)
	}
	if n := counts[StatusErrored]; n > 0 {
		fmt.Fprintf(&b, ", %d errored", n)
	}
	if n := counts[StatusSkipped]; n > 0 {
		fmt.Fprintf(&b, ", %d skipped", n)
	}
	if d := r.FinishedAt.Sub(r.StartedAt); d > 0 {
		fmt.Fprintf(&b, " in %s", d.Round(time.Millisecond))
	}
	b.WriteString("\n")

	idWidth := 0
	for i := range r.Outcomes {
		if n := len(r.Outcomes[i].Spec.ID()); n > idWidth {
			idWidth = n
		}
	}

	for i := range r.Outcomes {
		o := &r.Outcomes[i]
		fmt.Fprintf(&b, "  [%d] %-*s  %s", o.Spec.Index, idWidth, o.Spec.ID(), o.Status)
		if o.Reused {
			b.WriteString(" (reused)")
		}
		if d := o.Duration(); d > 0 {
			fmt.Fprintf(&b, "  %s", d.Round(time.Millisecond))
		}
		b.WriteString("\n")
		writeOutcomeDetail(&b, o)
	}

	exit := ExitAllPassed
	if !r.Passed() {
		exit = ExitRunFailed
		if ff := r.FirstFailure(); ff != nil {
			fmt.Fprintf(&b, "first failure: %s\n", ff.Spec.ID())
		}
	}
	return exit, b.String()
}

// writeOutcomeDetail appends the failure evidence for one cell: the failing
// command and its captured output, the provisioning record, or the results
// rollup that demoted a green command sequence.
func writeOutcomeDetail(b *strings.Builder, o *EnvironmentOutcome) {
	const indent = "      "

	if o.Provision != nil {
		fmt.Fprintf(b, "%sprovisioning failed at stage %s: %s\n", indent, o.Provision.Stage, o.Provision.Message)
		writeBlock(b, indent+"  ", o.Provision.Output)
		return
	}

	if o.Results != nil {
		fmt.Fprintf(b, "%sresults: %d tests, %d failures, %d errors, %d skipped (%d files)\n",
			indent, o.Results.Tests, o.Results.Failures, o.Results.Errors, o.Results.Skipped, o.Results.Files)
	}

	if !o.Status.Failure() {
		return
	}
	cmd := o.FirstFailedCommand()
	if cmd == nil {
		return
	}
	fmt.Fprintf(b, "%s$ %s\n", indent, cmd.Command)
	if cmd.TimedOut {
		fmt.Fprintf(b, "%stimed out after %s\n", indent, cmd.Duration.Round(time.Millisecond))
	} else {
		fmt.Fprintf(b, "%sexit %s after %s\n", indent, cmd.ExitCode, cmd.Duration.Round(time.Millisecond))
	}
	writeBlock(b, indent+"  ", cmd.Stderr)
	writeBlock(b, indent+"  ", cmd.Stdout)
}

// writeBlock appends a captured output block with every line prefixed.
// Empty blocks produce nothing.
func writeBlock(b *strings.Builder, prefix, block string) {
	block = strings.TrimRight(block, "\n")
	if block == "" {
		return
	}
	for _, line := range strings.Split(block, "\n") {
		b.WriteString(prefix)
		b.WriteString(line)
		b.WriteString("\n")
	}
}
