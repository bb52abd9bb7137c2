// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"matrun-cli/internal/app"
	"matrun-cli/internal/issue"
	"matrun-cli/internal/report"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	reportMarkdown bool
	reportUpload   bool

	// reportCmd re-renders a saved run report
	reportCmd = &cobra.Command{
		Use:   "report <report.json>",
		Short: "Re-render a saved run report",
		Long: `Load a report.json written by a previous run and render it again,
either as the plain summary or as a styled markdown document. With
--upload the surrounding artifact directory is pushed to the configured
object store, which is how a run whose upload failed gets retried.`,
		Args: cobra.ExactArgs(1),
		RunE: runReport,
	}
)

func init() {
	reportCmd.Flags().BoolVar(&reportMarkdown, "markdown", false, "render the report as a markdown document")
	reportCmd.Flags().BoolVar(&reportUpload, "upload", false, "upload the report's artifact directory to the object store")
}

func runReport(cmd *cobra.Command, args []string) error {
	path := args[0]
	r, err := report.LoadJSON(path)
	if err != nil {
		return runFailure(err)
	}

	if reportMarkdown {
		md := reportToMarkdown(r)
		rendered, rerr := glamour.Render(md, "dark")
		if rerr != nil {
			rendered = md
		}
		fmt.Print(rendered)
	} else {
		printReport(r)
	}

	if reportUpload {
		return uploadReport(cmd, path, r)
	}
	return nil
}

// printReport writes the styled per-cell view of a report to stdout.
func printReport(r *report.RunReport) {
	fmt.Println(TitleStyle.Render("run "+r.RunID) +
		SubtitleStyle.Render(fmt.Sprintf(" - %d cells", len(r.Outcomes))))

	idWidth := 0
	for i := range r.Outcomes {
		if n := len(r.Outcomes[i].Spec.ID()); n > idWidth {
			idWidth = n
		}
	}
	for i := range r.Outcomes {
		o := &r.Outcomes[i]
		line := fmt.Sprintf("  [%d] %-*s  %s", o.Spec.Index, idWidth, o.Spec.ID(),
			statusStyle(o.Status).Render(string(o.Status)))
		if o.Reused {
			line += SubtitleStyle.Render(" (reused)")
		}
		if d := o.Duration(); d > 0 {
			line += SubtitleStyle.Render("  " + d.Round(time.Millisecond).String())
		}
		fmt.Println(line)
	}

	_, summary := report.Summarize(r)
	// The summary repeats the cell table; keep just its headline here.
	if nl := strings.IndexByte(summary, '\n'); nl > 0 {
		summary = summary[:nl]
	}
	fmt.Println(summary)
}

// statusStyle picks the display style for a cell status.
func statusStyle(s report.Status) lipgloss.Style {
	switch {
	case s == report.StatusPassed:
		return SuccessStyle
	case s.Failure():
		return ErrorStyle
	case s == report.StatusSkipped:
		return SubtitleStyle
	default:
		return WarningStyle
	}
}

// reportToMarkdown renders a report as a markdown document: a header, a
// cell table, and one section per non-passed cell with its evidence.
func reportToMarkdown(r *report.RunReport) string {
	var b strings.Builder

	counts := r.Counts()
	fmt.Fprintf(&b, "# matrun run %s\n\n", r.RunID)
	fmt.Fprintf(&b, "**%d/%d cells passed**", counts[report.StatusPassed], len(r.Outcomes))
	if d := r.FinishedAt.Sub(r.StartedAt); d > 0 {
		fmt.Fprintf(&b, " in %s", d.Round(time.Millisecond))
	}
	fmt.Fprintf(&b, "\n\npolicy: concurrency %d", r.Policy.Concurrency)
	if r.Policy.FailFast {
		b.WriteString(", fail-fast")
	}
	if r.Policy.PerCommandTimeout > 0 {
		fmt.Fprintf(&b, ", per-command timeout %s", r.Policy.PerCommandTimeout)
	}
	b.WriteString("\n\n")

	b.WriteString("| # | cell | status | duration |\n")
	b.WriteString("|--:|------|--------|---------:|\n")
	for i := range r.Outcomes {
		o := &r.Outcomes[i]
		status := string(o.Status)
		if o.Reused {
			status += " (reused)"
		}
		duration := ""
		if d := o.Duration(); d > 0 {
			duration = d.Round(time.Millisecond).String()
		}
		fmt.Fprintf(&b, "| %d | `%s` | %s | %s |\n", o.Spec.Index, o.Spec.ID(), status, duration)
	}

	for i := range r.Outcomes {
		o := &r.Outcomes[i]
		if !o.Status.Failure() {
			continue
		}
		fmt.Fprintf(&b, "\n## %s: %s\n\n", o.Status, o.Spec.ID())
		if o.Provision != nil {
			fmt.Fprintf(&b, "provisioning failed at stage `%s`: %s\n", o.Provision.Stage, o.Provision.Message)
			if o.Provision.Output != "" {
				fmt.Fprintf(&b, "\n```\n%s\n```\n", strings.TrimRight(o.Provision.Output, "\n"))
			}
			continue
		}
		if failed := o.FirstFailedCommand(); failed != nil {
			fmt.Fprintf(&b, "`%s` exited %d", failed.Command, failed.ExitCode)
			if failed.TimedOut {
				b.WriteString(" (timed out)")
			}
			b.WriteString("\n")
			if out := strings.TrimRight(failed.Stderr, "\n"); out != "" {
				fmt.Fprintf(&b, "\n```\n%s\n```\n", out)
			} else if out := strings.TrimRight(failed.Stdout, "\n"); out != "" {
				fmt.Fprintf(&b, "\n```\n%s\n```\n", out)
			}
		}
		if o.Results != nil && o.Results.Failed() {
			fmt.Fprintf(&b, "\nresults: %d tests, %d failures, %d errors across %d files\n",
				o.Results.Tests, o.Results.Failures, o.Results.Errors, o.Results.Files)
		}
	}
	return b.String()
}

// uploadReport pushes the directory holding the report to the object store.
func uploadReport(cmd *cobra.Command, path string, r *report.RunReport) error {
	cfg := loadedConfig()
	uploaded, err := app.UploadArtifacts(cmd.Context(), cfg.Store, r.RunID, filepath.Dir(path))
	if err != nil {
		if iss := issue.Get(issue.ArtifactUploadFailedId); iss != nil {
			if rendered, rerr := iss.Render("dark"); rerr == nil {
				fmt.Fprint(os.Stderr, rendered)
			}
		}
		fmt.Fprintf(os.Stderr, "\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
		return &ExitError{Code: report.ExitRunFailed, Err: err}
	}
	fmt.Printf("%s uploaded %d files as %s\n", SuccessStyle.Render("✓"), uploaded, r.RunID)
	return nil
}
