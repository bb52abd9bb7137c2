// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"

	"matrun-cli/internal/app"
	"matrun-cli/internal/execute"
	"matrun-cli/internal/issue"
	"matrun-cli/internal/report"
	"matrun-cli/pkg/matrixfile"

	"github.com/spf13/cobra"
)

var (
	validateFile string

	// validateCmd checks the matrix file without executing anything
	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Check the matrix file without running it",
		Long: `Check the matrix file for every problem a run would refuse it for:
schema violations, duplicate or empty axes, {axis.<name>} references to
axes that do not exist, and shell syntax errors in the command lines.

All problems are reported in one pass. Exits 0 when the file is valid
and 2 when it is not.`,
		Args: cobra.NoArgs,
		RunE: runValidate,
	}
)

func init() {
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "", "matrix file to check (default: search the current directory)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	mf, err := loadMatrixFile(validateFile)
	if err != nil {
		var verrs matrixfile.ValidationErrors
		if errors.As(err, &verrs) {
			return validateFailure(verrs)
		}
		return runFailure(err)
	}

	if problems := semanticProblems(mf); len(problems) > 0 {
		return validateFailure(problems)
	}

	fmt.Printf("%s %s is valid\n", SuccessStyle.Render("✓"), mf.FilePath)
	fmt.Printf("  %s %d\n", SubtitleStyle.Render("cells:"), mf.CellCount())
	fmt.Printf("  %s %d\n", SubtitleStyle.Render("commands:"), len(mf.Commands))
	return nil
}

// semanticProblems collects everything wrong with a document that already
// parsed: descriptor-level defects, dangling axis placeholders, and shell
// lines the POSIX parser rejects.
func semanticProblems(mf *matrixfile.Matrixfile) []error {
	var problems []error

	desc := app.Descriptor(mf)
	if err := desc.Validate(); err != nil {
		problems = append(problems, err)
	} else {
		// Placeholder resolution needs a valid axis set to check against.
		for _, text := range app.TemplatedStrings(mf) {
			if err := desc.CheckTemplates([]string{text}); err != nil {
				problems = append(problems, err)
			}
		}
	}

	for _, line := range shellLines(mf) {
		if err := execute.CheckSyntax(line); err != nil {
			problems = append(problems, fmt.Errorf("%q: %w", line, err))
		}
	}
	return problems
}

// shellLines returns every string the runner will hand to a shell.
func shellLines(mf *matrixfile.Matrixfile) []string {
	lines := mf.CommandLines()
	if mf.Install != "" {
		lines = append(lines, mf.Install)
	}
	if mf.Toolchain != nil {
		if mf.Toolchain.Probe != "" {
			lines = append(lines, mf.Toolchain.Probe)
		}
		if mf.Toolchain.Install != "" {
			lines = append(lines, mf.Toolchain.Install)
		}
	}
	return lines
}

// validateFailure lists every problem found and exits with the usage code.
func validateFailure(problems []error) error {
	if iss := issue.Get(issue.MatrixFileInvalidId); iss != nil {
		if rendered, err := iss.Render("dark"); err == nil {
			fmt.Fprint(os.Stderr, rendered)
		}
	}
	fmt.Fprintf(os.Stderr, "\n%s matrix file failed validation:\n", ErrorStyle.Render("✗"))
	for _, p := range problems {
		fmt.Fprintf(os.Stderr, "  - %s\n", p.Error())
	}
	return &ExitError{Code: report.ExitUsageError, Err: errors.New("invalid matrix file")}
}
