// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"matrun-cli/internal/app"
	"matrun-cli/internal/container"
	"matrun-cli/internal/issue"
	"matrun-cli/internal/matrix"
	"matrun-cli/internal/report"
	"matrun-cli/internal/toolchain"
	"matrun-cli/pkg/matrixfile"
)

// classifyRunError maps run failures to issue catalog IDs and returns a styled
// message for CLI rendering. A zero ID means no catalog card applies.
func classifyRunError(err error, verbose bool) (issueID issue.Id, styledMsg string) {
	switch {
	case errors.Is(err, matrixfile.ErrNoMatrixFile):
		issueID = issue.MatrixFileNotFoundId
	case isConfigProblem(err):
		issueID = issue.MatrixFileInvalidId
	case errors.Is(err, toolchain.ErrToolchain):
		issueID = issue.ToolchainUnavailableId
	case errors.Is(err, container.ErrEngineNotAvailable):
		issueID = issue.ContainerEngineNotFoundId
	}

	return issueID, fmt.Sprintf("\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
}

// isConfigProblem reports whether the error is a defect in the matrix file or
// the flags layered on top of it, as opposed to a failure of the run itself.
func isConfigProblem(err error) bool {
	var (
		verrs  matrixfile.ValidationErrors
		format *matrixfile.UnsupportedFormatError
	)
	if errors.As(err, &verrs) || errors.As(err, &format) {
		return true
	}
	return errors.Is(err, matrixfile.ErrParse) ||
		errors.Is(err, matrixfile.ErrInvalidAxis) ||
		errors.Is(err, matrixfile.ErrInvalidCommand) ||
		errors.Is(err, matrixfile.ErrInvalidIsolation) ||
		errors.Is(err, matrixfile.ErrInvalidTrigger) ||
		errors.Is(err, matrixfile.ErrInvalidToolchain) ||
		errors.Is(err, matrixfile.ErrInvalidDuration) ||
		errors.Is(err, matrixfile.ErrInvalidPolicy) ||
		errors.Is(err, matrix.ErrInvalidDescriptor) ||
		errors.Is(err, matrix.ErrUnknownPlaceholder) ||
		errors.Is(err, app.ErrInvalidOverride)
}

// exitCodeForRunError picks the process exit code for a failed run.
// Configuration problems exit 2 and a blocked toolchain exits 3 so CI
// wrappers can tell them apart from test failures, which exit 1.
func exitCodeForRunError(err error) int {
	switch {
	case errors.Is(err, toolchain.ErrToolchain):
		return report.ExitToolchainBlocked
	case errors.Is(err, matrixfile.ErrNoMatrixFile) || isConfigProblem(err):
		return report.ExitUsageError
	default:
		return report.ExitRunFailed
	}
}
