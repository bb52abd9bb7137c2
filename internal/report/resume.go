// SPDX-License-Identifier: MPL-2.0

package report

import (
	"fmt"

	"matrun-cli/internal/matrix"
)

// RerunMismatchError reports a rerun attempted against a report from a
// different matrix expansion.
type RerunMismatchError struct {
	ReportDigest  string
	CurrentDigest string
}

// Error implements the error interface.
func (e *RerunMismatchError) Error() string {
	return fmt.Sprintf("previous report is for a different matrix (report %.12s, current %.12s)",
		e.ReportDigest, e.CurrentDigest)
}

// SelectRerun builds the reuse set for rerunning only the failures of a
// previous run: cells that passed are carried over untouched, everything
// else (failed, errored, skipped) runs again. The previous report must
// belong to the same expansion; a digest mismatch means axes or values
// changed since, and reusing outcomes would attribute them to the wrong
// cells.
func SelectRerun(prev *RunReport, specs []matrix.Spec) (map[int]EnvironmentOutcome, error) {
	current := DescriptorDigest(specs)
	if prev.DescriptorDigest != current {
		return nil, &RerunMismatchError{ReportDigest: prev.DescriptorDigest, CurrentDigest: current}
	}
	if len(prev.Outcomes) != len(specs) {
		return nil, &RerunMismatchError{ReportDigest: prev.DescriptorDigest, CurrentDigest: current}
	}

	reuse := make(map[int]EnvironmentOutcome)
	for i := range prev.Outcomes {
		if prev.Outcomes[i].Status == StatusPassed {
			reuse[i] = prev.Outcomes[i]
		}
	}
	return reuse, nil
}
