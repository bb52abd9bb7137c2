// SPDX-License-Identifier: MPL-2.0

package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	jsoncanonicalizer "github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
)

// ReportFileName is the on-disk name of the persisted run report.
const ReportFileName = "report.json"

// DigestMismatchError reports a persisted report whose bytes do not match
// their recorded digest.
type DigestMismatchError struct {
	Path string
	Want string
	Got  string
}

// Error implements the error interface.
func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("report %s does not match its digest (recorded %.12s, computed %.12s)", e.Path, e.Want, e.Got)
}

// WriteJSON persists the report as canonical JSON with a .sha256 sidecar.
// Canonical form makes the digest stable across writes of an equal report.
func WriteJSON(path string, r *RunReport) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return fmt.Errorf("failed to canonicalize report: %w", err)
	}
	if err := os.WriteFile(path, canonical, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	sum := sha256.Sum256(canonical)
	sidecar := hex.EncodeToString(sum[:]) + "  " + ReportFileName + "\n"
	if err := os.WriteFile(path+".sha256", []byte(sidecar), 0o644); err != nil {
		return fmt.Errorf("failed to write report digest: %w", err)
	}
	return nil
}

// LoadJSON reads a persisted report. When the .sha256 sidecar is present the
// bytes are verified against it first; a report that fails verification is
// rejected rather than silently trusted for rerun selection.
func LoadJSON(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	if sidecar, err := os.ReadFile(path + ".sha256"); err == nil {
		want, _, _ := strings.Cut(strings.TrimSpace(string(sidecar)), " ")
		sum := sha256.Sum256(data)
		if got := hex.EncodeToString(sum[:]); want != "" && want != got {
			return nil, &DigestMismatchError{Path: path, Want: want, Got: got}
		}
	}

	var r RunReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &r, nil
}
