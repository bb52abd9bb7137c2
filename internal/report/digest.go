// SPDX-License-Identifier: MPL-2.0

package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	jsoncanonicalizer "github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"

	"matrun-cli/internal/matrix"
)

// DescriptorDigest fingerprints an expanded descriptor: the SHA-256 of the
// canonical JSON form of its cell IDs in expansion order. Two runs share a
// digest exactly when they run the same cells in the same order, which is
// what rerun selection needs to check.
func DescriptorDigest(specs []matrix.Spec) string {
	ids := make([]string, len(specs))
	for i, spec := range specs {
		ids[i] = spec.ID()
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return ""
	}
	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		canonical = raw
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
