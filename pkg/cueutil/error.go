// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// ErrFileTooLarge is the sentinel wrapped by oversized-input errors.
var ErrFileTooLarge = errors.New("file exceeds maximum size")

// ValidationError is one CUE validation failure located in the user's file.
type ValidationError struct {
	// FilePath is the file being validated.
	FilePath string

	// CUEPath locates the invalid value in JSON-path notation, such as
	// "axes.version[2]" or "commands[0].line". Empty when the failure has
	// no field position.
	CUEPath string

	// Message is the validation failure text.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.CUEPath != "" {
		return fmt.Sprintf("%s: %s: %s", e.FilePath, e.CUEPath, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.FilePath, e.Message)
}

// FormatError converts a CUE evaluation error into ValidationError values,
// one per underlying failure, joined when CUE reports several at once. A
// non-CUE error is wrapped with the file path and returned as-is otherwise.
func FormatError(err error, filePath string) error {
	if err == nil {
		return nil
	}

	cueErrs := cueerrors.Errors(err)
	if len(cueErrs) == 0 {
		return fmt.Errorf("%s: %w", filePath, err)
	}

	joined := make([]error, 0, len(cueErrs))
	for _, ce := range cueErrs {
		pathStr := formatPath(cueerrors.Path(ce))
		msg := ce.Error()
		// CUE sometimes repeats the field path inside the message.
		if pathStr != "" && strings.HasPrefix(msg, pathStr) {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, pathStr), ":"))
		}
		joined = append(joined, &ValidationError{
			FilePath: filePath,
			CUEPath:  pathStr,
			Message:  msg,
		})
	}
	return errors.Join(joined...)
}

// formatPath renders a CUE error path in JSON-path notation. CUE hands
// paths over as flat string slices like ["axes", "version", "2"]; numeric
// elements are array indices, so that becomes "axes.version[2]".
func formatPath(path []string) string {
	var b strings.Builder
	for i, part := range path {
		if i > 0 && isIndex(part) {
			b.WriteString("[")
			b.WriteString(part)
			b.WriteString("]")
			continue
		}
		if i > 0 {
			b.WriteString(".")
		}
		b.WriteString(part)
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// CheckFileSize verifies data stays under maxSize. Exposed so callers that
// stream input can check before handing bytes to the evaluator.
func CheckFileSize(data []byte, maxSize int64, filename string) error {
	if int64(len(data)) > maxSize {
		return fmt.Errorf("%s: %w: %d bytes over the %d byte limit",
			filename, ErrFileTooLarge, len(data), maxSize)
	}
	return nil
}
