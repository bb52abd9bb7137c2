// SPDX-License-Identifier: MPL-2.0

package matrix

import (
	"errors"
	"fmt"
	"regexp"
)

// placeholderPattern matches {axis.<name>} references in command strings.
// The name group deliberately excludes '}' and whitespace; anything else is
// validated against the descriptor, not the pattern.
var placeholderPattern = regexp.MustCompile(`\{axis\.([^}\s]+)\}`)

// ErrUnknownPlaceholder is the sentinel wrapped by UnknownPlaceholderError.
var ErrUnknownPlaceholder = errors.New("unknown axis placeholder")

// UnknownPlaceholderError reports an {axis.<name>} reference to an axis the
// descriptor does not define.
type UnknownPlaceholderError struct {
	Axis AxisName
	Text string
}

// Error implements the error interface.
func (e *UnknownPlaceholderError) Error() string {
	return fmt.Sprintf("placeholder {axis.%s} in %q does not match any axis", e.Axis, e.Text)
}

// Unwrap returns ErrUnknownPlaceholder for errors.Is() compatibility.
func (e *UnknownPlaceholderError) Unwrap() error { return ErrUnknownPlaceholder }

// ExpandTemplate substitutes every {axis.<name>} placeholder in s with the
// cell's value for that axis. A reference to an axis the cell does not carry
// returns an UnknownPlaceholderError; text without placeholders is returned
// unchanged.
func (spec *Spec) ExpandTemplate(s string) (string, error) {
	var expandErr error
	out := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := AxisName(placeholderPattern.FindStringSubmatch(match)[1])
		v, ok := spec.Value(name)
		if !ok {
			if expandErr == nil {
				expandErr = &UnknownPlaceholderError{Axis: name, Text: s}
			}
			return match
		}
		return v
	})
	if expandErr != nil {
		return "", expandErr
	}
	return out, nil
}

// ExpandTemplates applies ExpandTemplate to each string in order, failing on
// the first unknown placeholder.
func (spec *Spec) ExpandTemplates(in []string) ([]string, error) {
	out := make([]string, len(in))
	for i, s := range in {
		expanded, err := spec.ExpandTemplate(s)
		if err != nil {
			return nil, err
		}
		out[i] = expanded
	}
	return out, nil
}

// ExpandWithEnv substitutes {axis.<name>} placeholders from a provisioned
// cell environment, resolving each through the MATRUN_<AXIS> variable the
// provisioner injects. It serves consumers that only see the environment,
// not the Spec itself (container image references, installer lines).
func ExpandWithEnv(s string, env map[string]string) (string, error) {
	var expandErr error
	out := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := AxisName(placeholderPattern.FindStringSubmatch(match)[1])
		v, ok := env[name.EnvName()]
		if !ok {
			if expandErr == nil {
				expandErr = &UnknownPlaceholderError{Axis: name, Text: s}
			}
			return match
		}
		return v
	})
	if expandErr != nil {
		return "", expandErr
	}
	return out, nil
}

// CheckTemplates verifies that every {axis.<name>} placeholder in the given
// strings names an axis of the descriptor. Used at validation time, before
// any expansion, so template mistakes surface as configuration errors rather
// than per-cell failures.
func (d *Descriptor) CheckTemplates(texts []string) error {
	known := make(map[AxisName]struct{}, len(d.Axes))
	for i := range d.Axes {
		known[d.Axes[i].Name] = struct{}{}
	}
	for _, text := range texts {
		for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
			name := AxisName(m[1])
			if _, ok := known[name]; !ok {
				return &UnknownPlaceholderError{Axis: name, Text: text}
			}
		}
	}
	return nil
}
