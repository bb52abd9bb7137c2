// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"errors"
	"fmt"
	"path"
	"slices"
)

type (
	// EventKind is the event a run was started for, CI-style.
	EventKind string

	// TriggerConfig gates runs on the event and branch they were
	// started for. An absent or empty list places no constraint on
	// that dimension.
	TriggerConfig struct {
		Events   []EventKind `json:"events,omitempty"   yaml:"events,omitempty"   toml:"events,omitempty"`
		Branches []string    `json:"branches,omitempty" yaml:"branches,omitempty" toml:"branches,omitempty"`
	}
)

const (
	EventPush        EventKind = "push"
	EventPullRequest EventKind = "pull-request"
	EventManual      EventKind = "manual"
)

// ErrInvalidTrigger indicates a triggers block that cannot be used.
var ErrInvalidTrigger = errors.New("invalid trigger")

// InvalidTriggerError reports why a triggers block was rejected.
type InvalidTriggerError struct {
	Reason string
}

func (e *InvalidTriggerError) Error() string {
	return fmt.Sprintf("invalid trigger: %s", e.Reason)
}

func (e *InvalidTriggerError) Unwrap() error { return ErrInvalidTrigger }

// IsValid reports whether the event is a known event kind.
func (k EventKind) IsValid() (bool, []error) {
	switch k {
	case EventPush, EventPullRequest, EventManual:
		return true, nil
	default:
		return false, []error{&InvalidTriggerError{Reason: fmt.Sprintf("unknown event %q", string(k))}}
	}
}

// IsValid reports whether the triggers block can be used, along with
// every reason it cannot.
func (t *TriggerConfig) IsValid() (bool, []error) {
	if t == nil {
		return true, nil
	}
	var errs []error
	for _, ev := range t.Events {
		if ok, evErrs := ev.IsValid(); !ok {
			errs = append(errs, evErrs...)
		}
	}
	for _, pattern := range t.Branches {
		if pattern == "" {
			errs = append(errs, &InvalidTriggerError{Reason: "branch pattern is empty"})
			continue
		}
		if _, err := path.Match(pattern, "probe"); err != nil {
			errs = append(errs, &InvalidTriggerError{Reason: fmt.Sprintf("bad branch pattern %q: %v", pattern, err)})
		}
	}
	return len(errs) == 0, errs
}

// Gates reports whether a run started for the given event and branch is
// allowed by this block. A nil block allows everything. Branch patterns
// are path.Match globs; a configured branch list rejects runs that did
// not name a branch at all.
func (t *TriggerConfig) Gates(event EventKind, branch string) bool {
	if t == nil {
		return true
	}
	if len(t.Events) > 0 && !slices.Contains(t.Events, event) {
		return false
	}
	if len(t.Branches) > 0 {
		if branch == "" {
			return false
		}
		matched := false
		for _, pattern := range t.Branches {
			if ok, err := path.Match(pattern, branch); err == nil && ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}
