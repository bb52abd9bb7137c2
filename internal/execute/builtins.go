// SPDX-License-Identifier: MPL-2.0

package execute

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"mvdan.cc/sh/v3/interp"
)

// DefaultBuiltins is the registry used by the builtin runner. Utilities are
// registered during package initialization.
var DefaultBuiltins = NewBuiltinRegistry()

func init() {
	DefaultBuiltins.Register("sleep", builtinSleep)
	DefaultBuiltins.Register("seq", builtinSeq)
}

type (
	// BuiltinFunc implements one built-in utility. args includes the
	// utility name as args[0]; output goes to the interpreter's handler
	// streams, retrieved from ctx.
	BuiltinFunc func(ctx context.Context, args []string) error

	// BuiltinRegistry maps utility names to implementations. It is safe
	// for concurrent use.
	BuiltinRegistry struct {
		mu    sync.RWMutex
		funcs map[string]BuiltinFunc
	}
)

// NewBuiltinRegistry creates a new empty registry.
func NewBuiltinRegistry() *BuiltinRegistry {
	return &BuiltinRegistry{funcs: make(map[string]BuiltinFunc)}
}

// Register adds a utility. Panics on a duplicate name so collisions are
// caught at startup, not mid-run.
func (r *BuiltinRegistry) Register(name string, fn BuiltinFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == "" {
		panic("execute: cannot register builtin with empty name")
	}
	if _, exists := r.funcs[name]; exists {
		panic(fmt.Sprintf("execute: builtin %q already registered", name))
	}
	r.funcs[name] = fn
}

// Names returns the registered utility names in sorted order.
func (r *BuiltinRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TryRun executes a utility if one is registered for args[0].
//
// Return semantics:
//   - (true, nil): handled successfully
//   - (true, err): handled and failed; the error propagates, no fallback
//     to a system binary
//   - (false, nil): not registered; the caller falls back to the system
//     binary
func (r *BuiltinRegistry) TryRun(ctx context.Context, args []string) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}
	r.mu.RLock()
	fn, ok := r.funcs[args[0]]
	r.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, fn(ctx, args)
}

// builtinSleep pauses for the given duration with cancellation support.
// Accepts plain numbers (seconds) and Go duration strings.
func builtinSleep(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("sleep: missing operand")
	}
	d, err := parseSleepDuration(args[1])
	if err != nil {
		return fmt.Errorf("sleep: %w", err)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// parseSleepDuration accepts "2", "2.5", "2s", "500ms", "1m".
func parseSleepDuration(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("invalid time interval %q", s)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid time interval %q", s)
	}
	return d, nil
}

// builtinSeq prints a number sequence, one per line. Supports the
// LAST / FIRST LAST / FIRST INCR LAST argument forms of seq(1).
func builtinSeq(ctx context.Context, args []string) error {
	hc := interp.HandlerCtx(ctx)

	nums := args[1:]
	if len(nums) == 0 || len(nums) > 3 {
		return fmt.Errorf("seq: expected 1 to 3 arguments")
	}
	parsed := make([]int64, len(nums))
	for i, a := range nums {
		n, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return fmt.Errorf("seq: invalid number %q", a)
		}
		parsed[i] = n
	}

	first, incr, last := int64(1), int64(1), parsed[len(parsed)-1]
	switch len(parsed) {
	case 2:
		first = parsed[0]
	case 3:
		first, incr = parsed[0], parsed[1]
	}
	if incr == 0 {
		return fmt.Errorf("seq: increment must not be zero")
	}

	var b strings.Builder
	for n := first; (incr > 0 && n <= last) || (incr < 0 && n >= last); n += incr {
		b.WriteString(strconv.FormatInt(n, 10))
		b.WriteByte('\n')
	}
	_, err := hc.Stdout.Write([]byte(b.String()))
	return err
}
