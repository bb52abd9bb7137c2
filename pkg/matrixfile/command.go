// SPDX-License-Identifier: EPL-2.0

package matrixfile

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCommand indicates a command entry that cannot be run.
var ErrInvalidCommand = errors.New("invalid command")

// InvalidCommandError reports why a command entry was rejected. Index is
// the entry's position in the commands list.
type InvalidCommandError struct {
	Index  int
	Reason string
}

func (e *InvalidCommandError) Error() string {
	return fmt.Sprintf("invalid command at index %d: %s", e.Index, e.Reason)
}

func (e *InvalidCommandError) Unwrap() error { return ErrInvalidCommand }

// Command is one shell line run inside every cell. PTY requests a
// pseudo-terminal for tools that change behavior off a TTY.
//
// In a matrix file a command is either a bare string or a struct:
//
//	commands: ["pytest -q", {line: "make sim", pty: true}]
type Command struct {
	Line string `json:"line"          yaml:"line"          toml:"line"`
	PTY  bool   `json:"pty,omitempty" yaml:"pty,omitempty" toml:"pty,omitempty"`
}

// IsValid reports whether the command can be run.
func (c Command) IsValid() (bool, []error) {
	if strings.TrimSpace(c.Line) == "" {
		return false, []error{&InvalidCommandError{Reason: "line is empty"}}
	}
	return true, nil
}

// normalizeCommands converts decoded command entries, each either a
// string or a {line, pty} mapping, into Command values. All three file
// formats funnel through here so the union shape behaves identically.
func normalizeCommands(raw []any) ([]Command, error) {
	cmds := make([]Command, 0, len(raw))
	for i, entry := range raw {
		cmd, err := normalizeCommand(i, entry)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

func normalizeCommand(index int, entry any) (Command, error) {
	switch v := entry.(type) {
	case string:
		return Command{Line: v}, nil
	case map[string]any:
		var cmd Command
		for key, val := range v {
			switch key {
			case "line":
				s, ok := val.(string)
				if !ok {
					return Command{}, &InvalidCommandError{Index: index, Reason: "line must be a string"}
				}
				cmd.Line = s
			case "pty":
				b, ok := val.(bool)
				if !ok {
					return Command{}, &InvalidCommandError{Index: index, Reason: "pty must be a boolean"}
				}
				cmd.PTY = b
			default:
				return Command{}, &InvalidCommandError{Index: index, Reason: fmt.Sprintf("unknown field %q", key)}
			}
		}
		if cmd.Line == "" {
			return Command{}, &InvalidCommandError{Index: index, Reason: "line is required"}
		}
		return cmd, nil
	default:
		return Command{}, &InvalidCommandError{Index: index, Reason: fmt.Sprintf("must be a string or a {line, pty} entry, got %T", entry)}
	}
}
