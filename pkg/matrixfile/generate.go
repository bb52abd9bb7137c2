// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"fmt"
	"strconv"
	"strings"
)

// Scaffold returns the starter document written by `matrun init`.
func Scaffold() *Matrixfile {
	failFast := true
	return &Matrixfile{
		Axes: []Axis{
			{Name: "version", Values: []string{"3.12", "3.13"}},
		},
		Commands: []Command{
			{Line: "python{axis.version} --version"},
			{Line: "pytest -q"},
		},
		FailFast:          &failFast,
		PerCommandTimeout: "10m",
	}
}

// GenerateCUE renders a document as matrix.cue text. The output parses
// back through Parse unchanged.
func GenerateCUE(m *Matrixfile) string {
	var b strings.Builder

	b.WriteString("// Matrix file for matrun.\n")
	b.WriteString("// Check it with `matrun validate`, preview cells with `matrun expand`.\n\n")

	if m.Name != "" {
		fmt.Fprintf(&b, "name: %s\n\n", quote(m.Name))
	}

	if len(m.Axes) > 0 {
		b.WriteString("axes: [\n")
		for _, axis := range m.Axes {
			fmt.Fprintf(&b, "\t{name: %s, values: %s},\n", quote(axis.Name), quoteList(axis.Values))
		}
		b.WriteString("]\n\n")
	}

	b.WriteString("commands: [\n")
	for _, cmd := range m.Commands {
		if cmd.PTY {
			fmt.Fprintf(&b, "\t{line: %s, pty: true},\n", quote(cmd.Line))
		} else {
			fmt.Fprintf(&b, "\t%s,\n", quote(cmd.Line))
		}
	}
	b.WriteString("]\n")

	var policy []string
	if m.Concurrency != nil {
		policy = append(policy, fmt.Sprintf("concurrency: %d", *m.Concurrency))
	}
	if m.FailFast != nil {
		policy = append(policy, fmt.Sprintf("failFast: %t", *m.FailFast))
	}
	if m.PerCommandTimeout != "" {
		policy = append(policy, fmt.Sprintf("perCommandTimeout: %s", quote(m.PerCommandTimeout)))
	}
	if len(policy) > 0 {
		b.WriteString("\n" + strings.Join(policy, "\n") + "\n")
	}

	if m.Isolation != nil {
		b.WriteString("\nisolation: {\n")
		fmt.Fprintf(&b, "\tmode: %s\n", quote(string(m.Isolation.Mode)))
		if m.Isolation.Image != "" {
			fmt.Fprintf(&b, "\timage: %s\n", quote(m.Isolation.Image))
		}
		if m.Isolation.Engine != "" {
			fmt.Fprintf(&b, "\tengine: %s\n", quote(m.Isolation.Engine))
		}
		if m.Isolation.Network != "" {
			fmt.Fprintf(&b, "\tnetwork: %s\n", quote(m.Isolation.Network))
		}
		b.WriteString("}\n")
	}

	writeStringMap(&b, "env", m.Env)
	writeListMap(&b, "pathVars", m.PathVars)
	writeListMap(&b, "listVars", m.ListVars)

	if m.Source != "" {
		fmt.Fprintf(&b, "\nsource: %s\n", quote(m.Source))
	}
	if m.Install != "" {
		fmt.Fprintf(&b, "\ninstall: %s\n", quote(m.Install))
	}

	if m.Toolchain != nil {
		b.WriteString("\ntoolchain: {\n")
		fmt.Fprintf(&b, "\tprobe: %s\n", quote(m.Toolchain.Probe))
		if m.Toolchain.MinVersion != "" {
			fmt.Fprintf(&b, "\tminVersion: %s\n", quote(m.Toolchain.MinVersion))
		}
		if m.Toolchain.Install != "" {
			fmt.Fprintf(&b, "\tinstall: %s\n", quote(m.Toolchain.Install))
		}
		if m.Toolchain.Timeout != "" {
			fmt.Fprintf(&b, "\ttimeout: %s\n", quote(m.Toolchain.Timeout))
		}
		b.WriteString("}\n")
	}

	if m.Triggers != nil {
		b.WriteString("\ntriggers: {\n")
		if len(m.Triggers.Events) > 0 {
			events := make([]string, 0, len(m.Triggers.Events))
			for _, ev := range m.Triggers.Events {
				events = append(events, string(ev))
			}
			fmt.Fprintf(&b, "\tevents: %s\n", quoteList(events))
		}
		if len(m.Triggers.Branches) > 0 {
			fmt.Fprintf(&b, "\tbranches: %s\n", quoteList(m.Triggers.Branches))
		}
		b.WriteString("}\n")
	}

	if m.ResultsGlob != "" {
		fmt.Fprintf(&b, "\nresultsGlob: %s\n", quote(m.ResultsGlob))
	}

	return b.String()
}

func quote(s string) string { return strconv.Quote(s) }

func quoteList(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, quote(v))
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func writeStringMap(b *strings.Builder, field string, m map[string]string) {
	if len(m) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s: {\n", field)
	for _, key := range sortedKeys(m) {
		fmt.Fprintf(b, "\t%s: %s\n", quote(key), quote(m[key]))
	}
	b.WriteString("}\n")
}

func writeListMap(b *strings.Builder, field string, m map[string][]string) {
	if len(m) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s: {\n", field)
	for _, key := range sortedKeys(m) {
		fmt.Fprintf(b, "\t%s: %s\n", quote(key), quoteList(m[key]))
	}
	b.WriteString("}\n")
}
