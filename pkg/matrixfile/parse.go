// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"matrun-cli/pkg/cueutil"
)

//go:embed matrixfile_schema.cue
var schemaFile string

// schemaPath is the definition matrix files are validated against.
const schemaPath = "#Matrixfile"

// Format identifies the serialization a matrix file is written in.
type Format string

const (
	FormatCUE  Format = "cue"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// DefaultFileNames are the file names Load and FindFile look for, in
// preference order.
var DefaultFileNames = []string{"matrix.cue", "matrix.yaml", "matrix.yml", "matrix.toml"}

// ErrNoMatrixFile indicates that a directory holds none of the default
// matrix file names.
var ErrNoMatrixFile = errors.New("no matrix file found")

// ErrParse indicates a matrix file that could not be decoded, as opposed
// to one that decoded but failed validation.
var ErrParse = errors.New("matrix file does not parse")

// UnsupportedFormatError reports a path whose extension maps to no
// known matrix file format.
type UnsupportedFormatError struct {
	Path string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported matrix file format %q (want .cue, .yaml, .yml, or .toml)", e.Path)
}

// document is the decode target shared by all three formats. Commands
// stays untyped here because an entry may be a bare string or a
// {line, pty} mapping; normalizeCommands settles the shape afterwards.
type document struct {
	Name              string              `json:"name,omitempty"              yaml:"name"              toml:"name,omitempty"`
	Axes              []Axis              `json:"axes,omitempty"              yaml:"axes"              toml:"axes,omitempty"`
	Commands          []any               `json:"commands"                    yaml:"commands"          toml:"commands"`
	Concurrency       *int                `json:"concurrency,omitempty"       yaml:"concurrency"       toml:"concurrency,omitempty"`
	FailFast          *bool               `json:"failFast,omitempty"          yaml:"failFast"          toml:"failFast,omitempty"`
	PerCommandTimeout string              `json:"perCommandTimeout,omitempty" yaml:"perCommandTimeout" toml:"perCommandTimeout,omitempty"`
	Isolation         *IsolationConfig    `json:"isolation,omitempty"         yaml:"isolation"         toml:"isolation,omitempty"`
	Env               map[string]string   `json:"env,omitempty"               yaml:"env"               toml:"env,omitempty"`
	PathVars          map[string][]string `json:"pathVars,omitempty"          yaml:"pathVars"          toml:"pathVars,omitempty"`
	ListVars          map[string][]string `json:"listVars,omitempty"          yaml:"listVars"          toml:"listVars,omitempty"`
	Source            string              `json:"source,omitempty"            yaml:"source"            toml:"source,omitempty"`
	Install           string              `json:"install,omitempty"           yaml:"install"           toml:"install,omitempty"`
	Toolchain         *ToolchainConfig    `json:"toolchain,omitempty"         yaml:"toolchain"         toml:"toolchain,omitempty"`
	Triggers          *TriggerConfig      `json:"triggers,omitempty"          yaml:"triggers"          toml:"triggers,omitempty"`
	ResultsGlob       string              `json:"resultsGlob,omitempty"       yaml:"resultsGlob"       toml:"resultsGlob,omitempty"`
}

// FormatForPath maps a file path to its matrix file format by
// extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return FormatCUE, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", &UnsupportedFormatError{Path: path}
	}
}

// FindFile returns the first default matrix file name present in dir.
func FindFile(dir string) (string, error) {
	for _, name := range DefaultFileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s (looked for %s)", ErrNoMatrixFile, dir, strings.Join(DefaultFileNames, ", "))
}

// Load reads and parses the matrix file at path. The returned document
// already passed validation.
func Load(path string) (*Matrixfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read matrix file: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes a matrix file held in memory, picking the format from
// the filename extension.
func Parse(data []byte, filename string) (*Matrixfile, error) {
	format, err := FormatForPath(filename)
	if err != nil {
		return nil, err
	}

	var doc *document
	switch format {
	case FormatCUE:
		doc, err = parseCUE(data, filename)
	case FormatYAML:
		doc, err = parseYAML(data, filename)
	case FormatTOML:
		doc, err = parseTOML(data, filename)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return build(doc, filename)
}

func parseCUE(data []byte, filename string) (*document, error) {
	result, err := cueutil.ParseAndDecodeString[document](schemaFile, data, schemaPath, cueutil.WithFilename(filename))
	if err != nil {
		return nil, err
	}
	return result.Value, nil
}

func parseYAML(data []byte, filename string) (*document, error) {
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, filename); err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty document", filename)
		}
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return &doc, nil
}

func parseTOML(data []byte, filename string) (*document, error) {
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, filename); err != nil {
		return nil, err
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return &doc, nil
}

// build normalizes the decoded document and validates it.
func build(doc *document, filename string) (*Matrixfile, error) {
	commands, err := normalizeCommands(doc.Commands)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	m := &Matrixfile{
		Name:              doc.Name,
		Axes:              doc.Axes,
		Commands:          commands,
		Concurrency:       doc.Concurrency,
		FailFast:          doc.FailFast,
		PerCommandTimeout: doc.PerCommandTimeout,
		Isolation:         doc.Isolation,
		Env:               doc.Env,
		PathVars:          doc.PathVars,
		ListVars:          doc.ListVars,
		Source:            doc.Source,
		Install:           doc.Install,
		Toolchain:         doc.Toolchain,
		Triggers:          doc.Triggers,
		ResultsGlob:       doc.ResultsGlob,
		FilePath:          filename,
	}

	if ok, errs := m.IsValid(); !ok {
		return nil, fmt.Errorf("%s: %w", filename, ValidationErrors(errs))
	}
	return m, nil
}
