// SPDX-License-Identifier: MPL-2.0

package report

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrNoTestsDiscovered marks a cell whose commands all passed but whose
// results files contain zero tests. A simulator that silently ran nothing
// must not count as green.
var ErrNoTestsDiscovered = errors.New("no tests discovered in results files")

type (
	// junitTestSuites is the <testsuites> root element.
	junitTestSuites struct {
		XMLName xml.Name         `xml:"testsuites"`
		Suites  []junitTestSuite `xml:"testsuite"`
	}

	// junitTestSuite is one <testsuite>, either nested or the root.
	junitTestSuite struct {
		XMLName  xml.Name        `xml:"testsuite"`
		Tests    int             `xml:"tests,attr"`
		Failures int             `xml:"failures,attr"`
		Errors   int             `xml:"errors,attr"`
		Skipped  int             `xml:"skipped,attr"`
		Time     float64         `xml:"time,attr"`
		Cases    []junitTestCase `xml:"testcase"`
	}

	junitTestCase struct {
		Failures []struct{} `xml:"failure"`
		Errors   []struct{} `xml:"error"`
		Skipped  []struct{} `xml:"skipped"`
	}
)

// ParseJUnitFile reads one JUnit XML file. Both <testsuites> and a bare
// <testsuite> root are accepted; counts missing from suite attributes are
// recovered from the test cases.
func ParseJUnitFile(path string) (*ResultsRollup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}

	var suites []junitTestSuite
	var root junitTestSuites
	if err := xml.Unmarshal(data, &root); err == nil {
		suites = root.Suites
	} else {
		var single junitTestSuite
		if err := xml.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("failed to parse results file %s: %w", filepath.Base(path), err)
		}
		suites = []junitTestSuite{single}
	}

	rollup := &ResultsRollup{Files: 1}
	for _, suite := range suites {
		rollup.Time += suite.Time
		if suite.Tests == 0 && len(suite.Cases) > 0 {
			suite.Tests = len(suite.Cases)
		}
		rollup.Tests += suite.Tests
		if suite.Failures == 0 && suite.Errors == 0 && suite.Skipped == 0 {
			for _, c := range suite.Cases {
				suite.Failures += len(c.Failures)
				suite.Errors += len(c.Errors)
				suite.Skipped += len(c.Skipped)
			}
		}
		rollup.Failures += suite.Failures
		rollup.Errors += suite.Errors
		rollup.Skipped += suite.Skipped
	}
	return rollup, nil
}

// CollectResults gathers every results file under dir matching pattern and
// folds them into one rollup. No matching files yields a zero rollup with
// Files == 0, which callers treat like zero tests.
func CollectResults(dir, pattern string) (*ResultsRollup, error) {
	matches, err := expandResultsGlob(dir, pattern)
	if err != nil {
		return nil, err
	}

	total := &ResultsRollup{}
	for _, match := range matches {
		one, err := ParseJUnitFile(match)
		if err != nil {
			return nil, err
		}
		total.Files++
		total.Tests += one.Tests
		total.Failures += one.Failures
		total.Errors += one.Errors
		total.Skipped += one.Skipped
		total.Time += one.Time
	}
	return total, nil
}

// Failed reports whether the rollup demotes a green command sequence: any
// failure or error, or nothing discovered at all.
func (r *ResultsRollup) Failed() bool {
	return r.Failures > 0 || r.Errors > 0 || r.Tests == 0
}

// ResultsHook adapts CollectResults to the scheduler's post-run hook shape.
// It runs only for cells whose commands all passed, while the cell workdir
// still exists, and may demote the outcome to failed.
func ResultsHook(pattern string) func(ctx context.Context, workDir string, outcome *EnvironmentOutcome) {
	return func(_ context.Context, workDir string, outcome *EnvironmentOutcome) {
		rollup, err := CollectResults(workDir, pattern)
		if err != nil {
			outcome.Status = StatusFailed
			outcome.Results = &ResultsRollup{}
			return
		}
		outcome.Results = rollup
		if rollup.Failed() {
			outcome.Status = StatusFailed
		}
	}
}

// expandResultsGlob resolves pattern relative to dir. A leading "**/" means
// "at any depth"; everything else is a plain filepath glob. The pattern also
// matches at the top level, so "**/results.xml" finds ./results.xml too.
func expandResultsGlob(dir, pattern string) ([]string, error) {
	tail, recursive := strings.CutPrefix(pattern, "**/")
	if !recursive {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid results glob %q: %w", pattern, err)
		}
		return matches, nil
	}

	if _, err := path.Match(tail, ""); err != nil {
		return nil, fmt.Errorf("invalid results glob %q: %w", pattern, err)
	}
	var matches []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ok, _ := path.Match(tail, d.Name())
		if ok {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan for results files: %w", err)
	}
	return matches, nil
}
