package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioNotFoundError is returned when a scenario path doesn't exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist", e.Path)
}

// DiscoverScenarios returns the scenario files at path. A file is returned
// as is; a directory yields every .yaml and .yml file directly inside it,
// sorted.
func DiscoverScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &ScenarioNotFoundError{Path: path}
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	paths := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// SuiteResult summarizes a batch of scenario runs.
type SuiteResult struct {
	Total     int               `json:"total"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Scenarios []ScenarioOutcome `json:"scenarios"`
}

// ScenarioOutcome is the result of one scenario in a suite.
type ScenarioOutcome struct {
	Path   string   `json:"path"`
	Name   string   `json:"name,omitempty"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// Failures returns the outcomes that did not pass, in run order.
func (r *SuiteResult) Failures() []ScenarioOutcome {
	var out []ScenarioOutcome
	for _, o := range r.Scenarios {
		if !o.Pass {
			out = append(out, o)
		}
	}
	return out
}

// RunSuite loads and runs each scenario in order. A scenario that fails to
// load or run counts as failed; the suite carries on with the rest.
// Checks registered with WithCheck run after each scenario that ran.
// Cancelling ctx stops before the next scenario.
func RunSuite(ctx context.Context, paths []string, opts ...Option) (*SuiteResult, error) {
	o := newRunOptions(opts)
	result := &SuiteResult{Scenarios: []ScenarioOutcome{}}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.add(runOne(path, o, opts))
	}

	return result, nil
}

func runOne(path string, o runOptions, opts []Option) ScenarioOutcome {
	out := ScenarioOutcome{Path: path}

	scenario, err := LoadScenario(path)
	if err != nil {
		out.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return out
	}
	out.Name = scenario.Name

	runResult, err := Run(scenario, opts...)
	if err != nil {
		out.Errors = []string{fmt.Sprintf("scenario execution failed: %v", err)}
		return out
	}

	out.Errors = runResult.Errors
	for _, check := range o.checks {
		if err := check(path, scenario, runResult); err != nil {
			out.Errors = append(out.Errors, err.Error())
		}
	}
	out.Pass = len(out.Errors) == 0
	return out
}

func (r *SuiteResult) add(o ScenarioOutcome) {
	r.Total++
	if o.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
	r.Scenarios = append(r.Scenarios, o)
}
