package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/appsim/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// errGoldenMismatch marks a trace that differs from its golden file.
var errGoldenMismatch = errors.New("trace does not match golden file (run with --update to regenerate)")

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios>",
		Short: "Run scenario tests against app definitions",
		Long: `Run YAML test scenarios with the harness.

<scenarios> is a scenario file or a directory of them. Each scenario
names its definition file, relative to the scenario. Steps are checked
against their expect clauses, then assertions run against the final
state, observations and execution journal. When golden/<name>.golden
exists next to a scenario, the trace must match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  appsim test ./scenarios
  appsim test ./scenarios --filter "transfer_*"
  appsim test ./scenarios --update
  appsim test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	paths, err := harness.DiscoverScenarios(path)
	var nf *harness.ScenarioNotFoundError
	if errors.As(err, &nf) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenarios not found: %s", path), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to find scenarios", err)
	}
	paths, err = filterScenarios(paths, opts.Filter)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadInput, "invalid filter pattern", err)
	}

	if len(paths) == 0 {
		if formatter.JSON() {
			return formatter.Success(harness.SuiteResult{Scenarios: []harness.ScenarioOutcome{}})
		}
		fmt.Fprintln(formatter.Writer, "No scenarios found.")
		return nil
	}

	result, err := harness.RunSuite(context.Background(), paths,
		harness.WithLogger(opts.logger()),
		harness.WithCheck(goldenCheck(opts.Update)),
	)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "scenario run interrupted", err)
	}

	if formatter.JSON() {
		return outputTestJSON(formatter, result)
	}
	return outputTestText(formatter, result, opts.Update)
}

// filterScenarios keeps paths whose base name, without extension, matches
// the glob pattern.
func filterScenarios(paths []string, pattern string) ([]string, error) {
	if pattern == "" {
		return paths, nil
	}
	var out []string
	for _, p := range paths {
		base := filepath.Base(p)
		matched, err := filepath.Match(pattern, strings.TrimSuffix(base, filepath.Ext(base)))
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, p)
		}
	}
	return out, nil
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// goldenCheck compares each trace with its golden file, or rewrites the
// file when update is set. Scenarios without a golden file pass on their
// assertions alone.
func goldenCheck(update bool) harness.Check {
	return func(path string, scenario *harness.Scenario, result *harness.Result) error {
		current, err := harness.MarshalTrace(scenario.Name, result)
		if err != nil {
			return fmt.Errorf("failed to marshal trace: %w", err)
		}

		goldenPath := goldenFilePath(path)
		if update {
			if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
				return fmt.Errorf("failed to create golden directory: %w", err)
			}
			if err := os.WriteFile(goldenPath, current, 0o644); err != nil {
				return fmt.Errorf("failed to write golden file: %w", err)
			}
			return nil
		}

		golden, err := os.ReadFile(goldenPath)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read golden file: %w", err)
		}
		if !bytes.Equal(golden, current) {
			return errGoldenMismatch
		}
		return nil
	}
}

// outputTestJSON outputs the suite result as JSON.
func outputTestJSON(f *OutputFormatter, result *harness.SuiteResult) error {
	if result.Failed == 0 {
		return f.Success(result)
	}
	msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
	if err := f.Failure(ErrCodeTestFailed, msg, result); err != nil {
		return err
	}
	// Test failures = exit code 1
	return NewExitError(ExitFailure, msg)
}

// outputTestText outputs the suite result as text.
func outputTestText(f *OutputFormatter, result *harness.SuiteResult, update bool) error {
	w := f.Writer
	for _, s := range result.Scenarios {
		name := s.Name
		if name == "" {
			name = filepath.Base(s.Path)
		}
		if !s.Pass {
			fmt.Fprintf(w, "✗ %s\n", name)
			for _, e := range s.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
			continue
		}
		if update {
			fmt.Fprintf(w, "✓ %s (golden updated)\n", name)
		} else {
			fmt.Fprintf(w, "✓ %s\n", name)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}
