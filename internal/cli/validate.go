package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/appsim/internal/app"
	"github.com/roach88/appsim/internal/compiler"
	"github.com/roach88/appsim/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Apps   []string                   `json:"apps,omitempty"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate app definitions",
		Long: `Validate app definitions without running them.

<path> is a .json or .cue definition file, or a directory of them.
Every action's logic is compiled, so malformed expressions, templates and
targets are reported here rather than on first use. All problems are
reported, not just the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	defs, lerr := LoadDefinitions(path)
	if lerr != nil {
		return failLoad(formatter, lerr)
	}
	formatter.VerboseLog("Found %d app definition(s) in %s", len(defs), path)

	ids, errs := validateAll(defs, formatter)
	if len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Apps: ids})
	}
	fmt.Fprintf(formatter.Writer, "✓ %d app(s) valid\n", len(ids))
	for _, id := range ids {
		fmt.Fprintf(formatter.Writer, "  %s\n", id)
	}
	return nil
}

// validateAll validates every definition and rejects duplicate app ids.
// Field paths are prefixed with the app id when more than one app is
// checked.
func validateAll(defs []*ir.AppDefinition, formatter *OutputFormatter) ([]string, []compiler.ValidationError) {
	reg := app.NewRegistry()
	var all []compiler.ValidationError

	for _, def := range defs {
		formatter.VerboseLog("Validating app: %s", def.AppID)

		errs := compiler.Validate(def)
		if len(errs) == 0 {
			if err := reg.Register(def); errors.Is(err, app.ErrDuplicateApp) {
				errs = append(errs, compiler.ValidationError{
					Field:   "appId",
					Message: fmt.Sprintf("app %q is defined more than once", def.AppID),
					Code:    compiler.ErrDuplicateName,
				})
			}
		}
		if len(defs) > 1 {
			for i := range errs {
				errs[i].Field = def.AppID + "." + errs[i].Field
			}
		}
		all = append(all, errs...)
	}

	return reg.List(), all
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	// Validation failures = exit code 1 (test/validation failure)
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		if err := formatter.Failure(errs[0].Code, errs[0].Message, ValidationResult{Valid: false, Errors: errs}); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return exitErr
}
