package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/appsim/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output directory
}

// CompiledApp describes one compiled definition.
type CompiledApp struct {
	AppID   string `json:"app_id"`
	Hash    string `json:"hash"`
	Actions int    `json:"actions"`
	Path    string `json:"path,omitempty"`
}

// CompileResult holds the compile command output.
type CompileResult struct {
	Apps []CompiledApp `json:"apps"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <path>",
		Short: "Compile app definitions to canonical JSON",
		Long: `Compile .json or .cue app definitions to canonical JSON.

Definitions are validated first. With --output, each app is written to
<dir>/<appId>.json; otherwise the canonical JSON is printed, one app per
line. Canonical output is byte-stable, so its hash matches the one
recorded by register.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output directory")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	defs, lerr := LoadDefinitions(path)
	if lerr != nil {
		return failLoad(formatter, lerr)
	}
	if _, errs := validateAll(defs, formatter); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	if opts.Output != "" {
		if err := os.MkdirAll(opts.Output, 0o755); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "creating output directory", err)
		}
	}

	result := CompileResult{Apps: make([]CompiledApp, 0, len(defs))}
	for _, def := range defs {
		formatter.VerboseLog("Compiling app: %s", def.AppID)

		data, hash, err := canonicalDefinition(def)
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeGeneric, fmt.Sprintf("encoding %s", def.AppID), err)
		}
		compiled := CompiledApp{AppID: def.AppID, Hash: hash, Actions: len(def.Actions)}

		switch {
		case opts.Output != "":
			compiled.Path = filepath.Join(opts.Output, def.AppID+".json")
			if err := os.WriteFile(compiled.Path, data, 0o644); err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "writing output file", err)
			}
		case !formatter.JSON():
			fmt.Fprintln(formatter.Writer, string(data))
		}
		result.Apps = append(result.Apps, compiled)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	if opts.Output != "" {
		for _, a := range result.Apps {
			fmt.Fprintf(formatter.Writer, "✓ %s -> %s (%d actions)\n", a.AppID, a.Path, a.Actions)
		}
	}
	return nil
}

// canonicalDefinition returns the canonical JSON and content hash of def.
func canonicalDefinition(def *ir.AppDefinition) ([]byte, string, error) {
	obj, err := def.ToObject()
	if err != nil {
		return nil, "", err
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return nil, "", err
	}
	hash, err := ir.DefinitionHash(def)
	if err != nil {
		return nil, "", err
	}
	return data, hash, nil
}
