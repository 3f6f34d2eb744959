package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/appsim/internal/app"
	"github.com/roach88/appsim/internal/ir"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	AppID string
}

// InspectResult describes one app definition.
type InspectResult struct {
	AppID       string              `json:"app_id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Category    string              `json:"category,omitempty"`
	Hash        string              `json:"hash"`
	Actions     []app.ActionSummary `json:"actions"`
	StateSchema []ir.StateFieldDef  `json:"state_schema"`
	Config      ir.IRObject         `json:"initial_config,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <definition>",
		Short: "Show an app's actions, parameters and state schema",
		Long: `Show the content hash, actions, parameters and state schema of an
app definition. Use --app when the file defines more than one app.

Examples:
  appsim inspect ./apps/payments.json
  appsim inspect ./apps/catalog.cue --app inventory --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.AppID, "app", "", "app id to inspect")

	return cmd
}

func runInspect(opts *InspectOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	def, err := loadApp(formatter, path, opts.AppID)
	if err != nil {
		return err
	}

	a, err := app.New(def, app.WithLogger(opts.logger()))
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to build app", err)
	}
	hash, err := ir.DefinitionHash(def)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to hash definition", err)
	}

	result := InspectResult{
		AppID:       def.AppID,
		Name:        def.Name,
		Description: def.Description,
		Category:    def.Category,
		Hash:        hash,
		Actions:     a.GetActions(),
		StateSchema: def.StateSchema,
		Config:      def.InitialConfig,
	}
	if result.StateSchema == nil {
		result.StateSchema = []ir.StateFieldDef{}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	printInspect(formatter, result)
	return nil
}

func printInspect(f *OutputFormatter, r InspectResult) {
	w := f.Writer
	fmt.Fprintf(w, "App: %s (%s)\n", r.AppID, r.Name)
	if r.Description != "" {
		fmt.Fprintf(w, "  %s\n", r.Description)
	}
	fmt.Fprintf(w, "Hash: %s\n", r.Hash)

	fmt.Fprintf(w, "\nActions (%d):\n", len(r.Actions))
	for _, a := range r.Actions {
		fmt.Fprintf(w, "  %s(%s)\n", a.Name, formatParams(a.Parameters))
		if a.Description != "" {
			fmt.Fprintf(w, "      %s\n", a.Description)
		}
	}

	fmt.Fprintf(w, "\nState (%d):\n", len(r.StateSchema))
	for _, field := range r.StateSchema {
		scope := "shared"
		if field.PerAgent {
			scope = "per-agent"
		}
		fmt.Fprintf(w, "  %-16s %-8s %-10s default %s\n",
			field.Name, field.Type, scope, renderValue(field.InitialValue()))
	}
}

// formatParams renders parameters as "name: type, opt?: type = default",
// required parameters first, each group sorted by name.
func formatParams(params map[string]ir.ParamSpec) string {
	names := (&ir.ActionDefinition{Parameters: params}).ParamNames()
	var required, optional []string
	for _, name := range names {
		spec := params[name]
		if spec.Required {
			required = append(required, fmt.Sprintf("%s: %s", name, spec.Type))
			continue
		}
		s := fmt.Sprintf("%s?: %s", name, spec.Type)
		if spec.Default != nil {
			s += " = " + renderValue(spec.Default)
		}
		optional = append(optional, s)
	}
	return strings.Join(append(required, optional...), ", ")
}

// renderValue prints v as canonical JSON.
func renderValue(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return ir.Stringify(v)
	}
	return string(data)
}
