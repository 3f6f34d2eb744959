package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/appsim/internal/app"
	"github.com/roach88/appsim/internal/ir"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	AppID     string
	Agent     string
	Params    string
	StatePath string
	OutState  string
	Agents    []string
}

// ActionOutput is the result of one action call, shared by exec and invoke.
type ActionOutput struct {
	AppID        string           `json:"app_id"`
	Agent        string           `json:"agent"`
	Action       string           `json:"action"`
	Seq          int64            `json:"seq,omitempty"`
	Result       ir.AppResult     `json:"result"`
	Observations []ir.Observation `json:"observations"`
	StateHash    string           `json:"state_hash"`
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <definition> <action>",
		Short: "Run one action without persisting anything",
		Long: `Run one action of an app definition as a stateless call.

The call starts from the schema defaults, or from a state snapshot given
with --state, and nothing is written back unless --out-state is set. The
acting agent and any --agents are added to the state if missing.

Exit codes:
  0 - Action succeeded
  1 - Action failed (validation, condition, explicit error, limits)
  2 - Command error (bad definition, params or state file)

Examples:
  appsim exec ./apps/payments.json get_balance --agent alice
  appsim exec ./apps/payments.json transfer --agent alice --agents bob \
      --params '{"to": "bob", "amount": 25}' --out-state after.json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.AppID, "app", "", "app id when the definition file holds several")
	cmd.Flags().StringVar(&opts.Agent, "agent", "", "acting agent id (required)")
	_ = cmd.MarkFlagRequired("agent")
	cmd.Flags().StringVar(&opts.Params, "params", "{}", "action parameters as a JSON object")
	cmd.Flags().StringVar(&opts.StatePath, "state", "", "state snapshot file to start from")
	cmd.Flags().StringVar(&opts.OutState, "out-state", "", "write the resulting state snapshot to this file")
	cmd.Flags().StringSliceVar(&opts.Agents, "agents", nil, "additional agent ids to create")

	return cmd
}

func runExec(opts *ExecOptions, path, action string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	def, err := loadApp(formatter, path, opts.AppID)
	if err != nil {
		return err
	}
	params, err := parseParams(opts.Params)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadInput, "invalid --params", err)
	}

	sink, err := opts.newMetricsSink()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to set up metrics", err)
	}
	a, err := app.New(def,
		app.WithAgents(opts.Agents...),
		app.WithConfig(opts.settings()),
		app.WithLogger(opts.logger()),
		sink.option(),
	)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to build app", err)
	}
	if opts.StatePath != "" {
		data, err := os.ReadFile(opts.StatePath)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, "failed to read state file", err)
		}
		if err := a.RestoreState(data); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBadInput, "invalid state file", err)
		}
		for _, id := range opts.Agents {
			a.AddAgent(id)
		}
	}
	a.AddAgent(opts.Agent)

	res, after, obs := a.ExecuteStateless(opts.Agent, action, params, a.State())
	hash, err := after.Hash()
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to hash state", err)
	}

	if opts.OutState != "" {
		snapshot, err := after.Snapshot()
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to snapshot state", err)
		}
		if err := os.WriteFile(opts.OutState, snapshot, 0o644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write state file", err)
		}
		formatter.VerboseLog("Wrote state snapshot to %s", opts.OutState)
	}
	if err := sink.flush(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write metrics", err)
	}

	return outputAction(formatter, ActionOutput{
		AppID:        def.AppID,
		Agent:        opts.Agent,
		Action:       action,
		Result:       res,
		Observations: obs,
		StateHash:    hash,
	})
}

// parseParams decodes a JSON object of action parameters.
func parseParams(raw string) (ir.IRObject, error) {
	if raw == "" {
		return ir.IRObject{}, nil
	}
	v, err := ir.UnmarshalIRValue([]byte(raw))
	if err != nil {
		return nil, err
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("params must be a JSON object, got %s", ir.KindOf(v))
	}
	return obj, nil
}

// outputAction prints an action result. A failed action is exit code 1.
func outputAction(f *OutputFormatter, out ActionOutput) error {
	if out.Observations == nil {
		out.Observations = []ir.Observation{}
	}

	if f.JSON() {
		if out.Result.Success {
			return f.Success(out)
		}
		if err := f.Failure(ErrCodeActionFailed, out.Result.Error, out); err != nil {
			return err
		}
		return NewExitError(ExitFailure, out.Result.Error)
	}

	w := f.Writer
	if out.Result.Success {
		fmt.Fprintf(w, "✓ %s as %s\n", out.Action, out.Agent)
		data, err := ir.MarshalCanonical(out.Result.Data)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  data: %s\n", data)
	} else {
		fmt.Fprintf(w, "✗ %s as %s\n", out.Action, out.Agent)
		fmt.Fprintf(w, "  error: %s\n", out.Result.Error)
	}
	for _, o := range out.Observations {
		fmt.Fprintf(w, "  -> %s [%s] #%d: %s\n", o.ToAgent, o.Priority, o.Seq, o.Message)
	}
	if out.Seq > 0 {
		fmt.Fprintf(w, "  seq: %d\n", out.Seq)
	}
	fmt.Fprintf(w, "  state: %s\n", out.StateHash)

	if !out.Result.Success {
		return NewExitError(ExitFailure, out.Result.Error)
	}
	return nil
}
