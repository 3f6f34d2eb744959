package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/appsim/internal/app"
	"github.com/roach88/appsim/internal/engine"
	"github.com/roach88/appsim/internal/store"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Agent  string
	Params string
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <app-id> <action>",
		Short: "Run one action against stored app state",
		Long: `Run one action of a registered app as a stateful call.

The app resumes from its latest checkpoint. The call is journaled,
observations for other agents are queued in the database (read them
with observe), and a new checkpoint is written, all in one database
transaction. State changes made before a failure are kept, as with any
stateful call.

Examples:
  appsim invoke payments transfer --agent alice --params '{"to": "bob", "amount": 25}'
  appsim invoke payments get_balance --agent bob --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Agent, "agent", "", "acting agent id (required)")
	_ = cmd.MarkFlagRequired("agent")
	cmd.Flags().StringVar(&opts.Params, "params", "{}", "action parameters as a JSON object")

	return cmd
}

func runInvoke(opts *InvokeOptions, appID, action string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := opts.formatter(cmd)
	logger := opts.logger()

	params, err := parseParams(opts.Params)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadInput, "invalid --params", err)
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	sink, err := opts.newMetricsSink()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to set up metrics", err)
	}
	a, cp, err := resumeApp(ctx, st, appID, opts.RootOptions, logger, sink.option())
	if err != nil {
		return failStore(formatter, err)
	}

	res := a.Execute(opts.Agent, action, params)
	obs := a.DrainAllObservations()

	snapshot, err := a.GetStateSnapshot()
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to snapshot state", err)
	}

	next, err := st.RecordInvocation(ctx, store.ExecutionRecord{
		AppID:        appID,
		AgentID:      opts.Agent,
		Action:       action,
		Params:       params,
		Result:       res,
		Observations: obs,
	}, store.Checkpoint{
		Clock:    a.Clock().Current(),
		Snapshot: snapshot,
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to record invocation", err)
	}
	seq, stateHash := next.Seq, next.StateHash
	if err := sink.flush(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write metrics", err)
	}

	logger.Info("action invoked",
		"app_id", appID,
		"action", action,
		"agent_id", opts.Agent,
		"seq", seq,
		"outcome", res.Outcome(),
		"observations", len(obs),
		"from_seq", cp.Seq,
	)

	return outputAction(formatter, ActionOutput{
		AppID:        appID,
		Agent:        opts.Agent,
		Action:       action,
		Seq:          seq,
		Result:       res,
		Observations: obs,
		StateHash:    stateHash,
	})
}

// resumeApp rebuilds a stored app from its definition and latest
// checkpoint. The observation clock continues from the checkpoint.
func resumeApp(ctx context.Context, st *store.Store, appID string, opts *RootOptions, logger *slog.Logger, extra ...app.Option) (*app.DynamicApp, store.Checkpoint, error) {
	rec, err := st.GetDefinition(ctx, appID)
	if err != nil {
		return nil, store.Checkpoint{}, err
	}
	cp, err := st.LatestCheckpoint(ctx, appID)
	if err != nil {
		return nil, store.Checkpoint{}, err
	}

	appOpts := append([]app.Option{
		app.WithClock(engine.NewClockAt(cp.Clock)),
		app.WithConfig(opts.settings()),
		app.WithLogger(logger),
	}, extra...)
	a, err := app.New(rec.Definition, appOpts...)
	if err != nil {
		return nil, store.Checkpoint{}, err
	}
	if err := a.RestoreState(cp.Snapshot); err != nil {
		return nil, store.Checkpoint{}, fmt.Errorf("checkpoint %d: %w", cp.Seq, err)
	}
	return a, cp, nil
}

// failStore reports a lookup failure. Unknown apps are command errors.
func failStore(f *OutputFormatter, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, "app not registered (run register first)", err)
	}
	return f.Fail(ExitCommandError, ErrCodeStore, "failed to load app", err)
}
