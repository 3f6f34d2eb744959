package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/appsim/internal/ir"
)

// ObserveOptions holds flags for the observe command.
type ObserveOptions struct {
	*RootOptions
	Agent string
}

// ObserveResult holds the observe command output.
type ObserveResult struct {
	AppID        string           `json:"app_id"`
	Agent        string           `json:"agent"`
	Observations []ir.Observation `json:"observations"`
}

// NewObserveCommand creates the observe command.
func NewObserveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ObserveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "observe <app-id>",
		Short: "Read and clear an agent's pending observations",
		Long: `Print the observations queued for an agent by earlier invoke calls,
oldest first, and remove them from the queue.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runObserve(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Agent, "agent", "", "recipient agent id (required)")
	_ = cmd.MarkFlagRequired("agent")

	return cmd
}

func runObserve(opts *ObserveOptions, appID string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := opts.formatter(cmd)

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.GetDefinition(ctx, appID); err != nil {
		return failStore(formatter, err)
	}
	obs, err := st.DrainObservations(ctx, appID, opts.Agent)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read observations", err)
	}
	opts.logger().Debug("observations drained", "app_id", appID, "agent_id", opts.Agent, "count", len(obs))

	if formatter.JSON() {
		return formatter.Success(ObserveResult{AppID: appID, Agent: opts.Agent, Observations: obs})
	}

	fmt.Fprintf(formatter.Writer, "%d observation(s) for %s\n", len(obs), opts.Agent)
	for _, o := range obs {
		fmt.Fprintf(formatter.Writer, "  #%d [%s] %s\n", o.Seq, o.Priority, o.Message)
		if len(o.Data) > 0 {
			data, err := ir.MarshalCanonical(o.Data)
			if err != nil {
				return err
			}
			fmt.Fprintf(formatter.Writer, "      %s\n", data)
		}
	}
	return nil
}
