package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/appsim/internal/app"
	"github.com/roach88/appsim/internal/store"
)

// RegisterOptions holds flags for the register command.
type RegisterOptions struct {
	*RootOptions
	AppID  string
	Agents []string
}

// RegisterResult holds the register command output.
type RegisterResult struct {
	AppID     string   `json:"app_id"`
	Hash      string   `json:"hash"`
	Created   bool     `json:"created"`
	Agents    []string `json:"agents"`
	Seq       int64    `json:"seq"`
	StateHash string   `json:"state_hash"`
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register <definition>",
		Short: "Store an app definition and its initial state",
		Long: `Validate an app definition and store it in the database together
with an initial state checkpoint built from the schema defaults.

Registering identical content again is allowed and adds any new --agents
to the latest state. Different content under an existing app id is
rejected.

Examples:
  appsim register ./apps/payments.json --agents alice,bob --db sim.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.AppID, "app", "", "app id when the definition file holds several")
	cmd.Flags().StringSliceVar(&opts.Agents, "agents", nil, "agent ids to create")

	return cmd
}

func runRegister(opts *RegisterOptions, path string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := opts.formatter(cmd)
	logger := opts.logger()

	def, err := loadApp(formatter, path, opts.AppID)
	if err != nil {
		return err
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	hash, err := st.PutDefinition(ctx, def)
	if errors.Is(err, store.ErrDefinitionConflict) {
		return formatter.Fail(ExitFailure, ErrCodeConflict, fmt.Sprintf("app %q is already registered with different content", def.AppID), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to store definition", err)
	}

	result := RegisterResult{AppID: def.AppID, Hash: hash}

	cp, err := st.LatestCheckpoint(ctx, def.AppID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		result.Created = true
		cp = store.Checkpoint{AppID: def.AppID}
	case err != nil:
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read checkpoint", err)
	}

	a, err := app.New(def, app.WithLogger(logger), app.WithAgents(opts.Agents...))
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to build app", err)
	}
	added := result.Created
	if !result.Created {
		if err := a.RestoreState(cp.Snapshot); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "stored checkpoint is corrupt", err)
		}
		for _, id := range opts.Agents {
			if a.AddAgent(id) {
				added = true
			}
		}
	}

	result.StateHash = cp.StateHash
	if added {
		snapshot, err := a.GetStateSnapshot()
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to snapshot state", err)
		}
		cp.Snapshot = snapshot
		if result.StateHash, err = st.WriteCheckpoint(ctx, cp); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to write checkpoint", err)
		}
	}
	result.Agents = a.Agents()
	result.Seq = cp.Seq

	logger.Info("app registered",
		"app_id", def.AppID,
		"hash", hash,
		"created", result.Created,
		"agents", len(result.Agents),
	)

	if formatter.JSON() {
		return formatter.Success(result)
	}
	verb := "Registered"
	if !result.Created {
		verb = "Already registered"
	}
	fmt.Fprintf(formatter.Writer, "✓ %s %s\n", verb, result.AppID)
	fmt.Fprintf(formatter.Writer, "  hash: %s\n", result.Hash)
	fmt.Fprintf(formatter.Writer, "  agents: %v\n", result.Agents)
	fmt.Fprintf(formatter.Writer, "  state: %s\n", result.StateHash)
	return nil
}
