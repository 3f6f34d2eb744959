package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/appsim/internal/ir"
	"github.com/roach88/appsim/internal/queryir"
	"github.com/roach88/appsim/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	After   int64
	Action  string // optional - filter to specific action
	Agent   string // optional - filter to specific agent
	Outcome string // optional - "success" or an error kind
}

// JournalEntry is one journaled call.
type JournalEntry struct {
	Seq          int64        `json:"seq"`
	Agent        string       `json:"agent"`
	Action       string       `json:"action"`
	Params       ir.IRObject  `json:"params"`
	Result       ir.AppResult `json:"result"`
	Outcome      string       `json:"outcome"`
	Observations int          `json:"observations"`
	StateHash    string       `json:"state_hash"`
}

// JournalStats holds summary statistics for the journal.
type JournalStats struct {
	Total        int            `json:"total"`
	Succeeded    int            `json:"succeeded"`
	Failed       int            `json:"failed"`
	Observations int            `json:"observations"`
	Outcomes     map[string]int `json:"outcomes"`
}

// JournalResult holds the complete journal output.
type JournalResult struct {
	AppID   string         `json:"app_id"`
	Entries []JournalEntry `json:"entries"`
	Stats   JournalStats   `json:"stats"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal <app-id>",
		Short: "Show the execution journal of a stored app",
		Long: `Show every stateful call recorded for an app, in sequence order,
with its parameters, result, observation count and resulting state hash.

Examples:
  appsim journal payments
  appsim journal payments --after 10 --action transfer
  appsim journal payments --agent alice --format json
  appsim journal payments --outcome condition_failed`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, args[0], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.After, "after", 0, "only show entries with seq greater than this")
	cmd.Flags().StringVar(&opts.Action, "action", "", "filter to a specific action")
	cmd.Flags().StringVar(&opts.Agent, "agent", "", "filter to a specific agent")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "filter to an outcome (success or an error kind)")

	return cmd
}

func runJournal(opts *JournalOptions, appID string, cmd *cobra.Command) error {
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
	records, err := st.QueryExecutions(ctx, appID, journalFilter(opts))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read journal", err)
	}

	result := JournalResult{
		AppID:   appID,
		Entries: buildJournal(records),
	}
	result.Stats = journalStats(result.Entries)

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputJournalText(formatter.Writer, result, opts.Verbose)
}

// journalFilter builds the store query for the command's flags.
func journalFilter(opts *JournalOptions) queryir.Predicate {
	filter := []queryir.Predicate{store.AfterSeq(opts.After)}
	if opts.Action != "" {
		filter = append(filter, store.ByAction(opts.Action))
	}
	if opts.Agent != "" {
		filter = append(filter, store.ByAgent(opts.Agent))
	}
	if opts.Outcome != "" {
		filter = append(filter, store.ByOutcome(opts.Outcome))
	}
	return queryir.All(filter...)
}

// buildJournal converts stored records to entries.
func buildJournal(records []store.ExecutionRecord) []JournalEntry {
	entries := make([]JournalEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, JournalEntry{
			Seq:          rec.Seq,
			Agent:        rec.AgentID,
			Action:       rec.Action,
			Params:       rec.Params,
			Result:       rec.Result,
			Outcome:      rec.Result.Outcome(),
			Observations: len(rec.Observations),
			StateHash:    rec.StateHash,
		})
	}
	return entries
}

func journalStats(entries []JournalEntry) JournalStats {
	stats := JournalStats{Total: len(entries), Outcomes: map[string]int{}}
	for _, e := range entries {
		if e.Result.Success {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
		stats.Observations += e.Observations
		stats.Outcomes[e.Outcome]++
	}
	return stats
}

// outputJournalText outputs the journal as text.
func outputJournalText(w io.Writer, result JournalResult, verbose bool) error {
	fmt.Fprintf(w, "Journal for App: %s\n", result.AppID)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Executions ===")
	if len(result.Entries) == 0 {
		fmt.Fprintln(w, "  (no executions)")
	}
	for _, e := range result.Entries {
		params, err := ir.MarshalCanonical(e.Params)
		if err != nil {
			return err
		}
		mark := "✓"
		if !e.Result.Success {
			mark = "✗"
		}
		fmt.Fprintf(w, "  [%d] %s %s %s %s -> %s\n", e.Seq, mark, e.Agent, e.Action, params, e.Outcome)
		if !e.Result.Success {
			fmt.Fprintf(w, "      error: %s\n", e.Result.Error)
		}
		if verbose {
			fmt.Fprintf(w, "      observations: %d  state: %s\n", e.Observations, e.StateHash)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total: %d  Succeeded: %d  Failed: %d  Observations: %d\n",
		result.Stats.Total, result.Stats.Succeeded, result.Stats.Failed, result.Stats.Observations)
	outcomes := make([]string, 0, len(result.Stats.Outcomes))
	for o := range result.Stats.Outcomes {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Fprintf(w, "  %s: %d\n", o, result.Stats.Outcomes[o])
	}
	return nil
}
