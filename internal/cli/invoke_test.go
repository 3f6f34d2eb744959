package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/appsim/internal/ir"
	"github.com/roach88/appsim/internal/store"
)

// registerPayments registers payments for alice and bob in a fresh
// database and returns text-format options pointing at it.
func registerPayments(t *testing.T) *RootOptions {
	t.Helper()
	opts := textOpts(t)
	_, err := execute(t, NewRegisterCommand, opts, paymentsDef, "--agents", "alice,bob")
	require.NoError(t, err)
	return opts
}

func TestRegisterCommand(t *testing.T) {
	opts := textOpts(t)

	out, err := execute(t, NewRegisterCommand, opts, paymentsDef, "--agents", "alice,bob")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Registered payments")
	assert.Contains(t, out, "agents: [alice bob]")

	opts.Format = "json"
	out, err = execute(t, NewRegisterCommand, opts, paymentsDef, "--agents", "carol")
	require.NoError(t, err)
	var result RegisterResult
	decodeResponse(t, out, &result)
	assert.False(t, result.Created)
	assert.Equal(t, []string{"alice", "bob", "carol"}, result.Agents)
	assert.Equal(t, int64(0), result.Seq)

	// Same content, nothing new: the state hash is unchanged.
	out, err = execute(t, NewRegisterCommand, opts, paymentsDef)
	require.NoError(t, err)
	var again RegisterResult
	decodeResponse(t, out, &again)
	assert.Equal(t, result.StateHash, again.StateHash)
	assert.Equal(t, result.Hash, again.Hash)
}

func TestRegisterCommand_Conflict(t *testing.T) {
	opts := registerPayments(t)
	changed := writeFile(t, t.TempDir(), "payments.json",
		paymentsVariant(t, `"name": "Payments"`, `"name": "Payments v2"`))

	out, err := execute(t, NewRegisterCommand, opts, changed)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, ErrCodeConflict)
}

func TestRegisterCommand_InvalidDefinition(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.json", `{"appId": "bad", "name": "Bad", "actions": []}`)
	_, err := execute(t, NewRegisterCommand, textOpts(t), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestInvokeCommand_Flow(t *testing.T) {
	opts := registerPayments(t)

	out, err := execute(t, NewInvokeCommand, opts, "payments", "transfer",
		"--agent", "alice", "--params", `{"to": "bob", "amount": 100}`)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ transfer as alice")
	assert.Contains(t, out, "-> bob [high] #1: You received $100 from alice")
	assert.Contains(t, out, "seq: 1")

	out, err = execute(t, NewInvokeCommand, opts, "payments", "get_balance", "--agent", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, `data: {"balance":1100,"currency":"USD"}`)
	assert.Contains(t, out, "seq: 2")

	// Failed calls are journaled too.
	out, err = execute(t, NewInvokeCommand, opts, "payments", "freeze", "--agent", "alice")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Account alice is frozen")

	// The observation clock resumes from the checkpoint.
	out, err = execute(t, NewInvokeCommand, opts, "payments", "transfer",
		"--agent", "alice", "--params", `{"to": "bob", "amount": 50}`)
	require.NoError(t, err)
	assert.Contains(t, out, "-> bob [high] #2: You received $50 from alice")
	assert.Contains(t, out, "seq: 4")

	opts.Format = "json"
	out, err = execute(t, NewObserveCommand, opts, "payments", "--agent", "bob")
	require.NoError(t, err)
	var observed ObserveResult
	decodeResponse(t, out, &observed)
	require.Len(t, observed.Observations, 2)
	assert.Equal(t, int64(1), observed.Observations[0].Seq)
	assert.Equal(t, int64(2), observed.Observations[1].Seq)
	assert.Equal(t, ir.PriorityHigh, observed.Observations[0].Priority)
	assert.Equal(t, ir.IRNumber(100), observed.Observations[0].Data["amount"])

	// Draining removes them.
	out, err = execute(t, NewObserveCommand, opts, "payments", "--agent", "bob")
	require.NoError(t, err)
	decodeResponse(t, out, &observed)
	assert.Empty(t, observed.Observations)

	out, err = execute(t, NewJournalCommand, opts, "payments")
	require.NoError(t, err)
	var journal JournalResult
	decodeResponse(t, out, &journal)
	require.Len(t, journal.Entries, 4)
	assert.Equal(t, JournalStats{
		Total:        4,
		Succeeded:    3,
		Failed:       1,
		Observations: 2,
		Outcomes:     map[string]int{"success": 3, string(ir.KindExplicitError): 1},
	}, journal.Stats)
	assert.Equal(t, "freeze", journal.Entries[2].Action)
	assert.Equal(t, "Account alice is frozen", journal.Entries[2].Result.Error)
	assert.Equal(t, ir.IRNumber(100), journal.Entries[0].Params["amount"])

	// Final balances survive across processes.
	out, err = execute(t, NewInvokeCommand, opts, "payments", "get_balance", "--agent", "alice")
	require.NoError(t, err)
	var last ActionOutput
	decodeResponse(t, out, &last)
	assert.Equal(t, ir.IRNumber(850), last.Result.Data["balance"])
	assert.Equal(t, int64(5), last.Seq)
}

func TestInvokeCommand_UnknownApp(t *testing.T) {
	out, err := execute(t, NewInvokeCommand, textOpts(t), "payments", "get_balance", "--agent", "alice")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
	assert.Contains(t, out, "run register first")
}

func TestInvokeCommand_StoreFailureWritesNothing(t *testing.T) {
	opts := registerPayments(t)

	st, err := store.Open(opts.DBPath)
	require.NoError(t, err)
	_, err = st.DB().Exec(`
		CREATE TRIGGER reject_checkpoints BEFORE INSERT ON state_checkpoints
		BEGIN SELECT RAISE(ABORT, 'disk full'); END`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, NewInvokeCommand, opts, "payments", "transfer",
		"--agent", "alice", "--params", `{"to": "bob", "amount": 100}`)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeStore)

	st, err = store.Open(opts.DBPath)
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	recs, err := st.ReadExecutions(ctx, "payments", 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
	obs, err := st.DrainObservations(ctx, "payments", "bob")
	require.NoError(t, err)
	assert.Empty(t, obs)
	cp, err := st.LatestCheckpoint(ctx, "payments")
	require.NoError(t, err)
	assert.Equal(t, int64(0), cp.Seq, "registration checkpoint is still the latest")
}

func TestInvokeCommand_UnknownActingAgent(t *testing.T) {
	opts := registerPayments(t)

	out, err := execute(t, NewInvokeCommand, opts, "payments", "get_balance", "--agent", "ghost")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "UNKNOWN_AGENT")
	assert.Contains(t, out, "seq: 1", "failed calls are journaled")
}

func TestInvokeCommand_BadParams(t *testing.T) {
	opts := registerPayments(t)
	_, err := execute(t, NewInvokeCommand, opts, "payments", "transfer", "--agent", "alice", "--params", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestObserveCommand_Text(t *testing.T) {
	opts := registerPayments(t)
	_, err := execute(t, NewInvokeCommand, opts, "payments", "transfer",
		"--agent", "bob", "--params", `{"to": "alice", "amount": 5, "memo": "lunch"}`)
	require.NoError(t, err)

	out, err := execute(t, NewObserveCommand, opts, "payments", "--agent", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "1 observation(s) for alice")
	assert.Contains(t, out, "#1 [high] You received $5 from bob")
	assert.Contains(t, out, `{"amount":5,"from":"bob"}`)

	_, err = execute(t, NewObserveCommand, opts, "ghost_app", "--agent", "alice")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestJournalCommand_Filters(t *testing.T) {
	opts := registerPayments(t)
	for _, call := range [][]string{
		{"transfer", "--agent", "alice", "--params", `{"to": "bob", "amount": 1}`},
		{"get_balance", "--agent", "bob"},
		{"transfer", "--agent", "bob", "--params", `{"to": "alice", "amount": 2}`},
	} {
		_, err := execute(t, NewInvokeCommand, opts, append([]string{"payments"}, call...)...)
		require.NoError(t, err)
	}

	tests := []struct {
		name string
		args []string
		seqs []int64
	}{
		{"all", nil, []int64{1, 2, 3}},
		{"after", []string{"--after", "1"}, []int64{2, 3}},
		{"action", []string{"--action", "transfer"}, []int64{1, 3}},
		{"agent", []string{"--agent", "bob"}, []int64{2, 3}},
		{"action and agent", []string{"--action", "transfer", "--agent", "alice"}, []int64{1}},
		{"outcome", []string{"--outcome", "success", "--after", "2"}, []int64{3}},
		{"no match", []string{"--outcome", string(ir.KindExplicitError)}, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jsonOpts := &RootOptions{Format: "json", DBPath: opts.DBPath}
			out, err := execute(t, NewJournalCommand, jsonOpts, append([]string{"payments"}, tt.args...)...)
			require.NoError(t, err)
			var journal JournalResult
			decodeResponse(t, out, &journal)
			seqs := make([]int64, len(journal.Entries))
			for i, e := range journal.Entries {
				seqs[i] = e.Seq
			}
			assert.Equal(t, tt.seqs, seqs)
		})
	}

	out, err := execute(t, NewJournalCommand, opts, "payments")
	require.NoError(t, err)
	assert.Contains(t, out, "Journal for App: payments")
	assert.Contains(t, out, `[1] ✓ alice transfer {"amount":1,"to":"bob"} -> success`)
	assert.Contains(t, out, "Total: 3  Succeeded: 3  Failed: 0  Observations: 2")
}
