package app

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/appsim/internal/config"
	"github.com/roach88/appsim/internal/engine"
	"github.com/roach88/appsim/internal/ir"
	"github.com/roach88/appsim/internal/metrics"
	"github.com/roach88/appsim/internal/state"
	fixtures "github.com/roach88/appsim/internal/testutil"
)

func newPayments(t *testing.T, opts ...Option) *DynamicApp {
	t.Helper()
	opts = append([]Option{
		WithState(fixtures.TransferState()),
		WithIDGenerator(fixtures.NewDeterministicIDs("tx")),
	}, opts...)
	a, err := New(fixtures.PaymentsDefinition(), opts...)
	require.NoError(t, err)
	return a
}

func transfer(to string, amount float64) ir.IRObject {
	return ir.IRObject{"to": ir.IRString(to), "amount": ir.IRNumber(amount)}
}

func balance(a *DynamicApp, agent string) ir.IRValue {
	return a.State().PerAgent[agent]["balance"]
}

func TestNew_RejectsBadLogic(t *testing.T) {
	def := fixtures.PaymentsDefinition()
	def.Actions[0].Logic = append(def.Actions[0].Logic, ir.ValidateBlock{Condition: "nonsense > 1"})

	_, err := New(def)
	assert.ErrorContains(t, err, "actions[0]")
}

func TestNew_RejectsInvalidDefinition(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(def *ir.AppDefinition)
		want   string
	}{
		{
			name: "param default of wrong type",
			mutate: func(def *ir.AppDefinition) {
				spec := def.Actions[0].Parameters["amount"]
				spec.Default = ir.IRString("ten")
				def.Actions[0].Parameters["amount"] = spec
			},
			want: "actions[0].parameters",
		},
		{
			name: "state default of wrong type",
			mutate: func(def *ir.AppDefinition) {
				def.StateSchema[0].Default = ir.IRString("zero")
			},
			want: "stateSchema[0].default",
		},
		{
			name:   "no actions",
			mutate: func(def *ir.AppDefinition) { def.Actions = nil },
			want:   "at least one action",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := fixtures.PaymentsDefinition()
			tt.mutate(def)
			_, err := New(def)
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestNew_InitialState(t *testing.T) {
	a, err := New(fixtures.PaymentsDefinition(), WithAgents("carol", "dave"))
	require.NoError(t, err)

	assert.Equal(t, []string{"carol", "dave"}, a.Agents())
	assert.Equal(t, ir.IRNumber(0), balance(a, "carol"))
	assert.Equal(t, ir.IRNumber(0), a.State().Shared["total_volume"])
}

func TestExecute_TransferScenario(t *testing.T) {
	a := newPayments(t)

	res := a.Execute("alice", "transfer", transfer("bob", 100))

	require.True(t, res.Success, res.Error)
	assert.Equal(t, ir.IRNumber(900), res.Data["new_balance"])
	assert.Equal(t, ir.IRNumber(100), res.Data["amount"])
	assert.Equal(t, ir.IRNumber(900), balance(a, "alice"))
	assert.Equal(t, ir.IRNumber(600), balance(a, "bob"))
	assert.Equal(t, ir.IRNumber(100), a.State().Shared["total_volume"])

	history := a.State().PerAgent["alice"]["history"].(ir.IRArray)
	require.Len(t, history, 1)
	assert.Equal(t, ir.IRString("tx-0001"), history[0].(ir.IRObject)["id"])

	obs := a.GetObservations("bob")
	require.Len(t, obs, 1)
	assert.Equal(t, ir.IRNumber(100), obs[0].Data["amount"])
	assert.Equal(t, "You received $100 from alice", obs[0].Message)
	assert.Equal(t, ir.PriorityHigh, obs[0].Priority)
	assert.Equal(t, int64(1), obs[0].Seq)

	assert.Empty(t, a.GetObservations("bob"), "observations drain")
	assert.Empty(t, a.GetObservations("alice"))
}

func TestExecute_InsufficientFunds(t *testing.T) {
	a := newPayments(t)

	res := a.Execute("alice", "transfer", transfer("bob", 2000))

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Insufficient funds")
	assert.Equal(t, ir.KindConditionFailed, res.Kind)
	assert.Equal(t, ir.IRNumber(1000), balance(a, "alice"))
	assert.Equal(t, ir.IRNumber(500), balance(a, "bob"))
	assert.Zero(t, a.PendingObservations("bob"))
}

func TestExecute_ValidationFailures(t *testing.T) {
	tests := []struct {
		name, agent string
		params      ir.IRObject
		want        string
	}{
		{"unknown recipient", "alice", transfer("mallory", 10), "Recipient mallory not found"},
		{"self transfer", "alice", transfer("alice", 10), "Cannot transfer to yourself"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newPayments(t)
			before := a.State()

			res := a.Execute(tt.agent, "transfer", tt.params)
			assert.Equal(t, ir.Failed(ir.KindConditionFailed, tt.want), res)
			assert.True(t, before.Equal(a.State()))
		})
	}
}

func TestExecute_UnknownAction(t *testing.T) {
	a := newPayments(t)
	res := a.Execute("alice", "no_such_action", ir.IRObject{})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Unknown action")
	assert.Equal(t, ir.KindUnknownAction, res.Kind)
}

func TestExecute_ParamFailuresNeverRunLogic(t *testing.T) {
	tests := []struct {
		name   string
		params ir.IRObject
		want   string
	}{
		{"undeclared key", ir.IRObject{"to": ir.IRString("bob"), "amount": ir.IRNumber(1), "tip": ir.IRNumber(1)}, "Unknown parameter 'tip' for action 'transfer'"},
		{"missing required", ir.IRObject{"to": ir.IRString("bob")}, "Missing required parameter 'amount'"},
		{"above max", transfer("bob", 20000), "Parameter 'amount' must be <= 10000, got 20000"},
	}

	seen := map[string]bool{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newPayments(t)
			before := a.State()

			res := a.Execute("alice", "transfer", tt.params)
			assert.Equal(t, ir.Failed(ir.KindParamValidation, tt.want), res)
			assert.True(t, before.Equal(a.State()), "no state mutation")
			assert.Zero(t, a.PendingObservations("bob"))
			seen[res.Error] = true
		})
	}
	assert.Len(t, seen, len(tests), "each failure is worded distinctly")
}

func TestExecute_NoRollbackAndObservationsKept(t *testing.T) {
	a := newPayments(t)

	res := a.Execute("alice", "pay_many", ir.IRObject{
		"recipients": ir.IRArray{ir.IRString("bob"), ir.IRString("ghost")},
		"amount":     ir.IRNumber(10),
	})

	require.False(t, res.Success)
	assert.Contains(t, res.Error, "UNKNOWN_AGENT")
	assert.Equal(t, ir.IRNumber(980), balance(a, "alice"), "updates before the failure persist")
	assert.Equal(t, ir.IRNumber(510), balance(a, "bob"))
	assert.Equal(t, 1, a.PendingObservations("bob"))
}

func TestExecute_ObservationSeqIsMonotonic(t *testing.T) {
	a := newPayments(t)
	a.Execute("alice", "pay_many", ir.IRObject{"recipients": ir.IRArray{ir.IRString("bob"), ir.IRString("bob")}, "amount": ir.IRNumber(1)})
	a.Execute("alice", "transfer", transfer("bob", 1))

	obs := a.GetObservations("bob")
	require.Len(t, obs, 3)
	for i, o := range obs {
		assert.Equal(t, int64(i+1), o.Seq)
	}
	assert.Equal(t, int64(3), a.Clock().Current())
}

func TestDrainAllObservations(t *testing.T) {
	a := newPayments(t, WithAgents("carol"))
	a.Execute("alice", "transfer", transfer("carol", 1))
	a.Execute("alice", "transfer", transfer("bob", 2))
	a.Execute("bob", "transfer", transfer("carol", 3))

	assert.Equal(t, []string{"bob", "carol"}, a.ObservationRecipients())

	obs := a.DrainAllObservations()
	require.Len(t, obs, 3)
	assert.Equal(t, "carol", obs[0].ToAgent)
	assert.Equal(t, "bob", obs[1].ToAgent)
	assert.Equal(t, "carol", obs[2].ToAgent)
	assert.Equal(t, int64(3), obs[2].Seq)

	assert.Empty(t, a.ObservationRecipients())
	assert.Empty(t, a.DrainAllObservations())
}

func TestExecuteStateless_DoesNotMutateInput(t *testing.T) {
	a := newPayments(t)
	input := fixtures.TransferState()
	before, err := input.Snapshot()
	require.NoError(t, err)

	res, after, obs := a.ExecuteStateless("alice", "transfer", transfer("bob", 100), input)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, ir.IRNumber(900), after.PerAgent["alice"]["balance"])
	require.Len(t, obs, 1)
	assert.Equal(t, "bob", obs[0].ToAgent)

	now, err := input.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, before, now, "input state is byte-for-byte unchanged")
	assert.True(t, fixtures.TransferState().Equal(input))

	after.PerAgent["bob"]["balance"] = ir.IRNumber(-1)
	assert.Equal(t, ir.IRNumber(500), input.PerAgent["bob"]["balance"], "returned state does not alias input")
}

func TestExecuteStateless_LeavesAppUntouched(t *testing.T) {
	a := newPayments(t)
	before := a.State()

	a.ExecuteStateless("alice", "transfer", transfer("bob", 100), a.State())

	assert.True(t, before.Equal(a.State()))
	assert.Zero(t, a.PendingObservations("bob"))
	assert.Zero(t, a.Clock().Current())
}

func TestExecuteStateless_Concurrent(t *testing.T) {
	a := newPayments(t)
	base := fixtures.TransferState()

	var wg sync.WaitGroup
	results := make([]ir.AppResult, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, _ = a.ExecuteStateless("alice", "transfer", transfer("bob", float64(i+1)), base)
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		require.True(t, res.Success, res.Error)
		assert.Equal(t, ir.IRNumber(1000-(i+1)), res.Data["new_balance"])
	}
	assert.True(t, fixtures.TransferState().Equal(base))
}

func TestExecuteStateless_NilState(t *testing.T) {
	a := newPayments(t)
	res, after, obs := a.ExecuteStateless("alice", "get_balance", nil, nil)

	require.False(t, res.Success, "empty state has no acting agent")
	assert.Equal(t, ir.KindEvalError, res.Kind)
	assert.Contains(t, res.Error, "UNKNOWN_AGENT")
	assert.NotNil(t, after)
	assert.Empty(t, obs)
}

func TestExecute_UnknownActingAgent(t *testing.T) {
	a := newPayments(t)
	before := a.State()

	res := a.Execute("ghost", "get_balance", nil)
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "UNKNOWN_AGENT")
	assert.Contains(t, res.Error, "ghost")

	res = a.Execute("ghost", "transfer", transfer("bob", 1))
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "UNKNOWN_AGENT")

	assert.True(t, before.Equal(a.State()))
	assert.Empty(t, a.DrainAllObservations())
}

func TestSnapshotRoundTrip(t *testing.T) {
	a := newPayments(t)
	a.Execute("alice", "transfer", transfer("bob", 250))
	want := a.State()

	snap, err := a.GetStateSnapshot()
	require.NoError(t, err)

	b := newPayments(t)
	require.NoError(t, b.RestoreState(snap))
	assert.True(t, want.Equal(b.State()))

	again, err := b.GetStateSnapshot()
	require.NoError(t, err)
	assert.Equal(t, snap, again)
}

func TestRestoreState_RejectsGarbage(t *testing.T) {
	a := newPayments(t)
	before := a.State()

	for _, blob := range [][]byte{
		[]byte("not json"),
		[]byte(`[1,2]`),
		[]byte(`{"per_agent": {}}`),
		[]byte(`{"per_agent": {"alice": 3}, "shared": {}}`),
	} {
		err := a.RestoreState(blob)
		require.Error(t, err, string(blob))
		assert.True(t, state.IsSerializationError(err))
	}
	assert.True(t, before.Equal(a.State()), "failed restore leaves state untouched")
}

func TestAddAgent(t *testing.T) {
	a := newPayments(t)

	assert.True(t, a.AddAgent("carol"))
	assert.False(t, a.AddAgent("carol"), "idempotent")
	assert.Equal(t, []string{"alice", "bob", "carol"}, a.Agents())

	res := a.Execute("alice", "transfer", transfer("carol", 5))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, ir.IRNumber(5), balance(a, "carol"))
}

func TestGetActions(t *testing.T) {
	a := newPayments(t)
	actions := a.GetActions()

	require.Len(t, actions, 3)
	assert.Equal(t, "transfer", actions[0].Name)
	assert.Equal(t, "get_balance", actions[1].Name)
	assert.True(t, actions[0].Parameters["amount"].Required)

	delete(actions[0].Parameters, "amount")
	assert.Len(t, a.GetActions()[0].Parameters, 3, "summaries are copies")
}

func TestConfigRootAndDefaults(t *testing.T) {
	a := newPayments(t)
	res := a.Execute("bob", "get_balance", nil)

	require.True(t, res.Success)
	assert.Equal(t, ir.IRObject{"balance": ir.IRNumber(500), "currency": ir.IRString("USD")}, res.Data)
}

func TestWithConfigLimits(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.MaxLoopIterations = 1

	a := newPayments(t, WithConfig(cfg))
	res := a.Execute("alice", "pay_many", ir.IRObject{
		"recipients": ir.IRArray{ir.IRString("bob"), ir.IRString("bob")},
		"amount":     ir.IRNumber(1),
	})

	assert.Equal(t, ir.KindResourceLimit, res.Kind)
	assert.Equal(t, "Maximum loop iterations exceeded (1)", res.Error)
}

func TestWithEngineOptionsDepth(t *testing.T) {
	def := fixtures.PaymentsDefinition()
	def.Actions = append(def.Actions, ir.ActionDefinition{
		Name: "deep",
		Logic: []ir.LogicBlock{
			ir.BranchBlock{Condition: "true", Then: []ir.LogicBlock{
				ir.BranchBlock{Condition: "true", Then: []ir.LogicBlock{ir.ReturnBlock{}}},
			}},
		},
	})

	a, err := New(def, WithEngineOptions(engine.WithMaxNestedDepth(1)))
	require.NoError(t, err)
	res := a.Execute("alice", "deep", nil)
	assert.Contains(t, res.Error, "depth")
}

func TestRateLimit(t *testing.T) {
	a := newPayments(t, WithRateLimit(0.001, 2))
	now := time.Unix(1000, 0)
	a.now = func() time.Time { return now }

	assert.True(t, a.Execute("alice", "get_balance", nil).Success)
	assert.True(t, a.Execute("alice", "get_balance", nil).Success)

	res := a.Execute("alice", "get_balance", nil)
	assert.Equal(t, ir.KindRateLimited, res.Kind)
	assert.Equal(t, "Rate limit exceeded for agent 'alice'", res.Error)

	assert.True(t, a.Execute("bob", "get_balance", nil).Success, "buckets are per agent")

	_, _, _ = a.ExecuteStateless("alice", "get_balance", nil, fixtures.TransferState())
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	a := newPayments(t, WithMetrics(m))

	a.Execute("alice", "transfer", transfer("bob", 1))
	a.Execute("alice", "transfer", transfer("bob", 99999))
	a.Execute("alice", "pay_many", ir.IRObject{"recipients": ir.IRArray{ir.IRString("bob")}, "amount": ir.IRNumber(1)})

	count, err := testutil.GatherAndCount(reg, "appsim_executions_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "one series per action and outcome")

	count, err = testutil.GatherAndCount(reg, "appsim_observations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetricsUnknownActionLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	a := newPayments(t, WithMetrics(m))

	for _, name := range []string{"nope", "also_nope", "x1", "x2"} {
		res := a.Execute("alice", name, nil)
		require.Equal(t, ir.KindUnknownAction, res.Kind)
	}

	count, err := testutil.GatherAndCount(reg, "appsim_executions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "unknown actions share one series")

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "appsim_executions_total" {
			continue
		}
		for _, lp := range mf.GetMetric()[0].GetLabel() {
			if lp.GetName() == "action" {
				assert.Equal(t, metrics.UnknownAction, lp.GetValue())
			}
		}
		assert.Equal(t, float64(4), mf.GetMetric()[0].GetCounter().GetValue())
	}
}
