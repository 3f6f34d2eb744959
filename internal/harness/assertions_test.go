package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/appsim/internal/ir"
	"github.com/roach88/appsim/internal/state"
)

func assertionResult() *Result {
	st := state.New()
	st.PerAgent["alice"] = ir.IRObject{
		"balance": ir.IRNumber(900),
		"history": ir.IRArray{ir.IRObject{"amount": ir.IRNumber(100)}},
	}
	st.Shared = ir.IRObject{"total": ir.IRNumber(100)}

	r := NewResult()
	r.State = st
	r.AddTrace(TraceEvent{
		Step:   1,
		Agent:  "alice",
		Action: "transfer",
		Result: ir.Succeeded(nil),
		Observations: []ir.Observation{
			{ToAgent: "bob", Message: "You received $100 from alice", Seq: 1},
			{ToAgent: "carol", Message: "cc", Seq: 2},
		},
	})
	return r
}

func TestEvaluateAssertions(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"agent field", Assertion{Type: AssertAgentState, Agent: "alice", Path: "balance", Equals: 900}, ""},
		{"agent nested index", Assertion{Type: AssertAgentState, Agent: "alice", Path: "history.0.amount", Equals: 100}, ""},
		{"agent missing key is null", Assertion{Type: AssertAgentState, Agent: "alice", Path: "nope"}, ""},
		{"agent mismatch", Assertion{Type: AssertAgentState, Agent: "alice", Path: "balance", Equals: 1}, `agents["alice"].balance = 900`},
		{"unknown agent", Assertion{Type: AssertAgentState, Agent: "zed", Path: "balance", Equals: 1}, "zed"},
		{"bad path", Assertion{Type: AssertAgentState, Agent: "alice", Path: "a..b"}, "empty segment"},
		{"shared whole namespace", Assertion{Type: AssertSharedState, Equals: map[string]any{"total": 100}}, ""},
		{"shared mismatch", Assertion{Type: AssertSharedState, Path: "total", Equals: 5}, "shared.total = 100"},
		{"observation count", Assertion{Type: AssertObservationCount, Agent: "bob", Count: 1}, ""},
		{"observation count zero", Assertion{Type: AssertObservationCount, Agent: "alice", Count: 0}, ""},
		{"observation count mismatch", Assertion{Type: AssertObservationCount, Agent: "bob", Count: 2}, "2 observations for bob"},
		{"observation contains", Assertion{Type: AssertObservationContains, Agent: "bob", Message: "$100"}, ""},
		{"observation contains missing", Assertion{Type: AssertObservationContains, Agent: "bob", Message: "refund"}, `"You received $100 from alice"`},
		{"unknown type", Assertion{Type: "final_state"}, `unknown assertion type "final_state"`},
		{"result_count without store", Assertion{Type: AssertResultCount, Count: 1}, "requires a store"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(assertionResult(), []Assertion{tt.assertion}, nil)
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.wantErr)
		})
	}
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	r := assertionResult()
	errs := EvaluateAssertions(r, []Assertion{{Type: AssertObservationCount, Agent: "bob", Count: 3}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Assertion failed: observation_count")
	assert.Contains(t, errs[0], "Full trace:")
	assert.Contains(t, errs[0], "[1] alice transfer")
}

func TestParsePath(t *testing.T) {
	segs, err := parsePath("items.2.name")
	require.NoError(t, err)
	assert.Equal(t, []state.Segment{state.Key("items"), state.Idx(2), state.Key("name")}, segs)

	segs, err = parsePath("")
	require.NoError(t, err)
	assert.Nil(t, segs)

	_, err = parsePath(".x")
	assert.Error(t, err)
}

func TestDescribeResultFilter(t *testing.T) {
	assert.Equal(t, "(any)", describeResultFilter(Assertion{}))
	assert.Equal(t, "action=transfer success=false", describeResultFilter(Assertion{Action: "transfer", Success: boolPtr(false)}))
}
