package harness

import (
	"github.com/roach88/appsim/internal/ir"
	"github.com/roach88/appsim/internal/state"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Step         int
	Agent        string
	Action       string
	Stateless    bool
	Params       ir.IRObject
	Result       ir.AppResult
	Observations []ir.Observation
}

// toObject converts the event to its canonical trace form.
func (e TraceEvent) toObject() ir.IRObject {
	params := e.Params
	if params == nil {
		params = ir.IRObject{}
	}
	obs := make(ir.IRArray, len(e.Observations))
	for i, o := range e.Observations {
		obs[i] = o.ToObject()
	}
	return ir.IRObject{
		"step":         ir.IRNumber(e.Step),
		"agent":        ir.IRString(e.Agent),
		"action":       ir.IRString(e.Action),
		"stateless":    ir.IRBool(e.Stateless),
		"params":       params,
		"result":       e.Result.ToObject(),
		"observations": obs,
	}
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool

	// Trace contains every step in execution order.
	Trace []TraceEvent

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string

	// State is the app state after the last step.
	State *state.AppState

	// StateHash is the hash of State as recorded in the final checkpoint.
	StateHash string
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an executed step to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}

// ObservationsFor returns every observation in the trace addressed to agent.
func (r *Result) ObservationsFor(agent string) []ir.Observation {
	var out []ir.Observation
	for _, ev := range r.Trace {
		for _, o := range ev.Observations {
			if o.ToAgent == agent {
				out = append(out, o)
			}
		}
	}
	return out
}
