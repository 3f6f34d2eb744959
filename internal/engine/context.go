package engine

import (
	"github.com/roach88/appsim/internal/ir"
	"github.com/roach88/appsim/internal/state"
)

// ExecutionContext is the per-call environment: the acting agent, the
// validated parameters, the state being mutated, the app config, and the
// observations produced so far. It is created for one call and discarded.
//
// ExecutionContext implements expr.Env.
type ExecutionContext struct {
	AgentID      string
	Params       ir.IRObject
	State        *state.AppState
	Config       ir.IRObject
	Observations []ir.Observation

	// Depth is the current nesting level; the top-level list runs at 0.
	Depth int

	budget *IterationBudget
	ids    IDGenerator
	scopes []binding
}

// binding is one loop variable.
type binding struct {
	name  string
	value ir.IRValue
}

// NewExecutionContext builds a context over st. The context mutates st.
func NewExecutionContext(agentID string, params ir.IRObject, st *state.AppState, config ir.IRObject) *ExecutionContext {
	if params == nil {
		params = ir.IRObject{}
	}
	if config == nil {
		config = ir.IRObject{}
	}
	return &ExecutionContext{
		AgentID: agentID,
		Params:  params,
		State:   st,
		Config:  config,
	}
}

// Iterations returns the number of loop passes run so far.
func (c *ExecutionContext) Iterations() int {
	if c.budget == nil {
		return 0
	}
	return c.budget.Used()
}

// Lookup implements expr.Env. Loop variables are checked first, innermost
// first; the compiler rejects loop variables named after roots.
//
// Run rejects an acting agent without state, so agent is always an object
// there. agents[x] for an unknown x is null.
func (c *ExecutionContext) Lookup(name string) (ir.IRValue, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if c.scopes[i].name == name {
			return c.scopes[i].value, true
		}
	}

	switch name {
	case RootAgent:
		if obj, ok := c.State.Agent(c.AgentID); ok {
			return obj, true
		}
		return ir.IRNull{}, true
	case RootAgents:
		return c.State.AgentsObject(), true
	case RootParams:
		return c.Params, true
	case RootShared:
		return c.State.Shared, true
	case RootConfig:
		return c.Config, true
	}
	return nil, false
}

// NewID implements expr.Env.
func (c *ExecutionContext) NewID() string {
	if c.ids == nil {
		return UUIDv7Generator{}.Generate()
	}
	return c.ids.Generate()
}

func (c *ExecutionContext) push(name string, value ir.IRValue) {
	c.scopes = append(c.scopes, binding{name: name, value: value})
}

func (c *ExecutionContext) pop() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}
