package engine

import (
	"fmt"

	"github.com/roach88/appsim/internal/expr"
	"github.com/roach88/appsim/internal/ir"
	"github.com/roach88/appsim/internal/state"
)

// Root identifiers available to every expression.
const (
	RootAgent  = "agent"
	RootAgents = "agents"
	RootParams = "params"
	RootShared = "shared"
	RootConfig = "config"
)

// Roots lists the root identifiers in a stable order.
var Roots = []string{RootAgent, RootAgents, RootParams, RootShared, RootConfig}

// IsRoot reports whether name is a root identifier.
func IsRoot(name string) bool {
	switch name {
	case RootAgent, RootAgents, RootParams, RootShared, RootConfig:
		return true
	}
	return false
}

// Target is a parsed Update target: agent.<path>, agents[<expr>].<path>
// or shared.<path>. Subscripts inside the path may be expressions.
type Target struct {
	Source string
	root   string
	agent  expr.Expr // set for agents[<expr>]
	path   []expr.Expr
	keys   []string // static key for each path element, "" when dynamic
}

// ParseTarget parses and checks an update target.
func ParseTarget(src string) (*Target, error) {
	e, err := expr.Parse(src)
	if err != nil {
		return nil, err
	}

	t := &Target{Source: src}
	// Walk from the outermost access down to the root, collecting the path
	// in reverse.
	var revPath []expr.Expr
	var revKeys []string
	cur := e
	for {
		switch n := cur.(type) {
		case *expr.Member:
			revPath = append(revPath, nil)
			revKeys = append(revKeys, n.Name)
			cur = n.Object
			continue
		case *expr.Index:
			if id, ok := n.Object.(*expr.Ident); ok && id.Name == RootAgents {
				t.root = RootAgents
				t.agent = n.Index
				break
			}
			revPath = append(revPath, n.Index)
			revKeys = append(revKeys, "")
			cur = n.Object
			continue
		case *expr.Ident:
			switch n.Name {
			case RootAgent, RootShared:
				t.root = n.Name
			case RootAgents:
				return nil, fmt.Errorf("target %q: agents must be indexed, e.g. agents[params.to].field", src)
			default:
				return nil, fmt.Errorf("target %q: must start with agent, agents[...] or shared, got %q", src, n.Name)
			}
		default:
			return nil, fmt.Errorf("target %q: not an assignable path", src)
		}
		break
	}

	if len(revPath) == 0 {
		return nil, fmt.Errorf("target %q: must name a field inside %s", src, t.root)
	}
	for i := len(revPath) - 1; i >= 0; i-- {
		t.path = append(t.path, revPath[i])
		t.keys = append(t.keys, revKeys[i])
	}
	return t, nil
}

// Exprs returns the expressions the target evaluates when resolved.
func (t *Target) Exprs() []expr.Expr {
	var out []expr.Expr
	if t.agent != nil {
		out = append(out, t.agent)
	}
	for _, p := range t.path {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Resolve evaluates the dynamic parts of the target and returns the state
// address it names for the acting agent.
func (t *Target) Resolve(env expr.Env, actingAgent string) (state.Address, error) {
	addr := state.Address{Namespace: state.NamespaceShared}
	switch t.root {
	case RootAgent:
		addr = state.AgentAddress(actingAgent)
	case RootAgents:
		v, err := expr.Eval(t.agent, env)
		if err != nil {
			return state.Address{}, err
		}
		id, ok := v.(ir.IRString)
		if !ok {
			return state.Address{}, &state.PathError{Code: state.PathTypeMismatch, Path: t.Source, Message: fmt.Sprintf("agent key must be a string, got %s", ir.KindOf(v))}
		}
		addr = state.AgentAddress(string(id))
	}

	for i, p := range t.path {
		if p == nil {
			addr.Path = append(addr.Path, state.Key(t.keys[i]))
			continue
		}
		v, err := expr.Eval(p, env)
		if err != nil {
			return state.Address{}, err
		}
		seg, err := state.SegmentFromValue(v)
		if err != nil {
			return state.Address{}, &state.PathError{Code: state.PathTypeMismatch, Path: t.Source, Message: err.Error()}
		}
		addr.Path = append(addr.Path, seg)
	}
	return addr, nil
}
