package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/appsim/internal/expr"
	"github.com/roach88/appsim/internal/ir"
	"github.com/roach88/appsim/internal/state"
)

// Engine runs compiled programs. It holds only configuration, so one
// Engine may run many calls concurrently as long as each call has its own
// ExecutionContext and state.
type Engine struct {
	maxDepth      int
	maxIterations int
	ids           IDGenerator
	logger        *slog.Logger
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithMaxNestedDepth sets the nesting depth limit.
//
// Default: 10 (DefaultMaxNestedDepth)
func WithMaxNestedDepth(n int) EngineOption {
	return func(e *Engine) {
		e.maxDepth = n
	}
}

// WithMaxLoopIterations sets the loop iteration budget per call.
//
// Default: 1000 (DefaultMaxLoopIterations)
// Use WithMaxLoopIterations(10) for testing limit enforcement.
func WithMaxLoopIterations(n int) EngineOption {
	return func(e *Engine) {
		e.maxIterations = n
	}
}

// WithIDGenerator sets the source for generate_id().
//
// Default: UUIDv7Generator. Tests use FixedGenerator or SequenceGenerator
// for reproducible output.
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithLogger sets the logger for runtime failures.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine with default limits.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		maxDepth:      DefaultMaxNestedDepth,
		maxIterations: DefaultMaxLoopIterations,
		ids:           UUIDv7Generator{},
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxNestedDepth returns the configured depth limit.
func (e *Engine) MaxNestedDepth() int {
	return e.maxDepth
}

// MaxLoopIterations returns the configured iteration budget.
func (e *Engine) MaxLoopIterations() int {
	return e.maxIterations
}

// Run executes prog against ctx and returns the terminal result.
//
// The acting agent must already have state; otherwise Run fails with
// UNKNOWN_AGENT before any block runs. ctx.State is mutated in place by
// Update blocks and is not rolled back when the call fails part way. Observations accumulate in
// ctx.Observations whatever the outcome. If no block is terminal, Run
// returns an empty success.
func (e *Engine) Run(prog *Program, ctx *ExecutionContext) (result ir.AppResult) {
	ctx.budget = NewIterationBudget(e.maxIterations)
	if ctx.ids == nil {
		ctx.ids = e.ids
	}

	defer func() {
		if r := recover(); r != nil {
			err := &RuntimeError{Code: ErrCodeInternal, Message: fmt.Sprint(r)}
			e.logger.Error("program panicked", "agent_id", ctx.AgentID, "error", err)
			result = resultFor(err)
		}
	}()

	if prog == nil {
		return ir.Failed(ir.KindInternal, "Internal error: no program")
	}
	if !ctx.State.HasAgent(ctx.AgentID) {
		err := &RuntimeError{
			Code:    ErrCodeUnknownAgent,
			Message: fmt.Sprintf("acting agent %q has no state", ctx.AgentID),
			Err:     &state.LookupError{AgentID: ctx.AgentID},
		}
		e.logger.Debug("unknown acting agent", "agent_id", ctx.AgentID)
		return resultFor(err)
	}

	terminal, err := e.execList(prog.blocks, "logic", ctx)
	if err != nil {
		e.logger.Warn("program failed",
			"agent_id", ctx.AgentID,
			"error", err,
			"depth", ctx.Depth,
			"iterations", ctx.Iterations(),
		)
		return resultFor(err)
	}
	if terminal != nil {
		return *terminal
	}
	return ir.Succeeded(ir.IRObject{})
}

// execList runs blocks in order. It returns a non-nil result as soon as a
// block is terminal, and an error for evaluation or limit failures.
func (e *Engine) execList(blocks []node, path string, ctx *ExecutionContext) (*ir.AppResult, error) {
	for i, b := range blocks {
		blockPath := fmt.Sprintf("%s[%d]", path, i)
		res, err := e.execBlock(b, blockPath, ctx)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
	}
	return nil, nil
}

// execNested runs a child list one level deeper, checking the depth limit
// before anything in the list is evaluated.
func (e *Engine) execNested(blocks []node, path string, ctx *ExecutionContext) (*ir.AppResult, error) {
	ctx.Depth++
	defer func() { ctx.Depth-- }()

	if ctx.Depth > e.maxDepth {
		return nil, &LimitExceededError{Kind: LimitDepth, Value: ctx.Depth, Limit: e.maxDepth}
	}
	return e.execList(blocks, path, ctx)
}

func (e *Engine) execBlock(b node, path string, ctx *ExecutionContext) (*ir.AppResult, error) {
	wrap := func(err error) error {
		if IsLimitError(err) {
			return err
		}
		return newRuntimeError(path, b.blockType(), err)
	}

	switch n := b.(type) {
	case validateNode:
		v, err := expr.Eval(n.cond, ctx)
		if err != nil {
			return nil, wrap(err)
		}
		if ir.Truthy(v) {
			return nil, nil
		}
		msg, err := n.msg.Render(ctx)
		if err != nil {
			return nil, wrap(err)
		}
		res := ir.Failed(ir.KindConditionFailed, msg)
		return &res, nil

	case updateNode:
		addr, err := n.target.Resolve(ctx, ctx.AgentID)
		if err != nil {
			return nil, wrap(err)
		}
		val, err := n.value.Eval(ctx)
		if err != nil {
			return nil, wrap(err)
		}
		if err := ctx.State.Apply(addr, n.op, val); err != nil {
			return nil, wrap(err)
		}
		return nil, nil

	case notifyNode:
		to, err := expr.Eval(n.to, ctx)
		if err != nil {
			return nil, wrap(err)
		}
		recipient, ok := to.(ir.IRString)
		if !ok {
			return nil, wrap(fmt.Errorf("notify recipient must be a string agent id, got %s", ir.KindOf(to)))
		}
		msg, err := n.msg.Render(ctx)
		if err != nil {
			return nil, wrap(err)
		}
		data, err := n.data.EvalObject(ctx)
		if err != nil {
			return nil, wrap(err)
		}
		ctx.Observations = append(ctx.Observations, ir.Observation{
			ToAgent:  string(recipient),
			Message:  msg,
			Data:     data,
			Priority: n.priority,
		})
		return nil, nil

	case returnNode:
		data, err := n.value.EvalObject(ctx)
		if err != nil {
			return nil, wrap(err)
		}
		res := ir.Succeeded(data)
		return &res, nil

	case errorNode:
		msg, err := n.msg.Render(ctx)
		if err != nil {
			return nil, wrap(err)
		}
		res := ir.Failed(ir.KindExplicitError, msg)
		return &res, nil

	case branchNode:
		v, err := expr.Eval(n.cond, ctx)
		if err != nil {
			return nil, wrap(err)
		}
		if ir.Truthy(v) {
			return e.execNested(n.then, path+".then", ctx)
		}
		if n.hasElse {
			return e.execNested(n.elseList, path+".else", ctx)
		}
		return nil, nil

	case loopNode:
		v, err := expr.Eval(n.collection, ctx)
		if err != nil {
			return nil, wrap(err)
		}
		items, ok := v.(ir.IRArray)
		if !ok {
			return nil, wrap(&expr.Error{
				Kind:    expr.ErrTypeMismatch,
				Message: fmt.Sprintf("loop collection must be an array, got %s", ir.KindOf(v)),
				Pos:     -1,
			})
		}
		// Iterate over a snapshot so body updates to the collection do
		// not change the iteration.
		items = items.Clone()
		for _, item := range items {
			if err := ctx.budget.Check(); err != nil {
				return nil, err
			}
			ctx.push(n.item, item)
			res, err := e.execNested(n.body, path+".body", ctx)
			ctx.pop()
			if err != nil || res != nil {
				return res, err
			}
		}
		return nil, nil

	default:
		return nil, fmt.Errorf("unsupported node %T", b)
	}
}
