package app

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/appsim/internal/compiler"
	"github.com/roach88/appsim/internal/config"
	"github.com/roach88/appsim/internal/engine"
	"github.com/roach88/appsim/internal/ir"
	"github.com/roach88/appsim/internal/metrics"
	"github.com/roach88/appsim/internal/state"
)

// DynamicApp runs the actions of one AppDefinition.
//
// Thread-safety: Execute, RestoreState, AddAgent and the snapshot methods
// serialize on an internal mutex. ExecuteStateless never touches the
// app's own state and may run concurrently with anything.
type DynamicApp struct {
	def      *ir.AppDefinition
	programs map[string]*engine.Program
	engine   *engine.Engine

	mu      sync.Mutex
	state   *state.AppState
	queue   *engine.ObservationQueue
	clock   *engine.Clock
	limiter *agentLimiter

	metrics    *metrics.Metrics
	logger     *slog.Logger
	engineOpts []engine.EngineOption
	agents     []string
	now        func() time.Time
}

// Option configures a DynamicApp.
type Option func(*DynamicApp)

// WithLogger sets the logger used by the app and its engine.
func WithLogger(l *slog.Logger) Option {
	return func(a *DynamicApp) {
		a.logger = l
	}
}

// WithMetrics records every call in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *DynamicApp) {
		a.metrics = m
	}
}

// WithRateLimit limits each agent to rps Execute calls per second with the
// given burst. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(a *DynamicApp) {
		a.limiter = newAgentLimiter(rps, burst)
	}
}

// WithEngineOptions passes options through to engine.New.
func WithEngineOptions(opts ...engine.EngineOption) Option {
	return func(a *DynamicApp) {
		a.engineOpts = append(a.engineOpts, opts...)
	}
}

// WithIDGenerator sets the source for generate_id().
func WithIDGenerator(g engine.IDGenerator) Option {
	return WithEngineOptions(engine.WithIDGenerator(g))
}

// WithConfig applies engine limits and rate limiting from cfg.
func WithConfig(cfg config.Config) Option {
	return func(a *DynamicApp) {
		a.engineOpts = append(a.engineOpts,
			engine.WithMaxNestedDepth(cfg.Engine.MaxNestedDepth),
			engine.WithMaxLoopIterations(cfg.Engine.MaxLoopIterations),
		)
		a.limiter = newAgentLimiter(cfg.RateLimit.PerAgentRPS, cfg.RateLimit.Burst)
	}
}

// WithAgents adds per-agent state entries for ids at construction.
func WithAgents(ids ...string) Option {
	return func(a *DynamicApp) {
		a.agents = append(a.agents, ids...)
	}
}

// WithState starts the app from a copy of st instead of the schema
// defaults.
func WithState(st *state.AppState) Option {
	return func(a *DynamicApp) {
		a.state = st.Clone()
	}
}

// WithClock sets the clock that stamps observation seq numbers. Use
// engine.NewClockAt to resume after a checkpoint.
func WithClock(c *engine.Clock) Option {
	return func(a *DynamicApp) {
		a.clock = c
	}
}

// New validates def, compiles every action and returns an app whose state
// is initialized from the definition's state schema.
func New(def *ir.AppDefinition, opts ...Option) (*DynamicApp, error) {
	if def == nil {
		return nil, errors.New("app: nil definition")
	}
	if err := compiler.AsError(compiler.Validate(def)); err != nil {
		return nil, fmt.Errorf("app %s: %w", def.AppID, err)
	}

	a := &DynamicApp{
		def:      def,
		programs: make(map[string]*engine.Program, len(def.Actions)),
		queue:    engine.NewObservationQueue(),
		clock:    engine.NewClock(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("app_id", def.AppID)

	for _, action := range def.Actions {
		prog, err := engine.Compile(action.Logic)
		if err != nil {
			return nil, fmt.Errorf("app %s: action %s: %w", def.AppID, action.Name, err)
		}
		a.programs[action.Name] = prog
	}

	engineOpts := append([]engine.EngineOption{engine.WithLogger(a.logger)}, a.engineOpts...)
	a.engine = engine.New(engineOpts...)

	if a.state == nil {
		a.state = state.FromSchema(def.StateSchema)
	}
	for _, id := range a.agents {
		a.state.AddAgent(id, def.StateSchema)
	}
	return a, nil
}

// Definition returns the app's definition. Callers must not modify it.
func (a *DynamicApp) Definition() *ir.AppDefinition {
	return a.def
}

// AppID returns the definition's app id.
func (a *DynamicApp) AppID() string {
	return a.def.AppID
}

// ActionSummary describes one action for prompt building and
// introspection.
type ActionSummary struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	Parameters  map[string]ir.ParamSpec `json:"parameters"`
}

// GetActions returns a summary of every action in declaration order.
func (a *DynamicApp) GetActions() []ActionSummary {
	out := make([]ActionSummary, len(a.def.Actions))
	for i, action := range a.def.Actions {
		params := make(map[string]ir.ParamSpec, len(action.Parameters))
		for name, spec := range action.Parameters {
			params[name] = spec
		}
		out[i] = ActionSummary{Name: action.Name, Description: action.Description, Parameters: params}
	}
	return out
}

// ValidateParams checks params against the named action without running
// it. The error message is the one Execute would return.
func (a *DynamicApp) ValidateParams(action string, params ir.IRObject) error {
	def, ok := a.def.Action(action)
	if !ok {
		return &UnknownActionError{Action: action}
	}
	_, err := checkParams(def, params)
	return err
}

// Execute runs action as agentID against the app's own state. State
// changes made before a failure are kept. Observations produced by the
// call are queued for their recipients whatever the outcome.
func (a *DynamicApp) Execute(agentID, action string, params ir.IRObject) ir.AppResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := a.now()
	if !a.limiter.Allow(agentID, start) {
		res := ir.Failed(ir.KindRateLimited, fmt.Sprintf("Rate limit exceeded for agent '%s'", agentID))
		a.finish(agentID, action, res, nil, start, false)
		return res
	}

	res, ctx := a.run(agentID, action, params, a.state)
	if ctx != nil {
		for i := range ctx.Observations {
			ctx.Observations[i].Seq = a.clock.Next()
		}
		a.queue.Push(ctx.Observations...)
	}
	a.finish(agentID, action, res, ctx, start, false)
	return res
}

// ExecuteStateless runs action against a deep copy of st and returns the
// result, the post-call copy and the observations produced. Neither st nor
// the app's own state or queue is modified. A nil st means an empty state.
func (a *DynamicApp) ExecuteStateless(agentID, action string, params ir.IRObject, st *state.AppState) (ir.AppResult, *state.AppState, []ir.Observation) {
	start := a.now()
	working := state.New()
	if st != nil {
		working = st.Clone()
	}

	res, ctx := a.run(agentID, action, params, working)
	var obs []ir.Observation
	if ctx != nil {
		obs = ctx.Observations
		for i := range obs {
			obs[i].Seq = int64(i + 1)
		}
	}
	a.finish(agentID, action, res, ctx, start, true)
	return res, working, obs
}

// run validates params and interprets the action against st. The returned
// context is nil when the call failed before interpretation.
func (a *DynamicApp) run(agentID, action string, params ir.IRObject, st *state.AppState) (ir.AppResult, *engine.ExecutionContext) {
	def, ok := a.def.Action(action)
	if !ok {
		return ir.Failed(ir.KindUnknownAction, (&UnknownActionError{Action: action}).Error()), nil
	}
	resolved, err := checkParams(def, params)
	if err != nil {
		return ir.Failed(ir.KindParamValidation, err.Error()), nil
	}

	ctx := engine.NewExecutionContext(agentID, resolved, st, a.def.InitialConfig)
	return a.engine.Run(a.programs[action], ctx), ctx
}

func (a *DynamicApp) finish(agentID, action string, res ir.AppResult, ctx *engine.ExecutionContext, start time.Time, stateless bool) {
	elapsed := a.now().Sub(start)
	var iterations, observations int
	if ctx != nil {
		iterations = ctx.Iterations()
		observations = len(ctx.Observations)
	}

	attrs := []any{
		"action", action,
		"agent_id", agentID,
		"outcome", res.Outcome(),
		"stateless", stateless,
		"duration", elapsed,
	}
	switch res.Kind {
	case ir.KindEvalError, ir.KindResourceLimit, ir.KindInternal:
		a.logger.Warn("action aborted", append(attrs, "error", res.Error)...)
	default:
		a.logger.Debug("action executed", attrs...)
	}

	label := action
	if _, ok := a.def.Action(action); !ok {
		label = metrics.UnknownAction
	}
	a.metrics.Record(metrics.Execution{
		App:          a.def.AppID,
		Action:       label,
		Outcome:      res.Outcome(),
		Duration:     elapsed,
		Iterations:   iterations,
		Observations: observations,
	})
}

// GetObservations removes and returns every observation queued for
// agentID, oldest first.
func (a *DynamicApp) GetObservations(agentID string) []ir.Observation {
	return a.queue.Drain(agentID)
}

// DrainAllObservations removes and returns every queued observation,
// ordered by seq.
func (a *DynamicApp) DrainAllObservations() []ir.Observation {
	out := []ir.Observation{}
	for _, id := range a.queue.Recipients() {
		out = append(out, a.queue.Drain(id)...)
	}
	slices.SortFunc(out, func(x, y ir.Observation) int {
		return cmp.Compare(x.Seq, y.Seq)
	})
	return out
}

// ObservationRecipients returns the agents with queued observations,
// sorted.
func (a *DynamicApp) ObservationRecipients() []string {
	return a.queue.Recipients()
}

// PendingObservations returns how many observations wait for agentID.
func (a *DynamicApp) PendingObservations(agentID string) int {
	return a.queue.Pending(agentID)
}

// ObservationsReady signals when observations may be available. See
// engine.ObservationQueue.Wait.
func (a *DynamicApp) ObservationsReady() <-chan struct{} {
	return a.queue.Wait()
}

// GetStateSnapshot serializes the full app state.
func (a *DynamicApp) GetStateSnapshot() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Snapshot()
}

// RestoreState replaces the app state with a decoded snapshot. A malformed
// snapshot returns a *state.SerializationError and leaves the current
// state untouched.
func (a *DynamicApp) RestoreState(data []byte) error {
	restored, err := state.Restore(data)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = restored
	return nil
}

// State returns a deep copy of the current state.
func (a *DynamicApp) State() *state.AppState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Clone()
}

// Clock returns the clock stamping observation seq numbers.
func (a *DynamicApp) Clock() *engine.Clock {
	return a.clock
}

// AddAgent creates a per-agent entry for id from the state schema. It
// returns false if the agent already exists.
func (a *DynamicApp) AddAgent(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.AddAgent(id, a.def.StateSchema)
}

// Agents returns the ids of agents with per-agent state, sorted.
func (a *DynamicApp) Agents() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.AgentIDs()
}
