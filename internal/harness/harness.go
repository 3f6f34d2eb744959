package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/appsim/internal/app"
	"github.com/roach88/appsim/internal/compiler"
	"github.com/roach88/appsim/internal/ir"
	"github.com/roach88/appsim/internal/state"
	"github.com/roach88/appsim/internal/store"
	"github.com/roach88/appsim/internal/testutil"
)

// Harness is the test execution engine.
// It runs one scenario against a fresh app with deterministic ids.
type Harness struct {
	app    *app.DynamicApp
	store  *store.Store
	logger *slog.Logger
	appID  string
	seq    int64 // last journaled execution
}

// Option configures Run.
type Option func(*runOptions)

type runOptions struct {
	logger *slog.Logger
	checks []Check
}

// Check inspects a finished scenario run. RunSuite records a non-nil
// error as a failure of that scenario.
type Check func(path string, scenario *Scenario, result *Result) error

// WithLogger sets the logger for step progress and the app under test.
// The default discards all output.
func WithLogger(l *slog.Logger) Option {
	return func(o *runOptions) {
		o.logger = l
	}
}

// WithCheck adds a check RunSuite applies after each scenario. Run
// ignores it.
func WithCheck(c Check) Option {
	return func(o *runOptions) {
		o.checks = append(o.checks, c)
	}
}

func newRunOptions(opts []Option) runOptions {
	o := runOptions{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// generate_id() yields "id-0001", "id-0002", ... so traces are reproducible.
//
// Execution flow:
// 1. Load and validate the definition, apply config overrides
// 2. Build initial state from the schema, agents and overrides
// 3. Execute steps, journaling stateful ones, checking expect clauses
// 4. Checkpoint the final state
// 5. Evaluate assertions
//
// A returned error means the scenario could not run; expectation and
// assertion failures are reported through Result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := newRunOptions(opts)

	def, err := loadDefinition(scenario)
	if err != nil {
		return nil, err
	}

	initial, err := buildState(def, scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to build initial state: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if _, err := st.PutDefinition(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to store definition: %w", err)
	}

	ids := testutil.NewDeterministicIDs("id")
	a, err := app.New(def,
		app.WithState(initial),
		app.WithIDGenerator(ids),
		app.WithLogger(o.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create app: %w", err)
	}

	h := &Harness{
		app:    a,
		store:  st,
		logger: o.logger,
		appID:  def.AppID,
	}

	result := NewResult()
	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	snapshot, err := a.GetStateSnapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot state: %w", err)
	}
	hash, err := st.WriteCheckpoint(ctx, store.Checkpoint{
		AppID:    def.AppID,
		Seq:      h.seq,
		Clock:    a.Clock().Current(),
		Snapshot: snapshot,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to checkpoint state: %w", err)
	}
	result.State = a.State()
	result.StateHash = hash

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
		AppID: def.AppID,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// loadDefinition compiles the scenario's definition file, picks the app
// and applies config overrides.
func loadDefinition(scenario *Scenario) (*ir.AppDefinition, error) {
	defs, err := compiler.LoadFile(scenario.Definition)
	if err != nil {
		return nil, fmt.Errorf("failed to load definition: %w", err)
	}

	var def *ir.AppDefinition
	switch {
	case scenario.App != "":
		for _, d := range defs {
			if d.AppID == scenario.App {
				def = d
			}
		}
		if def == nil {
			return nil, fmt.Errorf("app %q not found in %s", scenario.App, scenario.Definition)
		}
	case len(defs) == 1:
		def = defs[0]
	default:
		return nil, fmt.Errorf("%s defines %d apps; set app to choose one", scenario.Definition, len(defs))
	}

	if err := compiler.AsError(compiler.Validate(def)); err != nil {
		return nil, fmt.Errorf("invalid definition: %w", err)
	}

	if len(scenario.Config) > 0 {
		if def.InitialConfig == nil {
			def.InitialConfig = ir.IRObject{}
		}
		for k, v := range scenario.Config {
			val, err := ir.FromGo(v)
			if err != nil {
				return nil, fmt.Errorf("config %q: %w", k, err)
			}
			def.InitialConfig[k] = val
		}
	}
	return def, nil
}

// buildState creates schema state for the scenario's agents and applies
// overrides. Agents named only in overrides are added too.
func buildState(def *ir.AppDefinition, scenario *Scenario) (*state.AppState, error) {
	st := state.FromSchema(def.StateSchema, scenario.Agents...)
	if scenario.State == nil {
		return st, nil
	}

	for agent, fields := range scenario.State.PerAgent {
		st.AddAgent(agent, def.StateSchema)
		for k, v := range fields {
			val, err := ir.FromGo(v)
			if err != nil {
				return nil, fmt.Errorf("per_agent.%s.%s: %w", agent, k, err)
			}
			st.PerAgent[agent][k] = val
		}
	}

	if st.Shared == nil {
		st.Shared = ir.IRObject{}
	}
	for k, v := range scenario.State.Shared {
		val, err := ir.FromGo(v)
		if err != nil {
			return nil, fmt.Errorf("shared.%s: %w", k, err)
		}
		st.Shared[k] = val
	}
	return st, nil
}

// executeSteps runs every step in order.
//
// Stateful steps run through Execute and are journaled with the state hash
// after the call. Stateless steps run against a copy of the current state
// and leave both the app and the journal untouched.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		params, err := convertParams(step.Params)
		if err != nil {
			return fmt.Errorf("step %d: failed to convert params: %w", i+1, err)
		}

		var (
			res ir.AppResult
			obs []ir.Observation
		)
		if step.Stateless {
			res, _, obs = h.app.ExecuteStateless(step.Agent, step.Action, params, h.app.State())
		} else {
			res = h.app.Execute(step.Agent, step.Action, params)
			obs = h.app.DrainAllObservations()
			if err := h.journal(ctx, step, params, res, obs); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
		}

		result.AddTrace(TraceEvent{
			Step:         i + 1,
			Agent:        step.Agent,
			Action:       step.Action,
			Stateless:    step.Stateless,
			Params:       params,
			Result:       res,
			Observations: obs,
		})

		for _, msg := range checkExpect(i+1, step, res) {
			result.AddError(msg)
		}

		h.logger.Info("step completed",
			"step", i+1,
			"agent", step.Agent,
			"action", step.Action,
			"stateless", step.Stateless,
			"outcome", res.Outcome(),
			"observations", len(obs),
		)
	}
	return nil
}

// journal appends a stateful step to the execution log.
func (h *Harness) journal(ctx context.Context, step Step, params ir.IRObject, res ir.AppResult, obs []ir.Observation) error {
	hash, err := h.app.State().Hash()
	if err != nil {
		return fmt.Errorf("failed to hash state: %w", err)
	}
	seq, err := h.store.AppendExecution(ctx, store.ExecutionRecord{
		AppID:        h.appID,
		AgentID:      step.Agent,
		Action:       step.Action,
		Params:       params,
		Result:       res,
		Observations: obs,
		StateHash:    hash,
	})
	if err != nil {
		return fmt.Errorf("failed to journal execution: %w", err)
	}
	h.seq = seq
	return nil
}

// checkExpect compares a result with the step's expect clause and returns
// one message per mismatch.
func checkExpect(n int, step Step, res ir.AppResult) []string {
	e := step.Expect
	if e == nil {
		return nil
	}
	prefix := fmt.Sprintf("step %d (%s as %s)", n, step.Action, step.Agent)

	var errs []string
	if e.Success != nil && *e.Success != res.Success {
		errs = append(errs, fmt.Sprintf("%s: expected success=%t, got %t (error: %q)", prefix, *e.Success, res.Success, res.Error))
	}
	if e.Error != "" && e.Error != res.Error {
		errs = append(errs, fmt.Sprintf("%s: expected error %q, got %q", prefix, e.Error, res.Error))
	}
	if e.ErrorContains != "" && !strings.Contains(res.Error, e.ErrorContains) {
		errs = append(errs, fmt.Sprintf("%s: expected error containing %q, got %q", prefix, e.ErrorContains, res.Error))
	}
	for _, key := range sortedKeys(e.Data) {
		want, err := ir.FromGo(e.Data[key])
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: data.%s: %v", prefix, key, err))
			continue
		}
		got, ok := res.Data[key]
		if !ok {
			errs = append(errs, fmt.Sprintf("%s: expected data.%s = %s, key missing", prefix, key, ir.Stringify(want)))
			continue
		}
		if !ir.Equal(want, got) {
			errs = append(errs, fmt.Sprintf("%s: expected data.%s = %s, got %s", prefix, key, ir.Stringify(want), ir.Stringify(got)))
		}
	}
	return errs
}

// convertParams converts YAML-decoded params to an IRObject.
func convertParams(params map[string]any) (ir.IRObject, error) {
	obj := make(ir.IRObject, len(params))
	for k, v := range params {
		val, err := ir.FromGo(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		obj[k] = val
	}
	return obj, nil
}
