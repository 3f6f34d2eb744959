package harness

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/appsim/internal/ir"
	"github.com/roach88/appsim/internal/queryir"
	"github.com/roach88/appsim/internal/state"
	"github.com/roach88/appsim/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s -> %s\n", ev.Step, ev.Agent, ev.Action, ir.Stringify(ev.Params), ev.Result.Outcome())
		}
	}

	return buf.String()
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
	AppID string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides journal access for result_count assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertAgentState:
			err = assertState(result, assertion, state.NamespaceAgent)
		case AssertSharedState:
			err = assertState(result, assertion, state.NamespaceShared)
		case AssertObservationCount:
			err = assertObservationCount(result, assertion)
		case AssertObservationContains:
			err = assertObservationContains(result, assertion)
		case AssertResultCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: result_count requires a store", i)
			} else {
				err = assertResultCount(actx, result.Trace, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// assertState compares the value at an agent or shared path with Equals.
func assertState(result *Result, a Assertion, ns state.Namespace) error {
	if result.State == nil {
		return fmt.Errorf("%s: no final state", a.Type)
	}
	path, err := parsePath(a.Path)
	if err != nil {
		return fmt.Errorf("%s: %w", a.Type, err)
	}
	addr := state.SharedAddress(path...)
	if ns == state.NamespaceAgent {
		addr = state.AgentAddress(a.Agent, path...)
	}

	want, err := ir.FromGo(a.Equals)
	if err != nil {
		return fmt.Errorf("%s: equals: %w", a.Type, err)
	}

	got, err := result.State.Get(addr)
	if err != nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s = %s", addr, ir.Stringify(want)),
			Actual:   err.Error(),
		}
	}
	if !ir.Equal(want, got) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s = %s", addr, ir.Stringify(want)),
			Actual:   fmt.Sprintf("%s = %s", addr, ir.Stringify(got)),
		}
	}
	return nil
}

// parsePath splits a dotted path. Segments that parse as non-negative
// integers become array indexes.
func parsePath(p string) ([]state.Segment, error) {
	if p == "" {
		return nil, nil
	}
	parts := strings.Split(p, ".")
	segs := make([]state.Segment, len(parts))
	for i, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("invalid path %q: empty segment", p)
		}
		if n, err := strconv.Atoi(part); err == nil && n >= 0 {
			segs[i] = state.Idx(n)
			continue
		}
		segs[i] = state.Key(part)
	}
	return segs, nil
}

// assertObservationCount checks how many observations the trace delivered
// to an agent, stateless steps included.
func assertObservationCount(result *Result, a Assertion) error {
	got := len(result.ObservationsFor(a.Agent))
	if got != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d observations for %s", a.Count, a.Agent),
			Actual:   fmt.Sprintf("%d observations", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertObservationContains checks that some observation for an agent has
// Message as a substring.
func assertObservationContains(result *Result, a Assertion) error {
	obs := result.ObservationsFor(a.Agent)
	for _, o := range obs {
		if strings.Contains(o.Message, a.Message) {
			return nil
		}
	}
	messages := make([]string, len(obs))
	for i, o := range obs {
		messages[i] = strconv.Quote(o.Message)
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("observation for %s containing %q", a.Agent, a.Message),
		Actual:   fmt.Sprintf("messages: [%s]", strings.Join(messages, ", ")),
		Trace:    result.Trace,
	}
}

// assertResultCount counts journaled executions, optionally filtered by
// action and outcome. Stateless steps are never journaled.
func assertResultCount(actx *AssertionContext, trace []TraceEvent, a Assertion) error {
	var filter []queryir.Predicate
	if a.Action != "" {
		filter = append(filter, store.ByAction(a.Action))
	}
	if a.Success != nil {
		filter = append(filter, store.BySuccess(*a.Success))
	}
	recs, err := actx.Store.QueryExecutions(actx.Ctx, actx.AppID, queryir.All(filter...))
	if err != nil {
		return fmt.Errorf("result_count: %w", err)
	}

	got := len(recs)

	if got != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d results matching %s", a.Count, describeResultFilter(a)),
			Actual:   fmt.Sprintf("%d results", got),
			Trace:    trace,
		}
	}
	return nil
}

func describeResultFilter(a Assertion) string {
	var parts []string
	if a.Action != "" {
		parts = append(parts, "action="+a.Action)
	}
	if a.Success != nil {
		parts = append(parts, "success="+strconv.FormatBool(*a.Success))
	}
	if len(parts) == 0 {
		return "(any)"
	}
	return strings.Join(parts, " ")
}

// sortedKeys returns map keys in sorted order for deterministic messages.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
