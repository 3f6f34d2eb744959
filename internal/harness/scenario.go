package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: a definition, the agents
// acting on it, a flow of steps and assertions on the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Definition is the path to a .json or .cue app definition.
	// Relative paths are resolved against the scenario file's directory.
	Definition string `yaml:"definition"`

	// App selects one app when the definition file holds several.
	App string `yaml:"app,omitempty"`

	// Agents are added to per-agent state before the first step.
	Agents []string `yaml:"agents"`

	// State overrides schema defaults. Keys under per_agent are merged
	// into each agent's namespace; keys under shared replace shared fields.
	State *StateOverride `yaml:"state,omitempty"`

	// Config overrides keys of the definition's initialConfig.
	Config map[string]any `yaml:"config,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state, observations and journal.
	Assertions []Assertion `yaml:"assertions"`
}

// StateOverride seeds state before the first step.
type StateOverride struct {
	PerAgent map[string]map[string]any `yaml:"per_agent,omitempty"`
	Shared   map[string]any            `yaml:"shared,omitempty"`
}

// Step executes one action as one agent.
type Step struct {
	Agent  string         `yaml:"agent"`
	Action string         `yaml:"action"`
	Params map[string]any `yaml:"params,omitempty"`

	// Stateless runs the action against a copy of the current state and
	// discards the result state.
	Stateless bool `yaml:"stateless,omitempty"`

	// Expect validates the result. If nil, any result is accepted.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected result of a step.
type Expect struct {
	// Success, when set, must match the result's success flag.
	Success *bool `yaml:"success,omitempty"`

	// Data is a subset match against the result data.
	Data map[string]any `yaml:"data,omitempty"`

	// Error must equal the result's error message exactly.
	Error string `yaml:"error,omitempty"`

	// ErrorContains must be a substring of the result's error message.
	ErrorContains string `yaml:"error_contains,omitempty"`
}

// Assertion validates the outcome of a scenario.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Agent names the agent for agent_state and observation assertions.
	Agent string `yaml:"agent,omitempty"`

	// Path is a dotted path into a namespace, e.g. "history.0.amount".
	// Numeric segments index arrays. Empty means the whole namespace.
	Path string `yaml:"path,omitempty"`

	// Equals is the expected value for state assertions.
	Equals any `yaml:"equals,omitempty"`

	// Message is a substring to find in an observation message.
	Message string `yaml:"message,omitempty"`

	// Action filters result_count to one action.
	Action string `yaml:"action,omitempty"`

	// Success filters result_count by outcome.
	Success *bool `yaml:"success,omitempty"`

	// Count is the expected number for observation_count and result_count.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertAgentState          = "agent_state"
	AssertSharedState         = "shared_state"
	AssertObservationCount    = "observation_count"
	AssertObservationContains = "observation_contains"
	AssertResultCount         = "result_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// The definition path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Definition != "" && !filepath.IsAbs(scenario.Definition) {
		scenario.Definition = filepath.Join(filepath.Dir(path), scenario.Definition)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Definition == "" {
		return fmt.Errorf("definition is required")
	}
	if _, err := os.Stat(s.Definition); os.IsNotExist(err) {
		return fmt.Errorf("definition file not found: %s", s.Definition)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Agent == "" {
			return fmt.Errorf("steps[%d]: agent is required", i)
		}
		if step.Action == "" {
			return fmt.Errorf("steps[%d]: action is required", i)
		}
		if e := step.Expect; e != nil && e.Success != nil && *e.Success && (e.Error != "" || e.ErrorContains != "") {
			return fmt.Errorf("steps[%d].expect: error is set but success is true", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertAgentState:
		if a.Agent == "" {
			return fmt.Errorf("assertions[%d]: agent is required for agent_state", index)
		}
	case AssertSharedState:
	case AssertObservationCount:
		if a.Agent == "" {
			return fmt.Errorf("assertions[%d]: agent is required for observation_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for observation_count", index)
		}
	case AssertObservationContains:
		if a.Agent == "" {
			return fmt.Errorf("assertions[%d]: agent is required for observation_contains", index)
		}
		if a.Message == "" {
			return fmt.Errorf("assertions[%d]: message is required for observation_contains", index)
		}
	case AssertResultCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for result_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
