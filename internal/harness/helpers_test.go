package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const scenarioDir = "../../testdata/scenarios"

// paymentsPath returns the absolute path of the payments definition.
func paymentsPath(t *testing.T) string {
	t.Helper()
	p, err := filepath.Abs("../../testdata/apps/payments.json")
	require.NoError(t, err)
	return p
}

// writeScenario writes body to a temp file and returns its path.
func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func boolPtr(b bool) *bool { return &b }

// paymentsScenario builds an in-memory scenario on the payments app.
func paymentsScenario(t *testing.T, steps []Step, assertions ...Assertion) *Scenario {
	t.Helper()
	return &Scenario{
		Name:        "inline",
		Description: "inline",
		Definition:  paymentsPath(t),
		Agents:      []string{"alice", "bob"},
		Steps:       steps,
		Assertions:  assertions,
	}
}
