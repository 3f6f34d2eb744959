package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const (
	appsDir      = "../../testdata/apps"
	scenariosDir = "../../testdata/scenarios"
)

var paymentsDef = filepath.Join(appsDir, "payments.json")

// rawResponse mirrors CLIResponse with the payload left undecoded.
type rawResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

// execute runs a single command built from opts and returns its stdout.
func execute(t *testing.T, newCmd func(*RootOptions) *cobra.Command, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := newCmd(opts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func textOpts(t *testing.T) *RootOptions {
	t.Helper()
	return &RootOptions{Format: "text", DBPath: filepath.Join(t.TempDir(), "sim.db")}
}

func jsonOpts(t *testing.T) *RootOptions {
	t.Helper()
	return &RootOptions{Format: "json", DBPath: filepath.Join(t.TempDir(), "sim.db")}
}

// decodeResponse parses a JSON response and, if data is non-nil, its
// payload.
func decodeResponse(t *testing.T, out string, data any) rawResponse {
	t.Helper()
	var resp rawResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	if data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp
}

// writeFile writes content under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// paymentsVariant returns payments.json with old replaced.
func paymentsVariant(t *testing.T, old, replacement string) string {
	t.Helper()
	data, err := os.ReadFile(paymentsDef)
	require.NoError(t, err)
	require.Contains(t, string(data), old)
	return strings.Replace(string(data), old, replacement, 1)
}
