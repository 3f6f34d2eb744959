package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	root := NewRootCommand()
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"validate", "compile", "inspect", "exec", "register", "invoke", "observe", "journal", "test"} {
		assert.Contains(t, names, want)
	}
	for _, flag := range []string{"verbose", "format", "config", "db", "log-format"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, err := executeRoot(t, "--format", "xml", "validate", paymentsDef)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRootCommand_BadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "appsim.yaml", "engine:\n  maxNestedDepth: 0\n")

	_, err := executeRoot(t, "--config", cfg, "validate", paymentsDef)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = executeRoot(t, "--config", filepath.Join(dir, "missing.yaml"), "validate", paymentsDef)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootCommand_ResolvesConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "appsim.yaml", "engine:\n  maxLoopIterations: 50\nstore:\n  path: from-file.db\n")
	db := filepath.Join(dir, "flag.db")

	opts := &RootOptions{Format: "text", ConfigPath: cfg, DBPath: db, Verbose: true}
	cmd := &cobra.Command{}
	cmd.SetErr(&bytes.Buffer{})
	require.NoError(t, opts.resolve(cmd))

	assert.Equal(t, db, opts.Config.Store.Path, "--db overrides the config file")
	assert.Equal(t, 50, opts.Config.Engine.MaxLoopIterations)
	assert.Equal(t, "debug", opts.Config.Log.Level)
	assert.NotNil(t, opts.Logger)
	assert.Equal(t, opts.Config, opts.settings())
}

func TestRootCommand_RunsSubcommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "sim.db")
	out, err := executeRoot(t, "--db", db, "register", paymentsDef, "--agents", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered payments")

	out, err = executeRoot(t, "--db", db, "--format", "json", "invoke", "payments", "get_balance", "--agent", "alice")
	require.NoError(t, err)
	var action ActionOutput
	resp := decodeResponse(t, out, &action)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(1), action.Seq)
}

func TestSettings_Defaults(t *testing.T) {
	opts := &RootOptions{DBPath: "x.db"}
	cfg := opts.settings()
	assert.Equal(t, "x.db", cfg.Store.Path)
	assert.Equal(t, 10, cfg.Engine.MaxNestedDepth)
	assert.NotNil(t, opts.logger())
}
