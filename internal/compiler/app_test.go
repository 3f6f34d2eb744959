package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/appsim/internal/ir"
)

func TestCompileAppBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		app: counter: {
			name: "Counter"
			stateSchema: [{name: "count", type: "number", perAgent: true}]
			actions: [{
				name: "bump"
				parameters: by: {type: "number", default: 1}
				logic: [
					{type: "update", target: "agent.count", operation: "add", value: "params.by"},
					{type: "return", value: {count: "agent.count"}},
				]
			}]
		}
	`)
	require.NoError(t, v.Err())

	def, err := CompileApp(v.LookupPath(cue.ParsePath("app.counter")))
	require.NoError(t, err)

	assert.Equal(t, "counter", def.AppID, "appId defaults to the label")
	assert.Equal(t, "Counter", def.Name)
	require.Len(t, def.Actions, 1)
	assert.Equal(t, ir.IRNumber(1), def.Actions[0].Parameters["by"].Default)
	require.Len(t, def.Actions[0].Logic, 2)
	assert.Equal(t, ir.BlockUpdate, def.Actions[0].Logic[0].BlockType())
	assert.True(t, def.StateSchema[0].PerAgent)
}

func TestCompileAppExplicitID(t *testing.T) {
	v := cuecontext.New().CompileString(`app: x: {appId: "real_id", name: "X", actions: []}`)
	def, err := CompileApp(v.LookupPath(cue.ParsePath("app.x")))
	require.NoError(t, err)
	assert.Equal(t, "real_id", def.AppID)
}

func TestCompileAppMissingName(t *testing.T) {
	v := cuecontext.New().CompileString(`app: x: {actions: []}`)
	_, err := CompileApp(v.LookupPath(cue.ParsePath("app.x")))

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "name", ce.Field)
}

func TestCompileAppIncomplete(t *testing.T) {
	v := cuecontext.New().CompileString(`app: x: {name: string, actions: []}`)
	_, err := CompileApp(v.LookupPath(cue.ParsePath("app.x")))
	assert.Error(t, err, "non-concrete values are rejected")
}

func TestCompileAppBadBlock(t *testing.T) {
	v := cuecontext.New().CompileString(`app: x: {name: "X", actions: [{name: "a", logic: [{type: "teleport"}]}]}`)
	_, err := CompileApp(v.LookupPath(cue.ParsePath("app.x")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "teleport")
}

func TestCompileAppNonExistentPath(t *testing.T) {
	v := cuecontext.New().CompileString(`app: x: {name: "X"}`)
	_, err := CompileApp(v.LookupPath(cue.ParsePath("app.missing")))
	assert.Error(t, err)
}

func TestCompileAppInvalidCUESyntax(t *testing.T) {
	v := cuecontext.New().CompileString(`app: x: {name: }`)
	_, err := CompileApps(v)
	assert.Error(t, err)
}

func TestLoadFileJSON(t *testing.T) {
	defs, err := LoadFile("../../testdata/apps/payments.json")
	require.NoError(t, err)
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, "payments", def.AppID)
	transfer, ok := def.Action("transfer")
	require.True(t, ok)
	assert.Equal(t, []string{"amount", "memo", "to"}, transfer.ParamNames())
	assert.Empty(t, Validate(def))
}

func TestLoadFileCUE(t *testing.T) {
	defs, err := LoadFile("../../testdata/apps/inventory.cue")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "inventory", defs[0].AppID)
	assert.Empty(t, Validate(defs[0]))
}

func TestLoadFileUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x"), 0o644))
	_, err := LoadFile(path)
	assert.ErrorContains(t, err, "unsupported definition format")
}

func TestLoadDir(t *testing.T) {
	defs, err := LoadDir("../../testdata/apps")
	require.NoError(t, err)

	ids := make([]string, len(defs))
	for i, d := range defs {
		ids[i] = d.AppID
	}
	assert.Equal(t, []string{"inventory", "payments"}, ids)
}

func TestLoadDirEmpty(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	assert.ErrorContains(t, err, "no app definitions")
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "name", Message: "name is required"}
	assert.Equal(t, "name: name is required", err.Error())
}
