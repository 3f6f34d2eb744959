package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/appsim/internal/config"
)

func TestNewLogger_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(buf, config.LogConfig{Level: "info", Format: "json"})

	logger.Debug("hidden")
	logger.Info("action invoked", "app_id", "payments", "seq", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "action invoked", line["msg"])
	assert.Equal(t, "payments", line["app_id"])
	assert.Equal(t, float64(3), line["seq"])
}

func TestNewLogger_Text(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(buf, config.LogConfig{Level: "debug", Format: "text"})

	logger.Debug("step completed", "agent_id", "alice", "error", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "step completed")
	assert.Contains(t, out, "agent_id=alice")
	assert.Contains(t, out, "error=boom")
	assert.NotContains(t, out, "\x1b[", "no color when not writing to a terminal")
}

func TestNewLogger_BadLevelFallsBackToInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(buf, config.LogConfig{Level: "loud", Format: "text"})

	logger.Debug("hidden")
	assert.Empty(t, buf.String())
	logger.Info("shown")
	assert.Contains(t, buf.String(), "shown")
}
