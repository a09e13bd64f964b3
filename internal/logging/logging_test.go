package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/epikom-hub/internal/model"
)

func TestNewWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "hub.log")
	log, closeFn, err := New(model.LogConfig{Path: path, Level: "info", MaxSizeMB: 1, MaxBackups: 1})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("reminder sent", zap.String("deliverable_id", "d1"))
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "reminder sent", rec["msg"])
	assert.Equal(t, "d1", rec["deliverable_id"])
	assert.Equal(t, "info", rec["level"])
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, _, err := New(model.LogConfig{Path: filepath.Join(t.TempDir(), "x.log"), Level: "loud"})
	assert.Error(t, err)
}
