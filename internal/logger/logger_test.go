package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quant-trade-bot-go/internal/config"
)

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(config.Logger{Level: "loud"}, "trader")
	assert.Error(t, err)
}

func TestNewLogger_JSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	log, err := NewLogger(config.Logger{Level: "warn", Format: "json", Outputs: []string{path}}, "trader")
	require.NoError(t, err)

	log.Info("filtered out")
	log.Warn("Order rejected")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "Order rejected", entry["msg"])
	assert.Equal(t, "trader", entry["service"])
	assert.Equal(t, "warn", entry["level"])
}
