package app

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", DriverMemory)
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 3, cfg.TxMaxAttempts)
	require.Equal(t, "JOURNAL", cfg.JournalSequence)
	require.Equal(t, 30*time.Second, cfg.AppRequestTimeout)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "unknown STORE_DRIVER")

	t.Setenv("STORE_DRIVER", DriverMemory)
	t.Setenv("TX_MAX_ATTEMPTS", "0")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "TX_MAX_ATTEMPTS")

	t.Setenv("TX_MAX_ATTEMPTS", "many")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestJSONLoggerCarriesEnv(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", AppEnv: "staging"}, &buf)
	logger.Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "hello", line["msg"])
	require.Equal(t, "staging", line["env"])
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())
	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	require.False(t, InTestMode())
}
