package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agnivade/stt_relay/config"
)

func TestRootCmd_MissingAPIKey(t *testing.T) {
	t.Setenv(config.DefaultAPIKeyEnv, "")
	t.Setenv("PORT", "")

	var stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(&stderr)
	cmd.SetErr(&stderr)

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrMissingAPIKey)
	// Reported once, by cobra.
	assert.Equal(t, 1, strings.Count(stderr.String(), "configuration error"), stderr.String())
	assert.Equal(t, 1, strings.Count(stderr.String(), config.DefaultAPIKeyEnv), stderr.String())
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	t.Setenv(config.DefaultAPIKeyEnv, "dg-key")
	t.Setenv("PORT", "4000")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := loadConfig(&options{port: 5000, logLevel: "debug"})
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)

	_, err = loadConfig(&options{logLevel: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid flags")
}

func TestNewFactory(t *testing.T) {
	tests := []struct {
		name     string
		backend  string
		wantName string
		wantErr  bool
	}{
		{"raw websocket", config.BackendDeepgram, "deepgram", false},
		{"sdk", config.BackendDeepgramSDK, "deepgram-sdk", false},
		{"unknown", "whisper", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default().Remote
			cfg.Backend = tt.backend
			cfg.APIKey = "dg-key"

			factory, cleanup, err := newFactory(context.Background(), &cfg)
			require.NotNil(t, cleanup)
			defer cleanup()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, factory.Name())
		})
	}
}

func TestNewFactory_InvalidDeepgramURL(t *testing.T) {
	cfg := config.Default().Remote
	cfg.APIKey = "dg-key"
	cfg.URL = "https://api.deepgram.com/v1/listen"

	_, cleanup, err := newFactory(context.Background(), &cfg)
	defer cleanup()
	assert.Error(t, err)
}
