package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, defaultPort, cfg.HTTP.Port)
	assert.Equal(t, defaultReadTimeout, cfg.HTTP.ReadTimeout)
	assert.Equal(t, defaultWorkers, cfg.Corrector.Workers)
	assert.Equal(t, defaultTopK, cfg.QA.TopK)
	assert.True(t, cfg.QA.ValidateCypher)
	assert.False(t, cfg.QA.AllowDangerousRequests)
	assert.False(t, cfg.QA.UseFunctionResponse)
	assert.False(t, cfg.QA.SanitizeRows)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_READ_TIMEOUT", "3s")
	t.Setenv("SCHEMA_EXCLUDE_TYPES", "Secret, ,Internal")
	t.Setenv("CORRECTOR_WORKERS", "16")
	t.Setenv("QA_ALLOW_DANGEROUS_REQUESTS", "true")
	t.Setenv("QA_USE_FUNCTION_RESPONSE", "1")
	t.Setenv("QA_SANITIZE_ROWS", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, []string{"Secret", "Internal"}, cfg.Schema.ExcludeTypes)
	assert.Equal(t, 16, cfg.Corrector.Workers)
	assert.True(t, cfg.QA.AllowDangerousRequests)
	assert.True(t, cfg.QA.UseFunctionResponse)
	assert.True(t, cfg.QA.SanitizeRows)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"port out of range", map[string]string{"SERVER_PORT": "70000"}},
		{"port not a number", map[string]string{"SERVER_PORT": "http"}},
		{"bad duration", map[string]string{"SERVER_IDLE_TIMEOUT": "soon"}},
		{"include and exclude", map[string]string{"SCHEMA_INCLUDE_TYPES": "A", "SCHEMA_EXCLUDE_TYPES": "B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
