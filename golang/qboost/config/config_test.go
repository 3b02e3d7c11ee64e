package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"QBOOST_SAMPLER_URL", "QBOOST_SAMPLER_TOKEN", "QBOOST_SAMPLER_SOLVER",
		"QBOOST_SAMPLER_TIMEOUT", "QBOOST_SERVER_PORT", "LOG_LEVEL", "LOG_PRETTY",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.SamplerURL)
	assert.Equal(t, time.Duration(0), cfg.SamplerTimeout)
	assert.Equal(t, 9300, cfg.ServerPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogPretty)
	assert.Error(t, cfg.RequireSampler())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("QBOOST_SAMPLER_URL", "http://localhost:9300")
	t.Setenv("QBOOST_SAMPLER_TOKEN", "secret")
	t.Setenv("QBOOST_SAMPLER_SOLVER", "anneal")
	t.Setenv("QBOOST_SAMPLER_TIMEOUT", "90s")
	t.Setenv("QBOOST_SERVER_PORT", "9400")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9300", cfg.SamplerURL)
	assert.Equal(t, "secret", cfg.SamplerToken)
	assert.Equal(t, "anneal", cfg.SamplerSolver)
	assert.Equal(t, 90*time.Second, cfg.SamplerTimeout)
	assert.Equal(t, 9400, cfg.ServerPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
	assert.NoError(t, cfg.RequireSampler())
}

func TestLoad_BadTimeout(t *testing.T) {
	t.Setenv("QBOOST_SAMPLER_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_PortRange(t *testing.T) {
	cfg := &Config{ServerPort: 70000}
	assert.Error(t, cfg.Validate())

	cfg.ServerPort = 9300
	assert.NoError(t, cfg.Validate())
}

func TestGetEnvAsInt_Fallback(t *testing.T) {
	t.Setenv("QBOOST_TEST_INT", "many")
	assert.Equal(t, 7, getEnvAsInt("QBOOST_TEST_INT", 7))
}
