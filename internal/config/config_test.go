package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvHelpersFallBackToDefaults(t *testing.T) {
	t.Setenv("JOB_TEST_INT", "not-a-number")
	t.Setenv("JOB_TEST_DURATION", "soon")

	assert.Equal(t, "fallback", getEnv("JOB_TEST_MISSING", "fallback"))
	assert.Equal(t, 7, getEnvAsInt("JOB_TEST_INT", 7))
	assert.Equal(t, 2*time.Second, getEnvAsDuration("JOB_TEST_DURATION", "2s"))
	assert.Equal(t, 1500*time.Millisecond, getEnvAsMillis("JOB_TEST_MISSING", 1500))
	assert.True(t, getEnvAsBool("JOB_TEST_MISSING", true))
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("AUTOMATION_SECRET", "s3cret")
	t.Setenv("OLLAMA_TIMEOUT_MS", "5000")
	t.Setenv("PIPELINE_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg := Load()

	assert.Equal(t, "s3cret", cfg.Server.AutomationSecret)
	assert.Equal(t, 5*time.Second, cfg.Completion.Timeout)
	assert.Equal(t, float32(0.2), cfg.Completion.Temperatures["fit_analysis"])
	assert.Zero(t, cfg.Ledger.StaleAfter)
}

func TestLoadReadsLedgerReaper(t *testing.T) {
	t.Setenv("DISPATCH_STALE_AFTER", "2h")
	t.Setenv("PIPELINE_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg := Load()

	assert.Equal(t, 2*time.Hour, cfg.Ledger.StaleAfter)
	assert.Equal(t, "@every 15m", cfg.Ledger.ReapSchedule)
}

func TestPipelineOverlayOverridesStages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: qwen2.5:14b\ntemperatures:\n  humanize_email: 0.95\n"), 0o644))

	cfg := &Config{Completion: CompletionConfig{
		Model:        "llama3.1:8b",
		Temperatures: copyTemperatures(DefaultTemperatures),
	}}
	require.NoError(t, cfg.applyPipelineOverlay(path))

	assert.Equal(t, "qwen2.5:14b", cfg.Completion.Model)
	assert.Equal(t, float32(0.95), cfg.Completion.Temperatures["humanize_email"])
	assert.Equal(t, float32(0.3), cfg.Completion.Temperatures["tailor_resume"])
	assert.Equal(t, float32(0.8), DefaultTemperatures["humanize_email"])
}
