package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeConfigDefaults(t *testing.T) {
	cfg, err := InitializeConfig()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 0.60, cfg.Engine.AnchorThreshold)
	assert.Equal(t, 0.72, cfg.Engine.OverrideThreshold)
	assert.Equal(t, 0.51, cfg.Engine.OverrideClampRatio)
	assert.Equal(t, 3, cfg.Engine.TotalsToleranceCents)
	assert.Equal(t, []string{"aldi", "netto"}, cfg.Engine.SplitLayoutStores)
	assert.Equal(t, 8, cfg.Engine.StoreDetectLines)
	assert.Equal(t, "gemini-2.0-flash", cfg.Vision.Model)
	assert.False(t, cfg.DocMgmt.Enabled)
	assert.Equal(t, []string{"pdf", "jpg", "jpeg", "png"}, cfg.Watch.Extensions)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		cfg, err := InitializeConfig()
		require.NoError(t, err)
		return cfg
	}

	t.Run("ValidDefaults", func(t *testing.T) {
		assert.NoError(t, validateConfig(valid()))
	})

	t.Run("BadThreshold", func(t *testing.T) {
		cfg := valid()
		cfg.Engine.AnchorThreshold = 1.5
		assert.Error(t, validateConfig(cfg))
	})

	t.Run("BadClampRatio", func(t *testing.T) {
		cfg := valid()
		cfg.Engine.OverrideClampRatio = 0
		assert.Error(t, validateConfig(cfg))
	})

	t.Run("NegativeTolerance", func(t *testing.T) {
		cfg := valid()
		cfg.Engine.TotalsToleranceCents = -1
		assert.Error(t, validateConfig(cfg))
	})

	t.Run("DocMgmtWithoutURL", func(t *testing.T) {
		cfg := valid()
		cfg.DocMgmt.Enabled = true
		cfg.DocMgmt.BaseURL = ""
		assert.Error(t, validateConfig(cfg))
	})
}

func TestConfigureLogging(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	logger := ConfigureLogging()
	assert.Equal(t, "debug", logger.GetLevel().String())

	t.Setenv("LOG_LEVEL", "bogus")
	logger = ConfigureLogging()
	assert.Equal(t, "info", logger.GetLevel().String())
}

func TestGetEnv(t *testing.T) {
	t.Setenv("BONSCAN_TEST_KEY", "value")
	assert.Equal(t, "value", GetEnv("BONSCAN_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnv("BONSCAN_TEST_MISSING", "fallback"))
}
