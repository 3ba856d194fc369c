// Viper-based hierarchical configuration management
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Engine struct {
		AnchorThreshold      float64  `mapstructure:"anchor_threshold" yaml:"anchor_threshold"`
		OverrideThreshold    float64  `mapstructure:"override_threshold" yaml:"override_threshold"`
		OverrideClampRatio   float64  `mapstructure:"override_clamp_ratio" yaml:"override_clamp_ratio"`
		TotalsToleranceCents int      `mapstructure:"totals_tolerance_cents" yaml:"totals_tolerance_cents"`
		SplitLayoutStores    []string `mapstructure:"split_layout_stores" yaml:"split_layout_stores"`
		StoreDetectLines     int      `mapstructure:"store_detect_lines" yaml:"store_detect_lines"`
	} `mapstructure:"engine" yaml:"engine"`

	Vision struct {
		Model          string `mapstructure:"model" yaml:"model"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
		FocusedPass    bool   `mapstructure:"focused_pass" yaml:"focused_pass"`
		PrimaryPrompt  string `mapstructure:"primary_prompt" yaml:"primary_prompt"`
		FocusedPrompt  string `mapstructure:"focused_prompt" yaml:"focused_prompt"`
		APIKey         string `mapstructure:"api_key" yaml:"-"` // Never serialize API key
	} `mapstructure:"vision" yaml:"vision"`

	Store struct {
		Path        string `mapstructure:"path" yaml:"path"`
		AliasesPath string `mapstructure:"aliases_path" yaml:"aliases_path"`
	} `mapstructure:"store" yaml:"store"`

	DocMgmt struct {
		Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
		BaseURL string `mapstructure:"base_url" yaml:"base_url"`
		Token   string `mapstructure:"token" yaml:"-"` // Never serialize API token
	} `mapstructure:"docmgmt" yaml:"docmgmt"`

	Watch struct {
		Debounce    string   `mapstructure:"debounce" yaml:"debounce"`
		InitialScan bool     `mapstructure:"initial_scan" yaml:"initial_scan"`
		Extensions  []string `mapstructure:"extensions" yaml:"extensions"`
	} `mapstructure:"watch" yaml:"watch"`
}

// InitializeConfig initializes Viper configuration with hierarchical loading
func InitializeConfig() (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Config file locations
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.bonscan")
	v.AddConfigPath(".bonscan")
	v.AddConfigPath(".")

	// 3. Environment variables
	v.SetEnvPrefix("BONSCAN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 4. Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			Logger.Warnf("error reading config file %s: %v", v.ConfigFileUsed(), err)
		}
		// Config file not found or invalid is OK, we'll use defaults and env vars
	}

	// 5. Secrets always come from unprefixed environment variables
	if err := v.BindEnv("vision.api_key", "GEMINI_API_KEY"); err != nil {
		Logger.Warnf("failed to bind GEMINI_API_KEY environment variable: %v", err)
	}
	if err := v.BindEnv("docmgmt.token", "PAPERLESS_TOKEN"); err != nil {
		Logger.Warnf("failed to bind PAPERLESS_TOKEN environment variable: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("engine.anchor_threshold", 0.60)
	v.SetDefault("engine.override_threshold", 0.72)
	v.SetDefault("engine.override_clamp_ratio", 0.51)
	v.SetDefault("engine.totals_tolerance_cents", 3)
	v.SetDefault("engine.split_layout_stores", []string{"aldi", "netto"})
	v.SetDefault("engine.store_detect_lines", 8)

	v.SetDefault("vision.model", "gemini-2.0-flash")
	v.SetDefault("vision.timeout_seconds", 60)
	v.SetDefault("vision.focused_pass", true)
	v.SetDefault("vision.primary_prompt", "")
	v.SetDefault("vision.focused_prompt", "")

	v.SetDefault("store.path", "bonscan.db")
	v.SetDefault("store.aliases_path", "merchants.yaml")

	v.SetDefault("docmgmt.enabled", false)
	v.SetDefault("docmgmt.base_url", "")

	v.SetDefault("watch.debounce", "500ms")
	v.SetDefault("watch.initial_scan", false)
	v.SetDefault("watch.extensions", []string{"pdf", "jpg", "jpeg", "png"})
}

// validateConfig validates configuration values
func validateConfig(c *Config) error {
	for _, t := range []struct {
		name  string
		value float64
	}{
		{"engine.anchor_threshold", c.Engine.AnchorThreshold},
		{"engine.override_threshold", c.Engine.OverrideThreshold},
	} {
		if t.value <= 0 || t.value > 1 {
			return fmt.Errorf("%s must be in (0,1], got %v", t.name, t.value)
		}
	}
	if c.Engine.OverrideClampRatio <= 0 {
		return fmt.Errorf("engine.override_clamp_ratio must be positive, got %v", c.Engine.OverrideClampRatio)
	}
	if c.Engine.TotalsToleranceCents < 0 {
		return fmt.Errorf("engine.totals_tolerance_cents must not be negative")
	}
	if c.Engine.StoreDetectLines <= 0 {
		return fmt.Errorf("engine.store_detect_lines must be positive")
	}
	if c.DocMgmt.Enabled && c.DocMgmt.BaseURL == "" {
		return fmt.Errorf("docmgmt.base_url is required when docmgmt.enabled is set")
	}
	return nil
}
