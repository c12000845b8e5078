// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "grantscout", cfg.Logger().ServiceName)
	assert.Equal(t, ":5000", cfg.Server().Addr)
	assert.Equal(t, 2*time.Hour, cfg.Server().SessionIdleTimeout)
	assert.False(t, cfg.Browser().Headless)
	assert.Equal(t, 90*time.Second, cfg.Browser().NavigationTimeout)
	assert.Equal(t, 1280, cfg.Browser().Viewport["width"])
	assert.Equal(t, ProviderGemini, cfg.Agent().LLM.Provider)
	assert.Equal(t, "gemini-2.0-flash-exp", cfg.Agent().LLM.DefaultFastModel)
	assert.Equal(t, 50*time.Millisecond, cfg.Agent().TypingDelay)
	assert.Equal(t, "https://spin.infoedglobal.com", cfg.Site().URL)
	assert.Equal(t, "https://docs.google.com/spreadsheets/", cfg.Sheets().URLPrefix)
	assert.Equal(t, "grants.csv", cfg.Automation().Output)
	assert.Equal(t, 0, cfg.Automation().MaxConcurrent)
	assert.Empty(t, cfg.Database().URL)
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SetBrowserHeadless(true)
	cfg.SetAutomationOutput("/tmp/out.csv")

	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, "/tmp/out.csv", cfg.Automation().Output)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Defaults are valid", func(t *testing.T) {
		assert.NoError(t, NewDefaultConfig().Validate())
	})

	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"max steps", func(c *Config) { c.AgentCfg.MaxSteps = 0 }, "agent.max_steps must be a positive integer"},
		{"max failures", func(c *Config) { c.AgentCfg.MaxFailures = -1 }, "agent.max_failures must be a positive integer"},
		{"navigation timeout", func(c *Config) { c.BrowserCfg.NavigationTimeout = 0 }, "browser.navigation_timeout must be a positive duration"},
		{"max concurrent", func(c *Config) { c.AutomationCfg.MaxConcurrent = -2 }, "automation.max_concurrent must not be negative"},
		{"output", func(c *Config) { c.AutomationCfg.Output = "" }, "automation.output is required"},
		{"sheet prefix", func(c *Config) { c.SheetsCfg.URLPrefix = "" }, "sheets.url_prefix is required"},
		{"site url", func(c *Config) { c.SiteCfg.URL = "spin.infoedglobal.com" }, "must be an absolute URL"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestSiteConfig_HasCredentials(t *testing.T) {
	assert.False(t, SiteConfig{Username: "u"}.HasCredentials())
	assert.True(t, SiteConfig{Username: "u", Password: "p"}.HasCredentials())
}

func TestLLMConfig_RequireAPIKey(t *testing.T) {
	assert.Error(t, LLMConfig{}.RequireAPIKey())
	assert.NoError(t, LLMConfig{APIKey: "k"}.RequireAPIKey())
}

// -- Viper Integration Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("YAML overrides defaults", func(t *testing.T) {
		yaml := []byte(`
server:
  addr: ":8080"
agent:
  max_steps: 12
  llm:
    default_fast_model: "gemini-2.5-flash"
automation:
  output: "out/grants.csv"
  max_concurrent: 1
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yaml)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Server().Addr)
		assert.Equal(t, 12, cfg.Agent().MaxSteps)
		assert.Equal(t, "gemini-2.5-flash", cfg.Agent().LLM.DefaultFastModel)
		assert.Equal(t, "out/grants.csv", cfg.Automation().Output)
		assert.Equal(t, 1, cfg.Automation().MaxConcurrent)
	})

	t.Run("Secrets come from the environment", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gem-key")
		t.Setenv("GRANTSCOUT_SESSION_SECRET", "")
		t.Setenv("FLASK_SECRET_KEY", "flask-secret")
		t.Setenv("MYUSERNAME", "alice")
		t.Setenv("MYPASSWORD", "hunter2")

		v := viper.New()
		SetDefaults(v)
		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "gem-key", cfg.Agent().LLM.APIKey)
		assert.Equal(t, "flask-secret", cfg.Server().SessionSecret)
		assert.Equal(t, "alice", cfg.Site().Username)
		assert.Equal(t, "hunter2", cfg.Site().Password)
	})

	t.Run("Missing session secret is generated", func(t *testing.T) {
		t.Setenv("FLASK_SECRET_KEY", "")
		t.Setenv("GRANTSCOUT_SESSION_SECRET", "")
		v := viper.New()
		SetDefaults(v)
		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Len(t, cfg.Server().SessionSecret, 84)
	})

	t.Run("Invalid values are rejected", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("agent.max_steps", 0)
		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}
