// File: internal/config/config.go
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Server() ServerConfig
	Browser() BrowserConfig
	Agent() AgentConfig
	Site() SiteConfig
	Sheets() SheetsConfig
	Automation() AutomationConfig
	Database() DatabaseConfig

	SetBrowserHeadless(bool)
	SetAutomationOutput(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	ServerCfg     ServerConfig     `mapstructure:"server" yaml:"server"`
	BrowserCfg    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	AgentCfg      AgentConfig      `mapstructure:"agent" yaml:"agent"`
	SiteCfg       SiteConfig       `mapstructure:"site" yaml:"site"`
	SheetsCfg     SheetsConfig     `mapstructure:"sheets" yaml:"sheets"`
	AutomationCfg AutomationConfig `mapstructure:"automation" yaml:"automation"`
	DatabaseCfg   DatabaseConfig   `mapstructure:"database" yaml:"database"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig         { return c.LoggerCfg }
func (c *Config) Server() ServerConfig         { return c.ServerCfg }
func (c *Config) Browser() BrowserConfig       { return c.BrowserCfg }
func (c *Config) Agent() AgentConfig           { return c.AgentCfg }
func (c *Config) Site() SiteConfig             { return c.SiteCfg }
func (c *Config) Sheets() SheetsConfig         { return c.SheetsCfg }
func (c *Config) Automation() AutomationConfig { return c.AutomationCfg }
func (c *Config) Database() DatabaseConfig     { return c.DatabaseCfg }

func (c *Config) SetBrowserHeadless(b bool)    { c.BrowserCfg.Headless = b }
func (c *Config) SetAutomationOutput(p string) { c.AutomationCfg.Output = p }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names used for each log level on the console.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
}

// ServerConfig configures the chat HTTP server.
type ServerConfig struct {
	Addr               string        `mapstructure:"addr" yaml:"addr"`
	SessionSecret      string        `mapstructure:"session_secret" yaml:"-"`
	SessionCookie      string        `mapstructure:"session_cookie" yaml:"session_cookie"`
	SessionIdleTimeout time.Duration `mapstructure:"session_idle_timeout" yaml:"session_idle_timeout"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// BrowserConfig holds settings for the Chrome instance driven by the agent.
type BrowserConfig struct {
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	ExecPath          string         `mapstructure:"exec_path" yaml:"exec_path"`
	UserDataDir       string         `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMConfig configures the model clients and the tier routing.
type LLMConfig struct {
	Provider             LLMProvider `mapstructure:"provider" yaml:"provider"`
	APIKey               string      `mapstructure:"api_key" yaml:"-"`
	DefaultFastModel     string      `mapstructure:"default_fast_model" yaml:"default_fast_model"`
	DefaultPowerfulModel string      `mapstructure:"default_powerful_model" yaml:"default_powerful_model"`
	Temperature          float32     `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens            int         `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestsPerMinute    int         `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// AgentConfig holds settings related to the browser agent.
type AgentConfig struct {
	LLM         LLMConfig     `mapstructure:"llm" yaml:"llm"`
	MaxSteps    int           `mapstructure:"max_steps" yaml:"max_steps"`
	MaxFailures int           `mapstructure:"max_failures" yaml:"max_failures"`
	MaxElements int           `mapstructure:"max_elements" yaml:"max_elements"`
	TypingDelay time.Duration `mapstructure:"typing_delay" yaml:"typing_delay"`
}

// SiteConfig describes the grants database the automation logs into.
type SiteConfig struct {
	URL         string `mapstructure:"url" yaml:"url"`
	Institution string `mapstructure:"institution" yaml:"institution"`
	Username    string `mapstructure:"username" yaml:"-"`
	Password    string `mapstructure:"password" yaml:"-"`
}

// SheetsConfig configures the spreadsheet action library.
type SheetsConfig struct {
	URLPrefix string `mapstructure:"url_prefix" yaml:"url_prefix"`
}

// AutomationConfig configures detached search runs.
type AutomationConfig struct {
	Output        string `mapstructure:"output" yaml:"output"`
	MaxConcurrent int    `mapstructure:"max_concurrent" yaml:"max_concurrent"`
}

// DatabaseConfig holds the optional archive database connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "grantscout")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Server --
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.session_cookie", "grantscout_session")
	v.SetDefault("server.session_idle_timeout", "2h")
	v.SetDefault("server.sweep_interval", "10m")
	v.SetDefault("server.shutdown_timeout", "15s")

	// -- Browser --
	// Headful by default: the sheet actions read the system clipboard, which a
	// headless Chrome never writes to.
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.viewport", map[string]int{"width": 1280, "height": 1100})

	// -- Agent --
	v.SetDefault("agent.llm.provider", string(ProviderGemini))
	v.SetDefault("agent.llm.default_fast_model", "gemini-2.0-flash-exp")
	v.SetDefault("agent.llm.default_powerful_model", "gemini-2.0-flash-exp")
	v.SetDefault("agent.llm.temperature", 0.2)
	v.SetDefault("agent.llm.max_tokens", 4096)
	v.SetDefault("agent.llm.requests_per_minute", 0)
	v.SetDefault("agent.max_steps", 50)
	v.SetDefault("agent.max_failures", 3)
	v.SetDefault("agent.max_elements", 150)
	v.SetDefault("agent.typing_delay", "50ms")

	// -- Site --
	v.SetDefault("site.url", "https://spin.infoedglobal.com")
	v.SetDefault("site.institution", "California State University, San Bernardino")

	// -- Sheets --
	v.SetDefault("sheets.url_prefix", "https://docs.google.com/spreadsheets/")

	// -- Automation --
	v.SetDefault("automation.output", "grants.csv")
	v.SetDefault("automation.max_concurrent", 0)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets keep the variable names the deployment already exports.
	_ = v.BindEnv("agent.llm.api_key", "GEMINI_API_KEY", "GRANTSCOUT_AGENT_LLM_API_KEY")
	_ = v.BindEnv("server.session_secret", "GRANTSCOUT_SESSION_SECRET", "FLASK_SECRET_KEY")
	_ = v.BindEnv("site.username", "MYUSERNAME", "GRANTSCOUT_SITE_USERNAME")
	_ = v.BindEnv("site.password", "MYPASSWORD", "GRANTSCOUT_SITE_PASSWORD")
	_ = v.BindEnv("database.url", "DATABASE_URL", "GRANTSCOUT_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.ServerCfg.SessionSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.ServerCfg.SessionSecret = secret
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.AgentCfg.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be a positive integer")
	}
	if c.AgentCfg.MaxFailures <= 0 {
		return fmt.Errorf("agent.max_failures must be a positive integer")
	}
	if c.BrowserCfg.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	if c.AutomationCfg.MaxConcurrent < 0 {
		return fmt.Errorf("automation.max_concurrent must not be negative")
	}
	if c.AutomationCfg.Output == "" {
		return fmt.Errorf("automation.output is required")
	}
	if c.SheetsCfg.URLPrefix == "" {
		return fmt.Errorf("sheets.url_prefix is required")
	}
	if err := c.SiteCfg.Validate(); err != nil {
		return fmt.Errorf("site configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the SiteConfig settings.
func (s *SiteConfig) Validate() error {
	u, err := url.Parse(s.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("url %q must be an absolute URL", s.URL)
	}
	return nil
}

// HasCredentials reports whether both login fields were provided.
func (s SiteConfig) HasCredentials() bool {
	return s.Username != "" && s.Password != ""
}

// RequireAPIKey is called by commands that build an LLM client.
func (l LLMConfig) RequireAPIKey() error {
	if l.APIKey == "" {
		return fmt.Errorf("agent.llm.api_key is required (set GEMINI_API_KEY)")
	}
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 42)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
