// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Server() ServerConfig
	Network() NetworkConfig
	Chart() ChartConfig

	SetServerBaseURL(string)
	SetServerUsername(string)
	SetNetworkIgnoreTLSErrors(bool)
	SetChartRefreshInterval(time.Duration)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	ServerCfg  ServerConfig  `mapstructure:"server" yaml:"server"`
	NetworkCfg NetworkConfig `mapstructure:"network" yaml:"network"`
	ChartCfg   ChartConfig   `mapstructure:"chart" yaml:"chart"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Server() ServerConfig   { return c.ServerCfg }
func (c *Config) Network() NetworkConfig { return c.NetworkCfg }
func (c *Config) Chart() ChartConfig     { return c.ChartCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetServerBaseURL(u string)        { c.ServerCfg.BaseURL = u }
func (c *Config) SetServerUsername(u string)       { c.ServerCfg.Username = u }
func (c *Config) SetNetworkIgnoreTLSErrors(b bool) { c.NetworkCfg.IgnoreTLSErrors = b }
func (c *Config) SetChartRefreshInterval(d time.Duration) {
	c.ChartCfg.RefreshInterval = d
}

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

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ServerConfig locates the csv mapper web application and the pages the
// client loads from it.
type ServerConfig struct {
	BaseURL       string `mapstructure:"base_url" yaml:"base_url"`
	DashboardPath string `mapstructure:"dashboard_path" yaml:"dashboard_path"`
	LoginPath     string `mapstructure:"login_path" yaml:"login_path"`
	Username      string `mapstructure:"username" yaml:"username"`
	Password      string `mapstructure:"password" yaml:"-"`
	// CSRFField is the name of the hidden input carrying the anti-forgery token.
	CSRFField string `mapstructure:"csrf_field" yaml:"csrf_field"`
}

// URL resolves a path against the base URL.
func (s ServerConfig) URL(path string) (string, error) {
	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid server.base_url %q: %w", s.BaseURL, err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", path, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// NetworkConfig holds the HTTP client settings.
type NetworkConfig struct {
	Timeout          time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	IgnoreTLSErrors  bool              `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	UserAgent        string            `mapstructure:"user_agent" yaml:"user_agent"`
	Headers          map[string]string `mapstructure:"headers" yaml:"headers"`
	RateLimitPerHour int               `mapstructure:"rate_limit_per_hour" yaml:"rate_limit_per_hour"`
	RateBurst        int               `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// ChartConfig holds the chart refresher settings.
type ChartConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
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
	v.SetDefault("logger.service_name", "csvmapper")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Server --
	v.SetDefault("server.base_url", "http://localhost:8000")
	v.SetDefault("server.dashboard_path", "/")
	v.SetDefault("server.login_path", "/account/login/")
	v.SetDefault("server.username", "")
	v.SetDefault("server.password", "")
	v.SetDefault("server.csrf_field", "csrfmiddlewaretoken")

	// -- Network --
	v.SetDefault("network.timeout", "30s")
	v.SetDefault("network.ignore_tls_errors", false)
	v.SetDefault("network.user_agent", "")
	// Matches the server's per-user throttle.
	v.SetDefault("network.rate_limit_per_hour", 4000)
	v.SetDefault("network.rate_burst", 10)

	// -- Chart --
	v.SetDefault("chart.refresh_interval", "10s")
}

// NewConfigFromViper unmarshals a viper instance into a Config and validates it.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("server.password", "CSVMAPPER_SERVER_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerCfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server.base_url must be an absolute http(s) URL, got %q", c.ServerCfg.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.base_url must use http or https, got %q", u.Scheme)
	}
	if strings.TrimSpace(c.ServerCfg.CSRFField) == "" {
		return fmt.Errorf("server.csrf_field must not be empty")
	}
	if c.ServerCfg.Username != "" && c.ServerCfg.Password == "" {
		return fmt.Errorf("server.password is required when server.username is set")
	}
	if c.NetworkCfg.Timeout < 0 {
		return fmt.Errorf("network.timeout must not be negative")
	}
	if c.NetworkCfg.RateLimitPerHour < 0 {
		return fmt.Errorf("network.rate_limit_per_hour must not be negative")
	}
	if c.NetworkCfg.RateLimitPerHour > 0 && c.NetworkCfg.RateBurst <= 0 {
		return fmt.Errorf("network.rate_burst must be a positive integer when rate limiting is enabled")
	}
	if c.ChartCfg.RefreshInterval <= 0 {
		return fmt.Errorf("chart.refresh_interval must be positive")
	}
	return nil
}
