// Package config provides centralized configuration management
// using Viper for configuration loading and validation
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultAPIBase is used when neither env nor config file names the service
const DefaultAPIBase = "http://127.0.0.1:8000"

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	API        APIConfig        `mapstructure:"api"`
	Session    SessionConfig    `mapstructure:"session"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// CompressionLevel of 0 disables response compression
	CompressionLevel int `mapstructure:"compression_level"`
}

// APIConfig describes the recipe question-answering service
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SessionConfig contains browser session configuration
type SessionConfig struct {
	CookieName      string        `mapstructure:"cookie_name"`
	MaxAge          time.Duration `mapstructure:"max_age"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enable         bool `mapstructure:"enable"`
	RequestsPerMin int  `mapstructure:"requests_per_min"`
	BurstSize      int  `mapstructure:"burst_size"`
}

// MonitoringConfig contains monitoring configuration
type MonitoringConfig struct {
	EnableMetrics  bool          `mapstructure:"enable_metrics"`
	MetricsPath    string        `mapstructure:"metrics_path"`
	HealthCacheTTL time.Duration `mapstructure:"health_cache_ttl"`
	Tracing        TracingConfig `mapstructure:"tracing"`
}

// TracingConfig configures OTLP/HTTP span export
type TracingConfig struct {
	Enable       bool    `mapstructure:"enable"`
	Endpoint     string  `mapstructure:"endpoint"`
	Insecure     bool    `mapstructure:"insecure"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we have defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return decode(v)
}

func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/resepqa")
	}

	// Enable environment variable override
	v.SetEnvPrefix("RESEPQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// API_BASE is the name the service's own tooling uses
	if err := v.BindEnv("api.base_url", "API_BASE", "RESEPQA_API_BASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind api.base_url: %w", err)
	}

	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Platform-assigned port wins
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		config.Server.Port = p
	}

	config.API.BaseURL = strings.TrimRight(config.API.BaseURL, "/")

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "Resep QA")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.max_header_bytes", 1<<20) // 1MB
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.compression_level", 5)

	// The service may call a generative model; answers can take a while
	v.SetDefault("api.base_url", DefaultAPIBase)
	v.SetDefault("api.timeout", "60s")

	// Session defaults
	v.SetDefault("session.cookie_name", "resepqa-session")
	v.SetDefault("session.max_age", "24h")
	v.SetDefault("session.cleanup_interval", "10m")

	// Rate limit defaults
	v.SetDefault("rate_limit.enable", true)
	v.SetDefault("rate_limit.requests_per_min", 60)
	v.SetDefault("rate_limit.burst_size", 10)

	// Monitoring defaults
	v.SetDefault("monitoring.enable_metrics", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.health_cache_ttl", "5s")
	v.SetDefault("monitoring.tracing.enable", false)
	v.SetDefault("monitoring.tracing.endpoint", "localhost:4318")
	v.SetDefault("monitoring.tracing.insecure", true)
	v.SetDefault("monitoring.tracing.sampling_rate", 0.1)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}

	// Validate port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", c.API.BaseURL)
	}

	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if c.Session.MaxAge <= 0 || c.Session.CleanupInterval <= 0 {
		return fmt.Errorf("session.max_age and session.cleanup_interval must be positive")
	}
	if c.RateLimit.Enable && (c.RateLimit.RequestsPerMin < 1 || c.RateLimit.BurstSize < 1) {
		return fmt.Errorf("rate_limit.requests_per_min and rate_limit.burst_size must be at least 1")
	}
	if c.Monitoring.EnableMetrics && !strings.HasPrefix(c.Monitoring.MetricsPath, "/") {
		return fmt.Errorf("monitoring.metrics_path must start with /")
	}
	if c.Server.CompressionLevel < 0 || c.Server.CompressionLevel > 9 {
		return fmt.Errorf("server.compression_level must be between 0 and 9")
	}
	if t := c.Monitoring.Tracing; t.Enable {
		if t.Endpoint == "" {
			return fmt.Errorf("monitoring.tracing.endpoint is required when tracing is enabled")
		}
		if t.SamplingRate < 0 || t.SamplingRate > 1 {
			return fmt.Errorf("monitoring.tracing.sampling_rate must be between 0 and 1")
		}
	}

	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// Address returns the listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
