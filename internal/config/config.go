package config

import "time"

// Config is the root configuration for a coinfeed instance.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Poller  PollerConfig  `yaml:"poller"`
	Query   QueryConfig   `yaml:"query"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// APIConfig holds CoinMarketCap API settings.
type APIConfig struct {
	RestURL          string        `yaml:"rest_url"`
	APIKey           string        `yaml:"api_key"` // X-CMC_PRO_API_KEY
	Convert          string        `yaml:"convert"` // Quote currency
	Timeout          time.Duration `yaml:"timeout"` // HTTP client timeout
	PageSize         int           `yaml:"page_size"`
	MaxPages         int           `yaml:"max_pages"`
	PageTimeout      time.Duration `yaml:"page_timeout"`
	ImageURLTemplate string        `yaml:"image_url_template"` // "{id}" is replaced
}

// PollerConfig holds listings sweep settings.
type PollerConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"` // Whole-sweep bound
}

// QueryConfig holds listing query limits.
type QueryConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// ServerConfig holds the HTTP and push channel settings.
type ServerConfig struct {
	Port           int           `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"` // Empty or "*" allows any
	WriteTimeout   time.Duration `yaml:"write_timeout"`   // Per push write
	PingInterval   time.Duration `yaml:"ping_interval"`
	EnableRefresh  bool          `yaml:"enable_refresh"` // POST /api/refresh
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}
