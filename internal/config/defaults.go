package config

import (
	"time"

	"github.com/rickgao/coinfeed/internal/api"
	"github.com/rickgao/coinfeed/internal/poller"
	"github.com/rickgao/coinfeed/internal/query"
)

// Default values for optional configuration fields. Component defaults come
// from the packages that own them.
const (
	DefaultRestURL          = "https://pro-api.coinmarketcap.com"
	DefaultConvert          = api.DefaultConvert
	DefaultAPITimeout       = 60 * time.Second
	DefaultPageSize         = api.DefaultPageSize
	DefaultMaxPages         = api.DefaultMaxPages
	DefaultPageTimeout      = api.DefaultPageTimeout
	DefaultImageURLTemplate = api.DefaultImageURLTemplate
	DefaultPollInterval     = poller.DefaultInterval
	DefaultPollTimeout      = poller.DefaultTimeout
	DefaultQueryLimit       = query.DefaultLimit
	DefaultQueryMaxLimit    = query.DefaultMaxLimit
	DefaultServerPort       = 5000
	DefaultWriteTimeout     = 10 * time.Second
	DefaultPingInterval     = 30 * time.Second
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultMetricsPath      = "/metrics"
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.Convert == "" {
		c.API.Convert = DefaultConvert
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.PageSize == 0 {
		c.API.PageSize = DefaultPageSize
	}
	if c.API.MaxPages == 0 {
		c.API.MaxPages = DefaultMaxPages
	}
	if c.API.PageTimeout == 0 {
		c.API.PageTimeout = DefaultPageTimeout
	}
	if c.API.ImageURLTemplate == "" {
		c.API.ImageURLTemplate = DefaultImageURLTemplate
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}

	// Query defaults
	if c.Query.DefaultLimit == 0 {
		c.Query.DefaultLimit = DefaultQueryLimit
	}
	if c.Query.MaxLimit == 0 {
		c.Query.MaxLimit = DefaultQueryMaxLimit
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.PingInterval == 0 {
		c.Server.PingInterval = DefaultPingInterval
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	// Metrics defaults
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
