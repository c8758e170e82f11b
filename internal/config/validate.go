package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rickgao/coinfeed/internal/api"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.API.APIKey == "" {
		return errors.New("api.api_key is required")
	}
	if c.API.RestURL == "" {
		return errors.New("api.rest_url is required")
	}
	if c.API.PageSize < 1 || c.API.PageSize > api.MaxPageSize {
		return fmt.Errorf("api.page_size must be between 1 and %d, got %d", api.MaxPageSize, c.API.PageSize)
	}
	if c.API.MaxPages < 1 {
		return errors.New("api.max_pages must be >= 1")
	}
	if c.API.PageTimeout <= 0 {
		return errors.New("api.page_timeout must be positive")
	}
	if !strings.Contains(c.API.ImageURLTemplate, "{id}") {
		return errors.New("api.image_url_template must contain {id}")
	}

	if c.Poller.Interval < time.Second {
		return fmt.Errorf("poller.interval must be >= 1s, got %v", c.Poller.Interval)
	}
	if c.Poller.Timeout < 0 {
		return errors.New("poller.timeout must be >= 0")
	}

	if c.Query.DefaultLimit < 1 {
		return errors.New("query.default_limit must be >= 1")
	}
	if c.Query.MaxLimit < c.Query.DefaultLimit {
		return fmt.Errorf("query.max_limit (%d) cannot be less than default_limit (%d)", c.Query.MaxLimit, c.Query.DefaultLimit)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.WriteTimeout <= 0 {
		return errors.New("server.write_timeout must be positive")
	}
	if c.Server.PingInterval <= 0 {
		return errors.New("server.ping_interval must be positive")
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	return nil
}
