package api

import (
	"log/slog"
	"net/http"
	"time"
)

// MaxPageSize is the largest limit the listings endpoint accepts.
const MaxPageSize = 5000

// Default sweep parameters.
const (
	DefaultPageSize    = MaxPageSize
	DefaultMaxPages    = 50
	DefaultPageTimeout = 30 * time.Second
	DefaultConvert     = "USD"
)

// Client provides access to the CoinMarketCap REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger

	convert     string
	pageSize    int
	maxPages    int
	pageTimeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger:      slog.Default(),
		convert:     DefaultConvert,
		pageSize:    DefaultPageSize,
		maxPages:    DefaultMaxPages,
		pageTimeout: DefaultPageTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithConvert sets the quote currency requested from upstream.
func WithConvert(currency string) ClientOption {
	return func(c *Client) {
		if currency != "" {
			c.convert = currency
		}
	}
}

// WithPagination sets the page size, the page cap for one sweep and the
// deadline applied to each page request. Non-positive values keep defaults.
func WithPagination(pageSize, maxPages int, pageTimeout time.Duration) ClientOption {
	return func(c *Client) {
		if pageSize > 0 {
			c.pageSize = min(pageSize, MaxPageSize)
		}
		if maxPages > 0 {
			c.maxPages = maxPages
		}
		if pageTimeout > 0 {
			c.pageTimeout = pageTimeout
		}
	}
}

// Convert returns the quote currency this client requests.
func (c *Client) Convert() string {
	return c.convert
}
