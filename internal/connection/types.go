package connection

import (
	"errors"
	"time"

	"github.com/rickgao/coinfeed/internal/model"
)

// Errors
var (
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// Update is one decoded push message with its local receive time.
type Update struct {
	Message    model.PushMessage
	Size       int       // Encoded message size in bytes
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a push channel client.
type ClientConfig struct {
	URL          string        // Push endpoint, e.g. ws://localhost:5000/ws
	Origin       string        // Origin header, empty to omit
	PingTimeout  time.Duration // Max time without ping before considering connection stale
	WriteTimeout time.Duration // Write deadline for control frames
	BufferSize   int           // Update channel buffer size
	ReadLimit    int64         // Max inbound message size, 0 for no limit
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:  90 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   4,
		ReadLimit:    64 << 20, // Full snapshots run to several MB
	}
}

// WatcherConfig configures a reconnecting Watcher.
type WatcherConfig struct {
	Client            ClientConfig
	ReconnectBaseWait time.Duration // Base wait time for reconnection
	ReconnectMaxWait  time.Duration // Max wait time for reconnection
}

// DefaultWatcherConfig returns sensible defaults.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		Client:            DefaultClientConfig(),
		ReconnectBaseWait: 1 * time.Second,
		ReconnectMaxWait:  60 * time.Second,
	}
}

// WatcherStats reports Watcher activity.
type WatcherStats struct {
	Connected    bool
	Connects     int64
	Updates      int64
	Dropped      int64 // Updates replaced before the consumer read them
	DecodeErrors int64
}
