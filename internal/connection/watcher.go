package connection

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Watcher keeps one push channel client connected, reconnecting with
// exponential backoff, and forwards its updates on a single channel.
type Watcher struct {
	cfg    WatcherConfig
	logger *slog.Logger

	updates   chan Update
	closeOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	current *client

	connects     atomic.Int64
	received     atomic.Int64
	dropped      atomic.Int64
	decodeErrors atomic.Int64
}

// NewWatcher creates a Watcher.
func NewWatcher(cfg WatcherConfig, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultWatcherConfig()
	if cfg.ReconnectBaseWait <= 0 {
		cfg.ReconnectBaseWait = def.ReconnectBaseWait
	}
	if cfg.ReconnectMaxWait < cfg.ReconnectBaseWait {
		cfg.ReconnectMaxWait = cfg.ReconnectBaseWait
	}
	size := cfg.Client.BufferSize
	if size < 1 {
		size = 1
	}

	return &Watcher{
		cfg:     cfg,
		logger:  logger,
		updates: make(chan Update, size),
	}
}

// Start begins connecting in the background.
func (w *Watcher) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.run()

	w.logger.Info("push watcher started", "url", w.cfg.Client.URL)
	return nil
}

// Stop closes the connection and waits for the watcher to exit. Updates is
// closed once it has. Calling Stop again is a no-op.
func (w *Watcher) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.closeOnce.Do(func() {
			close(w.updates)
			w.logger.Info("push watcher stopped")
		})
		return nil
	case <-ctx.Done():
		w.logger.Warn("shutdown timeout, watcher still running")
		return ctx.Err()
	}
}

// Updates returns the forwarded updates.
func (w *Watcher) Updates() <-chan Update {
	return w.updates
}

// Stats returns current statistics.
func (w *Watcher) Stats() WatcherStats {
	w.mu.RLock()
	c := w.current
	w.mu.RUnlock()

	stats := WatcherStats{
		Connects:     w.connects.Load(),
		Updates:      w.received.Load(),
		Dropped:      w.dropped.Load(),
		DecodeErrors: w.decodeErrors.Load(),
	}
	if c != nil {
		stats.Connected = c.IsConnected()
		stats.Dropped += c.dropped.Load()
		stats.DecodeErrors += c.decodeErrors.Load()
	}
	return stats
}

func (w *Watcher) run() {
	defer w.wg.Done()

	wait := w.cfg.ReconnectBaseWait

	for {
		c := newClient(w.cfg.Client, w.logger)
		if err := c.Connect(w.ctx); err != nil {
			if w.ctx.Err() != nil {
				return
			}
			w.logger.Warn("connection failed", "url", w.cfg.Client.URL, "retry_in", wait, "err", err)
		} else {
			w.connects.Add(1)
			wait = w.cfg.ReconnectBaseWait
			w.logger.Info("connected", "url", w.cfg.Client.URL)

			w.setCurrent(c)
			err := w.pump(c)
			w.setCurrent(nil)
			c.Close()
			w.dropped.Add(c.dropped.Load())
			w.decodeErrors.Add(c.decodeErrors.Load())

			if w.ctx.Err() != nil {
				return
			}
			w.logger.Warn("connection lost", "retry_in", wait, "err", err)
		}

		select {
		case <-w.ctx.Done():
			return
		case <-time.After(wait):
		}

		// Exponential backoff
		wait *= 2
		if wait > w.cfg.ReconnectMaxWait {
			wait = w.cfg.ReconnectMaxWait
		}
	}
}

func (w *Watcher) setCurrent(c *client) {
	w.mu.Lock()
	w.current = c
	w.mu.Unlock()
}

// pump forwards updates from c until it fails or the watcher stops.
func (w *Watcher) pump(c *client) error {
	for {
		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		case err := <-c.Errors():
			// readLoop delivers before it reports, so flush what it read.
			for {
				select {
				case u := <-c.Updates():
					w.received.Add(1)
					w.forward(u)
				default:
					return err
				}
			}
		case u := <-c.Updates():
			w.received.Add(1)
			w.forward(u)
		}
	}
}

// forward hands u to the consumer, replacing the oldest pending update when
// the consumer is behind.
func (w *Watcher) forward(u Update) {
	for {
		select {
		case w.updates <- u:
			return
		default:
		}

		select {
		case <-w.updates:
			w.dropped.Add(1)
		default:
		}
	}
}
