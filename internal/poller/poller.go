package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/coinfeed/internal/api"
	"github.com/rickgao/coinfeed/internal/metrics"
	"github.com/rickgao/coinfeed/internal/model"
)

// Fetcher retrieves every raw listing in one paginated sweep.
type Fetcher interface {
	FetchAllListings(ctx context.Context) ([]api.RawListing, error)
}

// Normalizer turns raw listings into records, reporting how many were dropped.
type Normalizer interface {
	NormalizeAll(raws []api.RawListing) ([]model.CoinRecord, int)
}

// Publisher stores the current snapshot.
type Publisher interface {
	Publish(snap *model.Snapshot)
}

// Notifier fans a new snapshot out to subscribers.
type Notifier interface {
	Notify(snap *model.Snapshot) int
}

// State is the scheduler state.
type State int

const (
	Idle State = iota
	Fetching
)

func (s State) String() string {
	if s == Fetching {
		return "fetching"
	}
	return "idle"
}

// Sweep triggers, used in logs.
const (
	triggerStartup  = "startup"
	triggerInterval = "interval"
	triggerManual   = "manual"
)

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Sweep interval (default: 10m)
	Timeout  time.Duration // Whole-sweep timeout, 0 for none (default: 5m)
}

// Default sweep schedule.
const (
	DefaultInterval = 10 * time.Minute
	DefaultTimeout  = 5 * time.Minute
)

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: DefaultInterval,
		Timeout:  DefaultTimeout,
	}
}

// SweepResult describes the most recent completed sweep.
type SweepResult struct {
	Trigger  string
	At       time.Time
	Duration time.Duration
	Records  int
	Err      error
}

// Poller runs listings sweeps on a fixed interval and publishes each
// successful one. At most one sweep runs at a time.
type Poller struct {
	cfg        Config
	fetcher    Fetcher
	normalizer Normalizer
	publisher  Publisher
	notifier   Notifier
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time

	fetching atomic.Bool
	last     atomic.Pointer[SweepResult]

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Poller.
type Option func(*Poller)

// WithMetrics records sweep outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Poller) {
		p.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides the clock used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a new Poller.
func New(cfg Config, fetcher Fetcher, normalizer Normalizer, publisher Publisher, notifier Notifier, opts ...Option) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	p := &Poller{
		cfg:        cfg,
		fetcher:    fetcher,
		normalizer: normalizer,
		publisher:  publisher,
		notifier:   notifier,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins the polling loop. The first sweep starts immediately.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	p.mu.Unlock()

	go p.run()

	p.logger.Info("listings poller started",
		"interval", p.cfg.Interval,
		"timeout", p.cfg.Timeout,
	)

	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish. A sweep
// interrupted by Stop does not publish.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("listings poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh starts an out-of-band sweep in the background. It returns false
// when the poller is not running or a sweep is already in progress.
func (p *Poller) Refresh() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx == nil || p.ctx.Err() != nil {
		return false
	}
	if !p.begin(triggerManual) {
		return false
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.fetching.Store(false)
		p.sweep(triggerManual)
	}()
	return true
}

// State reports whether a sweep is in progress.
func (p *Poller) State() State {
	if p.fetching.Load() {
		return Fetching
	}
	return Idle
}

// LastSweep returns the most recent completed sweep, if any.
func (p *Poller) LastSweep() (SweepResult, bool) {
	r := p.last.Load()
	if r == nil {
		return SweepResult{}, false
	}
	return *r, true
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Sweep immediately on start.
	p.trySweep(triggerStartup)
	p.dropStaleTick(ticker)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.trySweep(triggerInterval)
			p.dropStaleTick(ticker)
		}
	}
}

// dropStaleTick discards a tick that came due while a sweep was running so
// the next sweep waits for the next tick.
func (p *Poller) dropStaleTick(ticker *time.Ticker) {
	select {
	case <-ticker.C:
		p.skip(triggerInterval)
	default:
	}
}

func (p *Poller) trySweep(trigger string) {
	if !p.begin(trigger) {
		return
	}
	defer p.fetching.Store(false)
	p.sweep(trigger)
}

// begin moves Idle to Fetching. An overlapping trigger is dropped.
func (p *Poller) begin(trigger string) bool {
	if p.fetching.CompareAndSwap(false, true) {
		return true
	}
	p.skip(trigger)
	return false
}

func (p *Poller) skip(trigger string) {
	p.metrics.ObserveSweep(metrics.SweepSkipped, 0)
	p.logger.Warn("sweep skipped, previous sweep still running", "trigger", trigger)
}

// sweep fetches, normalizes and publishes one snapshot. The caller holds
// the Fetching state.
func (p *Poller) sweep(trigger string) {
	start := time.Now()

	ctx := p.ctx
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	raws, err := p.fetcher.FetchAllListings(ctx)
	if err == nil && p.ctx.Err() != nil {
		err = p.ctx.Err()
	}
	if err != nil {
		p.fail(trigger, start, err)
		return
	}

	records, malformed := p.normalizer.NormalizeAll(raws)
	snap, duplicates := model.NewSnapshot(records, p.now())
	p.metrics.RecordsDropped(metrics.DropShape, malformed)
	p.metrics.RecordsDropped(metrics.DropDuplicate, duplicates)

	// Last chance to abandon before the snapshot becomes visible.
	if err := p.ctx.Err(); err != nil {
		p.fail(trigger, start, err)
		return
	}

	p.publisher.Publish(snap)
	notified := p.notifier.Notify(snap)

	elapsed := time.Since(start)
	p.metrics.SnapshotPublished(snap.Len(), snap.FetchedAt())
	p.metrics.ObserveSweep(metrics.SweepSuccess, elapsed)
	p.last.Store(&SweepResult{
		Trigger:  trigger,
		At:       snap.FetchedAt(),
		Duration: elapsed,
		Records:  snap.Len(),
	})

	p.logger.Info("sweep complete",
		"trigger", trigger,
		"raw", len(raws),
		"records", snap.Len(),
		"malformed", malformed,
		"duplicates", duplicates,
		"notified", notified,
		"duration", elapsed,
	)
}

func (p *Poller) fail(trigger string, start time.Time, err error) {
	elapsed := time.Since(start)
	p.metrics.ObserveSweep(metrics.SweepFailure, elapsed)
	p.last.Store(&SweepResult{
		Trigger:  trigger,
		At:       p.now(),
		Duration: elapsed,
		Err:      err,
	})

	if p.ctx.Err() != nil {
		p.logger.Info("sweep abandoned on shutdown", "trigger", trigger, "duration", elapsed)
		return
	}
	p.logger.Warn("sweep failed, keeping previous snapshot",
		"trigger", trigger,
		"duration", elapsed,
		"err", err,
	)

	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.IsRateLimited() {
		p.logger.Warn("upstream rate limit hit, consider a longer poller.interval",
			"interval", p.cfg.Interval,
			"status", apiErr.StatusCode,
		)
	}
}
