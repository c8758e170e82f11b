package cache

import (
	"sync/atomic"
	"time"

	"github.com/rickgao/coinfeed/internal/model"
)

// Cache stores the latest snapshot. The zero value is empty and ready to use.
type Cache struct {
	current atomic.Pointer[model.Snapshot]
	version atomic.Uint64
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{}
}

// Publish makes snap the current snapshot. A nil snapshot is ignored.
func (c *Cache) Publish(snap *model.Snapshot) {
	if snap == nil {
		return
	}
	c.current.Store(snap)
	c.version.Add(1)
}

// Read returns the current snapshot, or false if nothing has been published.
func (c *Cache) Read() (*model.Snapshot, bool) {
	snap := c.current.Load()
	return snap, snap != nil
}

// Version counts successful publishes.
func (c *Cache) Version() uint64 {
	return c.version.Load()
}

// Age returns how old the current snapshot is at now, or false if empty.
func (c *Cache) Age(now time.Time) (time.Duration, bool) {
	snap, ok := c.Read()
	if !ok {
		return 0, false
	}
	return now.Sub(snap.FetchedAt()), true
}
