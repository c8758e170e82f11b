package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/coinfeed/internal/model"
)

// makeSnapshot builds a snapshot whose records all carry the same tag, so a
// reader can detect a mixed view.
func makeSnapshot(tag string, n int) *model.Snapshot {
	records := make([]model.CoinRecord, n)
	for i := range records {
		records[i] = model.CoinRecord{
			ID:     model.NumericID(int64(i + 1)),
			Name:   tag,
			Symbol: fmt.Sprintf("%s%d", tag, i),
		}
	}
	snap, _ := model.NewSnapshot(records, time.Now())
	return snap
}

func TestCache_EmptyBeforePublish(t *testing.T) {
	c := New()

	snap, ok := c.Read()
	assert.False(t, ok)
	assert.Nil(t, snap)
	assert.Zero(t, c.Version())

	_, ok = c.Age(time.Now())
	assert.False(t, ok)
}

func TestCache_PublishAndRead(t *testing.T) {
	c := New()
	first := makeSnapshot("a", 3)
	second := makeSnapshot("b", 5)

	c.Publish(first)
	got, ok := c.Read()
	require.True(t, ok)
	assert.Same(t, first, got)

	c.Publish(second)
	got, ok = c.Read()
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, uint64(2), c.Version())

	// A reader holding the old reference still sees it intact.
	assert.Equal(t, 3, first.Len())
	assert.Equal(t, "a", first.At(2).Name)
}

func TestCache_PublishNilIgnored(t *testing.T) {
	c := New()
	snap := makeSnapshot("a", 1)
	c.Publish(snap)

	c.Publish(nil)

	got, ok := c.Read()
	require.True(t, ok)
	assert.Same(t, snap, got)
	assert.Equal(t, uint64(1), c.Version())
}

func TestCache_Age(t *testing.T) {
	c := New()
	fetchedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	snap, _ := model.NewSnapshot(nil, fetchedAt)
	c.Publish(snap)

	age, ok := c.Age(fetchedAt.Add(90 * time.Second))
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, age)
}

// TestCache_ConcurrentReadPublish checks that readers racing a publisher
// always observe one whole snapshot. Run with -race.
func TestCache_ConcurrentReadPublish(t *testing.T) {
	c := New()
	c.Publish(makeSnapshot("v0", 50))

	const publishes = 200
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}

				snap, ok := c.Read()
				if !ok {
					t.Error("cache emptied after publish")
					return
				}
				tag := snap.At(0).Name
				for i := 1; i < snap.Len(); i++ {
					if snap.At(i).Name != tag {
						t.Errorf("mixed snapshot: %q and %q", tag, snap.At(i).Name)
						return
					}
				}
			}
		}()
	}

	for i := 1; i <= publishes; i++ {
		c.Publish(makeSnapshot(fmt.Sprintf("v%d", i), 50))
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, uint64(publishes+1), c.Version())
}
