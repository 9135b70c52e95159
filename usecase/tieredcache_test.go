package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AzielCF/az-sheetboard/infrastructure/kvstore"
)

func newTestCache(backend *kvstore.MemoryStore, maxEntries int) (*TieredCache, *time.Time) {
	c := NewTieredCache(backend, maxEntries, 0)
	current := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }
	c.now = clock
	backend.SetClock(clock)
	return c, &current
}

func TestTieredCache_SetGet(t *testing.T) {
	c, _ := newTestCache(kvstore.NewMemoryStore(0), 8)
	ctx := context.Background()

	require.True(t, c.Set(ctx, "k", "value", time.Minute))

	v, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "value", v)

	counters := c.Counters()
	assert.Equal(t, int64(1), counters.Hits)
	assert.Equal(t, int64(0), counters.Misses)
}

func TestTieredCache_MissCounts(t *testing.T) {
	c, _ := newTestCache(kvstore.NewMemoryStore(0), 8)

	_, ok := c.Get(context.Background(), "absent")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Counters().Misses)
}

func TestTieredCache_L2HitBackfillsL1(t *testing.T) {
	backend := kvstore.NewMemoryStore(0)
	c, _ := newTestCache(backend, 8)
	ctx := context.Background()

	require.True(t, c.Set(ctx, "k", "persisted", time.Minute))

	// A second cache over the same backend simulates a process restart:
	// the L1 map is empty but the persistent level still holds the entry.
	restarted, _ := newTestCache(backend, 8)
	v, ok := restarted.Get(ctx, "k")
	require.True(t, ok, "the persistent level must survive the L1 wipe")
	assert.Equal(t, "persisted", v)

	// The hit backfilled L1; a damaged backend no longer matters
	require.NoError(t, backend.Delete(ctx, "k"))
	v, ok = restarted.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "persisted", v)
}

func TestTieredCache_TTLExpiry(t *testing.T) {
	c, clock := newTestCache(kvstore.NewMemoryStore(0), 8)
	ctx := context.Background()

	require.True(t, c.Set(ctx, "k", "short-lived", time.Minute))

	*clock = clock.Add(59 * time.Second)
	_, ok := c.Get(ctx, "k")
	assert.True(t, ok)

	*clock = clock.Add(2 * time.Second)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok, "expired entries must never be returned")
	assert.Equal(t, 0, c.Counters().L1Entries)
}

func TestTieredCache_ZeroTTLNeverExpires(t *testing.T) {
	c, clock := newTestCache(kvstore.NewMemoryStore(0), 8)
	ctx := context.Background()

	require.True(t, c.Set(ctx, "k", "eternal", 0))
	*clock = clock.Add(1000 * time.Hour)

	_, ok := c.Get(ctx, "k")
	assert.True(t, ok)
}

func TestTieredCache_FIFOEviction(t *testing.T) {
	c, _ := newTestCache(kvstore.NewMemoryStore(0), 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		c.SetInMemory(fmt.Sprintf("k%d", i), i, 0)
	}
	// Touch k0 so LRU would keep it; FIFO must still evict it first
	_, ok := c.Get(ctx, "k0")
	require.True(t, ok)

	c.SetInMemory("k3", 3, 0)

	assert.Equal(t, 3, c.Counters().L1Entries)
	assert.Equal(t, int64(1), c.Counters().Evictions)

	_, ok = c.Get(ctx, "k0")
	assert.False(t, ok, "oldest-created entry is evicted regardless of recent reads")
	_, ok = c.Get(ctx, "k1")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "k3")
	assert.True(t, ok)
}

func TestTieredCache_SetReturnsFalseWhenTooLargeForL2(t *testing.T) {
	backend := kvstore.NewMemoryStore(1024)
	c, _ := newTestCache(backend, 8)
	ctx := context.Background()

	// Pseudorandom rows so compression cannot squeeze the payload under
	// the backend ceiling
	rng := rand.New(rand.NewSource(1))
	var rows []interface{}
	for i := 0; i < 200; i++ {
		rows = append(rows, fmt.Sprintf("%016x%016x%016x%016x", rng.Uint64(), rng.Uint64(), rng.Uint64(), rng.Uint64()))
	}

	ok := c.Set(ctx, "huge", rows, time.Minute)
	assert.False(t, ok, "the caller must learn the persistent level rejected the entry")

	// L1 still serves it
	v, hit := c.Get(ctx, "huge")
	require.True(t, hit)
	assert.Len(t, v.([]interface{}), 200)
}

func TestTieredCache_CompressionRoundTrip(t *testing.T) {
	backend := kvstore.NewMemoryStore(0)
	c := NewTieredCache(backend, 8, 64)
	ctx := context.Background()

	// Repetitive payload well above the compression floor
	value := strings.Repeat("abcdef ", 200)
	require.True(t, c.Set(ctx, "k", value, time.Minute))

	raw, ok, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, `"c":true`, "a large repetitive payload must be stored compressed")

	restarted := NewTieredCache(backend, 8, 64)
	v, hit := restarted.Get(ctx, "k")
	require.True(t, hit)
	assert.Equal(t, value, v)
}

func TestTieredCache_GetOrSetLoaderRunsOncePerMiss(t *testing.T) {
	c, _ := newTestCache(kvstore.NewMemoryStore(0), 8)
	ctx := context.Background()

	calls := 0
	loader := func(ctx context.Context) (interface{}, error) {
		calls++
		return "loaded", nil
	}

	v, err := c.GetOrSet(ctx, "k", loader, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "loaded", v)

	v, err = c.GetOrSet(ctx, "k", loader, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "loaded", v)
	assert.Equal(t, 1, calls, "the second read must come from cache")
}

func TestTieredCache_GetOrSetErrorPropagatesUncached(t *testing.T) {
	c, _ := newTestCache(kvstore.NewMemoryStore(0), 8)
	ctx := context.Background()

	boom := errors.New("source unavailable")
	_, err := c.GetOrSet(ctx, "k", func(ctx context.Context) (interface{}, error) {
		return nil, boom
	}, time.Minute)
	require.ErrorIs(t, err, boom)

	// The failure was not cached; a later successful load works
	v, err := c.GetOrSet(ctx, "k", func(ctx context.Context) (interface{}, error) {
		return "recovered", nil
	}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "recovered", v)
}

func TestTieredCache_DeleteRemovesBothLevels(t *testing.T) {
	backend := kvstore.NewMemoryStore(0)
	c, _ := newTestCache(backend, 8)
	ctx := context.Background()

	require.True(t, c.Set(ctx, "k", "v", time.Minute))
	c.Delete(ctx, "k")

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, backend.Len())
}

func TestTieredCache_ClearByPrefix(t *testing.T) {
	backend := kvstore.NewMemoryStore(0)
	c, _ := newTestCache(backend, 8)
	ctx := context.Background()

	require.True(t, c.Set(ctx, "report:a", 1, time.Minute))
	require.True(t, c.Set(ctx, "report:b", 2, time.Minute))
	require.True(t, c.Set(ctx, "other:c", 3, time.Minute))

	c.Clear(ctx, "report:")

	_, ok := c.Get(ctx, "report:a")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "report:b")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "other:c")
	assert.True(t, ok)
}
