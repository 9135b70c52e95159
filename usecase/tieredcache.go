package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-sheetboard/infrastructure/kvstore"
)

// cacheEntry is one level-1 entry. expiresAt zero means it never expires.
type cacheEntry struct {
	value     interface{}
	createdAt time.Time
	expiresAt time.Time
	sizeBytes int
}

// l2Envelope is the wire form of a level-2 entry. Payload is either raw JSON
// or, when Compressed, the gzip+base64 text of that JSON.
type l2Envelope struct {
	Payload    string    `json:"p"`
	Compressed bool      `json:"c"`
	CreatedAt  time.Time `json:"ca"`
	ExpiresAt  time.Time `json:"ea,omitempty"`
}

// CacheCounters are the hit/miss numbers feeding the status surface.
type CacheCounters struct {
	Hits      int64
	Misses    int64
	Evictions int64
	L1Entries int
	L1Bytes   int64
}

// TieredCache is a two-level cache: a bounded in-process map in front of a
// persistent KV backend. Eviction at level 1 is oldest-created-first (FIFO by
// creation, deliberately simpler than LRU). TTL is enforced lazily at read
// time on both levels. The mutex makes read-check-write sequences safe for
// concurrent callers even though the original host ran one operation at a
// time.
type TieredCache struct {
	mu          sync.Mutex
	l1          map[string]*cacheEntry
	order       []string // creation order, oldest first
	maxEntries  int
	compressMin int
	backend     kvstore.Store

	// l2Keys remembers every key written to the backend this process, since
	// the backend has no prefix-delete.
	l2Keys map[string]struct{}

	hits      int64
	misses    int64
	evictions int64

	now func() time.Time
}

func NewTieredCache(backend kvstore.Store, maxEntries, compressMin int) *TieredCache {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if compressMin <= 0 {
		compressMin = 8 * 1024
	}
	return &TieredCache{
		l1:          make(map[string]*cacheEntry),
		maxEntries:  maxEntries,
		compressMin: compressMin,
		backend:     backend,
		l2Keys:      make(map[string]struct{}),
		now:         time.Now,
	}
}

// Get checks level 1, then level 2. A level-2 hit backfills level 1.
// Expired entries are deleted and reported as misses, never returned.
func (c *TieredCache) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.Lock()
	if e, ok := c.l1[key]; ok {
		if e.expiresAt.IsZero() || c.now().Before(e.expiresAt) {
			c.hits++
			v := e.value
			c.mu.Unlock()
			return v, true
		}
		c.removeL1Locked(key)
	}
	c.mu.Unlock()

	value, expiresAt, ok := c.readL2(ctx, key)
	if !ok {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.hits++
	c.storeL1Locked(key, value, expiresAt)
	c.mu.Unlock()
	return value, true
}

func (c *TieredCache) readL2(ctx context.Context, key string) (interface{}, time.Time, bool) {
	raw, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		logrus.Debugf("[Cache] L2 read %s failed: %v", key, err)
		return nil, time.Time{}, false
	}
	if !ok {
		return nil, time.Time{}, false
	}

	var env l2Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		logrus.Debugf("[Cache] L2 envelope decode %s failed: %v", key, err)
		return nil, time.Time{}, false
	}
	if !env.ExpiresAt.IsZero() && c.now().After(env.ExpiresAt) {
		_ = c.backend.Delete(ctx, key)
		return nil, time.Time{}, false
	}

	payload := []byte(env.Payload)
	if env.Compressed {
		decompressed, err := decompressFromText(env.Payload)
		if err != nil {
			logrus.Debugf("[Cache] L2 decompress %s failed: %v", key, err)
			return nil, time.Time{}, false
		}
		payload = decompressed
	}

	var value interface{}
	if err := json.Unmarshal(payload, &value); err != nil {
		logrus.Debugf("[Cache] L2 deserialize %s failed: %v", key, err)
		return nil, time.Time{}, false
	}
	return value, env.ExpiresAt, true
}

// Set stores value on both levels. The return value reports whether the
// entry made it into the persistent level: false means level 2 rejected or
// failed the write (value too large, backend down) and the caller may want
// the chunk store instead. Level 1 is populated either way.
func (c *TieredCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) bool {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.storeL1Locked(key, value, expiresAt)
	c.mu.Unlock()

	serialized, err := json.Marshal(value)
	if err != nil {
		logrus.Warnf("[Cache] serialize %s failed: %v", key, err)
		return false
	}

	env := l2Envelope{
		Payload:   string(serialized),
		CreatedAt: c.now().UTC(),
		ExpiresAt: expiresAt,
	}
	if len(serialized) >= c.compressMin {
		encoded, err := compressToText(serialized)
		if err == nil && len(encoded) < len(serialized) {
			env.Payload = encoded
			env.Compressed = true
		}
	}

	envJSON, err := json.Marshal(env)
	if err != nil {
		return false
	}
	if len(envJSON) > c.backend.MaxValueSize() {
		logrus.Debugf("[Cache] %s exceeds L2 ceiling (%d > %d), skipping persistent level",
			key, len(envJSON), c.backend.MaxValueSize())
		return false
	}

	if err := c.backend.Set(ctx, key, string(envJSON), ttl); err != nil {
		logrus.Warnf("[Cache] L2 write %s failed: %v", key, err)
		return false
	}

	c.mu.Lock()
	c.l2Keys[key] = struct{}{}
	c.mu.Unlock()
	return true
}

// SetInMemory populates only level 1. Used for values whose persistent copy
// lives in the chunk store.
func (c *TieredCache) SetInMemory(key string, value interface{}, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.storeL1Locked(key, value, expiresAt)
	c.mu.Unlock()
}

// GetOrSet is the cache-aside read: on a miss the loader runs exactly once
// and its non-nil result is cached. Loader errors propagate untouched,
// caching never swallows them.
func (c *TieredCache) GetOrSet(ctx context.Context, key string, loader func(ctx context.Context) (interface{}, error), ttl time.Duration) (interface{}, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, nil
	}

	value, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	if value != nil {
		c.Set(ctx, key, value, ttl)
	}
	return value, nil
}

// Delete removes key from both levels.
func (c *TieredCache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	c.removeL1Locked(key)
	delete(c.l2Keys, key)
	c.mu.Unlock()
	_ = c.backend.Delete(ctx, key)
}

// Clear drops every key matching prefix (all keys when prefix is empty) from
// level 1 and from the known level-2 keys. The backend offers no
// prefix-delete, so only keys written by this process can be cleared there.
func (c *TieredCache) Clear(ctx context.Context, prefix string) {
	c.mu.Lock()
	var doomed []string
	for key := range c.l1 {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			doomed = append(doomed, key)
		}
	}
	for _, key := range doomed {
		c.removeL1Locked(key)
	}
	var l2Doomed []string
	for key := range c.l2Keys {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			l2Doomed = append(l2Doomed, key)
			delete(c.l2Keys, key)
		}
	}
	c.mu.Unlock()

	for _, key := range l2Doomed {
		_ = c.backend.Delete(ctx, key)
	}
}

// Counters returns a snapshot of the cache statistics.
func (c *TieredCache) Counters() CacheCounters {
	c.mu.Lock()
	defer c.mu.Unlock()

	var bytes int64
	for _, e := range c.l1 {
		bytes += int64(e.sizeBytes)
	}
	return CacheCounters{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		L1Entries: len(c.l1),
		L1Bytes:   bytes,
	}
}

// storeL1Locked inserts into level 1, evicting the oldest-created entries
// when the map is full. Caller holds the mutex.
func (c *TieredCache) storeL1Locked(key string, value interface{}, expiresAt time.Time) {
	if _, exists := c.l1[key]; !exists {
		for len(c.l1) >= c.maxEntries && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			if _, ok := c.l1[oldest]; ok {
				delete(c.l1, oldest)
				c.evictions++
			}
		}
		c.order = append(c.order, key)
	}

	size := 0
	if b, err := json.Marshal(value); err == nil {
		size = len(b)
	}
	c.l1[key] = &cacheEntry{
		value:     value,
		createdAt: c.now(),
		expiresAt: expiresAt,
		sizeBytes: size,
	}
}

// removeL1Locked deletes a level-1 entry and its creation-order slot.
func (c *TieredCache) removeL1Locked(key string) {
	if _, ok := c.l1[key]; !ok {
		return
	}
	delete(c.l1, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
