package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"finboard/internal/log"
)

const (
	DefaultMaxEntries    = 100
	DefaultTTL           = 5 * time.Minute
	DefaultMaxEntryBytes = 100000
)

// Options configures a TieredCache. Zero values take the defaults above.
type Options struct {
	MaxEntries    int
	DefaultTTL    time.Duration
	MaxEntryBytes int
	Now           func() time.Time
	Logger        *log.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxEntries <= 0 {
		o.MaxEntries = DefaultMaxEntries
	}
	if o.DefaultTTL <= 0 {
		o.DefaultTTL = DefaultTTL
	}
	if o.MaxEntryBytes <= 0 {
		o.MaxEntryBytes = DefaultMaxEntryBytes
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = log.Discard()
	}
	return o
}

// TieredCache keeps entries in a bounded memory tier and mirrors them to a
// persistent tier on a best-effort basis. Persistent failures are logged and
// never surface to callers; the cache then behaves as memory-only.
type TieredCache struct {
	mu         sync.Mutex
	opts       Options
	mem        *MemoryTier
	persistent PersistentTier
	logger     *log.Logger
}

// New creates a cache and sweeps expired records from the persistent tier.
// A nil persistent tier means NoopTier.
func New(opts Options, persistent PersistentTier) *TieredCache {
	opts = opts.withDefaults()
	if persistent == nil {
		persistent = NoopTier{}
	}
	c := &TieredCache{
		opts:       opts,
		mem:        NewMemoryTier(opts.MaxEntries),
		persistent: persistent,
		logger:     opts.Logger.WithComponent(log.ComponentCache),
	}
	if removed := c.CleanExpired(); removed > 0 {
		c.logger.Info("Removed expired cache entries at startup", log.FieldRemoved, removed)
	}
	return c
}

// Set stores data under key for ttl. ttl <= 0 uses the default TTL.
func (c *TieredCache) Set(key string, data any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.opts.DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.Now()
	entry := &Entry{Key: key, Data: data, CreatedAt: now, ExpiresAt: now.Add(ttl)}
	if evicted := c.mem.Put(entry); len(evicted) > 0 {
		c.logger.Debug("Evicted cache entries", log.FieldOperation, log.OpEvict, log.FieldCount, len(evicted))
	}

	rec, err := encodeRecord(key, data, entry.CreatedAt, entry.ExpiresAt)
	if err != nil {
		c.logger.Warn("Cache entry not persisted", log.FieldKey, key, log.FieldError, err)
		c.removePersisted(key)
		return
	}
	if len(rec) >= c.opts.MaxEntryBytes {
		c.logger.Debug("Cache entry too large to persist", log.FieldKey, key, log.FieldBytes, len(rec))
		c.removePersisted(key)
		return
	}
	if err := c.persistent.Save(key, rec); err != nil {
		c.logger.Warn("Failed to persist cache entry", log.FieldKey, key, log.FieldOperation, log.OpWrite, log.FieldError, err)
	}
}

// Get returns the value stored under key decoded as T. Memory is consulted
// first; on a miss a valid persistent record is promoted into memory with
// its original timestamps.
func Get[T any](c *TieredCache, key string) (T, bool) {
	var zero T

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.Now()
	if e, ok := c.mem.Get(key); ok {
		if e.Valid(now) {
			v, ok := e.Data.(T)
			if !ok {
				c.logger.Warn("Cached value has unexpected type", log.FieldKey, key, "type", fmt.Sprintf("%T", e.Data))
				return zero, false
			}
			return v, true
		}
		c.mem.Remove(key)
	}

	raw, ok, err := c.persistent.Load(key)
	if err != nil {
		c.logger.Warn("Failed to read persisted cache entry", log.FieldKey, key, log.FieldOperation, log.OpRead, log.FieldError, err)
		return zero, false
	}
	if !ok {
		return zero, false
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		c.logger.Warn("Dropping unreadable cache entry", log.FieldKey, key, log.FieldError, err)
		c.removePersisted(key)
		return zero, false
	}
	if !rec.valid(now) {
		c.removePersisted(key)
		return zero, false
	}

	var v T
	if err := json.Unmarshal(rec.Data, &v); err != nil {
		c.logger.Warn("Dropping undecodable cache entry", log.FieldKey, key, log.FieldError, err)
		c.removePersisted(key)
		return zero, false
	}

	c.mem.Put(&Entry{Key: key, Data: v, CreatedAt: rec.createdAt(), ExpiresAt: rec.expiresAt()})
	c.logger.Debug("Hydrated cache entry", log.FieldKey, key, log.FieldOperation, log.OpHydrate)
	return v, true
}

// IsStale reports whether key has no valid memory entry.
func (c *TieredCache) IsStale(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.mem.Get(key)
	return !ok || !e.Valid(c.opts.Now())
}

// Delete removes key from both tiers.
func (c *TieredCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem.Remove(key)
	c.removePersisted(key)
}

// DeletePrefix removes every key starting with prefix from both tiers.
func (c *TieredCache) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := c.mem.RemovePrefix(prefix)
	if _, err := c.persistent.RemovePrefix(prefix); err != nil {
		c.logger.Warn("Failed to remove persisted cache entries", "prefix", prefix, log.FieldOperation, log.OpDelete, log.FieldError, err)
	}
	return removed
}

// Clear empties memory and removes every persisted record of this cache.
func (c *TieredCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem.Clear()
	if _, err := c.persistent.Clear(); err != nil {
		c.logger.Warn("Failed to clear persisted cache entries", log.FieldOperation, log.OpClear, log.FieldError, err)
	}
}

// Size returns the number of memory entries.
func (c *TieredCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mem.Len()
}

// Keys returns the memory keys ordered oldest first.
func (c *TieredCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mem.Keys()
}

// CleanExpired sweeps both tiers and returns the number of removed entries.
func (c *TieredCache) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.Now()
	removed := c.mem.Purge(now)
	n, err := c.persistent.Sweep(now)
	if err != nil {
		c.logger.Warn("Failed to sweep persisted cache entries", log.FieldOperation, log.OpSweep, log.FieldError, err)
	}
	return removed + n
}

func (c *TieredCache) removePersisted(key string) {
	if err := c.persistent.Remove(key); err != nil {
		c.logger.Warn("Failed to remove persisted cache entry", log.FieldKey, key, log.FieldOperation, log.OpDelete, log.FieldError, err)
	}
}
