package cache

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PersistentTier mirrors cache entries somewhere that outlives the process.
// Keys passed in are cache keys; tiers apply their own namespacing.
type PersistentTier interface {
	Load(key string) ([]byte, bool, error)
	Save(key string, record []byte) error
	Remove(key string) error
	RemovePrefix(prefix string) (int, error)
	// Sweep removes records expired at now or that cannot be decoded.
	Sweep(now time.Time) (int, error)
	// Clear removes every record owned by the tier.
	Clear() (int, error)
}

// record is the persisted form of an Entry.
type record struct {
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"createdAt"`
	ExpiresAt int64           `json:"expiresAt"`
}

func encodeRecord(key string, data any, createdAt, expiresAt time.Time) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	return json.Marshal(record{
		Key:       key,
		Data:      raw,
		CreatedAt: createdAt.UnixMilli(),
		ExpiresAt: expiresAt.UnixMilli(),
	})
}

func decodeRecord(b []byte) (record, error) {
	var rec record
	if err := json.Unmarshal(b, &rec); err != nil {
		return record{}, fmt.Errorf("decode record: %w", err)
	}
	if rec.ExpiresAt == 0 {
		return record{}, fmt.Errorf("decode record %q: missing expiresAt", rec.Key)
	}
	return rec, nil
}

func (r record) createdAt() time.Time { return time.UnixMilli(r.CreatedAt) }
func (r record) expiresAt() time.Time { return time.UnixMilli(r.ExpiresAt) }

func (r record) valid(now time.Time) bool {
	return !now.After(r.expiresAt())
}

// StoreTier persists records in a Store under a namespace prefix.
type StoreTier struct {
	store     Store
	namespace string
}

// NewStoreTier creates a tier writing keys as namespace+key into store.
func NewStoreTier(store Store, namespace string) *StoreTier {
	return &StoreTier{store: store, namespace: namespace}
}

func (t *StoreTier) Load(key string) ([]byte, bool, error) {
	v, ok, err := t.store.GetItem(t.namespace + key)
	if err != nil || !ok {
		return nil, false, err
	}
	return []byte(v), true, nil
}

func (t *StoreTier) Save(key string, rec []byte) error {
	return t.store.SetItem(t.namespace+key, string(rec))
}

func (t *StoreTier) Remove(key string) error {
	return t.store.RemoveItem(t.namespace + key)
}

func (t *StoreTier) RemovePrefix(prefix string) (int, error) {
	return t.removeMatching(func(string) bool { return true }, t.namespace+prefix)
}

func (t *StoreTier) Sweep(now time.Time) (int, error) {
	return t.removeMatching(func(full string) bool {
		v, ok, err := t.store.GetItem(full)
		if err != nil || !ok {
			return false
		}
		rec, err := decodeRecord([]byte(v))
		return err != nil || !rec.valid(now)
	}, t.namespace)
}

func (t *StoreTier) Clear() (int, error) {
	return t.RemovePrefix("")
}

// removeMatching deletes keys under prefix for which match is true. It keeps
// going past individual failures and reports the first one.
func (t *StoreTier) removeMatching(match func(string) bool, prefix string) (int, error) {
	keys, err := t.store.Keys()
	if err != nil {
		return 0, fmt.Errorf("list keys: %w", err)
	}

	removed := 0
	var firstErr error
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) || !match(k) {
			continue
		}
		if err := t.store.RemoveItem(k); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove %s: %w", k, err)
			}
			continue
		}
		removed++
	}
	return removed, firstErr
}

// NoopTier is a PersistentTier that stores nothing.
type NoopTier struct{}

func (NoopTier) Load(string) ([]byte, bool, error) { return nil, false, nil }
func (NoopTier) Save(string, []byte) error         { return nil }
func (NoopTier) Remove(string) error               { return nil }
func (NoopTier) RemovePrefix(string) (int, error)  { return 0, nil }
func (NoopTier) Sweep(time.Time) (int, error)      { return 0, nil }
func (NoopTier) Clear() (int, error)               { return 0, nil }
