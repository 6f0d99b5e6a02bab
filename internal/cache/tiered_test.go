package cache

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

const testNS = "finboard_cache_"

func newTestCache(clock *fakeClock, store Store) *TieredCache {
	return New(Options{Now: clock.Now}, NewStoreTier(store, testNS))
}

// failingStore rejects every write.
type failingStore struct{ *MapStore }

func (failingStore) SetItem(string, string) error { return errors.New("disk full") }

func TestSetGetRoundTrip(t *testing.T) {
	clock := newFakeClock()
	store := NewMapStore(0)
	c := newTestCache(clock, store)

	c.Set("categories", []string{"food", "rent"}, time.Minute)

	got, ok := Get[[]string](c, "categories")
	if !ok {
		t.Fatal("expected hit")
	}
	if len(got) != 2 || got[0] != "food" {
		t.Errorf("got %v", got)
	}
	if _, ok, _ := store.GetItem(testNS + "categories"); !ok {
		t.Error("expected entry mirrored to the store")
	}
}

func TestGetTypeMismatchIsMiss(t *testing.T) {
	c := newTestCache(newFakeClock(), NewMapStore(0))
	c.Set("k", 42, time.Minute)
	if _, ok := Get[string](c, "k"); ok {
		t.Error("expected miss on type mismatch")
	}
}

func TestEvictionKeepsNewestHundred(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock, NewMapStore(0))

	for i := 0; i <= 100; i++ {
		c.Set(fmt.Sprintf("k%d", i), i, time.Hour)
		clock.Advance(time.Millisecond)
	}

	if got := c.Size(); got != 100 {
		t.Fatalf("Size() = %d, want 100", got)
	}
	if !c.IsStale("k0") {
		t.Error("expected oldest entry evicted from memory")
	}
	if c.IsStale("k1") || c.IsStale("k100") {
		t.Error("expected newer entries kept")
	}

	// The persisted copy of the evicted key still hydrates, then is evicted
	// again because it is the oldest.
	v, ok := Get[int](c, "k0")
	if !ok || v != 0 {
		t.Fatalf("Get(k0) = %v, %v; want 0, true", v, ok)
	}
	if got := c.Size(); got != 100 {
		t.Errorf("Size() after promotion = %d, want 100", got)
	}
}

func TestEvictionTiesUseInsertionOrder(t *testing.T) {
	clock := newFakeClock()
	c := New(Options{MaxEntries: 2, Now: clock.Now}, nil)

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Set("c", 3, time.Minute)

	if !c.IsStale("a") {
		t.Error("expected first inserted entry evicted")
	}
	if c.IsStale("b") || c.IsStale("c") {
		t.Error("expected later entries kept")
	}
}

func TestExpiry(t *testing.T) {
	clock := newFakeClock()
	store := NewMapStore(0)
	c := newTestCache(clock, store)

	c.Set("k", "v", 1000*time.Millisecond)

	clock.Advance(1000 * time.Millisecond)
	if _, ok := Get[string](c, "k"); !ok {
		t.Fatal("entry must be valid at its expiry instant")
	}

	clock.Advance(time.Millisecond)
	if _, ok := Get[string](c, "k"); ok {
		t.Fatal("expected miss after expiry")
	}
	if !c.IsStale("k") {
		t.Error("expected stale after expiry")
	}
	if _, ok, _ := store.GetItem(testNS + "k"); ok {
		t.Error("expected expired persisted entry removed on read")
	}
}

func TestCleanExpiredSweepsBothTiers(t *testing.T) {
	clock := newFakeClock()
	store := NewMapStore(0)
	c := newTestCache(clock, store)

	c.Set("short", 1, time.Second)
	c.Set("long", 2, time.Hour)
	clock.Advance(1001 * time.Millisecond)

	if removed := c.CleanExpired(); removed != 2 {
		t.Errorf("CleanExpired() = %d, want 2 (memory + persistent)", removed)
	}
	keys, _ := store.Keys()
	if len(keys) != 1 || keys[0] != testNS+"long" {
		t.Errorf("store keys = %v", keys)
	}
}

func TestStartupSweepRemovesExpiredRecords(t *testing.T) {
	clock := newFakeClock()
	store := NewMapStore(0)
	first := newTestCache(clock, store)
	first.Set("old", 1, time.Second)
	first.Set("fresh", 2, time.Hour)
	_ = store.SetItem(testNS+"garbage", "{not json")
	_ = store.SetItem("other_app_key", "untouched")

	clock.Advance(2 * time.Second)
	second := newTestCache(clock, store)

	keys, _ := store.Keys()
	want := map[string]bool{testNS + "fresh": true, "other_app_key": true}
	if len(keys) != len(want) {
		t.Fatalf("store keys = %v", keys)
	}
	for _, k := range keys {
		if !want[k] {
			t.Errorf("unexpected key %q", k)
		}
	}

	v, ok := Get[int](second, "fresh")
	if !ok || v != 2 {
		t.Errorf("hydrated fresh = %v, %v", v, ok)
	}
	if second.IsStale("fresh") {
		t.Error("expected hydrated entry promoted to memory")
	}
}

func TestHydrationKeepsOriginalTimestamps(t *testing.T) {
	clock := newFakeClock()
	store := NewMapStore(0)
	newTestCache(clock, store).Set("k", "v", 10*time.Second)

	clock.Advance(9 * time.Second)
	c := newTestCache(clock, store)
	if _, ok := Get[string](c, "k"); !ok {
		t.Fatal("expected hydration")
	}

	clock.Advance(2 * time.Second)
	if !c.IsStale("k") {
		t.Error("promoted entry must expire with the original deadline")
	}
}

func TestOversizeEntryStaysInMemoryOnly(t *testing.T) {
	clock := newFakeClock()
	store := NewMapStore(0)
	c := newTestCache(clock, store)

	c.Set("big", "small", time.Minute)
	if _, ok, _ := store.GetItem(testNS + "big"); !ok {
		t.Fatal("expected small entry persisted")
	}

	c.Set("big", strings.Repeat("x", DefaultMaxEntryBytes), time.Minute)
	if _, ok, _ := store.GetItem(testNS + "big"); ok {
		t.Error("expected stale persisted copy removed when the new value is too large")
	}
	if v, ok := Get[string](c, "big"); !ok || len(v) != DefaultMaxEntryBytes {
		t.Error("expected oversize entry served from memory")
	}
}

func TestQuotaExceededDegradesToMemory(t *testing.T) {
	clock := newFakeClock()
	store := NewMapStore(64)
	c := newTestCache(clock, store)

	c.Set("k", strings.Repeat("y", 200), time.Minute)

	if _, ok, _ := store.GetItem(testNS + "k"); ok {
		t.Error("expected write rejected by quota")
	}
	if _, ok := Get[string](c, "k"); !ok {
		t.Error("expected memory hit despite quota failure")
	}
}

func TestStoreErrorsAreSwallowed(t *testing.T) {
	c := newTestCache(newFakeClock(), failingStore{NewMapStore(0)})
	c.Set("k", 1, time.Minute)
	if v, ok := Get[int](c, "k"); !ok || v != 1 {
		t.Errorf("Get = %v, %v", v, ok)
	}
}

func TestUndecodablePersistedEntryIsDropped(t *testing.T) {
	clock := newFakeClock()
	store := NewMapStore(0)
	newTestCache(clock, store).Set("k", "text", time.Minute)

	c := newTestCache(clock, store)
	if _, ok := Get[int](c, "k"); ok {
		t.Fatal("expected miss when persisted data does not decode")
	}
	if _, ok, _ := store.GetItem(testNS + "k"); ok {
		t.Error("expected undecodable entry removed")
	}
}

func TestClearRemovesNamespaceOnly(t *testing.T) {
	clock := newFakeClock()
	store := NewMapStore(0)
	_ = store.SetItem("unrelated", "keep")
	c := newTestCache(clock, store)
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)

	c.Clear()

	if c.Size() != 0 {
		t.Errorf("Size() = %d after Clear", c.Size())
	}
	if _, ok := Get[int](c, "a"); ok {
		t.Error("expected miss after Clear")
	}
	keys, _ := store.Keys()
	if len(keys) != 1 || keys[0] != "unrelated" {
		t.Errorf("store keys after Clear = %v", keys)
	}
}

func TestDeletePrefix(t *testing.T) {
	clock := newFakeClock()
	store := NewMapStore(0)
	c := newTestCache(clock, store)
	c.Set("expenses_2025-01-01_2025-01-31", 1, time.Minute)
	c.Set("expenses_2025-02-01_2025-02-28", 2, time.Minute)
	c.Set("incomes_2025-01-01_2025-01-31", 3, time.Minute)

	if removed := c.DeletePrefix("expenses_"); removed != 2 {
		t.Errorf("DeletePrefix() = %d, want 2", removed)
	}
	if _, ok := Get[int](c, "expenses_2025-01-01_2025-01-31"); ok {
		t.Error("expected persisted copy removed too")
	}
	if _, ok := Get[int](c, "incomes_2025-01-01_2025-01-31"); !ok {
		t.Error("expected other prefixes untouched")
	}

	c.Delete("incomes_2025-01-01_2025-01-31")
	if keys, _ := store.Keys(); len(keys) != 0 {
		t.Errorf("store keys = %v", keys)
	}
}

func TestDefaultTTL(t *testing.T) {
	clock := newFakeClock()
	c := New(Options{Now: clock.Now}, nil)
	c.Set("k", 1, 0)

	clock.Advance(DefaultTTL)
	if c.IsStale("k") {
		t.Fatal("expected entry valid at default TTL")
	}
	clock.Advance(time.Millisecond)
	if !c.IsStale("k") {
		t.Error("expected entry stale past default TTL")
	}
}
