package cache

import (
	"sort"
	"strings"
	"time"
)

// Entry is a cached value with its lifetime.
type Entry struct {
	Key       string
	Data      any
	CreatedAt time.Time
	ExpiresAt time.Time

	seq uint64
}

// Valid reports whether the entry is still usable at now. An entry is valid
// up to and including its expiry instant.
func (e *Entry) Valid(now time.Time) bool {
	return !now.After(e.ExpiresAt)
}

// MemoryTier is a bounded map of entries evicted oldest-first by creation
// time. It is not safe for concurrent use; TieredCache serializes access.
type MemoryTier struct {
	max   int
	items map[string]*Entry
	seq   uint64
}

// NewMemoryTier creates a tier holding at most max entries.
func NewMemoryTier(max int) *MemoryTier {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &MemoryTier{
		max:   max,
		items: make(map[string]*Entry),
	}
}

func (m *MemoryTier) Get(key string) (*Entry, bool) {
	e, ok := m.items[key]
	return e, ok
}

// Put stores e and evicts down to the bound. It returns the evicted keys.
func (m *MemoryTier) Put(e *Entry) []string {
	m.seq++
	e.seq = m.seq
	m.items[e.Key] = e
	return m.evict()
}

// evict drops the oldest entries, ordered by CreatedAt and then by insertion.
func (m *MemoryTier) evict() []string {
	excess := len(m.items) - m.max
	if excess <= 0 {
		return nil
	}

	entries := m.oldestFirst()
	evicted := make([]string, 0, excess)
	for _, e := range entries[:excess] {
		delete(m.items, e.Key)
		evicted = append(evicted, e.Key)
	}
	return evicted
}

func (m *MemoryTier) Remove(key string) bool {
	if _, ok := m.items[key]; !ok {
		return false
	}
	delete(m.items, key)
	return true
}

// RemovePrefix drops every key starting with prefix.
func (m *MemoryTier) RemovePrefix(prefix string) int {
	removed := 0
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			delete(m.items, k)
			removed++
		}
	}
	return removed
}

// Purge drops entries that are no longer valid at now.
func (m *MemoryTier) Purge(now time.Time) int {
	removed := 0
	for k, e := range m.items {
		if !e.Valid(now) {
			delete(m.items, k)
			removed++
		}
	}
	return removed
}

func (m *MemoryTier) Clear() {
	m.items = make(map[string]*Entry)
}

func (m *MemoryTier) Len() int {
	return len(m.items)
}

// Keys returns the held keys ordered oldest first.
func (m *MemoryTier) Keys() []string {
	entries := m.oldestFirst()
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

func (m *MemoryTier) oldestFirst() []*Entry {
	entries := make([]*Entry, 0, len(m.items))
	for _, e := range m.items {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].seq < entries[j].seq
	})
	return entries
}
