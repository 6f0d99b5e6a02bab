package cache

import (
	"errors"
	"sort"
	"sync"
)

// ErrQuotaExceeded is returned by a Store when a write would not fit.
var ErrQuotaExceeded = errors.New("cache: storage quota exceeded")

// Store is a string key-value store in the shape of browser local storage.
// Implementations must be safe for concurrent use.
type Store interface {
	GetItem(key string) (string, bool, error)
	SetItem(key, value string) error
	RemoveItem(key string) error
	Keys() ([]string, error)
}

// MapStore is an in-process Store. A positive quota bounds the total number
// of key and value bytes held; writes beyond it fail with ErrQuotaExceeded.
type MapStore struct {
	mu    sync.Mutex
	items map[string]string
	quota int
	used  int
}

// NewMapStore creates an empty store. quota <= 0 means unbounded.
func NewMapStore(quota int) *MapStore {
	return &MapStore{
		items: make(map[string]string),
		quota: quota,
	}
}

func (s *MapStore) GetItem(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	return v, ok, nil
}

func (s *MapStore) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	used := s.used
	if old, ok := s.items[key]; ok {
		used -= len(key) + len(old)
	}
	used += len(key) + len(value)
	if s.quota > 0 && used > s.quota {
		return ErrQuotaExceeded
	}
	s.items[key] = value
	s.used = used
	return nil
}

func (s *MapStore) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.items[key]; ok {
		s.used -= len(key) + len(old)
		delete(s.items, key)
	}
	return nil
}

// Keys returns every key in lexical order.
func (s *MapStore) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Used reports the bytes currently held.
func (s *MapStore) Used() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}
