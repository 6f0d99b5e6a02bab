package dashboard

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"finboard/internal/cache"
	"finboard/internal/log"
	"finboard/internal/sources"
	"finboard/internal/stats"
)

var (
	// ErrUnauthenticated is returned when no user identity is available.
	// Reads and refreshes are only served for a known user.
	ErrUnauthenticated = errors.New("dashboard: user identity required")
	ErrInvalidUser     = errors.New("dashboard: invalid user id")
)

const maxUserIDLen = 128

// SessionsConfig holds the shared dependencies of every user session.
type SessionsConfig struct {
	Source    sources.Source
	Store     cache.Store // nil keeps caches memory-only
	Namespace string
	Cache     cache.Options
	Engine    *stats.Engine
	TTLs      TTLs
	Manager   *cache.Manager
	Logger    *log.Logger

	// IdleTimeout evicts sessions unused for that long on each Manager
	// sweep. Zero keeps sessions for the life of the process.
	IdleTimeout time.Duration
	Now         func() time.Time
}

type session struct {
	svc      *Service
	lastUsed time.Time
}

// Sessions hands out one Service per user. Every user gets a private cache
// whose persisted keys live under Namespace + userID + ":".
type Sessions struct {
	mu       sync.Mutex
	cfg      SessionsConfig
	services map[string]*session
	logger   *log.Logger
}

func NewSessions(cfg SessionsConfig) *Sessions {
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	if cfg.Cache.Logger == nil {
		cfg.Cache.Logger = cfg.Logger
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Sessions{
		cfg:      cfg,
		services: make(map[string]*session),
		logger:   cfg.Logger.WithComponent(log.ComponentDashboard),
	}
	if cfg.Manager != nil && cfg.IdleTimeout > 0 {
		cfg.Manager.Register(s)
	}
	return s
}

func validUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrUnauthenticated
	}
	if len(userID) > maxUserIDLen || strings.ContainsAny(userID, ": \t\r\n") {
		return "", ErrInvalidUser
	}
	return userID, nil
}

func (s *Sessions) namespace(userID string) string {
	return s.cfg.Namespace + userID + ":"
}

func (s *Sessions) tier(userID string) cache.PersistentTier {
	if s.cfg.Store == nil {
		return cache.NoopTier{}
	}
	return cache.NewStoreTier(s.cfg.Store, s.namespace(userID))
}

// For returns the service of userID, creating it on first use.
func (s *Sessions) For(userID string) (*Service, error) {
	userID, err := validUserID(userID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.cfg.Now()
	if sess, ok := s.services[userID]; ok {
		sess.lastUsed = now
		return sess.svc, nil
	}

	logger := s.cfg.Logger.With(log.FieldUserID, userID)
	opts := s.cfg.Cache
	opts.Logger = logger
	c := cache.New(opts, s.tier(userID))
	if s.cfg.Manager != nil {
		s.cfg.Manager.Register(c)
	}

	svc := NewService(c, s.cfg.Source, s.cfg.Engine, s.cfg.TTLs, logger)
	s.services[userID] = &session{svc: svc, lastUsed: now}
	s.logger.Info("Created user session", log.FieldUserID, userID)
	return svc, nil
}

// EvictIdle drops the sessions unused for longer than IdleTimeout, cancelling
// their in-flight loads and unregistering their caches. Persisted entries are
// kept, so a returning user rehydrates from the store.
func (s *Sessions) EvictIdle() int {
	if s.cfg.IdleTimeout <= 0 {
		return 0
	}
	cutoff := s.cfg.Now().Add(-s.cfg.IdleTimeout)

	s.mu.Lock()
	var idle []*Service
	for id, sess := range s.services {
		if sess.lastUsed.Before(cutoff) {
			idle = append(idle, sess.svc)
			delete(s.services, id)
			s.logger.Info("Evicted idle user session", log.FieldUserID, id)
		}
	}
	s.mu.Unlock()

	for _, svc := range idle {
		svc.Cancel()
		if s.cfg.Manager != nil {
			s.cfg.Manager.Unregister(svc.Cache())
		}
	}
	return len(idle)
}

// CleanExpired lets the Manager sweep evict idle sessions.
func (s *Sessions) CleanExpired() int {
	return s.EvictIdle()
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.services)
}

// Invalidate drops the cached data of e for userID, or for every user when
// userID is empty. Persisted entries of users without a live session are
// removed from the store directly.
func (s *Sessions) Invalidate(userID string, e sources.Entity) error {
	if strings.TrimSpace(userID) != "" {
		id, err := validUserID(userID)
		if err != nil {
			return err
		}
		s.mu.Lock()
		sess, ok := s.services[id]
		s.mu.Unlock()
		if ok {
			sess.svc.Invalidate(e)
			return nil
		}
		return s.purgeStore(func(user string) bool { return user == id }, e)
	}

	s.mu.Lock()
	live := make(map[string]*Service, len(s.services))
	for id, sess := range s.services {
		live[id] = sess.svc
	}
	s.mu.Unlock()

	for _, svc := range live {
		svc.Invalidate(e)
	}
	return s.purgeStore(func(user string) bool { _, ok := live[user]; return !ok }, e)
}

// purgeStore removes persisted entries of e, plus the dashboard snapshot,
// for the users selected by match.
func (s *Sessions) purgeStore(match func(user string) bool, e sources.Entity) error {
	if s.cfg.Store == nil {
		return nil
	}
	keys, err := s.cfg.Store.Keys()
	if err != nil {
		return fmt.Errorf("list cache keys: %w", err)
	}

	prefix := KeyPrefix(e)
	var firstErr error
	for _, full := range keys {
		rest, ok := strings.CutPrefix(full, s.cfg.Namespace)
		if !ok {
			continue
		}
		user, key, ok := strings.Cut(rest, ":")
		if !ok || !match(user) {
			continue
		}
		hit := key == KeyDashboard || key == prefix || (periodScoped(e) && strings.HasPrefix(key, prefix))
		if !hit {
			continue
		}
		if err := s.cfg.Store.RemoveItem(full); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("remove %s: %w", full, err)
		}
	}
	return firstErr
}

// Clear drops every cached entry of userID.
func (s *Sessions) Clear(userID string) error {
	svc, err := s.For(userID)
	if err != nil {
		return err
	}
	svc.Clear()
	return nil
}
