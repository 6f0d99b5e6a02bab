// Package dashboard wires the fetch layer, the tiered cache and the
// statistics engine into the per-user dashboard reads.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"finboard/internal/cache"
	"finboard/internal/core"
	"finboard/internal/fetch"
	"finboard/internal/log"
	"finboard/internal/sources"
	"finboard/internal/stats"
)

// Snapshot is the raw input set of one dashboard. It is what KeyDashboard
// caches; statistics are always recomputed from it.
type Snapshot struct {
	PeriodKey     string             `json:"periodKey"`
	Expenses      []core.Transaction `json:"expenses"`
	Incomes       []core.Transaction `json:"incomes"`
	Categories    []core.Category    `json:"categories"`
	Subcategories []core.Subcategory `json:"subcategories"`
	CreditCards   []core.CreditCard  `json:"creditCards"`
	BankAccounts  []core.BankAccount `json:"bankAccounts"`
}

// Service serves one user's reads. Each entity has its own coordinator so
// a newer request for an entity supersedes an older one still in flight.
type Service struct {
	cache  *cache.TieredCache
	source sources.Source
	engine *stats.Engine
	ttls   TTLs
	logger *log.Logger

	expenses      *fetch.Coordinator[[]core.Transaction]
	incomes       *fetch.Coordinator[[]core.Transaction]
	categories    *fetch.Coordinator[[]core.Category]
	subcategories *fetch.Coordinator[[]core.Subcategory]
	creditCards   *fetch.Coordinator[[]core.CreditCard]
	bankAccounts  *fetch.Coordinator[[]core.BankAccount]
	transfers     *fetch.Coordinator[[]core.Transfer]
	snapshot      *fetch.Coordinator[Snapshot]
}

// NewService creates a service reading through c. A nil engine computes in
// UTC; nil ttls means DefaultTTLs.
func NewService(c *cache.TieredCache, src sources.Source, engine *stats.Engine, ttls TTLs, logger *log.Logger) *Service {
	if engine == nil {
		engine = stats.NewEngine(time.UTC)
	}
	if ttls == nil {
		ttls = DefaultTTLs()
	}
	if logger == nil {
		logger = log.Discard()
	}
	ttl := func(e sources.Entity) time.Duration { return ttls.For(string(e)) }

	return &Service{
		cache:  c,
		source: src,
		engine: engine,
		ttls:   ttls,
		logger: logger.WithComponent(log.ComponentDashboard),

		expenses:      fetch.NewCoordinator[[]core.Transaction](c, ttl(sources.Expenses), logger),
		incomes:       fetch.NewCoordinator[[]core.Transaction](c, ttl(sources.Incomes), logger),
		categories:    fetch.NewCoordinator[[]core.Category](c, ttl(sources.Categories), logger),
		subcategories: fetch.NewCoordinator[[]core.Subcategory](c, ttl(sources.Subcategories), logger),
		creditCards:   fetch.NewCoordinator[[]core.CreditCard](c, ttl(sources.CreditCards), logger),
		bankAccounts:  fetch.NewCoordinator[[]core.BankAccount](c, ttl(sources.BankAccounts), logger),
		transfers:     fetch.NewCoordinator[[]core.Transfer](c, ttl(sources.Transfers), logger),
		snapshot:      fetch.NewCoordinator[Snapshot](c, ttls.For(KeyDashboard), logger),
	}
}

func (s *Service) Expenses(ctx context.Context, p core.Period, force bool) ([]core.Transaction, error) {
	return s.expenses.Load(ctx, Key(sources.Expenses, p), func(ctx context.Context) ([]core.Transaction, error) {
		return s.source.Expenses(ctx, p)
	}, force)
}

func (s *Service) Incomes(ctx context.Context, p core.Period, force bool) ([]core.Transaction, error) {
	return s.incomes.Load(ctx, Key(sources.Incomes, p), func(ctx context.Context) ([]core.Transaction, error) {
		return s.source.Incomes(ctx, p)
	}, force)
}

func (s *Service) Categories(ctx context.Context, force bool) ([]core.Category, error) {
	return s.categories.Load(ctx, string(sources.Categories), s.source.Categories, force)
}

func (s *Service) Subcategories(ctx context.Context, force bool) ([]core.Subcategory, error) {
	return s.subcategories.Load(ctx, string(sources.Subcategories), s.source.Subcategories, force)
}

func (s *Service) CreditCards(ctx context.Context, force bool) ([]core.CreditCard, error) {
	return s.creditCards.Load(ctx, string(sources.CreditCards), s.source.CreditCards, force)
}

func (s *Service) BankAccounts(ctx context.Context, force bool) ([]core.BankAccount, error) {
	return s.bankAccounts.Load(ctx, string(sources.BankAccounts), s.source.BankAccounts, force)
}

func (s *Service) Transfers(ctx context.Context, force bool) ([]core.Transfer, error) {
	return s.transfers.Load(ctx, string(sources.Transfers), s.source.Transfers, force)
}

// Entity reads any entity by name. p scopes the transaction entities.
func (s *Service) Entity(ctx context.Context, e sources.Entity, p core.Period, force bool) (any, error) {
	switch e {
	case sources.Expenses:
		return s.Expenses(ctx, p, force)
	case sources.Incomes:
		return s.Incomes(ctx, p, force)
	case sources.Categories:
		return s.Categories(ctx, force)
	case sources.Subcategories:
		return s.Subcategories(ctx, force)
	case sources.CreditCards:
		return s.CreditCards(ctx, force)
	case sources.BankAccounts:
		return s.BankAccounts(ctx, force)
	case sources.Transfers:
		return s.Transfers(ctx, force)
	default:
		return nil, fmt.Errorf("unknown entity %q", e)
	}
}

// Dashboard computes every statistic view for p. Inputs come from the
// cached snapshot when it was taken for p, else from the entity loads run in
// parallel. force bypasses every cache level.
func (s *Service) Dashboard(ctx context.Context, p core.Period, force bool) (core.Dashboard, error) {
	produce := func(ctx context.Context) (Snapshot, error) {
		return s.collect(ctx, p, force)
	}

	snap, err := s.snapshot.Load(ctx, KeyDashboard, produce, force || !s.hasSnapshot(p))
	if err == nil && snap.PeriodKey != p.Key() {
		// Replaced by another period between the check and the load.
		snap, err = s.snapshot.Load(ctx, KeyDashboard, produce, true)
	}
	if err != nil {
		return core.Dashboard{}, err
	}

	return s.engine.Compute(stats.Input{
		Period:        p,
		Expenses:      snap.Expenses,
		Incomes:       snap.Incomes,
		Categories:    snap.Categories,
		Subcategories: snap.Subcategories,
		CreditCards:   snap.CreditCards,
		Accounts:      snap.BankAccounts,
	}), nil
}

func (s *Service) hasSnapshot(p core.Period) bool {
	snap, ok := cache.Get[Snapshot](s.cache, KeyDashboard)
	return ok && snap.PeriodKey == p.Key()
}

// collect loads every dashboard input concurrently. The first failure
// cancels the remaining loads.
func (s *Service) collect(ctx context.Context, p core.Period, force bool) (Snapshot, error) {
	snap := Snapshot{PeriodKey: p.Key()}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		snap.Expenses, err = s.Expenses(ctx, p, force)
		return err
	})
	g.Go(func() (err error) {
		snap.Incomes, err = s.Incomes(ctx, p, force)
		return err
	})
	g.Go(func() (err error) {
		snap.Categories, err = s.Categories(ctx, force)
		return err
	})
	g.Go(func() (err error) {
		snap.Subcategories, err = s.Subcategories(ctx, force)
		return err
	})
	g.Go(func() (err error) {
		snap.CreditCards, err = s.CreditCards(ctx, force)
		return err
	})
	g.Go(func() (err error) {
		snap.BankAccounts, err = s.BankAccounts(ctx, force)
		return err
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	s.logger.DebugContext(ctx, "Collected dashboard inputs",
		log.FieldPeriod, snap.PeriodKey,
		"expenses", len(snap.Expenses),
		"incomes", len(snap.Incomes))
	return snap, nil
}

// Invalidate drops the cached data of e and the dashboard snapshot.
func (s *Service) Invalidate(e sources.Entity) {
	if periodScoped(e) {
		s.cache.DeletePrefix(KeyPrefix(e))
	} else {
		s.cache.Delete(string(e))
	}
	s.cache.Delete(KeyDashboard)
	s.logger.Debug("Invalidated cache", log.FieldEntity, e, log.FieldOperation, log.OpInvalidate)
}

// Clear drops everything this user has cached.
func (s *Service) Clear() {
	s.cache.Clear()
}

// Cancel aborts every in-flight load of this user.
func (s *Service) Cancel() {
	s.expenses.Cancel()
	s.incomes.Cancel()
	s.categories.Cancel()
	s.subcategories.Cancel()
	s.creditCards.Cancel()
	s.bankAccounts.Cancel()
	s.transfers.Cancel()
	s.snapshot.Cancel()
}

// Cache exposes the user's cache, mainly for diagnostics.
func (s *Service) Cache() *cache.TieredCache {
	return s.cache
}
