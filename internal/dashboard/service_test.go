package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finboard/internal/cache"
	"finboard/internal/core"
	"finboard/internal/fetch"
	"finboard/internal/sources"
	"finboard/internal/sources/memory"
)

// countingSource wraps a memory store and records calls per entity. When
// block is set, Expenses waits for it or for cancellation.
type countingSource struct {
	*memory.Store

	mu      sync.Mutex
	calls   map[sources.Entity]int
	block   chan struct{}
	started chan struct{}
	fail    error
}

func newCountingSource(seed memory.Seed) *countingSource {
	return &countingSource{Store: memory.New(seed), calls: make(map[sources.Entity]int)}
}

func (s *countingSource) count(e sources.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[e]++
}

func (s *countingSource) Calls(e sources.Entity) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[e]
}

func (s *countingSource) Expenses(ctx context.Context, p core.Period) ([]core.Transaction, error) {
	s.count(sources.Expenses)
	s.mu.Lock()
	block, started, fail := s.block, s.started, s.fail
	s.block, s.started = nil, nil
	s.mu.Unlock()

	if started != nil {
		close(started)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail != nil {
		return nil, fail
	}
	return s.Store.Expenses(ctx, p)
}

func (s *countingSource) Categories(ctx context.Context) ([]core.Category, error) {
	s.count(sources.Categories)
	return s.Store.Categories(ctx)
}

func seed() memory.Seed {
	paid := core.Bool(true)
	return memory.Seed{
		Expenses: []core.Transaction{
			{ID: "e1", Amount: core.NewAmount(100), DueDate: core.DateText("2025-01-05"), IsPaid: paid, CategoryID: "A"},
			{ID: "e2", Amount: core.NewAmount(300), DueDate: core.DateText("2025-01-15"), IsPaid: paid, CategoryID: "A"},
			{ID: "e3", Amount: core.NewAmount(600), DueDate: core.DateText("2025-01-18"), IsPaid: paid, CategoryID: "B"},
			{ID: "e4", Amount: core.NewAmount(50), DueDate: core.DateText("2025-02-02"), IsPaid: paid, CategoryID: "B"},
		},
		Incomes: []core.Transaction{
			{ID: "i1", Amount: core.NewAmount(2000), ReceivedDate: core.DateText("2025-01-10"), IsReceived: paid},
		},
		Categories: []core.Category{{ID: "A", Name: "Food"}, {ID: "B", Name: "Rent"}},
	}
}

var january = core.MonthPeriod(2025, time.January, time.UTC)

func newTestService(src sources.Source) *Service {
	return NewService(cache.New(cache.Options{}, nil), src, nil, nil, nil)
}

func TestDashboard(t *testing.T) {
	src := newCountingSource(seed())
	svc := newTestService(src)

	d, err := svc.Dashboard(context.Background(), january, false)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if d.FilteredCount != 4 {
		t.Errorf("FilteredCount = %d, want 4", d.FilteredCount)
	}
	if len(d.ExpenseCategories) != 2 || d.ExpenseCategories[0].CategoryName != "Rent" || d.ExpenseCategories[0].Percentage != 60 {
		t.Errorf("expense categories = %+v", d.ExpenseCategories)
	}
	if d.Summary.TotalIncome != 2000 || d.Summary.TotalExpenses != 1000 {
		t.Errorf("summary = %+v", d.Summary)
	}

	if _, err := svc.Dashboard(context.Background(), january, false); err != nil {
		t.Fatalf("second Dashboard: %v", err)
	}
	if got := src.Calls(sources.Expenses); got != 1 {
		t.Errorf("expenses fetched %d times, want 1", got)
	}

	if _, err := svc.Dashboard(context.Background(), january, true); err != nil {
		t.Fatalf("forced Dashboard: %v", err)
	}
	if got := src.Calls(sources.Expenses); got != 2 {
		t.Errorf("forced refresh fetched expenses %d times, want 2", got)
	}
}

func TestDashboardPeriodChangeRecollects(t *testing.T) {
	src := newCountingSource(seed())
	svc := newTestService(src)
	ctx := context.Background()

	if _, err := svc.Dashboard(ctx, january, false); err != nil {
		t.Fatal(err)
	}
	feb := core.MonthPeriod(2025, time.February, time.UTC)
	d, err := svc.Dashboard(ctx, feb, false)
	if err != nil {
		t.Fatal(err)
	}
	if d.PeriodStart != "2025-02-01" || d.Summary.TotalExpenses != 50 {
		t.Errorf("february dashboard = %+v", d)
	}
	if got := src.Calls(sources.Expenses); got != 2 {
		t.Errorf("expenses fetched %d times, want one per period", got)
	}
	// Reference data is cached independently of the period.
	if got := src.Calls(sources.Categories); got != 1 {
		t.Errorf("categories fetched %d times, want 1", got)
	}
}

func TestInvalidateRefetchesOnlyThatEntity(t *testing.T) {
	src := newCountingSource(seed())
	svc := newTestService(src)
	ctx := context.Background()

	if _, err := svc.Dashboard(ctx, january, false); err != nil {
		t.Fatal(err)
	}
	svc.Invalidate(sources.Categories)
	if _, err := svc.Dashboard(ctx, january, false); err != nil {
		t.Fatal(err)
	}

	if got := src.Calls(sources.Categories); got != 2 {
		t.Errorf("categories fetched %d times, want 2", got)
	}
	if got := src.Calls(sources.Expenses); got != 1 {
		t.Errorf("expenses fetched %d times, want 1", got)
	}

	svc.Invalidate(sources.Expenses)
	if _, err := svc.Expenses(ctx, january, false); err != nil {
		t.Fatal(err)
	}
	if got := src.Calls(sources.Expenses); got != 2 {
		t.Errorf("expenses fetched %d times after invalidation, want 2", got)
	}
}

func TestDashboardSuperseded(t *testing.T) {
	src := newCountingSource(seed())
	src.block = make(chan struct{})
	src.started = make(chan struct{})
	started := src.started
	svc := newTestService(src)

	slow := make(chan error, 1)
	go func() {
		_, err := svc.Dashboard(context.Background(), january, true)
		slow <- err
	}()
	<-started

	d, err := svc.Dashboard(context.Background(), january, true)
	if err != nil {
		t.Fatalf("newer Dashboard: %v", err)
	}
	if d.FilteredCount != 4 {
		t.Errorf("FilteredCount = %d", d.FilteredCount)
	}

	select {
	case err := <-slow:
		if !fetch.IsSuperseded(err) {
			t.Errorf("older Dashboard error = %v, want superseded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("older Dashboard did not return")
	}
}

func TestServiceCancel(t *testing.T) {
	src := newCountingSource(seed())
	src.block = make(chan struct{})
	src.started = make(chan struct{})
	started := src.started
	svc := newTestService(src)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Expenses(context.Background(), january, true)
		done <- err
	}()
	<-started
	svc.Cancel()

	select {
	case err := <-done:
		if !fetch.IsSuperseded(err) {
			t.Errorf("cancelled Expenses error = %v, want superseded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Cancel did not abort the in-flight load")
	}
	if _, ok := cache.Get[[]core.Transaction](svc.Cache(), Key(sources.Expenses, january)); ok {
		t.Error("a cancelled load must not be cached")
	}
}

func TestDashboardSourceError(t *testing.T) {
	src := newCountingSource(seed())
	boom := errors.New("sheet unavailable")
	src.fail = boom
	svc := newTestService(src)

	_, err := svc.Dashboard(context.Background(), january, false)
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
	if fetch.IsSuperseded(err) {
		t.Error("source failure must not look superseded")
	}
}

func TestEntity(t *testing.T) {
	svc := newTestService(newCountingSource(seed()))
	ctx := context.Background()

	v, err := svc.Entity(ctx, sources.Categories, core.Period{}, false)
	if err != nil {
		t.Fatal(err)
	}
	if cats, ok := v.([]core.Category); !ok || len(cats) != 2 {
		t.Errorf("categories = %#v", v)
	}

	v, err = svc.Entity(ctx, sources.Incomes, january, false)
	if err != nil {
		t.Fatal(err)
	}
	if inc, ok := v.([]core.Transaction); !ok || len(inc) != 1 || inc[0].Type != core.Income {
		t.Errorf("incomes = %#v", v)
	}

	if _, err := svc.Entity(ctx, "nope", january, false); err == nil {
		t.Error("expected error for unknown entity")
	}
}

func TestKeysAndTTLs(t *testing.T) {
	if got := Key(sources.Expenses, january); got != "expenses_2025-01-01_2025-01-31" {
		t.Errorf("Key(expenses) = %q", got)
	}
	if got := Key(sources.Categories, january); got != "categories" {
		t.Errorf("Key(categories) = %q", got)
	}

	ttls := DefaultTTLs()
	if ttls.For(KeyDashboard) != time.Minute || ttls.For("categories") != 10*time.Minute {
		t.Errorf("defaults = %v", ttls)
	}

	merged, err := ttls.WithOverrides(map[string]time.Duration{"categories": time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	if merged.For("categories") != time.Hour || ttls.For("categories") != 10*time.Minute {
		t.Error("overrides must apply to a copy")
	}
	if _, err := ttls.WithOverrides(map[string]time.Duration{"categorys": time.Hour}); err == nil {
		t.Error("expected unknown key error")
	}
}
