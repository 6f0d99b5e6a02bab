// Package memory is a Source backed by JSON files loaded into memory. It
// serves local development and tests.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"finboard/internal/core"
	"finboard/internal/sources"
)

// Seed is the full data set a Store serves.
type Seed struct {
	Expenses      []core.Transaction
	Incomes       []core.Transaction
	Categories    []core.Category
	Subcategories []core.Subcategory
	CreditCards   []core.CreditCard
	BankAccounts  []core.BankAccount
	Transfers     []core.Transfer
}

type Store struct {
	mu   sync.RWMutex
	seed Seed
}

var _ sources.Source = (*Store)(nil)

func New(seed Seed) *Store {
	return &Store{seed: seed}
}

// NewFromDir reads <entity>.json files from dir. Missing files mean an
// empty entity; malformed files are an error.
func NewFromDir(dir string) (*Store, error) {
	var seed Seed
	files := []struct {
		entity sources.Entity
		dst    any
	}{
		{sources.Expenses, &seed.Expenses},
		{sources.Incomes, &seed.Incomes},
		{sources.Categories, &seed.Categories},
		{sources.Subcategories, &seed.Subcategories},
		{sources.CreditCards, &seed.CreditCards},
		{sources.BankAccounts, &seed.BankAccounts},
		{sources.Transfers, &seed.Transfers},
	}
	for _, f := range files {
		path := filepath.Join(dir, string(f.entity)+".json")
		b, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := json.Unmarshal(b, f.dst); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return New(seed), nil
}

// Replace swaps the served data set.
func (s *Store) Replace(seed Seed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seed = seed
}

func (s *Store) Expenses(ctx context.Context, _ core.Period) ([]core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sources.StampType(s.seed.Expenses, core.Expense), nil
}

func (s *Store) Incomes(ctx context.Context, _ core.Period) ([]core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sources.StampType(s.seed.Incomes, core.Income), nil
}

func (s *Store) Categories(ctx context.Context) ([]core.Category, error) {
	return snapshot(ctx, s, func(seed *Seed) []core.Category { return seed.Categories })
}

func (s *Store) Subcategories(ctx context.Context) ([]core.Subcategory, error) {
	return snapshot(ctx, s, func(seed *Seed) []core.Subcategory { return seed.Subcategories })
}

func (s *Store) CreditCards(ctx context.Context) ([]core.CreditCard, error) {
	return snapshot(ctx, s, func(seed *Seed) []core.CreditCard { return seed.CreditCards })
}

func (s *Store) BankAccounts(ctx context.Context) ([]core.BankAccount, error) {
	return snapshot(ctx, s, func(seed *Seed) []core.BankAccount { return seed.BankAccounts })
}

func (s *Store) Transfers(ctx context.Context) ([]core.Transfer, error) {
	return snapshot(ctx, s, func(seed *Seed) []core.Transfer { return seed.Transfers })
}

// snapshot copies the slice pick selects from the seed under the read lock.
func snapshot[T any](ctx context.Context, s *Store, pick func(*Seed) []T) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]T(nil), pick(&s.seed)...), nil
}
