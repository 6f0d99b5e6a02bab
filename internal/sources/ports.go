// Package sources defines the fetch layer the dashboard reads entities from.
package sources

import (
	"context"
	"fmt"

	"finboard/internal/core"
)

// Entity names a kind of record a Source serves.
type Entity string

const (
	Expenses      Entity = "expenses"
	Incomes       Entity = "incomes"
	Categories    Entity = "categories"
	Subcategories Entity = "subcategories"
	CreditCards   Entity = "credit_cards"
	BankAccounts  Entity = "bank_accounts"
	Transfers     Entity = "transfers"
)

// Entities lists every entity in a stable order.
var Entities = []Entity{Expenses, Incomes, Categories, Subcategories, CreditCards, BankAccounts, Transfers}

// ParseEntity validates an entity name.
func ParseEntity(s string) (Entity, error) {
	for _, e := range Entities {
		if string(e) == s {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown entity %q", s)
}

// Source is the remote fetch layer. Transaction readers receive the
// requested period as a hint and may return records outside it; callers
// filter.
type Source interface {
	Expenses(ctx context.Context, p core.Period) ([]core.Transaction, error)
	Incomes(ctx context.Context, p core.Period) ([]core.Transaction, error)
	Categories(ctx context.Context) ([]core.Category, error)
	Subcategories(ctx context.Context) ([]core.Subcategory, error)
	CreditCards(ctx context.Context) ([]core.CreditCard, error)
	BankAccounts(ctx context.Context) ([]core.BankAccount, error)
	Transfers(ctx context.Context) ([]core.Transfer, error)
}

// StampType returns records with t set on every record that has no type.
// Records carrying a different type are left alone.
func StampType(records []core.Transaction, t core.TransactionType) []core.Transaction {
	out := make([]core.Transaction, len(records))
	for i, r := range records {
		if r.Type == "" {
			r.Type = t
		}
		out[i] = r
	}
	return out
}
