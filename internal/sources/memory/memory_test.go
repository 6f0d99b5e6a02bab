package memory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"finboard/internal/core"
)

func TestNewFromDir(t *testing.T) {
	dir := t.TempDir()
	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite("expenses.json", `[
		{"id": 1, "amount": 12.5, "dueDate": "2025-01-05", "isPaid": true, "categoryId": "food"},
		{"id": "2", "amount": "oops", "dueDate": {"seconds": 1735689600}}
	]`)
	mustWrite("incomes.json", `[{"id": "s", "amount": 1000, "receivedDate": 1735689600000, "isReceived": true}]`)
	mustWrite("categories.json", `[{"id": "food", "name": "Food", "color": "#0f0"}]`)

	s, err := NewFromDir(dir)
	if err != nil {
		t.Fatalf("NewFromDir: %v", err)
	}
	ctx := context.Background()

	exp, err := s.Expenses(ctx, core.Period{})
	if err != nil || len(exp) != 2 {
		t.Fatalf("Expenses = %v, %v", exp, err)
	}
	if exp[0].ID != "1" || exp[0].Type != core.Expense {
		t.Errorf("first expense = %+v", exp[0])
	}
	if exp[1].Amount.Valid() {
		t.Error("text amount must decode as invalid")
	}

	inc, _ := s.Incomes(ctx, core.Period{})
	if len(inc) != 1 || inc[0].Type != core.Income || !inc[0].PaidStrict() {
		t.Errorf("incomes = %+v", inc)
	}

	cats, _ := s.Categories(ctx)
	if len(cats) != 1 || cats[0].Name != "Food" {
		t.Errorf("categories = %+v", cats)
	}
	if cards, _ := s.CreditCards(ctx); len(cards) != 0 {
		t.Errorf("missing file should mean no cards, got %+v", cards)
	}
}

func TestNewFromDirRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "transfers.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewFromDir(dir)
	if err == nil || !strings.Contains(err.Error(), "transfers.json") {
		t.Errorf("expected parse error naming the file, got %v", err)
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	s := New(Seed{Categories: []core.Category{{ID: "a", Name: "A"}}})
	got, _ := s.Categories(context.Background())
	got[0].Name = "changed"

	again, _ := s.Categories(context.Background())
	if again[0].Name != "A" {
		t.Error("callers must not be able to modify the store")
	}

	s.Replace(Seed{})
	if got, _ := s.Categories(context.Background()); len(got) != 0 {
		t.Errorf("after Replace got %+v", got)
	}
}

func TestCancelledContext(t *testing.T) {
	s := New(Seed{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Expenses(ctx, core.Period{}); err == nil {
		t.Error("expected context error")
	}
	if _, err := s.BankAccounts(ctx); err == nil {
		t.Error("expected context error")
	}
}
