package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"finboard/internal/core"
	"finboard/internal/sources"
)

// KeyDashboard caches the raw inputs of the last dashboard computed.
const KeyDashboard = "dashboard_data"

// Key returns the cache key of an entity. Transaction entities are scoped
// to a period: "expenses_2025-01-01_2025-01-31".
func Key(e sources.Entity, p core.Period) string {
	if periodScoped(e) {
		return string(e) + "_" + p.Key()
	}
	return string(e)
}

// KeyPrefix returns the prefix shared by every key of e.
func KeyPrefix(e sources.Entity) string {
	if periodScoped(e) {
		return string(e) + "_"
	}
	return string(e)
}

func periodScoped(e sources.Entity) bool {
	return e == sources.Expenses || e == sources.Incomes
}

// TTLs maps entity names and KeyDashboard to cache lifetimes.
type TTLs map[string]time.Duration

// DefaultTTLs reflect how often each kind of data changes.
func DefaultTTLs() TTLs {
	return TTLs{
		string(sources.Expenses):      2 * time.Minute,
		string(sources.Incomes):       2 * time.Minute,
		string(sources.Transfers):     2 * time.Minute,
		KeyDashboard:                  time.Minute,
		string(sources.BankAccounts):  5 * time.Minute,
		string(sources.CreditCards):   5 * time.Minute,
		string(sources.Categories):    10 * time.Minute,
		string(sources.Subcategories): 10 * time.Minute,
	}
}

// WithOverrides returns a copy of t with overrides applied. Unknown names
// are rejected so typos in the TTL file do not go unnoticed.
func (t TTLs) WithOverrides(overrides map[string]time.Duration) (TTLs, error) {
	out := make(TTLs, len(t))
	for k, v := range t {
		out[k] = v
	}
	var unknown []string
	for k, v := range overrides {
		if _, ok := t[k]; !ok {
			unknown = append(unknown, k)
			continue
		}
		out[k] = v
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown TTL keys: %s", strings.Join(unknown, ", "))
	}
	return out, nil
}

// For returns the TTL for name, or 0 to let the cache apply its default.
func (t TTLs) For(name string) time.Duration {
	return t[name]
}
