package http

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestParsePeriod(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	now := time.Date(2025, time.March, 14, 23, 30, 0, 0, time.UTC) // already the 15th in Rome

	tests := []struct {
		name      string
		query     string
		loc       *time.Location
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
	}{
		{
			name:      "defaults to current month",
			query:     "",
			loc:       time.UTC,
			wantStart: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, time.March, 31, 23, 59, 59, 999999999, time.UTC),
		},
		{
			name:      "explicit range covers the whole end day",
			query:     "start=2025-01-10&end=2025-01-20",
			loc:       time.UTC,
			wantStart: time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, time.January, 20, 23, 59, 59, 999999999, time.UTC),
		},
		{
			name:      "single day",
			query:     "start=2025-01-10&end=2025-01-10",
			loc:       time.UTC,
			wantStart: time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, time.January, 10, 23, 59, 59, 999999999, time.UTC),
		},
		{
			name:      "dates are read in the configured zone",
			query:     "start=2025-01-10&end=2025-01-10",
			loc:       rome,
			wantStart: time.Date(2025, time.January, 10, 0, 0, 0, 0, rome),
			wantEnd:   time.Date(2025, time.January, 10, 23, 59, 59, 999999999, rome),
		},
		{name: "only start", query: "start=2025-01-10", loc: time.UTC, wantErr: true},
		{name: "malformed date", query: "start=10/01/2025&end=2025-01-20", loc: time.UTC, wantErr: true},
		{name: "inverted", query: "start=2025-02-01&end=2025-01-01", loc: time.UTC, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/dashboard?"+tt.query, nil)
			p, err := parsePeriod(r, now, tt.loc)
			if tt.wantErr {
				if err == nil || !isBadRequest(err) {
					t.Fatalf("error = %v, want bad request", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePeriod: %v", err)
			}
			if !p.Start.Equal(tt.wantStart) || !p.End.Equal(tt.wantEnd) {
				t.Errorf("period = %v..%v, want %v..%v", p.Start, p.End, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestParseRefresh(t *testing.T) {
	tests := map[string]bool{
		"":              false,
		"?refresh=1":    true,
		"?refresh=true": true,
		"?refresh=0":    false,
		"?refresh=nope": false,
	}
	for query, want := range tests {
		r := httptest.NewRequest("GET", "/api/dashboard"+query, nil)
		if got := parseRefresh(r); got != want {
			t.Errorf("parseRefresh(%q) = %v, want %v", query, got, want)
		}
	}
}

func TestParseEntity(t *testing.T) {
	if e, err := parseEntity(" credit_cards "); err != nil || e != "credit_cards" {
		t.Errorf("parseEntity = %q, %v", e, err)
	}
	if _, err := parseEntity("payees"); !isBadRequest(err) {
		t.Errorf("error = %v, want bad request", err)
	}
}
