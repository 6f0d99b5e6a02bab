// Package period selects the transactions that belong to a reporting window.
package period

import (
	"time"

	"finboard/internal/core"
	"finboard/internal/dates"
)

// EffectiveDate returns the instant a transaction counts toward. It is the
// first present of due, received and payment date; a present but unreadable
// date does not fall through to the next one.
func EffectiveDate(tx core.Transaction) (time.Time, bool) {
	return EffectiveDateIn(tx, time.UTC)
}

// EffectiveDateIn is EffectiveDate reading zone-less dates in loc.
func EffectiveDateIn(tx core.Transaction, loc *time.Location) (time.Time, bool) {
	for _, d := range []core.DateValue{tx.DueDate, tx.ReceivedDate, tx.PaymentDate} {
		if d.Present() {
			return dates.NormalizeIn(d, loc)
		}
	}
	return time.Time{}, false
}

// Filter keeps the records whose effective date lies in p, both ends
// included, preserving order. Records without a usable date are dropped.
func Filter(records []core.Transaction, p core.Period) []core.Transaction {
	return FilterIn(records, p, time.UTC)
}

// FilterIn is Filter reading zone-less dates in loc.
func FilterIn(records []core.Transaction, p core.Period, loc *time.Location) []core.Transaction {
	out := make([]core.Transaction, 0, len(records))
	for _, tx := range records {
		d, ok := EffectiveDateIn(tx, loc)
		if !ok || !p.Contains(d) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// Months lists the first instant of every calendar month in loc that the
// period touches, in order.
func Months(p core.Period, loc *time.Location) []time.Time {
	if loc == nil {
		loc = time.UTC
	}
	start, end := p.Start.In(loc), p.End.In(loc)
	if end.Before(start) {
		return nil
	}

	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, loc)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, loc)
	var months []time.Time
	for !cur.After(last) {
		months = append(months, cur)
		cur = cur.AddDate(0, 1, 0)
	}
	return months
}
