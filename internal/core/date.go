package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

type (
	// EpochSeconds is the wrapper some backends use for instants,
	// e.g. {"seconds": 1735689600, "nanoseconds": 0}.
	EpochSeconds struct {
		Seconds     int64 `json:"seconds"`
		Nanoseconds int64 `json:"nanoseconds,omitempty"`
	}

	// DateValue holds a date exactly as the source encoded it: text, a
	// number, an epoch-seconds object or a time.Time. Interpretation is left
	// to the dates package.
	DateValue struct {
		raw any
	}
)

func NewDateValue(v any) DateValue {
	return DateValue{raw: v}
}

func DateText(s string) DateValue {
	return DateValue{raw: s}
}

func DateInstant(t time.Time) DateValue {
	return DateValue{raw: t}
}

func DateEpoch(seconds int64) DateValue {
	return DateValue{raw: EpochSeconds{Seconds: seconds}}
}

// Raw returns the encoded value, nil when absent.
func (d DateValue) Raw() any {
	return d.raw
}

// Present reports whether the field carries anything worth normalizing.
// Empty strings, zero numbers and zero times count as absent.
func (d DateValue) Present() bool {
	switch v := d.raw.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case json.Number:
		return v.String() != "0"
	case float64:
		return v != 0
	case float32:
		return v != 0
	case int64:
		return v != 0
	case int32:
		return v != 0
	case int:
		return v != 0
	case time.Time:
		return !v.IsZero()
	case *time.Time:
		return v != nil && !v.IsZero()
	default:
		return true
	}
}

func (d *DateValue) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		d.raw = nil
		return nil
	}
	d.raw = v
	return nil
}

func (d DateValue) MarshalJSON() ([]byte, error) {
	if d.raw == nil {
		return []byte("null"), nil
	}
	return json.Marshal(d.raw)
}
