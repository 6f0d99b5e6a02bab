package core

import (
	"bytes"
	"encoding/json"
	"math"
)

// Amount is a monetary value that remembers whether the source actually
// delivered a number. Strings, booleans, null and non-finite values decode to
// an invalid Amount instead of failing the whole record, so a single bad row
// never aborts a batch; statistics skip invalid amounts.
type Amount struct {
	value float64
	valid bool
}

// NewAmount returns a valid Amount unless v is NaN or infinite.
func NewAmount(v float64) Amount {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Amount{}
	}
	return Amount{value: v, valid: true}
}

// Float returns the value and whether it is a usable number.
func (a Amount) Float() (float64, bool) {
	return a.value, a.valid
}

// Positive returns the value when it is a valid number greater than zero.
func (a Amount) Positive() (float64, bool) {
	if !a.valid || a.value <= 0 {
		return 0, false
	}
	return a.value, true
}

func (a Amount) Valid() bool {
	return a.valid
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	*a = Amount{}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	n, ok := v.(json.Number)
	if !ok {
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil
	}
	*a = NewAmount(f)
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.valid {
		return []byte("null"), nil
	}
	return json.Marshal(a.value)
}
