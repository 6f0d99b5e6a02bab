// Package dates turns the many date encodings found in remote payloads into
// instants. Normalization is total: it never returns an error and never
// panics, callers drop records whose date does not normalize.
package dates

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"finboard/internal/core"
)

// Normalize interprets v as an instant. Zone-less text is read as UTC.
func Normalize(v any) (time.Time, bool) {
	return NormalizeIn(v, time.UTC)
}

// NormalizeIn is Normalize with an explicit location for zone-less text.
func NormalizeIn(v any, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	switch val := v.(type) {
	case nil:
		return time.Time{}, false
	case core.DateValue:
		return NormalizeIn(val.Raw(), loc)
	case *core.DateValue:
		if val == nil {
			return time.Time{}, false
		}
		return NormalizeIn(val.Raw(), loc)
	case core.EpochSeconds:
		return fromEpochSeconds(val.Seconds)
	case *core.EpochSeconds:
		if val == nil {
			return time.Time{}, false
		}
		return fromEpochSeconds(val.Seconds)
	case map[string]any:
		return fromWrapper(val)
	case string:
		return parseText(val, loc)
	case time.Time:
		return val, !val.IsZero()
	case *time.Time:
		if val == nil || val.IsZero() {
			return time.Time{}, false
		}
		return *val, true
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromEpochMillis(f)
	case float64:
		return fromEpochMillis(val)
	case float32:
		return fromEpochMillis(float64(val))
	case int:
		return time.UnixMilli(int64(val)), true
	case int64:
		return time.UnixMilli(val), true
	case int32:
		return time.UnixMilli(int64(val)), true
	default:
		return time.Time{}, false
	}
}

// fromWrapper handles decoded epoch-seconds objects such as
// {"seconds": 1735689600, "nanoseconds": 0} or {"_seconds": ...}.
func fromWrapper(m map[string]any) (time.Time, bool) {
	for _, key := range []string{"seconds", "_seconds"} {
		raw, ok := m[key]
		if !ok {
			continue
		}
		switch s := raw.(type) {
		case json.Number:
			if i, err := s.Int64(); err == nil {
				return fromEpochSeconds(i)
			}
			if f, err := s.Float64(); err == nil {
				return fromFloatSeconds(f)
			}
		case float64:
			return fromFloatSeconds(s)
		case int64:
			return fromEpochSeconds(s)
		case int:
			return fromEpochSeconds(int64(s))
		}
		return time.Time{}, false
	}
	return time.Time{}, false
}

// maxFloatInt is the largest float64 magnitude that still converts to int64.
const maxFloatInt = 1 << 62

// fromEpochSeconds rejects seconds whose millisecond value overflows int64.
func fromEpochSeconds(sec int64) (time.Time, bool) {
	if sec > math.MaxInt64/1000 || sec < math.MinInt64/1000 {
		return time.Time{}, false
	}
	return time.UnixMilli(sec * 1000), true
}

func fromFloatSeconds(sec float64) (time.Time, bool) {
	if math.IsNaN(sec) || math.IsInf(sec, 0) || math.Abs(sec) >= maxFloatInt {
		return time.Time{}, false
	}
	return fromEpochSeconds(int64(sec))
}

func fromEpochMillis(ms float64) (time.Time, bool) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms == 0 || math.Abs(ms) >= maxFloatInt {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)), true
}

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseText(s string, loc *time.Location) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if parsed, err := time.ParseInLocation(layout, s, loc); err == nil {
			return parsed, true
		}
	}
	defer func() {
		if recover() != nil {
			t, ok = time.Time{}, false
		}
	}()
	parsed, err := dateparse.ParseIn(s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}
