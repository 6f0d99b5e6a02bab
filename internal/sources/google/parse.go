package google

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// fieldName turns a header cell into a JSON field name: "Due Date",
// "due_date" and "dueDate" all become "dueDate".
func fieldName(header string) string {
	words := strings.FieldsFunc(strings.TrimSpace(header), func(r rune) bool {
		return r == ' ' || r == '_' || r == '-'
	})
	var b strings.Builder
	for i, w := range words {
		if i == 0 && strings.ToUpper(w) == w {
			b.WriteString(strings.ToLower(w))
			continue
		}
		r := []rune(w)
		if i == 0 {
			r[0] = unicode.ToLower(r[0])
		} else {
			r[0] = unicode.ToUpper(r[0])
		}
		b.WriteString(string(r))
	}
	return b.String()
}

// rowObjects maps every data row to an object keyed by the header fields.
// Blank cells are omitted so they read as absent rather than as "".
// Rows without any value are skipped.
func rowObjects(values [][]any) []map[string]any {
	if len(values) < 2 {
		return nil
	}
	header := make([]string, len(values[0]))
	for i, h := range values[0] {
		header[i] = fieldName(fmt.Sprint(h))
	}

	out := make([]map[string]any, 0, len(values)-1)
	for _, row := range values[1:] {
		obj := make(map[string]any, len(row))
		for i, cell := range row {
			if i >= len(header) || header[i] == "" || cell == nil {
				continue
			}
			if s, ok := cell.(string); ok && strings.TrimSpace(s) == "" {
				continue
			}
			obj[header[i]] = cell
		}
		if len(obj) > 0 {
			out = append(out, obj)
		}
	}
	return out
}

// decodeRows decodes each row into T through JSON so the tolerant decoders
// of the domain types apply. Rows that fail are skipped and reported.
func decodeRows[T any](values [][]any) ([]T, []error) {
	objs := rowObjects(values)
	out := make([]T, 0, len(objs))
	var skipped []error
	for i, obj := range objs {
		b, err := json.Marshal(obj)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("row %d: %w", i+2, err))
			continue
		}
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			skipped = append(skipped, fmt.Errorf("row %d: %w", i+2, err))
			continue
		}
		out = append(out, v)
	}
	return out, skipped
}
