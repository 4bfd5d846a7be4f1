package apiclient

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Rows returns the first JSON array found at one of paths, in order. Paths are
// dot separated object keys; "" is the body itself. Array elements that are
// not objects are skipped. Nil means no path held an array.
func (r *Response) Rows(paths ...string) []map[string]any {
	if r == nil || len(r.Body) == 0 {
		return nil
	}

	var body any
	if err := json.Unmarshal(r.Body, &body); err != nil {
		return nil
	}

	for _, path := range paths {
		list, ok := lookup(body, path).([]any)
		if !ok {
			continue
		}

		rows := make([]map[string]any, 0, len(list))
		for _, item := range list {
			if row, ok := item.(map[string]any); ok {
				rows = append(rows, row)
			}
		}
		return rows
	}

	return nil
}

func lookup(v any, path string) any {
	if path == "" {
		return v
	}

	for key := range strings.SplitSeq(path, ".") {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = obj[key]
	}

	return v
}

// DecodeRows decodes rows into T with weak typing, so numeric ids end up in
// string fields. Fields are matched by their mapstructure tag.
func DecodeRows[T any](rows []map[string]any) ([]T, error) {
	out := make([]T, 0, len(rows))
	for i, row := range rows {
		var v T
		if err := mapstructure.WeakDecode(row, &v); err != nil {
			return nil, fmt.Errorf("decoding row %d: %w", i, err)
		}
		out = append(out, v)
	}

	return out, nil
}
