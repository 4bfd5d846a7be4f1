// Package cookiejar provides the persistent key-value layer the client keeps its
// session and flow state in. It plays the part of the browser cookie jar: values are
// strings, each has a max-age, and every operation is best-effort.
package cookiejar

import (
	"context"
	"encoding/json"
	"time"

	slogctx "github.com/veqryn/slog-context"
)

// Options are the attributes of a stored value.
type Options struct {
	// MaxAge is the lifetime of the value. A zero or negative MaxAge deletes it.
	MaxAge time.Duration
}

// Store is a cookie-like key-value store. Failures are logged by the
// implementation and reported as absent values or no-ops.
type Store interface {
	Get(ctx context.Context, name string) (string, bool)
	Set(ctx context.Context, name, value string, opts Options)
	Remove(ctx context.Context, name string)
	Names(ctx context.Context) []string
}

// SetJSON stores v encoded as JSON.
func SetJSON(ctx context.Context, s Store, name string, v any, opts Options) {
	b, err := json.Marshal(v)
	if err != nil {
		slogctx.Warn(ctx, "Failed to encode cookie value", "name", name, "error", err)
		return
	}

	s.Set(ctx, name, string(b), opts)
}

// GetJSON decodes the JSON value stored under name. A missing or corrupt value
// reports false.
func GetJSON[T any](ctx context.Context, s Store, name string) (T, bool) {
	var v T

	raw, ok := s.Get(ctx, name)
	if !ok || raw == "" {
		return v, false
	}

	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		slogctx.Debug(ctx, "Ignoring corrupt cookie value", "name", name, "error", err)
		return v, false
	}

	return v, true
}

// RemoveAll removes every name in the list.
func RemoveAll(ctx context.Context, s Store, names ...string) {
	for _, name := range names {
		s.Remove(ctx, name)
	}
}
