// Package cookievalkey implements a cookie store shared through Valkey.
package cookievalkey

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/valkey-io/valkey-go"

	slogctx "github.com/veqryn/slog-context"

	"github.com/seaneb/seaneb-auth/pkg/cookiejar"
)

const objectType = "cookie"

type Store struct {
	valkey valkey.Client
	prefix string
}

var _ cookiejar.Store = (*Store)(nil)

func New(valkeyClient valkey.Client, prefix string) *Store {
	prefix = strings.TrimSuffix(prefix, ":")
	return &Store{
		valkey: valkeyClient,
		prefix: prefix,
	}
}

func (s *Store) Get(ctx context.Context, name string) (string, bool) {
	value, err := s.valkey.Do(ctx, s.valkey.B().Get().Key(s.key(name)).Build()).ToString()
	if err != nil {
		valkeyErr, ok := valkey.IsValkeyErr(err)
		if !ok || !valkeyErr.IsNil() {
			slogctx.Warn(ctx, "Failed to execute get command", "name", name, "error", err)
		}

		return "", false
	}

	return value, true
}

func (s *Store) Set(ctx context.Context, name, value string, opts cookiejar.Options) {
	if opts.MaxAge <= 0 {
		s.Remove(ctx, name)
		return
	}

	cmd := s.valkey.B().Set().Key(s.key(name)).Value(value).PxMilliseconds(opts.MaxAge.Milliseconds()).Build()
	if err := s.valkey.Do(ctx, cmd).Error(); err != nil {
		slogctx.Warn(ctx, "Failed to execute set command", "name", name, "error", err)
	}
}

func (s *Store) Remove(ctx context.Context, name string) {
	if err := s.valkey.Do(ctx, s.valkey.B().Del().Key(s.key(name)).Build()).Error(); err != nil {
		slogctx.Warn(ctx, "Failed to execute del command", "name", name, "error", err)
	}
}

func (s *Store) Names(ctx context.Context) []string {
	names, err := s.scan(ctx)
	if err != nil {
		slogctx.Warn(ctx, "Failed to list cookies", "error", err)
		return nil
	}

	return names
}

func (s *Store) scan(ctx context.Context) ([]string, error) {
	keyPrefix := s.key("")

	var names []string
	var cursor uint64
	for {
		scan, err := s.valkey.Do(ctx, s.valkey.B().Scan().Cursor(cursor).Match(keyPrefix+"*").Count(100).Build()).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("executing scan command: %w", err)
		}

		cursor = scan.Cursor
		names = slices.Grow(names, len(scan.Elements))
		for _, key := range scan.Elements {
			names = append(names, strings.TrimPrefix(key, keyPrefix))
		}

		if cursor == 0 {
			slices.Sort(names)
			return slices.Compact(names), nil
		}
	}
}

func (s *Store) key(name string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, objectType, name)
}
