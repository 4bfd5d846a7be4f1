package cookiejar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	slogctx "github.com/veqryn/slog-context"
)

const cleanupInterval = time.Minute

// Memory is an in-process Store. When opened with OpenFile it also writes its
// content to disk after every mutation.
type Memory struct {
	items *cache.Cache

	// path is empty for a purely in-memory store.
	path   string
	saveMu sync.Mutex
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{items: cache.New(cache.NoExpiration, cleanupInterval)}
}

// OpenFile returns a Memory store backed by the file at path. A missing file is
// an empty store; a corrupt one is logged and replaced on the next write.
func OpenFile(ctx context.Context, path string) (*Memory, error) {
	m := &Memory{path: path}

	items, err := readFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		items = map[string]cache.Item{}
	case errors.As(err, new(*json.SyntaxError)), errors.As(err, new(*json.UnmarshalTypeError)):
		slogctx.Warn(ctx, "Discarding corrupt cookie file", "path", path, "error", err)
		items = map[string]cache.Item{}
	case err != nil:
		return nil, fmt.Errorf("reading cookie file: %w", err)
	}

	m.items = cache.NewFrom(cache.NoExpiration, cleanupInterval, items)

	return m, nil
}

func (m *Memory) Get(_ context.Context, name string) (string, bool) {
	v, ok := m.items.Get(name)
	if !ok {
		return "", false
	}

	s, ok := v.(string)
	return s, ok
}

func (m *Memory) Set(ctx context.Context, name, value string, opts Options) {
	if opts.MaxAge <= 0 {
		m.Remove(ctx, name)
		return
	}

	m.items.Set(name, value, opts.MaxAge)
	m.save(ctx)
}

func (m *Memory) Remove(ctx context.Context, name string) {
	m.items.Delete(name)
	m.save(ctx)
}

func (m *Memory) Names(_ context.Context) []string {
	items := m.items.Items()

	names := make([]string, 0, len(items))
	for name := range items {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}

func (m *Memory) save(ctx context.Context) {
	if m.path == "" {
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	if err := writeFile(m.path, m.items.Items()); err != nil {
		slogctx.Warn(ctx, "Failed to persist cookies", "path", m.path, "error", err)
	}
}

func readFile(path string) (map[string]cache.Item, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var items map[string]cache.Item
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, err
	}

	now := time.Now().UnixNano()
	for name, item := range items {
		if _, ok := item.Object.(string); !ok || (item.Expiration > 0 && item.Expiration <= now) {
			delete(items, name)
		}
	}

	return items, nil
}

// writeFile replaces the file atomically so a crash never leaves half a jar behind.
func writeFile(path string, items map[string]cache.Item) error {
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshaling cookies: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}
