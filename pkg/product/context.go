// Package product tracks which product key the backend should see on
// product-scoped calls. A key that worked once is remembered and reused.
package product

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/seaneb/seaneb-auth/pkg/cookiejar"
	"github.com/seaneb/seaneb-auth/pkg/session"
)

const (
	localKeyName = "product_key"

	cookieMaxAge = 30 * 24 * time.Hour
	// localMaxAge stands in for local storage, which never expires on its own.
	localMaxAge = 10 * 365 * 24 * time.Hour
)

type Config struct {
	DefaultKey   string
	DefaultName  string
	FallbackKeys []string
	LegacyKeys   []string
}

// Context is the product context of one client. It is safe for concurrent use.
type Context struct {
	cookies cookiejar.Store
	local   cookiejar.Store
	cfg     Config

	mu  sync.Mutex
	key string
}

// New creates the context. local mirrors the key the way browser local storage
// did; it may be nil.
func New(cookies, local cookiejar.Store, cfg Config) *Context {
	legacy := make([]string, 0, len(cfg.LegacyKeys))
	for _, key := range cfg.LegacyKeys {
		legacy = append(legacy, normalize(key))
	}
	cfg.LegacyKeys = legacy

	return &Context{
		cookies: cookies,
		local:   local,
		cfg:     cfg,
	}
}

// Key returns the working product key: memory, then the cookie, then the local
// mirror, then the configured default. Legacy keys are discarded on the way.
func (c *Context) Key(ctx context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.storedLocked(ctx)
	if key == "" {
		key = c.cfg.DefaultKey
	}
	// keep storage consistent so an old key never resurfaces
	c.syncLocked(ctx, key)

	return key
}

func (c *Context) Name() string {
	return c.cfg.DefaultName
}

// SetDefault remembers key as the working product key. Empty and legacy keys are ignored.
func (c *Context) SetDefault(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setLocked(ctx, key)
}

// Candidates lists the keys to try when the working key is unknown to the
// backend: the current key, then the configured fallbacks.
func (c *Context) Candidates(ctx context.Context) []string {
	return Candidates(c.Key(ctx), c.cfg.FallbackKeys...)
}

// Reset forgets the working key.
func (c *Context) Reset(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.key = ""
	c.cookies.Remove(ctx, session.CookieProductKey)
	if c.local != nil {
		c.local.Remove(ctx, localKeyName)
	}
}

func (c *Context) IsLegacy(key string) bool {
	return slices.Contains(c.cfg.LegacyKeys, normalize(key))
}

func (c *Context) storedLocked(ctx context.Context) string {
	if c.key != "" {
		if !c.IsLegacy(c.key) {
			return c.key
		}
		c.key = ""
	}

	if key, ok := c.cookies.Get(ctx, session.CookieProductKey); ok {
		if key = strings.TrimSpace(key); key != "" && !c.IsLegacy(key) {
			c.key = key
			return key
		}
	}

	if c.local != nil {
		if key, ok := c.local.Get(ctx, localKeyName); ok {
			if key = strings.TrimSpace(key); key != "" && !c.IsLegacy(key) {
				c.key = key
				return key
			}
		}
	}

	return ""
}

// syncLocked writes key only where the stored value differs from it.
func (c *Context) syncLocked(ctx context.Context, key string) {
	if key == "" || c.IsLegacy(key) {
		return
	}

	c.key = key
	if v, ok := c.cookies.Get(ctx, session.CookieProductKey); !ok || v != key {
		c.cookies.Set(ctx, session.CookieProductKey, key, cookiejar.Options{MaxAge: cookieMaxAge})
	}
	if c.local == nil {
		return
	}
	if v, ok := c.local.Get(ctx, localKeyName); !ok || v != key {
		c.local.Set(ctx, localKeyName, key, cookiejar.Options{MaxAge: localMaxAge})
	}
}

func (c *Context) setLocked(ctx context.Context, key string) {
	key = strings.TrimSpace(key)
	if key == "" || c.IsLegacy(key) {
		return
	}

	if key != c.key {
		slogctx.Debug(ctx, "Product key changed", "product_key", key)
	}

	c.key = key
	c.cookies.Set(ctx, session.CookieProductKey, key, cookiejar.Options{MaxAge: cookieMaxAge})
	if c.local != nil {
		c.local.Set(ctx, localKeyName, key, cookiejar.Options{MaxAge: localMaxAge})
	}
}

// Candidates returns first followed by fallbacks, trimmed, without empties and duplicates.
func Candidates(first string, fallbacks ...string) []string {
	keys := make([]string, 0, len(fallbacks)+1)
	for _, key := range append([]string{first}, fallbacks...) {
		key = strings.TrimSpace(key)
		if key == "" || slices.Contains(keys, key) {
			continue
		}
		keys = append(keys, key)
	}

	return keys
}

func normalize(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
