package product_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/seaneb/seaneb-auth/pkg/cookiejar"
	"github.com/seaneb/seaneb-auth/pkg/product"
	"github.com/seaneb/seaneb-auth/pkg/session"
)

var testConfig = product.Config{
	DefaultKey:   "property",
	DefaultName:  "Property",
	FallbackKeys: []string{"property", "seaneb"},
	LegacyKeys:   []string{"Dummy Pro", "dummy-pro", "dummy_pro"},
}

func TestContext_Key(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		local  string
		want   string
	}{
		{name: "default when nothing stored", want: "property"},
		{name: "cookie wins", cookie: "homes", local: "cars", want: "homes"},
		{name: "local mirror", local: "cars", want: "cars"},
		{name: "legacy cookie is discarded", cookie: " dummy pro ", want: "property"},
		{name: "legacy cookie falls through to local", cookie: "dummy_pro", local: "cars", want: "cars"},
		{name: "blank cookie", cookie: "   ", want: "property"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := t.Context()
			cookies := cookiejar.NewMemory()
			local := cookiejar.NewMemory()
			if tt.cookie != "" {
				cookies.Set(ctx, session.CookieProductKey, tt.cookie, cookiejar.Options{MaxAge: time.Hour})
			}
			if tt.local != "" {
				local.Set(ctx, "product_key", tt.local, cookiejar.Options{MaxAge: time.Hour})
			}

			pc := product.New(cookies, local, testConfig)

			assert.Equal(t, tt.want, pc.Key(ctx))

			stored, _ := cookies.Get(ctx, session.CookieProductKey)
			assert.Equal(t, tt.want, stored, "the working key is written back")
		})
	}
}

func TestContext_SetDefault(t *testing.T) {
	ctx := t.Context()
	cookies := cookiejar.NewMemory()
	local := cookiejar.NewMemory()
	pc := product.New(cookies, local, testConfig)

	pc.SetDefault(ctx, "  seaneb ")
	assert.Equal(t, "seaneb", pc.Key(ctx))

	pc.SetDefault(ctx, "dummy-pro")
	assert.Equal(t, "seaneb", pc.Key(ctx), "legacy keys are never stored")

	pc.SetDefault(ctx, "")
	assert.Equal(t, "seaneb", pc.Key(ctx))

	got, _ := local.Get(ctx, "product_key")
	assert.Equal(t, "seaneb", got)

	reloaded := product.New(cookies, nil, testConfig)
	assert.Equal(t, "seaneb", reloaded.Key(ctx))
}

func TestContext_Reset(t *testing.T) {
	ctx := t.Context()
	cookies := cookiejar.NewMemory()
	pc := product.New(cookies, nil, testConfig)
	pc.SetDefault(ctx, "homes")

	pc.Reset(ctx)

	_, ok := cookies.Get(ctx, session.CookieProductKey)
	assert.False(t, ok)
	assert.Equal(t, "property", pc.Key(ctx))
}

func TestCandidates(t *testing.T) {
	tests := []struct {
		name      string
		first     string
		fallbacks []string
		want      []string
	}{
		{name: "default configuration", first: "property", fallbacks: []string{"property", "seaneb"}, want: []string{"property", "seaneb"}},
		{name: "custom key first", first: "homes", fallbacks: []string{"property", "seaneb"}, want: []string{"homes", "property", "seaneb"}},
		{name: "trimmed and empties dropped", first: " ", fallbacks: []string{" a ", "", "a", "b"}, want: []string{"a", "b"}},
		{name: "nothing", first: "", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, product.Candidates(tt.first, tt.fallbacks...))
		})
	}
}

func TestContext_Candidates(t *testing.T) {
	ctx := t.Context()
	pc := product.New(cookiejar.NewMemory(), nil, testConfig)
	pc.SetDefault(ctx, "seaneb")

	assert.Equal(t, []string{"seaneb", "property"}, pc.Candidates(ctx))
	assert.Equal(t, "Property", pc.Name())
}

type countingStore struct {
	cookiejar.Store
	sets int
}

func (s *countingStore) Set(ctx context.Context, name, value string, opts cookiejar.Options) {
	s.sets++
	s.Store.Set(ctx, name, value, opts)
}

func TestContext_KeyWritesOnlyOnChange(t *testing.T) {
	ctx := t.Context()
	cookies := &countingStore{Store: cookiejar.NewMemory()}
	local := &countingStore{Store: cookiejar.NewMemory()}
	pc := product.New(cookies, local, testConfig)

	assert.Equal(t, "property", pc.Key(ctx))
	assert.Equal(t, 1, cookies.sets)
	assert.Equal(t, 1, local.sets)

	for range 5 {
		assert.Equal(t, "property", pc.Key(ctx))
	}
	assert.Equal(t, 1, cookies.sets)
	assert.Equal(t, 1, local.sets)

	// another process replaced the cookie; the mirror follows once
	other := product.New(cookies, nil, testConfig)
	other.SetDefault(ctx, "homes")
	reloaded := product.New(cookies, local, testConfig)
	assert.Equal(t, "homes", reloaded.Key(ctx))
	assert.Equal(t, "homes", reloaded.Key(ctx))
	assert.Equal(t, 2, cookies.sets)
	assert.Equal(t, 2, local.sets)
}
