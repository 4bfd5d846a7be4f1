package backendtest

import (
	"net/http"
	"testing"

	"github.com/seaneb/seaneb-auth/pkg/apiclient"
	"github.com/seaneb/seaneb-auth/pkg/bootstrap"
	"github.com/seaneb/seaneb-auth/pkg/cookiejar"
	"github.com/seaneb/seaneb-auth/pkg/product"
	"github.com/seaneb/seaneb-auth/pkg/session"
)

// Harness is a client wired against a Backend the same way the CLI wires it.
type Harness struct {
	Store     cookiejar.Store
	Local     cookiejar.Store
	Holder    *session.Holder
	Products  *product.Context
	Recoverer *bootstrap.Recoverer
	Client    *apiclient.Client
}

type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	store      cookiejar.Store
	product    product.Config
	holderOpts []session.Option
	clientOpts []apiclient.Option
}

func WithStore(store cookiejar.Store) HarnessOption {
	return func(c *harnessConfig) {
		c.store = store
	}
}

func WithProductConfig(cfg product.Config) HarnessOption {
	return func(c *harnessConfig) {
		c.product = cfg
	}
}

func WithHolderOptions(opts ...session.Option) HarnessOption {
	return func(c *harnessConfig) {
		c.holderOpts = append(c.holderOpts, opts...)
	}
}

func WithClientOptions(opts ...apiclient.Option) HarnessOption {
	return func(c *harnessConfig) {
		c.clientOpts = append(c.clientOpts, opts...)
	}
}

// NewHarness builds a client for b. The default product key is "property".
func NewHarness(t testing.TB, b *Backend, opts ...HarnessOption) *Harness {
	t.Helper()

	cfg := harnessConfig{
		store: cookiejar.NewMemory(),
		product: product.Config{
			DefaultKey:   "property",
			DefaultName:  "Property",
			FallbackKeys: []string{"property", "seaneb"},
			LegacyKeys:   []string{"dummy pro", "dummy-pro", "dummy_pro"},
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	httpClient := &http.Client{Jar: cookiejar.NewJar(cfg.store)}
	local := cookiejar.NewMemory()
	holder := session.NewHolder(cfg.store, cfg.holderOpts...)
	products := product.New(cfg.store, local, cfg.product)

	recoverer, err := bootstrap.New(b.URL, holder, products, httpClient)
	if err != nil {
		t.Fatalf("creating recoverer: %v", err)
	}

	client, err := apiclient.New(b.URL, holder, recoverer,
		append([]apiclient.Option{apiclient.WithHTTPClient(httpClient)}, cfg.clientOpts...)...)
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	return &Harness{
		Store:     cfg.store,
		Local:     local,
		Holder:    holder,
		Products:  products,
		Recoverer: recoverer,
		Client:    client,
	}
}

// Login creates a backend session and hands its tokens to the client, as a
// completed OTP verification would.
func (h *Harness) Login(t testing.TB, b *Backend, mobile string) session.Tokens {
	t.Helper()

	tokens := b.Login(t, h.Store, mobile)
	h.Holder.SetSession(t.Context(), session.Tokens{
		AccessToken: tokens.AccessToken,
		CSRFToken:   tokens.CSRFToken,
	})

	return tokens
}
