package business

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/valkey-io/valkey-go"

	slogctx "github.com/veqryn/slog-context"

	"github.com/seaneb/seaneb-auth/internal/config"
	"github.com/seaneb/seaneb-auth/pkg/account"
	"github.com/seaneb/seaneb-auth/pkg/apiclient"
	"github.com/seaneb/seaneb-auth/pkg/bootstrap"
	"github.com/seaneb/seaneb-auth/pkg/catalog"
	"github.com/seaneb/seaneb-auth/pkg/cookiejar"
	"github.com/seaneb/seaneb-auth/pkg/merchant"
	"github.com/seaneb/seaneb-auth/pkg/otp"
	"github.com/seaneb/seaneb-auth/pkg/product"
	"github.com/seaneb/seaneb-auth/pkg/session"

	cookievalkey "github.com/seaneb/seaneb-auth/pkg/cookiejar/valkey"
)

const (
	defaultCookieFile = ".seaneb-auth/cookies.json"
)

// Client is the fully wired client of one user: the stores, the session
// holder, the request pipeline and the services on top of it.
type Client struct {
	Store    cookiejar.Store
	Holder   *session.Holder
	Products *product.Context
	API      *apiclient.Client

	OTP      *otp.Service
	Account  *account.Service
	Merchant *merchant.Service
	Catalog  *catalog.Service

	closeFns []func()
}

// NewClient opens the configured stores and wires the services. Close must be
// called once the client is no longer used.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	c := &Client{}

	store, closeFn, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening cookie store: %w", err)
	}
	c.onClose(closeFn)

	local, err := openLocal(ctx, cfg.Storage.LocalPath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("opening local storage: %w", err)
	}

	if err := c.wire(cfg, store, local); err != nil {
		c.Close()
		return nil, err
	}

	slogctx.Debug(ctx, "Client ready", "backend", cfg.Backend.BaseURL, "storage", cfg.Storage.Type)

	return c, nil
}

func (c *Client) wire(cfg *config.Config, store, local cookiejar.Store) error {
	httpClient := &http.Client{Jar: cookiejar.NewJar(store)}

	c.Store = store
	c.Holder = session.NewHolder(store, session.WithTTLs(cfg.Session.TTLs()))
	c.Products = product.New(store, local, cfg.Product.ProductConfig())

	recoverer, err := bootstrap.New(cfg.Backend.BaseURL, c.Holder, c.Products, httpClient)
	if err != nil {
		return fmt.Errorf("creating recoverer: %w", err)
	}

	opts := []apiclient.Option{apiclient.WithHTTPClient(httpClient)}
	if cfg.Backend.Timeout > 0 {
		opts = append(opts, apiclient.WithTimeout(cfg.Backend.Timeout))
	}
	if cfg.Backend.PublicTimeout > 0 {
		opts = append(opts, apiclient.WithPublicTimeout(cfg.Backend.PublicTimeout))
	}
	if cfg.Session.RefreshMargin > 0 {
		opts = append(opts, apiclient.WithRefreshMargin(cfg.Session.RefreshMargin))
	}

	c.API, err = apiclient.New(cfg.Backend.BaseURL, c.Holder, recoverer, opts...)
	if err != nil {
		return fmt.Errorf("creating api client: %w", err)
	}

	c.Catalog = catalog.New(c.API, c.Products)
	c.OTP = otp.New(c.API, c.Products, c.Catalog)
	c.Account = account.New(c.API, c.Products)
	c.Merchant = merchant.New(c.API, c.Products, c.Catalog)

	return nil
}

func (c *Client) onClose(fn func()) {
	if fn != nil {
		c.closeFns = append(c.closeFns, fn)
	}
}

// Close releases the stores in reverse order of opening.
func (c *Client) Close() {
	for i := len(c.closeFns) - 1; i >= 0; i-- {
		c.closeFns[i]()
	}
	c.closeFns = nil
}

func openStore(ctx context.Context, cfg config.Storage) (cookiejar.Store, func(), error) {
	switch cfg.Type {
	case config.StorageMemory:
		return cookiejar.NewMemory(), nil, nil
	case config.StorageFile, "":
		path, err := cookieFile(cfg.Path)
		if err != nil {
			return nil, nil, err
		}

		store, err := cookiejar.OpenFile(ctx, path)
		if err != nil {
			return nil, nil, err
		}

		return store, nil, nil
	case config.StorageValkey:
		opts, err := config.MakeValkeyOptions(cfg.ValKey)
		if err != nil {
			return nil, nil, err
		}

		valkeyClient, err := valkey.NewClient(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("creating a new valkey client: %w", err)
		}

		return cookievalkey.New(valkeyClient, cfg.ValKey.Prefix), valkeyClient.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

func openLocal(ctx context.Context, path string) (cookiejar.Store, error) {
	if path == "" {
		return cookiejar.NewMemory(), nil
	}

	return cookiejar.OpenFile(ctx, path)
}

func cookieFile(path string) (string, error) {
	if path != "" {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Join(errors.New("no cookie file configured"), err)
	}

	return filepath.Join(home, defaultCookieFile), nil
}
