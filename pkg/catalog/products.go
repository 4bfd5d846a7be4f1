// Package catalog reads the product, category and city listings of the backend.
package catalog

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/seaneb/seaneb-auth/internal/serviceerr"
	"github.com/seaneb/seaneb-auth/pkg/apiclient"
	"github.com/seaneb/seaneb-auth/pkg/product"
)

var productPaths = []string{"", "data", "products"}

type Product struct {
	ID   string `mapstructure:"product_id" json:"product_id"`
	Key  string `mapstructure:"product_key" json:"product_key"`
	Name string `mapstructure:"product_name" json:"product_name"`
}

type productRow struct {
	Product `mapstructure:",squash"`

	AltID string `mapstructure:"id"`
}

type Service struct {
	client   *apiclient.Client
	public   *apiclient.Client
	products *product.Context
}

func New(client *apiclient.Client, products *product.Context) *Service {
	return &Service{
		client:   client,
		public:   client.Public(),
		products: products,
	}
}

// List returns the products visible to the logged in user. When there are
// none the default product is created first. The first product becomes the
// working product. Without a session the list is empty.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	if s.client.Holder().AccessToken(ctx) == "" {
		slogctx.Warn(ctx, "No access token, not listing products")
		return []Product{}, nil
	}

	query := url.Values{"product_key": {s.products.Key(ctx)}}

	list, err := s.fetch(ctx, s.client, "/products", query)
	if err != nil {
		return nil, err
	}

	if len(list) == 0 {
		if err := s.EnsureProduct(ctx); err != nil {
			slogctx.Warn(ctx, "Creating default product failed", "error", err)
		} else if list, err = s.fetch(ctx, s.client, "/products", query); err != nil {
			return nil, err
		}
	}

	if len(list) > 0 {
		s.products.SetDefault(ctx, list[0].Key)
	}

	return list, nil
}

// EnsureProduct creates the working product on the backend. An existing
// product is not an error.
func (s *Service) EnsureProduct(ctx context.Context) error {
	key := s.products.Key(ctx)

	_, err := s.client.Post(ctx, "/products", map[string]string{
		"product_key":  key,
		"product_name": s.products.Name(),
	}, nil)
	if serviceerr.IsConflict(err) {
		slogctx.Debug(ctx, "Product already exists", "product_key", key)
		return nil
	}
	if err != nil {
		return err
	}

	slogctx.Info(ctx, "Product created", "product_key", key)

	return nil
}

// ListPublic lists the active products without a session.
func (s *Service) ListPublic(ctx context.Context) ([]Product, error) {
	return s.fetch(ctx, s.public, "/products", url.Values{"product_key": {s.products.Key(ctx)}})
}

func (s *Service) GetPublic(ctx context.Context, id string) (*Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, serviceerr.Invalid("product_id", "Product ID is required")
	}

	resp, err := s.public.Do(ctx, apiclient.Request{
		Method: http.MethodGet,
		Path:   "/products/" + url.PathEscape(id),
		Query:  url.Values{"product_key": {s.products.Key(ctx)}},
	})
	if err != nil {
		return nil, err
	}

	var row map[string]any
	if err := resp.Decode(&row); err != nil {
		return nil, err
	}

	list, err := toProducts([]map[string]any{row})
	if err != nil {
		return nil, err
	}

	return &list[0], nil
}

func (s *Service) SearchPublic(ctx context.Context, query string) ([]Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, serviceerr.Invalid("query", "Search query is required")
	}

	return s.fetch(ctx, s.public, "/products/search", url.Values{
		"query":       {query},
		"product_key": {s.products.Key(ctx)},
	})
}

func (s *Service) fetch(ctx context.Context, client *apiclient.Client, path string, query url.Values) ([]Product, error) {
	resp, err := client.Get(ctx, path, query, nil)
	if err != nil {
		return nil, err
	}

	return toProducts(resp.Rows(productPaths...))
}

func toProducts(rows []map[string]any) ([]Product, error) {
	decoded, err := apiclient.DecodeRows[productRow](rows)
	if err != nil {
		return nil, err
	}

	list := make([]Product, 0, len(decoded))
	for _, row := range decoded {
		if row.ID == "" {
			row.ID = row.AltID
		}
		list = append(list, row.Product)
	}

	return list, nil
}
