// Package merchant registers businesses and their branches and verifies their
// tax identifiers. Business calls carry the product key in the x-product-key
// header and recover from expired sessions and unknown products on their own.
package merchant

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/seaneb/seaneb-auth/internal/serviceerr"
	"github.com/seaneb/seaneb-auth/pkg/apiclient"
	"github.com/seaneb/seaneb-auth/pkg/product"
	"github.com/seaneb/seaneb-auth/pkg/session"
)

const (
	headerProductKey = "x-product-key"

	msgSessionExpired = "Session expired. Please login again."
)

var (
	panPattern   = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
)

// Catalog is the part of the catalog the business flows rely on.
type Catalog interface {
	EnsureProduct(ctx context.Context) error
	ResolveMainCategoryID(ctx context.Context) (string, error)
}

type Service struct {
	client   *apiclient.Client
	public   *apiclient.Client
	holder   *session.Holder
	products *product.Context
	catalog  Catalog
}

// New creates the service. catalog may be nil; unknown products are then not
// provisioned and the main category is never looked up.
func New(client *apiclient.Client, products *product.Context, catalog Catalog) *Service {
	return &Service{
		client:   client,
		public:   client.Public(),
		holder:   client.Holder(),
		products: products,
		catalog:  catalog,
	}
}

// withRecovery runs fn and retries it once when the session needs another
// refresh or the backend does not know the product.
func (s *Service) withRecovery(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}

	switch {
	case apiclient.IsSessionExpired(err) || serviceerr.IsUnauthorized(err):
		slogctx.Info(ctx, "Business request unauthorized, forcing bootstrap", "error", err)

		_, rerr := s.client.Refresh(ctx)
		if rerr == nil && s.holder.AccessToken(ctx) != "" {
			return fn()
		}

		cause := rerr
		if cause == nil {
			cause = serviceerr.ErrSessionExpired
		}
		slogctx.Warn(ctx, "Business session could not be recovered", "error", cause)

		return &serviceerr.UserError{Message: msgSessionExpired, Err: errors.Join(err, cause)}

	case serviceerr.IsInvalidProduct(err) && s.catalog != nil:
		slogctx.Info(ctx, "Business request rejected the product, ensuring it exists", "error", err)

		if perr := s.catalog.EnsureProduct(ctx); perr != nil {
			slogctx.Warn(ctx, "Ensuring product failed", "error", perr)
		}

		return fn()
	}

	return err
}

// send posts body with the product key header through the recovery wrapper.
func (s *Service) send(ctx context.Context, client *apiclient.Client, method, path, productKey string, query url.Values, body any) (*apiclient.Response, error) {
	var resp *apiclient.Response
	err := s.withRecovery(ctx, func() error {
		var err error
		resp, err = client.Do(ctx, apiclient.Request{
			Method: method,
			Path:   path,
			Query:  query,
			Header: http.Header{headerProductKey: {productKey}},
			Body:   body,
		})
		return err
	})

	return resp, err
}

func (s *Service) productKey(ctx context.Context, requested string) string {
	if key := strings.TrimSpace(requested); key != "" {
		return key
	}
	return s.products.Key(ctx)
}

// NormalizePAN upper-cases pan and reports whether it looks like AAAAA9999A.
func NormalizePAN(pan string) (string, bool) {
	pan = strings.ToUpper(strings.TrimSpace(pan))
	return pan, panPattern.MatchString(pan)
}

// NormalizeGSTIN upper-cases gstin and reports whether it is a well-formed
// 15 character GSTIN.
func NormalizeGSTIN(gstin string) (string, bool) {
	gstin = strings.ToUpper(strings.TrimSpace(gstin))
	return gstin, gstinPattern.MatchString(gstin)
}
