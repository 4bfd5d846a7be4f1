// Package bootstrap obtains a fresh access token from the refresh endpoint,
// trying each candidate product key in turn. It is the only code that talks to
// /auth/refresh; the request pipeline calls it through the shared refresh.
package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	slogctx "github.com/veqryn/slog-context"

	"github.com/seaneb/seaneb-auth/internal/serviceerr"
	"github.com/seaneb/seaneb-auth/pkg/product"
	"github.com/seaneb/seaneb-auth/pkg/session"
)

const refreshPath = "/auth/refresh"

type Recoverer struct {
	holder     *session.Holder
	products   *product.Context
	http       *http.Client
	refreshURL string
	tracer     trace.Tracer
}

// New creates a Recoverer. httpClient should carry the cookie jar so the
// HttpOnly refresh cookie is sent along.
func New(baseURL string, holder *session.Holder, products *product.Context, httpClient *http.Client) (*Recoverer, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Recoverer{
		holder:     holder,
		products:   products,
		http:       httpClient,
		refreshURL: u.JoinPath(refreshPath).String(),
		tracer:     otel.Tracer("github.com/seaneb/seaneb-auth/pkg/bootstrap"),
	}, nil
}

// Refresh always asks the backend for a new access token.
func (r *Recoverer) Refresh(ctx context.Context) (string, error) {
	return r.Bootstrap(ctx, true)
}

// Bootstrap returns the current access token, or obtains a new one when there
// is none or force is set. Failures are *serviceerr.RecoveryError.
func (r *Recoverer) Bootstrap(ctx context.Context, force bool) (string, error) {
	if token := r.holder.AccessToken(ctx); token != "" && !force {
		return token, nil
	}

	ctx, span := r.tracer.Start(ctx, "bootstrap", trace.WithAttributes(attribute.Bool("force", force)))
	defer span.End()

	token, err := r.bootstrap(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bootstrap failed")
		return "", err
	}

	return token, nil
}

func (r *Recoverer) bootstrap(ctx context.Context) (string, error) {
	csrf := r.csrfToken(ctx)
	if csrf == "" {
		slogctx.Warn(ctx, "No CSRF token available, cannot refresh")
		return "", &serviceerr.RecoveryError{Err: serviceerr.ErrCSRFMissing}
	}
	refreshToken := r.holder.RefreshToken(ctx)
	workingKey := r.products.Key(ctx)
	candidates := r.products.Candidates(ctx)

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Int("candidates", len(candidates)))

	var lastErr error
	for _, key := range candidates {
		res, err := r.attempt(ctx, key, csrf, refreshToken)
		if err == nil {
			span.AddEvent("attempt", trace.WithAttributes(attribute.String("product_key", key), attribute.Bool("ok", true)))

			r.holder.SetAccessToken(ctx, res.AccessToken)
			if res.CSRFToken != "" {
				r.holder.SetCSRFToken(ctx, res.CSRFToken)
			}
			if key != workingKey {
				r.products.SetDefault(ctx, key)
			}
			slogctx.Info(ctx, "Access token recovered", "product_key", key)

			return res.AccessToken, nil
		}

		span.AddEvent("attempt", trace.WithAttributes(
			attribute.String("product_key", key),
			attribute.Bool("ok", false),
			attribute.Int("status", serviceerr.Status(err)),
		))
		lastErr = err

		if errors.Is(err, serviceerr.ErrNoAccessToken) ||
			serviceerr.IsSessionWindowEnded(err) ||
			!serviceerr.IsRetryableRefresh(err) {
			slogctx.Warn(ctx, "Refresh failed, not trying other product keys", "product_key", key, "error", err)
			return "", &serviceerr.RecoveryError{Err: err}
		}
		slogctx.Debug(ctx, "Refresh rejected, trying next product key", "product_key", key, "error", err)
	}

	if lastErr == nil {
		lastErr = serviceerr.ErrAllStrategiesFailed
	}

	return "", &serviceerr.RecoveryError{Err: lastErr}
}

// csrfToken reads the holder first, then every cookie spelling the backend has
// been seen to use. A token found in a cookie is promoted into the holder.
func (r *Recoverer) csrfToken(ctx context.Context) string {
	if csrf := r.holder.CSRFToken(ctx); csrf != "" {
		return csrf
	}

	store := r.holder.Store()
	for _, name := range session.CSRFCookies {
		if csrf, ok := store.Get(ctx, name); ok && csrf != "" {
			r.holder.SetCSRFToken(ctx, csrf)
			return csrf
		}
	}

	return ""
}

type refreshRequest struct {
	ProductKey   string `json:"product_key"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
	CSRFToken   string `json:"csrf_token"`
}

func (r *Recoverer) attempt(ctx context.Context, productKey, csrf, refreshToken string) (*refreshResponse, error) {
	body, err := json.Marshal(refreshRequest{ProductKey: productKey, RefreshToken: refreshToken})
	if err != nil {
		return nil, fmt.Errorf("encoding refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.refreshURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(session.HeaderCSRFToken, csrf)

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending refresh request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading refresh response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, serviceerr.NewAPIError(resp.StatusCode, respBody)
	}

	var res refreshResponse
	if err := json.Unmarshal(respBody, &res); err != nil {
		return nil, fmt.Errorf("decoding refresh response: %w", err)
	}
	if res.AccessToken == "" {
		return nil, serviceerr.ErrNoAccessToken
	}
	if res.CSRFToken == "" {
		res.CSRFToken = resp.Header.Get(session.HeaderCSRFToken)
	}
	if res.CSRFToken == "" {
		res.CSRFToken = resp.Header.Get(session.HeaderCSRFTokenAlt)
	}

	return &res, nil
}
