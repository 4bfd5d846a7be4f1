// Package apiclient is the request pipeline every backend call goes through. It
// attaches the session headers, harvests CSRF tokens from responses and turns a
// 401 into exactly one shared token refresh followed by a single retry.
package apiclient

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
	"time"

	"github.com/google/uuid"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	slogctx "github.com/veqryn/slog-context"

	"github.com/seaneb/seaneb-auth/internal/serviceerr"
	"github.com/seaneb/seaneb-auth/pkg/session"
)

const (
	refreshKey = "refresh"

	defaultTimeout       = 30 * time.Second
	defaultPublicTimeout = 5 * time.Second
)

// Refresher obtains a new access token, typically by calling the backend
// refresh endpoint with the CSRF token and the refresh cookie.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

type RefresherFunc func(ctx context.Context) (string, error)

func (f RefresherFunc) Refresh(ctx context.Context) (string, error) {
	return f(ctx)
}

type Client struct {
	baseURL   *url.URL
	http      *http.Client
	holder    *session.Holder
	refresher Refresher
	metrics   *metrics
	tracer    trace.Tracer

	timeout       time.Duration
	publicTimeout time.Duration
	refreshMargin time.Duration

	// refreshes is shared with the Public variant so there is a single flight per session.
	refreshes *singleflight.Group
	public    bool

	meterProvider metric.MeterProvider
}

type Option func(*Client)

// WithHTTPClient sets the transport. Its Jar, if any, carries the backend cookies.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.http = httpClient
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithPublicTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.publicTimeout = d
	}
}

// WithRefreshMargin enables the proactive refresh of access tokens that expire within d.
func WithRefreshMargin(d time.Duration) Option {
	return func(c *Client) {
		c.refreshMargin = d
	}
}

func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(c *Client) {
		c.meterProvider = provider
	}
}

func New(baseURL string, holder *session.Holder, refresher Refresher, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL:       u,
		http:          http.DefaultClient,
		holder:        holder,
		refresher:     refresher,
		timeout:       defaultTimeout,
		publicTimeout: defaultPublicTimeout,
		refreshes:     &singleflight.Group{},
		tracer:        otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.metrics, err = newMetrics(c.meterProvider)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Public returns a client for unauthenticated endpoints: no session headers,
// no refresh handling and the shorter public timeout.
func (c *Client) Public() *Client {
	public := *c
	public.public = true
	public.timeout = c.publicTimeout

	return &public
}

func (c *Client) Holder() *session.Holder {
	return c.holder
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Do sends the request. Non-2xx answers are returned as *serviceerr.APIError,
// a failed refresh as *serviceerr.SessionExpiredError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	ctx = slogctx.With(ctx,
		commoncfg.AttrRequestID, uuid.NewString(),
		"method", req.Method,
		"path", req.Path,
	)

	ctx, span := c.tracer.Start(ctx, req.Method+" "+req.Path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	if !c.public && c.refreshMargin > 0 && c.holder.NeedsRefresh(ctx, c.refreshMargin) {
		slogctx.Debug(ctx, "Access token about to expire, refreshing before sending")
		if _, err := c.refresh(ctx); err != nil {
			span.SetStatus(codes.Error, "proactive refresh failed")
			return nil, err
		}
	}

	resp, err := c.send(ctx, req, body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if resp.Status == http.StatusUnauthorized && !c.public {
		slogctx.Info(ctx, "Access token rejected, joining refresh")

		if _, err := c.refresh(ctx); err != nil {
			span.SetStatus(codes.Error, "refresh failed")
			return nil, err
		}

		c.metrics.recordRetry(ctx)
		resp, err = c.send(ctx, req, body)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.Status))

	if resp.Status < 200 || resp.Status > 299 {
		apiErr := serviceerr.NewAPIError(resp.Status, resp.Body)
		slogctx.Debug(ctx, "Backend returned an error", "status", resp.Status, "code", apiErr.Code, "message", apiErr.Message)
		span.SetStatus(codes.Error, apiErr.Error())
		return resp, apiErr
	}

	if !c.public {
		c.holder.InitFromResponseHeaders(ctx, resp.Header)
	}

	return resp, nil
}

func (c *Client) send(ctx context.Context, req Request, body []byte) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u := c.baseURL.JoinPath(req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for name, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if !c.public {
		if token := c.holder.AccessToken(ctx); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		} else {
			slogctx.Debug(ctx, "No access token, sending without Authorization")
		}
		if csrf := c.holder.CSRFToken(ctx); csrf != "" {
			httpReq.Header.Set(session.HeaderCSRFToken, csrf)
		}
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.recordRequest(ctx, req.Method, 0, time.Since(start).Milliseconds())
		return nil, fmt.Errorf("sending %s %s: %w", req.Method, req.Path, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	c.metrics.recordRequest(ctx, req.Method, httpResp.StatusCode, time.Since(start).Milliseconds())
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   respBody,
	}, nil
}

// Refresh runs the shared refresh and returns the new access token.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	return c.refresh(ctx)
}

// refresh joins the in-flight refresh or starts one. The refresh itself is
// detached from the caller's cancellation; a cancelled caller only stops waiting.
func (c *Client) refresh(ctx context.Context) (string, error) {
	ch := c.refreshes.DoChan(refreshKey, func() (any, error) {
		rctx := context.WithoutCancel(ctx)

		token, err := c.refresher.Refresh(rctx)
		if err == nil && token == "" {
			err = serviceerr.ErrNoAccessToken
		}
		c.metrics.recordRefresh(rctx, err)

		if err != nil {
			windowEnded := serviceerr.IsSessionWindowEnded(err)
			slogctx.Warn(rctx, "Token refresh failed, clearing session", "error", err, "session_window_ended", windowEnded)
			c.holder.ClearAll(rctx)

			return "", &serviceerr.SessionExpiredError{Cause: err, WindowEnded: windowEnded}
		}

		c.holder.SetAccessToken(rctx, token)
		slogctx.Info(rctx, "Access token refreshed", "access_token_length", len(token))

		return token, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}

		return res.Val.(string), nil
	}
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}

	return b, nil
}

// IsSessionExpired reports whether err means the user has to log in again.
func IsSessionExpired(err error) bool {
	return errors.Is(err, serviceerr.ErrSessionExpired)
}
