// Package session keeps the authentication state of the client: access, refresh
// and CSRF tokens plus the session start time. Values live in memory and are
// mirrored into a cookie store so that they survive a restart.
package session

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/seaneb/seaneb-auth/pkg/cookiejar"
)

type Holder struct {
	mu    sync.Mutex
	store cookiejar.Store
	ttls  TTLs
	now   func() time.Time

	accessToken  string
	refreshToken string
	csrfToken    string
}

type Option func(*Holder)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(h *Holder) {
		h.now = now
	}
}

func WithTTLs(ttls TTLs) Option {
	return func(h *Holder) {
		h.ttls = ttls
	}
}

func NewHolder(store cookiejar.Store, opts ...Option) *Holder {
	h := &Holder{
		store: store,
		ttls:  DefaultTTLs(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Store returns the cookie store the holder writes to.
func (h *Holder) Store() cookiejar.Store {
	return h.store
}

func (h *Holder) Now() time.Time {
	return h.now()
}

// AccessToken returns the access token from memory, falling back to the cookie.
func (h *Holder) AccessToken(ctx context.Context) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.accessTokenLocked(ctx)
}

func (h *Holder) accessTokenLocked(ctx context.Context) string {
	if h.accessToken != "" {
		return h.accessToken
	}

	if token, ok := h.store.Get(ctx, CookieAccessToken); ok && token != "" {
		h.accessToken = token
	}

	return h.accessToken
}

// SetAccessToken stores the token and its issue time. An empty token clears both.
func (h *Holder) SetAccessToken(ctx context.Context, token string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.setAccessTokenLocked(ctx, token)
}

func (h *Holder) setAccessTokenLocked(ctx context.Context, token string) {
	h.accessToken = token
	if token == "" {
		cookiejar.RemoveAll(ctx, h.store, CookieAccessToken, CookieAccessTokenIssuedTime)
		return
	}

	opts := cookiejar.Options{MaxAge: h.ttls.AccessToken}
	h.store.Set(ctx, CookieAccessToken, token, opts)
	h.store.Set(ctx, CookieAccessTokenIssuedTime, formatMillis(h.now()), opts)
}

func (h *Holder) AccessTokenIssuedAt(ctx context.Context) (time.Time, bool) {
	return h.readMillis(ctx, CookieAccessTokenIssuedTime)
}

// AccessTokenExpiresAt returns the earlier of issue time plus the access token
// lifetime and the exp claim of the token when it is a JWT.
func (h *Holder) AccessTokenExpiresAt(ctx context.Context) (time.Time, bool) {
	token := h.AccessToken(ctx)
	if token == "" {
		return time.Time{}, false
	}

	var expiresAt time.Time
	if issuedAt, ok := h.AccessTokenIssuedAt(ctx); ok {
		expiresAt = issuedAt.Add(h.ttls.AccessToken)
	}
	if exp, ok := tokenExpiry(token); ok && (expiresAt.IsZero() || exp.Before(expiresAt)) {
		expiresAt = exp
	}

	return expiresAt, !expiresAt.IsZero()
}

// NeedsRefresh reports whether the access token is present and expires within margin.
func (h *Holder) NeedsRefresh(ctx context.Context, margin time.Duration) bool {
	expiresAt, ok := h.AccessTokenExpiresAt(ctx)
	if !ok {
		return false
	}

	return !h.now().Add(margin).Before(expiresAt)
}

// CSRFToken returns the CSRF token from memory, falling back to both cookie spellings.
func (h *Holder) CSRFToken(ctx context.Context) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.csrfToken != "" {
		return h.csrfToken
	}

	for _, name := range []string{CookieCSRFToken, CookieCSRFTokenDash} {
		if token, ok := h.store.Get(ctx, name); ok && token != "" {
			h.csrfToken = token
			break
		}
	}

	return h.csrfToken
}

func (h *Holder) SetCSRFToken(ctx context.Context, token string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.setCSRFTokenLocked(ctx, token)
}

func (h *Holder) setCSRFTokenLocked(ctx context.Context, token string) {
	h.csrfToken = token
	if token == "" {
		cookiejar.RemoveAll(ctx, h.store, CookieCSRFToken, CookieCSRFTokenDash)
		return
	}

	// The backend and its docs use both spellings.
	opts := cookiejar.Options{MaxAge: h.ttls.CSRFToken}
	h.store.Set(ctx, CookieCSRFToken, token, opts)
	h.store.Set(ctx, CookieCSRFTokenDash, token, opts)
}

// RefreshToken returns the readable refresh token, if the backend ever handed one
// out. The HttpOnly refresh cookie is never visible here.
func (h *Holder) RefreshToken(ctx context.Context) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.refreshToken != "" {
		return h.refreshToken
	}

	if token, ok := h.store.Get(ctx, CookieRefreshToken); ok && token != "" {
		h.refreshToken = token
	}

	return h.refreshToken
}

func (h *Holder) SetRefreshToken(ctx context.Context, token string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.setRefreshTokenLocked(ctx, token)
}

func (h *Holder) setRefreshTokenLocked(ctx context.Context, token string) {
	h.refreshToken = token
	if token == "" {
		h.store.Remove(ctx, CookieRefreshToken)
		return
	}

	h.store.Set(ctx, CookieRefreshToken, token, cookiejar.Options{MaxAge: h.ttls.RefreshToken})
}

func (h *Holder) SessionStartTime(ctx context.Context) (time.Time, bool) {
	return h.readMillis(ctx, CookieSessionStartTime)
}

// StartSession records now as the start of the session window.
func (h *Holder) StartSession(ctx context.Context) time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.startSessionLocked(ctx)
}

func (h *Holder) startSessionLocked(ctx context.Context) time.Time {
	now := h.now()
	h.store.Set(ctx, CookieSessionStartTime, formatMillis(now), cookiejar.Options{MaxAge: h.ttls.Session})

	return now
}

// SessionExpired reports whether a recorded session window has ended.
func (h *Holder) SessionExpired(ctx context.Context) bool {
	start, ok := h.SessionStartTime(ctx)
	if !ok {
		return false
	}

	return !h.now().Before(start.Add(h.ttls.Session))
}

// SetSession stores all three tokens and starts the session window. Empty
// tokens clear the corresponding value.
func (h *Holder) SetSession(ctx context.Context, tokens Tokens) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.setAccessTokenLocked(ctx, tokens.AccessToken)
	h.setRefreshTokenLocked(ctx, tokens.RefreshToken)
	h.setCSRFTokenLocked(ctx, tokens.CSRFToken)
	h.startSessionLocked(ctx)

	slogctx.Debug(ctx, "Session started", "access_token_length", len(tokens.AccessToken))
}

// ClearAll ends the session: memory and every session cookie are wiped.
func (h *Holder) ClearAll(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.accessToken = ""
	h.refreshToken = ""
	h.csrfToken = ""
	cookiejar.RemoveAll(ctx, h.store, SessionCookies...)

	slogctx.Info(ctx, "Session cleared")
}

// InitFromResponseHeaders stores the CSRF token found in a response, if any.
func (h *Holder) InitFromResponseHeaders(ctx context.Context, header http.Header) {
	if header == nil {
		return
	}

	token := header.Get(HeaderCSRFToken)
	if token == "" {
		token = header.Get(HeaderCSRFTokenAlt)
	}
	if token != "" {
		h.SetCSRFToken(ctx, token)
	}
}

func (h *Holder) Snapshot(ctx context.Context) Snapshot {
	s := Snapshot{
		AccessTokenLength:  len(h.AccessToken(ctx)),
		RefreshTokenLength: len(h.RefreshToken(ctx)),
		CSRFTokenLength:    len(h.CSRFToken(ctx)),
		SessionExpired:     h.SessionExpired(ctx),
	}
	s.AccessTokenIssuedAt, _ = h.AccessTokenIssuedAt(ctx)
	s.AccessTokenExpiresAt, _ = h.AccessTokenExpiresAt(ctx)
	if start, ok := h.SessionStartTime(ctx); ok {
		s.SessionStartedAt = start
		s.SessionExpiresAt = start.Add(h.ttls.Session)
	}

	return s
}

func (h *Holder) readMillis(ctx context.Context, name string) (time.Time, bool) {
	raw, ok := h.store.Get(ctx, name)
	if !ok {
		return time.Time{}, false
	}

	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || millis <= 0 {
		return time.Time{}, false
	}

	return time.UnixMilli(millis), true
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
