package session

import (
	"log/slog"
	"time"
)

// Tokens is what the backend hands out on login and refresh.
type Tokens struct {
	AccessToken  string // Bearer token for API calls
	RefreshToken string // Refresh token, when the backend returns it in the body
	CSRFToken    string // CSRF token sent back on every state-changing request
}

// TTLs are the lifetimes of the session values.
type TTLs struct {
	AccessToken  time.Duration // Lifetime of the access token from issue
	RefreshToken time.Duration // Lifetime of the readable refresh token mirror
	CSRFToken    time.Duration // Lifetime of the CSRF token cookies
	Session      time.Duration // Absolute session window, not extended by refreshes
}

func DefaultTTLs() TTLs {
	return TTLs{
		AccessToken:  15 * time.Minute,
		RefreshToken: 30 * 24 * time.Hour,
		CSRFToken:    6 * time.Hour,
		Session:      6 * time.Hour,
	}
}

// Snapshot describes the session state without exposing token values.
type Snapshot struct {
	AccessTokenLength    int
	RefreshTokenLength   int
	CSRFTokenLength      int
	AccessTokenIssuedAt  time.Time
	AccessTokenExpiresAt time.Time
	SessionStartedAt     time.Time
	SessionExpiresAt     time.Time
	SessionExpired       bool
}

func (s Snapshot) Authenticated() bool {
	return s.AccessTokenLength > 0 && !s.SessionExpired
}

func (s Snapshot) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("access_token_length", s.AccessTokenLength),
		slog.Int("refresh_token_length", s.RefreshTokenLength),
		slog.Int("csrf_token_length", s.CSRFTokenLength),
		slog.Bool("session_expired", s.SessionExpired),
	}
	if !s.AccessTokenExpiresAt.IsZero() {
		attrs = append(attrs, slog.Time("access_token_expires_at", s.AccessTokenExpiresAt))
	}
	if !s.SessionStartedAt.IsZero() {
		attrs = append(attrs, slog.Time("session_started_at", s.SessionStartedAt))
	}

	return slog.GroupValue(attrs...)
}
