package session_test

import (
	"log/slog"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaneb/seaneb-auth/pkg/cookiejar"
	"github.com/seaneb/seaneb-auth/pkg/session"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newHolder(t *testing.T) (*session.Holder, *cookiejar.Memory, *clock) {
	t.Helper()

	store := cookiejar.NewMemory()
	clk := &clock{now: time.Now().Truncate(time.Millisecond)}

	return session.NewHolder(store, session.WithClock(clk.Now)), store, clk
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: []byte("0123456789abcdef0123456789abcdef")}, nil)
	require.NoError(t, err)

	token, err := jwt.Signed(signer).Claims(jwt.Claims{Subject: "user-1", Expiry: jwt.NewNumericDate(exp)}).Serialize()
	require.NoError(t, err)

	return token
}

func TestHolder_AccessToken(t *testing.T) {
	ctx := t.Context()
	holder, store, clk := newHolder(t)

	holder.SetAccessToken(ctx, "opaque-token")
	assert.Equal(t, "opaque-token", holder.AccessToken(ctx))

	issued, ok := store.Get(ctx, session.CookieAccessTokenIssuedTime)
	assert.True(t, ok)
	assert.Equal(t, strconv.FormatInt(clk.now.UnixMilli(), 10), issued)

	reloaded := session.NewHolder(store, session.WithClock(clk.Now))
	assert.Equal(t, "opaque-token", reloaded.AccessToken(ctx), "a new holder falls back to the cookie")

	holder.SetAccessToken(ctx, "")
	assert.Empty(t, holder.AccessToken(ctx))
	_, ok = store.Get(ctx, session.CookieAccessTokenIssuedTime)
	assert.False(t, ok)
}

func TestHolder_CSRFToken(t *testing.T) {
	t.Run("set writes both spellings", func(t *testing.T) {
		ctx := t.Context()
		holder, store, _ := newHolder(t)

		holder.SetCSRFToken(ctx, "csrf-1")

		for _, name := range []string{session.CookieCSRFToken, session.CookieCSRFTokenDash} {
			got, ok := store.Get(ctx, name)
			assert.True(t, ok, name)
			assert.Equal(t, "csrf-1", got, name)
		}
	})

	t.Run("falls back to the dash cookie", func(t *testing.T) {
		ctx := t.Context()
		store := cookiejar.NewMemory()
		store.Set(ctx, session.CookieCSRFTokenDash, "from-dash", cookiejar.Options{MaxAge: time.Hour})

		assert.Equal(t, "from-dash", session.NewHolder(store).CSRFToken(ctx))
	})

	t.Run("from response headers", func(t *testing.T) {
		tests := []struct {
			name   string
			header http.Header
			want   string
		}{
			{"x-csrf-token", http.Header{"X-Csrf-Token": []string{"a"}}, "a"},
			{"csrf-token", http.Header{"Csrf-Token": []string{"b"}}, "b"},
			{"none", http.Header{}, ""},
			{"nil", nil, ""},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				holder, _, _ := newHolder(t)

				holder.InitFromResponseHeaders(t.Context(), tt.header)
				assert.Equal(t, tt.want, holder.CSRFToken(t.Context()))
			})
		}
	})
}

func TestHolder_SetSession(t *testing.T) {
	ctx := t.Context()
	holder, _, clk := newHolder(t)

	holder.SetSession(ctx, session.Tokens{AccessToken: "a", RefreshToken: "r", CSRFToken: "c"})

	assert.Equal(t, "a", holder.AccessToken(ctx))
	assert.Equal(t, "r", holder.RefreshToken(ctx))
	assert.Equal(t, "c", holder.CSRFToken(ctx))

	start, ok := holder.SessionStartTime(ctx)
	assert.True(t, ok)
	assert.Equal(t, clk.now, start)
}

func TestHolder_ClearAll(t *testing.T) {
	ctx := t.Context()
	holder, store, _ := newHolder(t)
	holder.SetSession(ctx, session.Tokens{AccessToken: "a", RefreshToken: "r", CSRFToken: "c"})
	store.Set(ctx, session.CookieProductKey, "property", cookiejar.Options{MaxAge: time.Hour})

	holder.ClearAll(ctx)

	assert.Empty(t, holder.AccessToken(ctx))
	assert.Empty(t, holder.RefreshToken(ctx))
	assert.Empty(t, holder.CSRFToken(ctx))
	_, ok := holder.SessionStartTime(ctx)
	assert.False(t, ok)
	_, ok = holder.AccessTokenIssuedAt(ctx)
	assert.False(t, ok)

	reloaded := session.NewHolder(store)
	assert.Empty(t, reloaded.AccessToken(ctx))
	assert.Empty(t, reloaded.CSRFToken(ctx))

	_, ok = store.Get(ctx, session.CookieProductKey)
	assert.True(t, ok, "non-session values survive")
}

func TestHolder_SessionExpired(t *testing.T) {
	ctx := t.Context()
	holder, _, clk := newHolder(t)

	assert.False(t, holder.SessionExpired(ctx), "no session recorded")

	holder.StartSession(ctx)
	clk.Advance(6*time.Hour - time.Second)
	assert.False(t, holder.SessionExpired(ctx))

	clk.Advance(time.Second)
	assert.True(t, holder.SessionExpired(ctx))
}

func TestHolder_AccessTokenExpiresAt(t *testing.T) {
	tests := []struct {
		name   string
		token  func(t *testing.T, now time.Time) string
		offset time.Duration
	}{
		{
			name:   "opaque token uses the lifetime",
			token:  func(*testing.T, time.Time) string { return "opaque" },
			offset: 15 * time.Minute,
		},
		{
			name: "earlier jwt exp wins",
			token: func(t *testing.T, now time.Time) string {
				return signedToken(t, now.Add(5*time.Minute))
			},
			offset: 5 * time.Minute,
		},
		{
			name: "later jwt exp is capped",
			token: func(t *testing.T, now time.Time) string {
				return signedToken(t, now.Add(time.Hour))
			},
			offset: 15 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := t.Context()
			holder, _, clk := newHolder(t)

			holder.SetAccessToken(ctx, tt.token(t, clk.now))

			got, ok := holder.AccessTokenExpiresAt(ctx)
			assert.True(t, ok)
			assert.WithinDuration(t, clk.now.Add(tt.offset), got, time.Second)
		})
	}
}

func TestHolder_NeedsRefresh(t *testing.T) {
	ctx := t.Context()
	holder, _, clk := newHolder(t)

	assert.False(t, holder.NeedsRefresh(ctx, time.Minute), "no token")

	holder.SetAccessToken(ctx, "opaque")
	assert.False(t, holder.NeedsRefresh(ctx, time.Minute))

	clk.Advance(14 * time.Minute)
	assert.True(t, holder.NeedsRefresh(ctx, time.Minute))
}

func TestHolder_Snapshot(t *testing.T) {
	ctx := t.Context()
	holder, _, _ := newHolder(t)

	assert.False(t, holder.Snapshot(ctx).Authenticated())

	holder.SetSession(ctx, session.Tokens{AccessToken: "access", CSRFToken: "csrf"})
	snap := holder.Snapshot(ctx)

	assert.True(t, snap.Authenticated())
	assert.Equal(t, 6, snap.AccessTokenLength)
	assert.Equal(t, 0, snap.RefreshTokenLength)
	assert.Equal(t, 4, snap.CSRFTokenLength)
	assert.Equal(t, slog.KindGroup, snap.LogValue().Kind())
	assert.NotContains(t, snap.LogValue().String(), "csrf ")
}
