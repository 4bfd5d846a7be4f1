// Package backendtest runs an in-process stand-in for the marketplace backend.
// It issues JWT access tokens, HMAC CSRF tokens and an HttpOnly refresh cookie,
// and records every call so tests can assert on what the client sent.
package backendtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	"github.com/seaneb/seaneb-auth/pkg/cookiejar"
	"github.com/seaneb/seaneb-auth/pkg/session"
)

const (
	DefaultOTP = "1234"

	refreshCookie = "refresh_token"
)

type Product struct {
	ID   string `json:"product_id"`
	Key  string `json:"product_key"`
	Name string `json:"product_name"`
}

// Call is one request received by the backend.
type Call struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   map[string]any
}

type forcedResponse struct {
	status int
	body   string
}

type backendSession struct {
	id           string
	mobile       string
	start        time.Time
	refreshToken string
}

type claims struct {
	jwt.Claims
	Generation int64 `json:"gen"`
}

type Backend struct {
	*httptest.Server

	secret []byte
	signer jose.Signer

	refreshCalls atomic.Int64
	refreshGate  chan struct{}

	mu                   sync.Mutex
	otp                  string
	accessTTL            time.Duration
	sessionTTL           time.Duration
	products             []Product
	refreshKeys          map[string]bool
	existingUsers        map[string]bool
	refreshTokenInBody   bool
	businessCreateAbsent bool
	citiesFallbackOnly   bool
	generation           int64
	sessions             map[string]*backendSession
	refreshTokens        map[string]string
	calls                []Call
	forced               map[string][]forcedResponse
	categories           []category
	businesses           map[string]map[string]any
	branches             map[string]map[string]any
	cities               []City
}

type Option func(*Backend)

// WithProducts replaces the products the backend knows. The default is "property".
func WithProducts(keys ...string) Option {
	return func(b *Backend) {
		b.products = nil
		for i, key := range keys {
			b.products = append(b.products, Product{ID: fmt.Sprintf("prod-%d", i+1), Key: key, Name: strings.ToUpper(key[:1]) + key[1:]})
		}
	}
}

// WithRefreshKeys restricts the product keys accepted by /auth/refresh.
func WithRefreshKeys(keys ...string) Option {
	return func(b *Backend) {
		b.refreshKeys = map[string]bool{}
		for _, key := range keys {
			b.refreshKeys[key] = true
		}
	}
}

func WithOTP(code string) Option {
	return func(b *Backend) {
		b.otp = code
	}
}

func WithAccessTTL(d time.Duration) Option {
	return func(b *Backend) {
		b.accessTTL = d
	}
}

func WithExistingUser(mobile string) Option {
	return func(b *Backend) {
		b.existingUsers[mobile] = true
	}
}

// WithRefreshTokenInBody makes verify-otp also return the refresh token in the body.
func WithRefreshTokenInBody() Option {
	return func(b *Backend) {
		b.refreshTokenInBody = true
	}
}

// WithoutBusinessCreate makes /business/create answer 404.
func WithoutBusinessCreate() Option {
	return func(b *Backend) {
		b.businessCreateAbsent = true
	}
}

// WithCitiesFallbackOnly makes /cities answer an empty object.
func WithCitiesFallbackOnly() Option {
	return func(b *Backend) {
		b.citiesFallbackOnly = true
	}
}

// WithRefreshGate blocks every refresh until gate is closed.
func WithRefreshGate(gate chan struct{}) Option {
	return func(b *Backend) {
		b.refreshGate = gate
	}
}

// New starts a backend that is closed when the test ends.
func New(t testing.TB, opts ...Option) *Backend {
	t.Helper()

	secret := []byte(uuid.NewString() + uuid.NewString())
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: secret}, nil)
	if err != nil {
		t.Fatalf("creating signer: %v", err)
	}

	b := &Backend{
		secret:        secret,
		signer:        signer,
		otp:           DefaultOTP,
		accessTTL:     15 * time.Minute,
		sessionTTL:    6 * time.Hour,
		products:      []Product{{ID: "prod-1", Key: "property", Name: "Property"}},
		existingUsers: map[string]bool{},
		sessions:      map[string]*backendSession{},
		refreshTokens: map[string]string{},
		forced:        map[string][]forcedResponse{},
		businesses:    map[string]map[string]any{},
		branches:      map[string]map[string]any{},
		cities:        defaultCities(),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.Server = httptest.NewServer(b.record(b.routes()))
	t.Cleanup(b.Close)

	return b
}

func (b *Backend) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /otp/send-otp", b.sendOTP)
	mux.HandleFunc("POST /otp/verify-otp", b.verifyOTP)
	mux.HandleFunc("POST /auth/email/send-otp", b.sendEmailOTP)
	mux.HandleFunc("POST /auth/email/verify-otp", b.verifyEmailOTP)
	mux.HandleFunc("POST /auth/refresh", b.refresh)
	mux.HandleFunc("POST /auth/logout", b.logout)
	mux.HandleFunc("POST /user/signup", b.authenticated(b.signup))

	mux.HandleFunc("GET /products", b.listProducts)
	mux.HandleFunc("POST /products", b.createProduct)
	mux.HandleFunc("GET /products/search", b.searchProducts)
	mux.HandleFunc("GET /products/{id}", b.getProduct)

	mux.HandleFunc("POST /business/create", b.authenticated(b.createBusiness))
	mux.HandleFunc("POST /business/register", b.authenticated(b.registerBusiness))
	mux.HandleFunc("POST /business/create-branch", b.authenticated(b.createBranch))
	mux.HandleFunc("GET /business/list", b.authenticated(b.listBusinesses))
	mux.HandleFunc("GET /business/autocomplete", b.autocompleteBusiness)
	mux.HandleFunc("GET /business/{id}", b.authenticated(b.getBusiness))
	mux.HandleFunc("PUT /business/{id}", b.authenticated(b.updateBusiness))
	mux.HandleFunc("DELETE /business/{id}", b.authenticated(b.deleteBusiness))
	mux.HandleFunc("POST /verification/verify-pan", b.authenticated(b.verifyPAN))
	mux.HandleFunc("POST /verification/verify-gst", b.authenticated(b.verifyGST))

	mux.HandleFunc("POST /category/create", b.authenticated(b.createCategory))
	mux.HandleFunc("GET /category/categorieslist", b.authenticated(b.activeCategories))
	mux.HandleFunc("POST /category/list", b.authenticated(b.categoriesForProduct))

	mux.HandleFunc("GET /cities", b.searchCities)
	mux.HandleFunc("GET /autocomplete-cities", b.autocompleteCities)

	return mux
}

// record stores the call and serves forced responses before routing.
func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(strings.NewReader(string(raw)))

		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		b.mu.Lock()
		b.calls = append(b.calls, Call{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
		})
		var forced *forcedResponse
		if queue := b.forced[r.URL.Path]; len(queue) > 0 {
			forced = &queue[0]
			b.forced[r.URL.Path] = queue[1:]
		}
		b.mu.Unlock()

		if forced != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(forced.status)
			_, _ = io.WriteString(w, forced.body)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// FailNext makes the next call to path answer status with body.
func (b *Backend) FailNext(path string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.forced[path] = append(b.forced[path], forcedResponse{status: status, body: body})
}

func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]Call(nil), b.calls...)
}

// CallsTo returns the calls made to path.
func (b *Backend) CallsTo(path string) []Call {
	var calls []Call
	for _, c := range b.Calls() {
		if c.Path == path {
			calls = append(calls, c)
		}
	}

	return calls
}

// RefreshCalls counts the calls to /auth/refresh that reached the handler.
func (b *Backend) RefreshCalls() int {
	return int(b.refreshCalls.Load())
}

// ExpireAccessTokens invalidates every access token issued so far.
func (b *Backend) ExpireAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.generation++
}

// EndSessions moves every session past its window.
func (b *Backend) EndSessions() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.sessions {
		s.start = time.Now().Add(-b.sessionTTL - time.Minute)
	}
}

func (b *Backend) Products() []Product {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]Product(nil), b.products...)
}

// Login creates a session without going through the OTP flow and seeds store
// with what a browser would hold afterwards.
func (b *Backend) Login(t testing.TB, store cookiejar.Store, mobile string) session.Tokens {
	t.Helper()

	b.mu.Lock()
	s, tokens := b.newSessionLocked(mobile)
	b.mu.Unlock()

	ctx := t.Context()
	store.Set(ctx, cookiejar.HTTPOnlyName(refreshCookie), s.refreshToken, cookiejar.Options{MaxAge: 30 * 24 * time.Hour})

	return tokens
}

func (b *Backend) newSessionLocked(mobile string) (*backendSession, session.Tokens) {
	s := &backendSession{
		id:           uuid.NewString(),
		mobile:       mobile,
		start:        time.Now(),
		refreshToken: uuid.NewString(),
	}
	b.sessions[s.id] = s
	b.refreshTokens[s.refreshToken] = s.id

	return s, session.Tokens{
		AccessToken:  b.accessTokenLocked(s.id),
		RefreshToken: s.refreshToken,
		CSRFToken:    NewCSRFToken(s.id, b.secret),
	}
}

func (b *Backend) accessTokenLocked(sessionID string) string {
	now := time.Now()
	token, err := jwt.Signed(b.signer).Claims(claims{
		Claims: jwt.Claims{
			Subject:  sessionID,
			IssuedAt: jwt.NewNumericDate(now),
			Expiry:   jwt.NewNumericDate(now.Add(b.accessTTL)),
			ID:       uuid.NewString(),
		},
		Generation: b.generation,
	}).Serialize()
	if err != nil {
		panic(err)
	}

	return token
}

// authenticated rejects requests without a valid, current access token.
func (b *Backend) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || !b.validAccessToken(raw) {
			writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Access token expired or invalid")
			return
		}

		next(w, r)
	}
}

func (b *Backend) validAccessToken(raw string) bool {
	token, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return false
	}

	var c claims
	if err := token.Claims(b.secret, &c); err != nil {
		return false
	}
	if err := c.ValidateWithLeeway(jwt.Expected{Time: time.Now()}, 0); err != nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.sessions[c.Subject]
	return ok && c.Generation >= b.generation
}

func (b *Backend) knownProductLocked(key string) bool {
	for _, p := range b.products {
		if p.Key == key {
			return true
		}
	}

	return false
}

func decode(r *http.Request) map[string]any {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body == nil {
		body = map[string]any{}
	}

	return body
}

func str(body map[string]any, key string) string {
	switch v := body[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprint(v)
	}

	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   map[string]any{"code": code, "message": message},
	})
}
