// Package otp drives the mobile and email one-time-password flows. A
// successful mobile verification is what starts a session.
package otp

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/seaneb/seaneb-auth/internal/serviceerr"
	"github.com/seaneb/seaneb-auth/pkg/apiclient"
	"github.com/seaneb/seaneb-auth/pkg/cookiejar"
	"github.com/seaneb/seaneb-auth/pkg/product"
	"github.com/seaneb/seaneb-auth/pkg/session"
)

// Purposes understood by the backend.
const (
	PurposeLogin          = 0
	PurposeSignupEmail    = 1
	PurposeBusinessMobile = 2
	PurposeBusinessEmail  = 3
)

const (
	ViaWhatsApp = "whatsapp"
	ViaSMS      = "sms"

	identifierTypeMobile = 0
	codeLength           = 4

	markerMaxAge = 7 * 24 * time.Hour

	ResendCooldown         = 30 * time.Second
	BusinessResendCooldown = 60 * time.Second
)

// Provisioner creates the working product on the backend when it is missing.
type Provisioner interface {
	EnsureProduct(ctx context.Context) error
}

type Service struct {
	client      *apiclient.Client
	holder      *session.Holder
	products    *product.Context
	provisioner Provisioner

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// New creates the service. provisioner may be nil, in which case an unknown
// product is returned as an error.
func New(client *apiclient.Client, products *product.Context, provisioner Provisioner) *Service {
	return &Service{
		client:      client,
		holder:      client.Holder(),
		products:    products,
		provisioner: provisioner,
		lastSent:    map[string]time.Time{},
	}
}

type MobileRequest struct {
	CountryCode  string
	MobileNumber string
	Purpose      int
	Via          string
	RedirectTo   string
}

// Result of a successful verification.
type Result struct {
	ExistingUser     bool
	RedirectTo       string
	SessionStartedAt time.Time
}

type sendRequest struct {
	IdentifierType int    `json:"identifier_type"`
	CountryCode    string `json:"country_code"`
	MobileNumber   string `json:"mobile_number"`
	Purpose        int    `json:"purpose"`
	Via            string `json:"via"`
	ProductKey     string `json:"product_key"`
}

type verifyRequest struct {
	IdentifierType int    `json:"identifier_type"`
	CountryCode    string `json:"country_code"`
	MobileNumber   string `json:"mobile_number"`
	OTP            string `json:"otp"`
	Purpose        int    `json:"purpose"`
	ProductKey     string `json:"product_key"`
}

type verifyResponse struct {
	AccessToken    string `json:"access_token"`
	RefreshToken   string `json:"refresh_token"`
	CSRFToken      string `json:"csrf_token"`
	IsExistingUser bool   `json:"is_existing_user"`
	UserExists     bool   `json:"user_exists"`
}

type verifiedMobile struct {
	CountryCode  string `json:"country_code"`
	MobileNumber string `json:"mobile_number"`
}

// StartMobile validates the number, records the OTP context and sends the first code.
func (s *Service) StartMobile(ctx context.Context, req MobileRequest) error {
	cc, mobile, err := NormalizeMobile(req.CountryCode, req.MobileNumber)
	if err != nil {
		return err
	}
	if req.Purpose != PurposeLogin && req.Purpose != PurposeBusinessMobile {
		return serviceerr.Invalid("purpose", fmt.Sprintf("Purpose %d is not a mobile verification", req.Purpose))
	}

	via, err := normalizeVia(req.Via)
	if err != nil {
		return err
	}

	s.saveContext(ctx, Context{
		Type:         KindMobile,
		CountryCode:  cc,
		MobileNumber: mobile,
		Purpose:      req.Purpose,
		RedirectTo:   req.RedirectTo,
		Via:          via,
	})

	store := s.holder.Store()
	if req.Purpose == PurposeLogin {
		store.Set(ctx, session.CookieOTPMobile, mobile, cookiejar.Options{MaxAge: contextMaxAge})
		store.Set(ctx, session.CookieOTPCountryCode, cc, cookiejar.Options{MaxAge: contextMaxAge})
	}

	return s.SendOTP(ctx, via)
}

// SendOTP (re)sends the code for the stored mobile context. via overrides the
// channel recorded in the context.
func (s *Service) SendOTP(ctx context.Context, via string) error {
	c, err := s.Current(ctx)
	if err != nil {
		return err
	}
	if c.Type != KindMobile {
		return fmt.Errorf("%w - not a mobile verification", serviceerr.ErrInvalidOTPContext)
	}
	if via == "" {
		via = c.Via
	}
	if via, err = normalizeVia(via); err != nil {
		return err
	}

	if err := s.checkCooldown(c); err != nil {
		return err
	}

	ctx = slogctx.With(ctx, "purpose", c.Purpose, "via", via)

	payload := sendRequest{
		IdentifierType: identifierTypeMobile,
		CountryCode:    c.CountryCode,
		MobileNumber:   c.MobileNumber,
		Purpose:        c.Purpose,
		Via:            via,
		ProductKey:     s.products.Key(ctx),
	}
	if _, err := s.postWithProduct(ctx, "/otp/send-otp", payload, nil); err != nil {
		slogctx.Warn(ctx, "Sending OTP failed", "error", err)
		return serviceerr.WithMessage(err, "Failed to send OTP")
	}

	s.markSent(ctx, c)
	slogctx.Info(ctx, "OTP sent", "mobile_length", len(c.MobileNumber))

	return nil
}

// VerifyOTP checks code against the stored mobile context. On success the
// tokens are stored, the session window starts and the context is removed.
func (s *Service) VerifyOTP(ctx context.Context, code string) (*Result, error) {
	c, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	if c.Type != KindMobile {
		return nil, fmt.Errorf("%w - not a mobile verification", serviceerr.ErrInvalidOTPContext)
	}

	code = strings.TrimSpace(code)
	if len(code) != codeLength || !isDigits(code) {
		return nil, serviceerr.Invalid("otp", "OTP must be 4 digits")
	}

	ctx = slogctx.With(ctx, "purpose", c.Purpose)

	payload := verifyRequest{
		IdentifierType: identifierTypeMobile,
		CountryCode:    c.CountryCode,
		MobileNumber:   c.MobileNumber,
		OTP:            code,
		Purpose:        c.Purpose,
		ProductKey:     s.products.Key(ctx),
	}

	var res verifyResponse
	resp, err := s.postWithProduct(ctx, "/otp/verify-otp", payload, &res)
	if err != nil {
		slogctx.Info(ctx, "OTP verification failed", "error", err)
		return nil, serviceerr.WithMessage(err, "Invalid OTP")
	}

	s.storeTokens(ctx, res, resp.Header)
	started := s.sessionStart(ctx, c.Purpose)

	store := s.holder.Store()
	marker := verifiedMobile{CountryCode: c.CountryCode, MobileNumber: c.MobileNumber}
	if c.Purpose == PurposeBusinessMobile {
		cookiejar.SetJSON(ctx, store, session.CookieVerifiedBusinessMobile, marker, cookiejar.Options{MaxAge: markerMaxAge})
		store.Remove(ctx, session.CookieBusinessMobileOTPUntil)
	} else {
		store.Set(ctx, session.CookieMobileVerified, "true", cookiejar.Options{MaxAge: markerMaxAge})
		cookiejar.SetJSON(ctx, store, session.CookieVerifiedMobile, marker, cookiejar.Options{MaxAge: markerMaxAge})
	}

	s.Clear(ctx)
	s.forget(c)

	result := &Result{
		ExistingUser:     res.IsExistingUser || res.UserExists,
		RedirectTo:       c.RedirectTo,
		SessionStartedAt: started,
	}
	if result.ExistingUser && c.Purpose == PurposeLogin {
		store.Set(ctx, session.CookieProfileCompleted, "true", cookiejar.Options{MaxAge: markerMaxAge})
	}
	slogctx.Info(ctx, "OTP verified", "existing_user", result.ExistingUser)

	return result, nil
}

// sessionStart starts the session window. A business verification inside a
// running session keeps the window it already has.
func (s *Service) sessionStart(ctx context.Context, purpose int) time.Time {
	if purpose == PurposeBusinessMobile && !s.holder.SessionExpired(ctx) {
		if start, ok := s.holder.SessionStartTime(ctx); ok {
			return start
		}
	}

	return s.holder.StartSession(ctx)
}

// Cooldown returns how long to wait before the code for the current context
// can be sent again.
func (s *Service) Cooldown(ctx context.Context) time.Duration {
	c, err := s.Current(ctx)
	if err != nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.remainingLocked(c)
}

func (s *Service) storeTokens(ctx context.Context, res verifyResponse, header http.Header) {
	if res.AccessToken != "" {
		s.holder.SetAccessToken(ctx, res.AccessToken)
	} else {
		slogctx.Warn(ctx, "No access token in verification response")
	}

	if res.RefreshToken != "" {
		s.holder.SetRefreshToken(ctx, res.RefreshToken)
	}

	csrf := res.CSRFToken
	if csrf == "" {
		csrf = header.Get(session.HeaderCSRFToken)
	}
	if csrf == "" {
		csrf = header.Get(session.HeaderCSRFTokenAlt)
	}
	if csrf != "" {
		s.holder.SetCSRFToken(ctx, csrf)
	} else {
		slogctx.Warn(ctx, "No CSRF token in verification response")
	}
}

// postWithProduct posts body and, when the backend does not know the product,
// provisions it and tries once more.
func (s *Service) postWithProduct(ctx context.Context, path string, body, out any) (*apiclient.Response, error) {
	resp, err := s.client.Post(ctx, path, body, out)
	if err == nil || s.provisioner == nil || !serviceerr.IsProductNotFound(err) {
		return resp, err
	}

	slogctx.Warn(ctx, "Product unknown to the backend, provisioning it", "path", path)
	if perr := s.provisioner.EnsureProduct(ctx); perr != nil {
		slogctx.Warn(ctx, "Provisioning product failed", "error", perr)
		return resp, err
	}

	return s.client.Post(ctx, path, body, out)
}

func (s *Service) cooldownFor(c Context) time.Duration {
	if c.Purpose == PurposeBusinessMobile || c.Purpose == PurposeBusinessEmail {
		return BusinessResendCooldown
	}
	return ResendCooldown
}

func (s *Service) checkCooldown(c Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if remaining := s.remainingLocked(c); remaining > 0 {
		return fmt.Errorf("%w: %s left", serviceerr.ErrResendCooldown, remaining.Round(time.Second))
	}

	return nil
}

func (s *Service) remainingLocked(c Context) time.Duration {
	last, ok := s.lastSent[c.key()]
	if !ok {
		return 0
	}

	return max(0, last.Add(s.cooldownFor(c)).Sub(s.holder.Now()))
}

func (s *Service) markSent(ctx context.Context, c Context) {
	now := s.holder.Now()

	s.mu.Lock()
	s.lastSent[c.key()] = now
	s.mu.Unlock()

	if c.Purpose == PurposeBusinessMobile {
		until := now.Add(BusinessResendCooldown)
		s.holder.Store().Set(ctx, session.CookieBusinessMobileOTPUntil,
			strconv.FormatInt(until.UnixMilli(), 10), cookiejar.Options{MaxAge: BusinessResendCooldown})
	}
}

func (s *Service) forget(c Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.lastSent, c.key())
}

func normalizeVia(via string) (string, error) {
	switch v := strings.ToLower(strings.TrimSpace(via)); v {
	case "":
		return ViaWhatsApp, nil
	case ViaWhatsApp, ViaSMS:
		return v, nil
	default:
		return "", serviceerr.Invalid("via", fmt.Sprintf("Unsupported OTP channel %q", via))
	}
}
