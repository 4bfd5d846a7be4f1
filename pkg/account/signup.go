// Package account covers what happens to a user after the mobile number is
// verified: completing the profile, the dashboard mode and logging out.
package account

import (
	"context"
	"strings"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/seaneb/seaneb-auth/internal/serviceerr"
	"github.com/seaneb/seaneb-auth/pkg/apiclient"
	"github.com/seaneb/seaneb-auth/pkg/cookiejar"
	"github.com/seaneb/seaneb-auth/pkg/product"
	"github.com/seaneb/seaneb-auth/pkg/session"
)

const (
	signupPath = "/user/signup"
	logoutPath = "/auth/logout"

	profileMaxAge = 7 * 24 * time.Hour
	dobDayFirst   = "02-01-2006"
)

type Service struct {
	client   *apiclient.Client
	holder   *session.Holder
	products *product.Context
}

func New(client *apiclient.Client, products *product.Context) *Service {
	return &Service{
		client:   client,
		holder:   client.Holder(),
		products: products,
	}
}

// Profile is what the complete-profile form submits. CountryCode and
// MobileNumber default to the verified mobile number.
type Profile struct {
	CountryCode  string
	MobileNumber string
	FirstName    string
	LastName     string
	Email        string
	// DOB is YYYY-MM-DD or DD-MM-YYYY.
	DOB      string
	SeanebID string
	PlaceID  string
	Gender   string
	// ProductKey is tried after the working product key.
	ProductKey string
}

type User struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type signupRequest struct {
	CountryCode  string `json:"country_code"`
	MobileNumber string `json:"mobile_number"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	DOB          string `json:"dob"`
	SeanebID     string `json:"seaneb_id"`
	PlaceID      string `json:"place_id"`
	Gender       string `json:"gender"`
	ProductKey   string `json:"product_key"`
}

type signupResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	CSRFToken    string `json:"csrf_token"`
	User         User   `json:"user"`
}

type verifiedMobile struct {
	CountryCode  string `json:"country_code"`
	MobileNumber string `json:"mobile_number"`
}

// Signup creates the user account. The product keys tried are the working key
// and then p.ProductKey; only an unknown product moves on to the next key.
func (s *Service) Signup(ctx context.Context, p Profile) (*User, error) {
	payload, err := s.signupPayload(ctx, p)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, key := range product.Candidates(s.products.Key(ctx), p.ProductKey) {
		payload.ProductKey = key

		var res signupResponse
		_, err := s.client.Post(ctx, signupPath, payload, &res)
		if err == nil {
			s.completeSignup(ctx, key, res)
			return &res.User, nil
		}

		lastErr = err
		if !serviceerr.IsProductNotFound(err) {
			break
		}
		slogctx.Info(ctx, "Signup product unknown, trying next key", "product_key", key)
	}

	slogctx.Warn(ctx, "Signup failed", "error", lastErr)

	return nil, serviceerr.WithMessage(lastErr, "Signup failed")
}

func (s *Service) completeSignup(ctx context.Context, key string, res signupResponse) {
	s.products.SetDefault(ctx, key)

	if res.AccessToken != "" {
		s.holder.SetAccessToken(ctx, res.AccessToken)
		s.holder.StartSession(ctx)
	}
	if res.RefreshToken != "" {
		s.holder.SetRefreshToken(ctx, res.RefreshToken)
	}
	if res.CSRFToken != "" {
		s.holder.SetCSRFToken(ctx, res.CSRFToken)
	}

	s.holder.Store().Set(ctx, session.CookieProfileCompleted, "true", cookiejar.Options{MaxAge: profileMaxAge})
	s.DeleteDraft(ctx)

	slogctx.Info(ctx, "Signup completed", "product_key", key)
}

func (s *Service) signupPayload(ctx context.Context, p Profile) (signupRequest, error) {
	cc, mobile := strings.TrimSpace(p.CountryCode), strings.TrimSpace(p.MobileNumber)
	if cc == "" || mobile == "" {
		cc, mobile = s.verifiedMobile(ctx)
	}
	if cc == "" || mobile == "" {
		return signupRequest{}, serviceerr.Invalid("mobile_number", "Missing mobile verification data")
	}

	placeID := strings.TrimSpace(p.PlaceID)
	if placeID == "" {
		return signupRequest{}, serviceerr.Invalid("place_id", "City not selected")
	}

	email := strings.ToLower(strings.TrimSpace(p.Email))
	if email == "" {
		return signupRequest{}, serviceerr.Invalid("email", "Email is required")
	}

	gender := strings.ToLower(strings.TrimSpace(p.Gender))
	if gender == "" {
		return signupRequest{}, serviceerr.Invalid("gender", "Gender is required")
	}

	dob, ok := NormalizeDOB(p.DOB)
	if !ok {
		return signupRequest{}, serviceerr.Invalid("dob", "Invalid date of birth")
	}

	return signupRequest{
		CountryCode:  strings.TrimPrefix(cc, "+"),
		MobileNumber: mobile,
		FirstName:    strings.TrimSpace(p.FirstName),
		LastName:     strings.TrimSpace(p.LastName),
		Email:        email,
		DOB:          dob,
		SeanebID:     strings.TrimSpace(p.SeanebID),
		PlaceID:      placeID,
		Gender:       gender,
	}, nil
}

// verifiedMobile reads the number confirmed by the last OTP verification,
// falling back to the number the OTP was sent to.
func (s *Service) verifiedMobile(ctx context.Context) (string, string) {
	store := s.holder.Store()

	if m, ok := cookiejar.GetJSON[verifiedMobile](ctx, store, session.CookieVerifiedMobile); ok && m.CountryCode != "" && m.MobileNumber != "" {
		return m.CountryCode, m.MobileNumber
	}

	cc, _ := store.Get(ctx, session.CookieOTPCountryCode)
	mobile, _ := store.Get(ctx, session.CookieOTPMobile)

	return strings.TrimSpace(cc), strings.TrimSpace(mobile)
}

// NormalizeDOB accepts YYYY-MM-DD or DD-MM-YYYY and returns YYYY-MM-DD.
func NormalizeDOB(dob string) (string, bool) {
	dob = strings.TrimSpace(dob)
	if dob == "" {
		return "", false
	}

	for _, layout := range []string{time.DateOnly, dobDayFirst} {
		if t, err := time.Parse(layout, dob); err == nil {
			return t.Format(time.DateOnly), true
		}
	}

	return "", false
}

// Logout ends the session on the backend and forgets everything about the
// user. A failing logout call does not stop the local cleanup.
func (s *Service) Logout(ctx context.Context) {
	if _, err := s.client.Post(ctx, logoutPath, struct{}{}, nil); err != nil {
		slogctx.Warn(ctx, "Logout request failed, clearing local state anyway", "error", err)
	}

	store := s.holder.Store()
	s.holder.ClearAll(ctx)
	cookiejar.RemoveAll(ctx, store, session.AccountCookies...)
	store.Remove(ctx, cookiejar.HTTPOnlyName(session.CookieRefreshToken))

	slogctx.Info(ctx, "Logged out")
}
