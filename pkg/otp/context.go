package otp

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/seaneb/seaneb-auth/internal/serviceerr"
	"github.com/seaneb/seaneb-auth/pkg/cookiejar"
	"github.com/seaneb/seaneb-auth/pkg/session"
)

const (
	contextVersion = 1
	contextMaxAge  = 5 * time.Minute
)

type Kind string

const (
	KindMobile Kind = "mobile"
	KindEmail  Kind = "email"
)

// Context describes the verification in progress and where to go afterwards.
type Context struct {
	Version      int    `json:"version"`
	Type         Kind   `json:"type"`
	CountryCode  string `json:"country_code,omitempty"`
	MobileNumber string `json:"mobile_number,omitempty"`
	Email        string `json:"email,omitempty"`
	Purpose      int    `json:"purpose"`
	RedirectTo   string `json:"redirect_to,omitempty"`
	Via          string `json:"via,omitempty"`
}

func (c Context) validate() error {
	if c.Version != contextVersion {
		return fmt.Errorf("%w - unsupported version %d", serviceerr.ErrInvalidOTPContext, c.Version)
	}

	switch c.Type {
	case KindMobile:
		if c.CountryCode == "" || c.MobileNumber == "" {
			return fmt.Errorf("%w - missing country_code or mobile_number", serviceerr.ErrInvalidOTPContext)
		}
	case KindEmail:
		if c.Email == "" {
			return fmt.Errorf("%w - missing email", serviceerr.ErrInvalidOTPContext)
		}
	default:
		return fmt.Errorf("%w - unknown type %q", serviceerr.ErrInvalidOTPContext, c.Type)
	}

	return nil
}

// key identifies the recipient for the resend cooldown.
func (c Context) key() string {
	if c.Type == KindEmail {
		return "email:" + strings.ToLower(c.Email)
	}
	return "mobile:" + c.CountryCode + ":" + c.MobileNumber
}

// Current returns the stored OTP context. A missing or unreadable cookie is
// ErrOTPContextMissing, a readable but incomplete one ErrInvalidOTPContext.
func (s *Service) Current(ctx context.Context) (Context, error) {
	c, ok := cookiejar.GetJSON[Context](ctx, s.holder.Store(), session.CookieOTPContext)
	if !ok {
		return Context{}, serviceerr.ErrOTPContextMissing
	}
	if err := c.validate(); err != nil {
		return Context{}, err
	}

	return c, nil
}

func (s *Service) saveContext(ctx context.Context, c Context) {
	c.Version = contextVersion
	cookiejar.SetJSON(ctx, s.holder.Store(), session.CookieOTPContext, c, cookiejar.Options{MaxAge: contextMaxAge})
}

// Clear removes the OTP context.
func (s *Service) Clear(ctx context.Context) {
	s.holder.Store().Remove(ctx, session.CookieOTPContext)
}

// NormalizeMobile trims both parts and drops a leading "+" from the country
// code. Indian numbers must have 10 digits, others between 6 and 15.
func NormalizeMobile(countryCode, mobileNumber string) (string, string, error) {
	cc := strings.TrimPrefix(strings.TrimSpace(countryCode), "+")
	mobile := strings.TrimSpace(mobileNumber)

	if cc == "" || len(cc) > 4 || !isDigits(cc) {
		return "", "", serviceerr.Invalid("country_code", "Invalid country code")
	}
	if !isDigits(mobile) {
		return "", "", serviceerr.Invalid("mobile_number", "Enter a valid mobile number")
	}

	if cc == "91" {
		if len(mobile) != 10 {
			return "", "", serviceerr.Invalid("mobile_number", "Enter a valid 10-digit mobile number")
		}
	} else if len(mobile) < 6 || len(mobile) > 15 {
		return "", "", serviceerr.Invalid("mobile_number", "Enter a valid mobile number")
	}

	return cc, mobile, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", serviceerr.Invalid("email", "Email is required and must be a string")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", serviceerr.Invalid("email", "Enter a valid email address")
	}

	return email, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
