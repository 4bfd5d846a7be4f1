package otp

import (
	"context"
	"fmt"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/seaneb/seaneb-auth/internal/serviceerr"
	"github.com/seaneb/seaneb-auth/pkg/cookiejar"
	"github.com/seaneb/seaneb-auth/pkg/session"
)

type EmailRequest struct {
	Email string
	// Purpose defaults to PurposeSignupEmail.
	Purpose    int
	RedirectTo string
}

type emailSendRequest struct {
	Email   string `json:"email"`
	Purpose int    `json:"purpose"`
}

type emailVerifyRequest struct {
	Email   string `json:"email"`
	OTP     string `json:"otp"`
	Purpose int    `json:"purpose"`
}

// StartEmail records an email OTP context and sends the first code.
func (s *Service) StartEmail(ctx context.Context, req EmailRequest) error {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return err
	}

	purpose := req.Purpose
	if purpose == PurposeLogin {
		purpose = PurposeSignupEmail
	}
	if purpose != PurposeSignupEmail && purpose != PurposeBusinessEmail {
		return serviceerr.Invalid("purpose", fmt.Sprintf("Purpose %d is not an email verification", req.Purpose))
	}

	s.saveContext(ctx, Context{
		Type:       KindEmail,
		Email:      email,
		Purpose:    purpose,
		RedirectTo: req.RedirectTo,
	})

	return s.SendEmailOTP(ctx)
}

// SendEmailOTP (re)sends the code for the stored email context.
func (s *Service) SendEmailOTP(ctx context.Context) error {
	c, err := s.emailContext(ctx)
	if err != nil {
		return err
	}
	if err := s.checkCooldown(c); err != nil {
		return err
	}

	ctx = slogctx.With(ctx, "purpose", c.Purpose)

	if _, err := s.client.Post(ctx, "/auth/email/send-otp", emailSendRequest{Email: c.Email, Purpose: c.Purpose}, nil); err != nil {
		slogctx.Warn(ctx, "Sending email OTP failed", "error", err)
		return serviceerr.WithMessage(err, "Failed to send email OTP")
	}

	s.markSent(ctx, c)
	slogctx.Info(ctx, "Email OTP sent")

	return nil
}

// VerifyEmailOTP checks code against the stored email context and records the
// verified address.
func (s *Service) VerifyEmailOTP(ctx context.Context, code string) (*Result, error) {
	c, err := s.emailContext(ctx)
	if err != nil {
		return nil, err
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, serviceerr.Invalid("otp", "Email and OTP are required")
	}

	ctx = slogctx.With(ctx, "purpose", c.Purpose)

	if _, err := s.client.Post(ctx, "/auth/email/verify-otp", emailVerifyRequest{Email: c.Email, OTP: code, Purpose: c.Purpose}, nil); err != nil {
		slogctx.Info(ctx, "Email OTP verification failed", "error", err)
		return nil, serviceerr.WithMessage(err, "Invalid email OTP")
	}

	store := s.holder.Store()
	opts := cookiejar.Options{MaxAge: markerMaxAge}
	if c.Purpose == PurposeBusinessEmail {
		store.Set(ctx, session.CookieVerifiedBusinessEmail, c.Email, opts)
	} else {
		store.Set(ctx, session.CookieEmailVerified, "true", opts)
		store.Set(ctx, session.CookieVerifiedEmail, c.Email, opts)
	}

	s.Clear(ctx)
	s.forget(c)
	slogctx.Info(ctx, "Email verified")

	return &Result{RedirectTo: c.RedirectTo}, nil
}

func (s *Service) emailContext(ctx context.Context) (Context, error) {
	c, err := s.Current(ctx)
	if err != nil {
		return Context{}, err
	}
	if c.Type != KindEmail {
		return Context{}, fmt.Errorf("%w - not an email verification", serviceerr.ErrInvalidOTPContext)
	}

	return c, nil
}
