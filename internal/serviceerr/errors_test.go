package serviceerr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seaneb/seaneb-auth/internal/serviceerr"
)

func TestNewAPIError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantCode    string
		wantMessage string
		wantReason  string
	}{
		{
			name:        "nested error envelope",
			status:      http.StatusNotFound,
			body:        `{"error":{"code":"PRODUCT_NOT_FOUND","message":"Product not found"}}`,
			wantCode:    "PRODUCT_NOT_FOUND",
			wantMessage: "Product not found",
		},
		{
			name:        "top level message",
			status:      http.StatusUnauthorized,
			body:        `{"message":"SESSION_EXPIRED","reason":"SESSION_EXPIRED"}`,
			wantMessage: "SESSION_EXPIRED",
			wantReason:  "SESSION_EXPIRED",
		},
		{
			name:        "nested message wins over top level",
			status:      http.StatusBadRequest,
			body:        `{"error":{"message":"inner"},"message":"outer"}`,
			wantMessage: "inner",
		},
		{
			name:   "not json",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := serviceerr.NewAPIError(tt.status, []byte(tt.body))

			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.Equal(t, tt.wantReason, apiErr.Reason)
			assert.Equal(t, tt.body, string(apiErr.Body))
		})
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		fallback string
		want     string
	}{
		{
			name:     "api error message",
			err:      fmt.Errorf("wrapped: %w", serviceerr.NewAPIError(400, []byte(`{"error":{"message":"Invalid OTP"}}`))),
			fallback: "fallback",
			want:     "Invalid OTP",
		},
		{
			name:     "api error without message uses fallback",
			err:      serviceerr.NewAPIError(500, nil),
			fallback: "Failed to send email OTP",
			want:     "Failed to send email OTP",
		},
		{
			name:     "plain error",
			err:      errors.New("OTP must be 4 digits"),
			fallback: "fallback",
			want:     "OTP must be 4 digits",
		},
		{
			name:     "user error keeps its message",
			err:      fmt.Errorf("verifying: %w", serviceerr.WithMessage(serviceerr.NewAPIError(400, nil), "Invalid OTP")),
			fallback: "fallback",
			want:     "Invalid OTP",
		},
		{
			name:     "nil error",
			err:      nil,
			fallback: "fallback",
			want:     "fallback",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serviceerr.Message(tt.err, tt.fallback))
		})
	}
}

func TestSessionExpiredError(t *testing.T) {
	cause := serviceerr.NewAPIError(http.StatusUnauthorized, []byte(`{"reason":"SESSION_EXPIRED"}`))
	err := fmt.Errorf("doing request: %w", &serviceerr.SessionExpiredError{Cause: cause, WindowEnded: true})

	assert.ErrorIs(t, err, serviceerr.ErrSessionExpired)

	var apiErr *serviceerr.APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	var expired *serviceerr.SessionExpiredError
	assert.ErrorAs(t, err, &expired)
	assert.True(t, expired.WindowEnded)
}

func TestRecoveryError(t *testing.T) {
	err := &serviceerr.RecoveryError{Err: serviceerr.ErrCSRFMissing}

	assert.ErrorIs(t, err, serviceerr.ErrCSRFMissing)
	assert.False(t, err.Retryable)
	assert.Contains(t, err.Error(), "CSRF token missing")
}

func TestValidationError(t *testing.T) {
	err := fmt.Errorf("signup: %w", serviceerr.Invalid("email", "Email is required"))

	assert.True(t, serviceerr.IsValidation(err))
	assert.False(t, serviceerr.IsValidation(errors.New("other")))
	assert.Equal(t, "signup: Email is required", err.Error())
}

func TestWithMessage(t *testing.T) {
	assert.NoError(t, serviceerr.WithMessage(nil, "fallback"))

	cause := serviceerr.NewAPIError(http.StatusBadRequest, []byte(`{"error":{"code":"INVALID_OTP","message":"Invalid OTP"}}`))
	err := serviceerr.WithMessage(cause, "fallback")

	assert.EqualError(t, err, "Invalid OTP")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusBadRequest, serviceerr.Status(err))
}
