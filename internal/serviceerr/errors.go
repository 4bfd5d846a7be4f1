// Package serviceerr holds the error taxonomy shared by the client packages.
package serviceerr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var ErrConflict = errors.New("already exists")
var ErrNotFound = errors.New("not found")

var (
	ErrCSRFMissing         = errors.New("CSRF token missing, cannot refresh access token")
	ErrAllStrategiesFailed = errors.New("all bootstrap strategies failed")
	ErrNoAccessToken       = errors.New("no access_token returned from refresh")
	ErrSessionExpired      = errors.New("session expired. Please login again")
	ErrOTPContextMissing   = errors.New("OTP context missing")
	ErrInvalidOTPContext   = errors.New("invalid OTP context")
	ErrProductNotFound     = errors.New("product not found")
	ErrResendCooldown      = errors.New("please wait before requesting another OTP")
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Code    string
	Message string
	Reason  string
	Body    []byte
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%d: %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
}

type envelope struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

// NewAPIError decodes the backend error envelope. Bodies that are not JSON are kept raw.
func NewAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Body: body}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return apiErr
	}

	if env.Error != nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	}
	if apiErr.Code == "" {
		apiErr.Code = env.Code
	}
	if apiErr.Message == "" {
		apiErr.Message = env.Message
	}
	apiErr.Reason = env.Reason

	return apiErr
}

// SessionExpiredError is returned once a refresh could not produce a new access token.
// The local session has already been cleared when it is returned.
type SessionExpiredError struct {
	Cause error
	// WindowEnded is set when the backend reported the end of the session window.
	WindowEnded bool
}

func (e *SessionExpiredError) Error() string {
	if e.Cause == nil {
		return ErrSessionExpired.Error()
	}
	return fmt.Sprintf("%s: %v", ErrSessionExpired, e.Cause)
}

func (e *SessionExpiredError) Unwrap() []error {
	return []error{ErrSessionExpired, e.Cause}
}

// RecoveryError is returned by the bootstrap routine.
type RecoveryError struct {
	Err       error
	Retryable bool
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("recovering access token: %v", e.Err)
}

func (e *RecoveryError) Unwrap() error {
	return e.Err
}

// ValidationError is raised before any network call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// Message returns the message to show to a user: the backend error message, then the
// backend top-level message, then the error text, then the fallback.
func Message(err error, fallback string) string {
	if err == nil {
		return fallback
	}

	var userErr *UserError
	if errors.As(err, &userErr) && userErr.Message != "" {
		return userErr.Message
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fallback
	}

	if msg := err.Error(); msg != "" {
		return msg
	}

	return fallback
}

// Status returns the HTTP status of an *APIError in the chain, or 0.
func Status(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func IsStatus(err error, status int) bool {
	return Status(err) == status
}

func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}

func IsConflict(err error) bool {
	return IsStatus(err, http.StatusConflict)
}

func code(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return strings.ToUpper(apiErr.Code)
	}
	return ""
}

func lowerMessage(err error) string {
	if err == nil {
		return ""
	}
	return strings.ToLower(Message(err, ""))
}

// UserError carries the message shown to the user next to the error that caused it.
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string {
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// WithMessage wraps err with the message Message would pick for it.
func WithMessage(err error, fallback string) error {
	if err == nil {
		return nil
	}
	return &UserError{Message: Message(err, fallback), Err: err}
}
