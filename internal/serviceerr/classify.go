package serviceerr

import (
	"errors"
	"net/http"
	"strings"
)

const (
	CodeProductNotFound        = "PRODUCT_NOT_FOUND"
	CodeCategoryAlreadyExists  = "CATEGORY_ALREADY_EXISTS"
	ReasonSessionExpired       = "SESSION_EXPIRED"
	codeFragmentProduct        = "PRODUCT"
	codeFragmentCSRF           = "CSRF"
	messageInvalidProduct      = "invalid or inactive product"
	messageProductNotFound     = "product not found"
	messageFragmentProduct     = "product"
	messageFragmentCSRF        = "csrf"
	messageFragmentToken       = "token"
	messageFragmentUnauthorize = "unauthorized"
)

// IsProductNotFound reports a 404 caused by an unknown product key.
func IsProductNotFound(err error) bool {
	if !IsStatus(err, http.StatusNotFound) {
		return false
	}
	return code(err) == CodeProductNotFound || strings.Contains(lowerMessage(err), messageProductNotFound)
}

// IsInvalidProduct reports any product-context rejection.
func IsInvalidProduct(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	msg := lowerMessage(err)
	switch {
	case strings.Contains(code(err), codeFragmentProduct):
		return true
	case strings.Contains(msg, messageInvalidProduct), strings.Contains(msg, messageProductNotFound):
		return true
	}

	return apiErr.Status == http.StatusNotFound && strings.Contains(msg, messageFragmentProduct)
}

func IsCSRFRequired(err error) bool {
	if !IsStatus(err, http.StatusForbidden) {
		return false
	}
	return strings.Contains(code(err), codeFragmentCSRF) || strings.Contains(lowerMessage(err), messageFragmentCSRF)
}

func IsAuthRelated(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden {
		return true
	}

	c := code(err)
	if strings.Contains(c, "AUTH") || strings.Contains(c, "TOKEN") || strings.Contains(c, codeFragmentCSRF) {
		return true
	}

	msg := lowerMessage(err)
	return strings.Contains(msg, messageFragmentUnauthorize) ||
		strings.Contains(msg, messageFragmentToken) ||
		strings.Contains(msg, messageFragmentCSRF)
}

// IsSessionWindowEnded reports the backend refusing a refresh because the session window is over.
func IsSessionWindowEnded(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		return false
	}
	return apiErr.Reason == ReasonSessionExpired || strings.Contains(apiErr.Message, ReasonSessionExpired)
}

// IsRetryableRefresh decides whether a failed refresh attempt should move on to the next
// product key candidate. Explicit codes are checked first; the status and message checks
// remain until the backend exposes dedicated codes for every product and CSRF failure.
func IsRetryableRefresh(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	c := code(err)
	if strings.Contains(c, codeFragmentProduct) || strings.Contains(c, codeFragmentCSRF) {
		return true
	}

	switch apiErr.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}

	msg := lowerMessage(err)
	return strings.Contains(msg, messageFragmentProduct) || strings.Contains(msg, messageFragmentCSRF)
}
