package backendtest

import (
	"net/http"
	"regexp"
	"time"
)

var digits = regexp.MustCompile(`^[0-9]+$`)

func (b *Backend) sendOTP(w http.ResponseWriter, r *http.Request) {
	body := decode(r)

	if !digits.MatchString(str(body, "country_code")) || !digits.MatchString(str(body, "mobile_number")) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "country_code and mobile_number are required")
		return
	}

	b.mu.Lock()
	known := b.knownProductLocked(str(body, "product_key"))
	b.mu.Unlock()
	if !known {
		writeError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "OTP sent successfully"})
}

func (b *Backend) verifyOTP(w http.ResponseWriter, r *http.Request) {
	body := decode(r)
	mobile := str(body, "mobile_number")

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.knownProductLocked(str(body, "product_key")) {
		writeError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found")
		return
	}
	if str(body, "otp") != b.otp {
		writeError(w, http.StatusBadRequest, "INVALID_OTP", "Invalid OTP")
		return
	}

	s, tokens := b.newSessionLocked(mobile)

	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    s.refreshToken,
		Path:     "/",
		MaxAge:   int((30 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
	})
	w.Header().Set("x-csrf-token", tokens.CSRFToken)

	resp := map[string]any{
		"success":          true,
		"access_token":     tokens.AccessToken,
		"is_existing_user": b.existingUsers[mobile],
	}
	if b.refreshTokenInBody {
		resp["refresh_token"] = s.refreshToken
	}
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) sendEmailOTP(w http.ResponseWriter, r *http.Request) {
	body := decode(r)
	if str(body, "email") == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Email is required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "OTP sent to email"})
}

func (b *Backend) verifyEmailOTP(w http.ResponseWriter, r *http.Request) {
	body := decode(r)

	b.mu.Lock()
	otp := b.otp
	b.mu.Unlock()

	if str(body, "otp") != otp {
		writeError(w, http.StatusBadRequest, "INVALID_OTP", "Invalid email OTP")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "verified": true, "email": str(body, "email")})
}

func (b *Backend) refresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)
	if b.refreshGate != nil {
		<-b.refreshGate
	}

	csrf := r.Header.Get("x-csrf-token")
	if csrf == "" {
		writeError(w, http.StatusForbidden, "CSRF_REQUIRED", "CSRF token is required")
		return
	}

	body := decode(r)
	refreshToken := str(body, "refresh_token")
	if c, err := r.Cookie(refreshCookie); err == nil && c.Value != "" {
		refreshToken = c.Value
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[b.refreshTokens[refreshToken]]
	if !ok {
		writeError(w, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Refresh token is invalid")
		return
	}
	if !ValidateCSRFToken(csrf, s.id, b.secret) {
		writeError(w, http.StatusForbidden, "CSRF_MISMATCH", "Invalid CSRF token")
		return
	}

	key := str(body, "product_key")
	accepted := b.knownProductLocked(key)
	if b.refreshKeys != nil {
		accepted = b.refreshKeys[key]
	}
	if !accepted {
		writeError(w, http.StatusBadRequest, "INVALID_PRODUCT", "Invalid or inactive product")
		return
	}

	if time.Since(s.start) >= b.sessionTTL {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false,
			"reason":  "SESSION_EXPIRED",
			"message": "SESSION_EXPIRED: please login again",
		})
		return
	}

	newCSRF := NewCSRFToken(s.id, b.secret)
	w.Header().Set("x-csrf-token", newCSRF)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"access_token": b.accessTokenLocked(s.id),
		"csrf_token":   newCSRF,
	})
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(refreshCookie); err == nil {
		b.mu.Lock()
		if id, ok := b.refreshTokens[c.Value]; ok {
			delete(b.sessions, id)
			delete(b.refreshTokens, c.Value)
		}
		b.mu.Unlock()
	}

	http.SetCookie(w, &http.Cookie{Name: refreshCookie, Path: "/", MaxAge: -1, HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out"})
}

func (b *Backend) signup(w http.ResponseWriter, r *http.Request) {
	body := decode(r)

	b.mu.Lock()
	known := b.knownProductLocked(str(body, "product_key"))
	b.mu.Unlock()
	if !known {
		writeError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found")
		return
	}

	for _, field := range []string{"country_code", "mobile_number", "email", "dob", "place_id", "gender"} {
		if str(body, field) == "" {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", field+" is required")
			return
		}
	}
	if _, err := time.Parse(time.DateOnly, str(body, "dob")); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "dob must be YYYY-MM-DD")
		return
	}

	b.mu.Lock()
	b.existingUsers[str(body, "mobile_number")] = true
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Signup successful",
		"user": map[string]any{
			"first_name": str(body, "first_name"),
			"email":      str(body, "email"),
		},
	})
}
