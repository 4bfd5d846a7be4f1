package otp_test

import (
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaneb/seaneb-auth/internal/backendtest"
	"github.com/seaneb/seaneb-auth/internal/serviceerr"
	"github.com/seaneb/seaneb-auth/pkg/catalog"
	"github.com/seaneb/seaneb-auth/pkg/cookiejar"
	"github.com/seaneb/seaneb-auth/pkg/otp"
	"github.com/seaneb/seaneb-auth/pkg/session"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	backend *backendtest.Backend
	harness *backendtest.Harness
	clock   *clock
	otp     *otp.Service
}

func setup(t *testing.T, opts ...backendtest.Option) *fixture {
	t.Helper()

	c := &clock{now: time.Now()}
	b := backendtest.New(t, opts...)
	h := backendtest.NewHarness(t, b, backendtest.WithHolderOptions(session.WithClock(c.Now)))

	return &fixture{
		backend: b,
		harness: h,
		clock:   c,
		otp:     otp.New(h.Client, h.Products, catalog.New(h.Client, h.Products)),
	}
}

func (f *fixture) get(t *testing.T, name string) (string, bool) {
	t.Helper()
	return f.harness.Store.Get(t.Context(), name)
}

func mustParseInt(t *testing.T, s string) int64 {
	t.Helper()

	n, err := strconv.ParseInt(s, 10, 64)
	require.NoError(t, err)

	return n
}

func TestMobileLoginScenario(t *testing.T) {
	f := setup(t)
	ctx := t.Context()

	err := f.otp.StartMobile(ctx, otp.MobileRequest{
		CountryCode:  "+91",
		MobileNumber: "9876543210",
		Purpose:      otp.PurposeLogin,
		Via:          otp.ViaWhatsApp,
		RedirectTo:   "/dashboard",
	})
	require.NoError(t, err)

	stored, ok := cookiejar.GetJSON[otp.Context](ctx, f.harness.Store, session.CookieOTPContext)
	require.True(t, ok)
	assert.Equal(t, otp.Context{
		Version:      1,
		Type:         otp.KindMobile,
		CountryCode:  "91",
		MobileNumber: "9876543210",
		Purpose:      0,
		RedirectTo:   "/dashboard",
		Via:          "whatsapp",
	}, stored)

	send := f.backend.CallsTo("/otp/send-otp")
	require.Len(t, send, 1)
	assert.Equal(t, map[string]any{
		"identifier_type": float64(0),
		"country_code":    "91",
		"mobile_number":   "9876543210",
		"purpose":         float64(0),
		"via":             "whatsapp",
		"product_key":     "property",
	}, send[0].Body)

	// wrong code
	_, err = f.otp.VerifyOTP(ctx, "0000")
	require.Error(t, err)
	assert.Equal(t, "Invalid OTP", serviceerr.Message(err, ""))
	_, ok = f.get(t, session.CookieMobileVerified)
	assert.False(t, ok)
	_, ok = f.get(t, session.CookieOTPContext)
	assert.True(t, ok, "the context survives a failed attempt")

	// right code
	f.clock.Advance(10 * time.Second)
	verifiedAt := f.clock.Now()

	res, err := f.otp.VerifyOTP(ctx, backendtest.DefaultOTP)
	require.NoError(t, err)

	assert.False(t, res.ExistingUser)
	assert.Equal(t, "/dashboard", res.RedirectTo)
	assert.Equal(t, verifiedAt, res.SessionStartedAt)

	value, _ := f.get(t, session.CookieMobileVerified)
	assert.Equal(t, "true", value)

	mobile, ok := cookiejar.GetJSON[map[string]string](ctx, f.harness.Store, session.CookieVerifiedMobile)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"country_code": "91", "mobile_number": "9876543210"}, mobile)

	started, ok := f.harness.Holder.SessionStartTime(ctx)
	require.True(t, ok)
	assert.Equal(t, verifiedAt.UnixMilli(), started.UnixMilli())

	assert.NotEmpty(t, f.harness.Holder.AccessToken(ctx))
	assert.NotEmpty(t, f.harness.Holder.CSRFToken(ctx), "taken from the x-csrf-token header")
	assert.Empty(t, f.harness.Holder.RefreshToken(ctx), "the refresh token is HttpOnly")
	_, ok = f.get(t, cookiejar.HTTPOnlyName("refresh_token"))
	assert.True(t, ok)

	_, ok = f.get(t, session.CookieOTPContext)
	assert.False(t, ok)
	_, ok = f.get(t, session.CookieProfileCompleted)
	assert.False(t, ok, "new users still have to complete the profile")

	// the new session works against protected endpoints
	_, err = f.harness.Client.Get(ctx, "/business/list", nil, nil)
	require.NoError(t, err)
}

func TestVerifyOTP_ExistingUserAndBodyTokens(t *testing.T) {
	f := setup(t,
		backendtest.WithExistingUser("9876543210"),
		backendtest.WithRefreshTokenInBody(),
	)
	ctx := t.Context()

	require.NoError(t, f.otp.StartMobile(ctx, otp.MobileRequest{CountryCode: "91", MobileNumber: "9876543210"}))

	res, err := f.otp.VerifyOTP(ctx, " "+backendtest.DefaultOTP+" ")
	require.NoError(t, err)

	assert.True(t, res.ExistingUser)
	assert.NotEmpty(t, f.harness.Holder.RefreshToken(ctx))
	value, _ := f.get(t, session.CookieProfileCompleted)
	assert.Equal(t, "true", value)
}

func TestVerifyOTP_CodeFormat(t *testing.T) {
	f := setup(t)
	ctx := t.Context()
	require.NoError(t, f.otp.StartMobile(ctx, otp.MobileRequest{CountryCode: "91", MobileNumber: "9876543210"}))

	for _, code := range []string{"", "123", "12345", "12a4"} {
		_, err := f.otp.VerifyOTP(ctx, code)
		assert.EqualError(t, err, "OTP must be 4 digits", code)
		assert.True(t, serviceerr.IsValidation(err))
	}

	assert.Empty(t, f.backend.CallsTo("/otp/verify-otp"))
}

func TestOTPContextErrors(t *testing.T) {
	f := setup(t)
	ctx := t.Context()

	err := f.otp.SendOTP(ctx, "")
	assert.ErrorIs(t, err, serviceerr.ErrOTPContextMissing)
	assert.EqualError(t, err, "OTP context missing")

	_, err = f.otp.VerifyOTP(ctx, "1234")
	assert.ErrorIs(t, err, serviceerr.ErrOTPContextMissing)

	cookiejar.SetJSON(ctx, f.harness.Store, session.CookieOTPContext,
		otp.Context{Version: 1, Type: otp.KindMobile, CountryCode: "91"}, cookiejar.Options{MaxAge: time.Minute})
	err = f.otp.SendOTP(ctx, "")
	assert.ErrorIs(t, err, serviceerr.ErrInvalidOTPContext)
	assert.EqualError(t, err, "invalid OTP context - missing country_code or mobile_number")

	cookiejar.SetJSON(ctx, f.harness.Store, session.CookieOTPContext,
		otp.Context{Version: 7, Type: otp.KindMobile, CountryCode: "91", MobileNumber: "9876543210"}, cookiejar.Options{MaxAge: time.Minute})
	assert.ErrorIs(t, f.otp.SendOTP(ctx, ""), serviceerr.ErrInvalidOTPContext)

	f.harness.Store.Set(ctx, session.CookieOTPContext, "{not json", cookiejar.Options{MaxAge: time.Minute})
	assert.ErrorIs(t, f.otp.SendOTP(ctx, ""), serviceerr.ErrOTPContextMissing)

	assert.Empty(t, f.backend.Calls())
}

func TestNormalizeMobile(t *testing.T) {
	tests := []struct {
		name       string
		cc         string
		mobile     string
		wantCC     string
		wantMobile string
		wantErr    string
	}{
		{name: "india", cc: "+91", mobile: " 9876543210 ", wantCC: "91", wantMobile: "9876543210"},
		{name: "india short", cc: "91", mobile: "98765", wantErr: "Enter a valid 10-digit mobile number"},
		{name: "other country", cc: "1", mobile: "4155550100", wantCC: "1", wantMobile: "4155550100"},
		{name: "other country too short", cc: "44", mobile: "12345", wantErr: "Enter a valid mobile number"},
		{name: "letters", cc: "91", mobile: "98765abcde", wantErr: "Enter a valid mobile number"},
		{name: "missing country code", cc: "", mobile: "9876543210", wantErr: "Invalid country code"},
		{name: "bad country code", cc: "+9a", mobile: "9876543210", wantErr: "Invalid country code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cc, mobile, err := otp.NormalizeMobile(tt.cc, tt.mobile)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCC, cc)
			assert.Equal(t, tt.wantMobile, mobile)
		})
	}
}

func TestStartMobile_Validation(t *testing.T) {
	f := setup(t)
	ctx := t.Context()

	err := f.otp.StartMobile(ctx, otp.MobileRequest{CountryCode: "91", MobileNumber: "9876543210", Via: "pigeon"})
	assert.True(t, serviceerr.IsValidation(err))

	err = f.otp.StartMobile(ctx, otp.MobileRequest{CountryCode: "91", MobileNumber: "9876543210", Purpose: otp.PurposeSignupEmail})
	assert.True(t, serviceerr.IsValidation(err))

	_, ok := f.get(t, session.CookieOTPContext)
	assert.False(t, ok)
	assert.Empty(t, f.backend.Calls())
}

func TestSendOTP_ProvisionsMissingProduct(t *testing.T) {
	f := setup(t, backendtest.WithProducts("seaneb"))
	ctx := t.Context()

	err := f.otp.StartMobile(ctx, otp.MobileRequest{CountryCode: "91", MobileNumber: "9876543210", Via: otp.ViaSMS})
	require.NoError(t, err)

	assert.Len(t, f.backend.CallsTo("/otp/send-otp"), 2)
	products := f.backend.CallsTo("/products")
	require.Len(t, products, 1)
	assert.Equal(t, "property", products[0].Body["product_key"])
	assert.Equal(t, "sms", f.backend.CallsTo("/otp/send-otp")[1].Body["via"])

	res, err := f.otp.VerifyOTP(ctx, backendtest.DefaultOTP)
	require.NoError(t, err)
	assert.False(t, res.ExistingUser)
}

func TestSendOTP_FailureMessage(t *testing.T) {
	f := setup(t)
	ctx := t.Context()
	f.backend.FailNext("/otp/send-otp", http.StatusTooManyRequests, `{}`)

	err := f.otp.StartMobile(ctx, otp.MobileRequest{CountryCode: "91", MobileNumber: "9876543210"})
	require.Error(t, err)

	assert.EqualError(t, err, "Failed to send OTP")
	assert.True(t, serviceerr.IsStatus(err, http.StatusTooManyRequests))
	assert.Zero(t, f.otp.Cooldown(ctx), "a failed send does not start the cooldown")
}

func TestSendOTP_Cooldown(t *testing.T) {
	f := setup(t)
	ctx := t.Context()

	require.NoError(t, f.otp.StartMobile(ctx, otp.MobileRequest{CountryCode: "91", MobileNumber: "9876543210"}))
	assert.Equal(t, otp.ResendCooldown, f.otp.Cooldown(ctx))

	f.clock.Advance(10 * time.Second)
	err := f.otp.SendOTP(ctx, otp.ViaSMS)
	assert.ErrorIs(t, err, serviceerr.ErrResendCooldown)
	assert.Equal(t, 20*time.Second, f.otp.Cooldown(ctx))

	f.clock.Advance(20 * time.Second)
	require.NoError(t, f.otp.SendOTP(ctx, otp.ViaSMS))
	assert.Len(t, f.backend.CallsTo("/otp/send-otp"), 2)
}

func TestBusinessMobileVerification(t *testing.T) {
	f := setup(t)
	ctx := t.Context()

	err := f.otp.StartMobile(ctx, otp.MobileRequest{
		CountryCode:  "91",
		MobileNumber: "9123456780",
		Purpose:      otp.PurposeBusinessMobile,
		RedirectTo:   "/auth/business-register",
	})
	require.NoError(t, err)
	assert.Equal(t, otp.BusinessResendCooldown, f.otp.Cooldown(ctx))

	until, ok := f.get(t, session.CookieBusinessMobileOTPUntil)
	require.True(t, ok)
	assert.Equal(t, f.clock.Now().Add(otp.BusinessResendCooldown).UnixMilli(), mustParseInt(t, until))

	res, err := f.otp.VerifyOTP(ctx, backendtest.DefaultOTP)
	require.NoError(t, err)
	assert.Equal(t, "/auth/business-register", res.RedirectTo)

	_, ok = cookiejar.GetJSON[map[string]string](ctx, f.harness.Store, session.CookieVerifiedBusinessMobile)
	assert.True(t, ok)
	_, ok = f.get(t, session.CookieMobileVerified)
	assert.False(t, ok)
	_, ok = f.get(t, session.CookieBusinessMobileOTPUntil)
	assert.False(t, ok)
}

func TestBusinessMobileVerification_KeepsSessionWindow(t *testing.T) {
	f := setup(t)
	ctx := t.Context()
	f.harness.Login(t, f.backend, "9876543210")
	loginAt := f.clock.Now()
	f.clock.Advance(time.Hour)

	require.NoError(t, f.otp.StartMobile(ctx, otp.MobileRequest{
		CountryCode:  "91",
		MobileNumber: "9123456780",
		Purpose:      otp.PurposeBusinessMobile,
	}))
	res, err := f.otp.VerifyOTP(ctx, backendtest.DefaultOTP)
	require.NoError(t, err)

	start, ok := f.harness.Holder.SessionStartTime(ctx)
	require.True(t, ok)
	assert.Equal(t, loginAt.UnixMilli(), start.UnixMilli())
	assert.Equal(t, loginAt.UnixMilli(), res.SessionStartedAt.UnixMilli())
}

func TestEmailVerification(t *testing.T) {
	t.Run("signup email", func(t *testing.T) {
		f := setup(t)
		ctx := t.Context()

		require.NoError(t, f.otp.StartEmail(ctx, otp.EmailRequest{Email: " user@example.com "}))

		send := f.backend.CallsTo("/auth/email/send-otp")
		require.Len(t, send, 1)
		assert.Equal(t, map[string]any{"email": "user@example.com", "purpose": float64(1)}, send[0].Body)

		_, err := f.otp.VerifyEmailOTP(ctx, "9999")
		assert.EqualError(t, err, "Invalid email OTP")
		_, ok := f.get(t, session.CookieEmailVerified)
		assert.False(t, ok)

		_, err = f.otp.VerifyEmailOTP(ctx, backendtest.DefaultOTP)
		require.NoError(t, err)

		value, _ := f.get(t, session.CookieEmailVerified)
		assert.Equal(t, "true", value)
		value, _ = f.get(t, session.CookieVerifiedEmail)
		assert.Equal(t, "user@example.com", value)
		_, ok = f.get(t, session.CookieOTPContext)
		assert.False(t, ok)
	})

	t.Run("business email", func(t *testing.T) {
		f := setup(t)
		ctx := t.Context()

		require.NoError(t, f.otp.StartEmail(ctx, otp.EmailRequest{Email: "shop@example.com", Purpose: otp.PurposeBusinessEmail}))
		_, err := f.otp.VerifyEmailOTP(ctx, backendtest.DefaultOTP)
		require.NoError(t, err)

		value, _ := f.get(t, session.CookieVerifiedBusinessEmail)
		assert.Equal(t, "shop@example.com", value)
		_, ok := f.get(t, session.CookieEmailVerified)
		assert.False(t, ok)
	})

	t.Run("validation", func(t *testing.T) {
		f := setup(t)
		ctx := t.Context()

		assert.EqualError(t, f.otp.StartEmail(ctx, otp.EmailRequest{}), "Email is required and must be a string")
		assert.EqualError(t, f.otp.StartEmail(ctx, otp.EmailRequest{Email: "not-an-email"}), "Enter a valid email address")
		assert.True(t, serviceerr.IsValidation(f.otp.StartEmail(ctx, otp.EmailRequest{Email: "a@b.co", Purpose: otp.PurposeBusinessMobile})))

		require.NoError(t, f.otp.StartMobile(ctx, otp.MobileRequest{CountryCode: "91", MobileNumber: "9876543210"}))
		assert.ErrorIs(t, f.otp.SendEmailOTP(ctx), serviceerr.ErrInvalidOTPContext)
		assert.Empty(t, f.backend.CallsTo("/auth/email/send-otp"))
	})
}
