package session

// Names of the values the client keeps in its cookie store.
const (
	CookieAccessToken           = "access_token"
	CookieAccessTokenIssuedTime = "access_token_issued_time"
	CookieRefreshToken          = "refresh_token"
	CookieCSRFToken             = "csrf_token"
	CookieCSRFTokenDash         = "csrf-token"
	CookieXSRFToken             = "XSRF-TOKEN"
	CookieXSRFTokenLower        = "xsrf-token"
	CookieCSRFUnderscore        = "_csrf"
	CookieSessionStartTime      = "session_start_time"

	CookieProductKey = "product_key"

	CookieOTPContext             = "otp_context"
	CookieOTPMobile              = "otp_mobile"
	CookieOTPCountryCode         = "otp_cc"
	CookieBusinessMobileOTPUntil = "business_mobile_otp_until"

	CookieMobileVerified         = "mobile_verified"
	CookieVerifiedMobile         = "verified_mobile"
	CookieEmailVerified          = "email_verified"
	CookieVerifiedEmail          = "verified_email"
	CookieVerifiedBusinessEmail  = "verified_business_email"
	CookieVerifiedBusinessMobile = "verified_business_mobile"
	CookieVerifiedPAN            = "verified_pan"
	CookieVerifiedGSTIN          = "verified_gstin"
	CookieProfileCompleted       = "profile_completed"

	CookieRegFormDraft = "reg_form_draft"

	CookieDashboardMode      = "dashboard_mode"
	CookieBusinessRegistered = "business_registered"
	CookieBusinessID         = "business_id"
	CookieBranchID           = "branch_id"
	CookieBusinessName       = "business_name"
	CookieBusinessType       = "business_type"
	CookieBusinessLocation   = "business_location"
)

// HeaderCSRFToken is the request and response header carrying the CSRF token.
const (
	HeaderCSRFToken    = "x-csrf-token"
	HeaderCSRFTokenAlt = "csrf-token"
)

// SessionCookies are removed by ClearAll.
var SessionCookies = []string{
	CookieAccessToken,
	CookieAccessTokenIssuedTime,
	CookieCSRFToken,
	CookieCSRFTokenDash,
	CookieRefreshToken,
	CookieSessionStartTime,
}

// CSRFCookies lists the cookie names a CSRF token may be found under, in lookup order.
var CSRFCookies = []string{
	CookieCSRFToken,
	CookieCSRFTokenDash,
	CookieXSRFToken,
	CookieXSRFTokenLower,
	CookieCSRFUnderscore,
}

// AccountCookies are the per-user values removed on logout or account switch,
// in addition to SessionCookies.
var AccountCookies = []string{
	CookieMobileVerified,
	CookieVerifiedMobile,
	CookieEmailVerified,
	CookieVerifiedEmail,
	CookieVerifiedBusinessEmail,
	CookieVerifiedBusinessMobile,
	CookieVerifiedPAN,
	CookieVerifiedGSTIN,
	CookieProfileCompleted,
	CookieOTPMobile,
	CookieOTPCountryCode,
	CookieOTPContext,
	CookieBusinessMobileOTPUntil,
	CookieRegFormDraft,
	CookieDashboardMode,
	CookieBusinessRegistered,
	CookieBusinessID,
	CookieBranchID,
	CookieBusinessName,
	CookieBusinessType,
	CookieBusinessLocation,
}
