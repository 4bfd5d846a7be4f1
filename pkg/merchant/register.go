package merchant

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/seaneb/seaneb-auth/internal/serviceerr"
	"github.com/seaneb/seaneb-auth/pkg/account"
	"github.com/seaneb/seaneb-auth/pkg/apiclient"
	"github.com/seaneb/seaneb-auth/pkg/cookiejar"
	"github.com/seaneb/seaneb-auth/pkg/session"
)

const (
	nameMaxLength      = 30
	defaultAboutBranch = "Head office branch"

	businessCookieMaxAge = 30 * 24 * time.Hour
)

// Registration is the business registration form.
type Registration struct {
	BusinessName   string `yaml:"business_name"`
	DisplayName    string `yaml:"display_name"`
	MainCategoryID string `yaml:"main_category_id"`
	// BusinessType is sent as a number when it parses as one.
	BusinessType   string  `yaml:"business_type"`
	SeanebID       string  `yaml:"seaneb_id"`
	PrimaryNumber  string  `yaml:"primary_number"`
	WhatsAppNumber string  `yaml:"whatsapp_number"`
	BusinessEmail  string  `yaml:"business_email"`
	AboutBranch    string  `yaml:"about_branch"`
	Address        string  `yaml:"address"`
	Landmark       string  `yaml:"landmark"`
	PlaceID        string  `yaml:"place_id"`
	Latitude       float64 `yaml:"latitude"`
	Longitude      float64 `yaml:"longitude"`
	PAN            string  `yaml:"pan"`
	GSTIN          string  `yaml:"gstin"`
	ProductKey     string  `yaml:"product_key"`
}

// Registered is the outcome of a registration. PAN and GSTIN given with the
// registration are verified against the new branch right away.
type Registered struct {
	BusinessID    string
	BranchID      string
	BusinessName  string
	PANVerified   bool
	GSTINVerified bool
}

type registeredRow struct {
	BusinessID      string `mapstructure:"business_id"`
	ID              string `mapstructure:"id"`
	BranchID        string `mapstructure:"branch_id"`
	DefaultBranchID string `mapstructure:"default_branch_id"`
	BusinessName    string `mapstructure:"business_name"`
}

// Register creates the business with its head office branch. When the backend
// has no /business/create the older /business/register is used.
func (s *Service) Register(ctx context.Context, r Registration) (*Registered, error) {
	payload, err := s.registrationPayload(ctx, r)
	if err != nil {
		return nil, err
	}
	key := payload["product_key"].(string)
	ctx = slogctx.With(ctx, "product_key", key)

	resp, err := s.send(ctx, s.client, http.MethodPost, "/business/create", key, nil, payload)
	if serviceerr.IsStatus(err, http.StatusNotFound) || serviceerr.IsStatus(err, http.StatusMethodNotAllowed) {
		slogctx.Warn(ctx, "/business/create unavailable, falling back to /business/register", "error", err)
		resp, err = s.send(ctx, s.client, http.MethodPost, "/business/register", key, nil, payload)
	}
	if err != nil {
		return nil, serviceerr.WithMessage(err, "Registration failed")
	}

	row, err := decodeRegistered(resp)
	if err != nil {
		return nil, err
	}

	res := &Registered{
		BusinessID:   firstNonEmpty(row.BusinessID, row.ID),
		BranchID:     firstNonEmpty(row.BranchID, row.DefaultBranchID),
		BusinessName: payload["business_name"].(string),
	}
	slogctx.Info(ctx, "Business registered", "business_id", res.BusinessID, "branch_id", res.BranchID)

	s.verifyOnRegistration(ctx, r, res)
	s.rememberBusiness(ctx, r, res)

	return res, nil
}

func (s *Service) registrationPayload(ctx context.Context, r Registration) (map[string]any, error) {
	name := limitText(r.BusinessName, nameMaxLength)
	if name == "" {
		return nil, serviceerr.Invalid("business_name", "Business name is required")
	}
	businessType := strings.TrimSpace(r.BusinessType)
	if businessType == "" {
		return nil, serviceerr.Invalid("business_type", "Business type is required")
	}
	placeID := strings.TrimSpace(r.PlaceID)
	if placeID == "" {
		return nil, serviceerr.Invalid("place_id", "Business location is required")
	}

	pan, panOK := NormalizePAN(r.PAN)
	if pan != "" && !panOK {
		return nil, serviceerr.Invalid("pan", "Invalid PAN format")
	}
	gstin, gstinOK := NormalizeGSTIN(r.GSTIN)
	if gstin != "" && !gstinOK {
		return nil, serviceerr.Invalid("gstin", "Invalid GSTIN format")
	}

	mainCategoryID := strings.TrimSpace(r.MainCategoryID)
	if mainCategoryID == "" && s.catalog != nil {
		id, err := s.catalog.ResolveMainCategoryID(ctx)
		if err != nil {
			slogctx.Warn(ctx, "No main category for the business", "error", err)
		}
		mainCategoryID = id
	}

	primary := strings.TrimSpace(r.PrimaryNumber)
	payload := map[string]any{
		"business_name": name,
		"business_type": numberOrString(businessType),
		"place_id":      placeID,
		"latitude":      r.Latitude,
		"longitude":     r.Longitude,
		"product_key":   s.productKey(ctx, r.ProductKey),
	}
	optional := map[string]string{
		"display_name":     limitText(firstNonEmpty(r.DisplayName, name), nameMaxLength),
		"main_category_id": mainCategoryID,
		"seaneb_id":        strings.TrimSpace(r.SeanebID),
		"primary_number":   primary,
		"whatsapp_number":  firstNonEmpty(strings.TrimSpace(r.WhatsAppNumber), primary),
		"business_email":   strings.TrimSpace(r.BusinessEmail),
		"about_branch":     firstNonEmpty(strings.TrimSpace(r.AboutBranch), defaultAboutBranch),
		"address":          strings.TrimSpace(r.Address),
		"landmark":         strings.TrimSpace(r.Landmark),
	}
	// the backend rejects empty optional fields
	for k, v := range optional {
		if v != "" {
			payload[k] = v
		}
	}
	if pan != "" {
		payload["pan"] = map[string]string{"pan_number": pan}
	}
	if gstin != "" {
		payload["gst"] = map[string]string{"gstin": gstin}
	}

	return payload, nil
}

func (s *Service) verifyOnRegistration(ctx context.Context, r Registration, res *Registered) {
	if res.BranchID == "" {
		return
	}

	if pan, ok := NormalizePAN(r.PAN); ok {
		if err := s.VerifyPAN(ctx, pan, res.BranchID); err != nil {
			slogctx.Warn(ctx, "PAN could not be verified after registration", "error", err)
		} else {
			res.PANVerified = true
		}
	}

	if gstin, ok := NormalizeGSTIN(r.GSTIN); ok {
		if err := s.VerifyGST(ctx, gstin, res.BranchID); err != nil {
			slogctx.Warn(ctx, "GSTIN could not be verified after registration", "error", err)
		} else {
			res.GSTINVerified = true
		}
	}
}

func (s *Service) rememberBusiness(ctx context.Context, r Registration, res *Registered) {
	store := s.holder.Store()
	opts := cookiejar.Options{MaxAge: businessCookieMaxAge}

	store.Set(ctx, session.CookieBusinessName, res.BusinessName, opts)
	store.Set(ctx, session.CookieBusinessType, strings.TrimSpace(r.BusinessType), opts)
	store.Set(ctx, session.CookieBusinessLocation, strings.TrimSpace(r.Address), opts)
	store.Set(ctx, session.CookieBusinessID, res.BusinessID, opts)
	store.Set(ctx, session.CookieBranchID, res.BranchID, opts)
	store.Set(ctx, session.CookieProfileCompleted, "true", opts)

	account.MarkBusinessRegistered(ctx, store)
	account.SetDashboardMode(ctx, store, account.ModeBusiness)
}

// Branch is a branch of an existing business.
type Branch struct {
	BusinessID     string `yaml:"business_id"`
	PlaceID        string `yaml:"place_id"`
	SeanebID       string `yaml:"seaneb_id"`
	PrimaryNumber  string `yaml:"primary_number"`
	WhatsAppNumber string `yaml:"whatsapp_number"`
	BusinessEmail  string `yaml:"business_email"`
	AboutBranch    string `yaml:"about_branch"`
	Address        string `yaml:"address"`
	Landmark       string `yaml:"landmark"`
	PAN            string `yaml:"pan"`
	GSTIN          string `yaml:"gstin"`
}

type branchRequest struct {
	BusinessID     string            `json:"business_id"`
	SeanebID       string            `json:"seaneb_id"`
	PrimaryNumber  string            `json:"primary_number"`
	WhatsAppNumber string            `json:"whatsapp_number"`
	BusinessEmail  string            `json:"business_email"`
	AboutBranch    string            `json:"about_branch"`
	Address        string            `json:"address"`
	Landmark       string            `json:"landmark"`
	PlaceID        string            `json:"place_id"`
	PAN            map[string]string `json:"pan"`
	GST            map[string]string `json:"gst"`
	ProductKey     string            `json:"product_key"`
}

// CreateBranch adds a branch and returns its id.
func (s *Service) CreateBranch(ctx context.Context, b Branch) (string, error) {
	businessID := strings.TrimSpace(b.BusinessID)
	if businessID == "" {
		return "", serviceerr.Invalid("business_id", "business_id is required")
	}
	placeID := strings.TrimSpace(b.PlaceID)
	if placeID == "" {
		return "", serviceerr.Invalid("place_id", "place_id is required")
	}

	key := s.products.Key(ctx)
	payload := branchRequest{
		BusinessID:     businessID,
		SeanebID:       strings.TrimSpace(b.SeanebID),
		PrimaryNumber:  strings.TrimSpace(b.PrimaryNumber),
		WhatsAppNumber: strings.TrimSpace(b.WhatsAppNumber),
		BusinessEmail:  strings.TrimSpace(b.BusinessEmail),
		AboutBranch:    strings.TrimSpace(b.AboutBranch),
		Address:        strings.TrimSpace(b.Address),
		Landmark:       strings.TrimSpace(b.Landmark),
		PlaceID:        placeID,
		PAN:            map[string]string{"pan_number": strings.ToUpper(strings.TrimSpace(b.PAN))},
		GST:            map[string]string{"gstin": strings.ToUpper(strings.TrimSpace(b.GSTIN))},
		ProductKey:     key,
	}

	resp, err := s.send(ctx, s.client, http.MethodPost, "/business/create-branch", key, nil, payload)
	if err != nil {
		return "", serviceerr.WithMessage(err, "Branch creation failed")
	}

	row, err := decodeRegistered(resp)
	if err != nil {
		return "", err
	}
	slogctx.Info(ctx, "Branch created", "business_id", businessID, "branch_id", row.BranchID)

	return row.BranchID, nil
}

// decodeRegistered reads ids from the body or its data object. Ids may come
// back as numbers.
func decodeRegistered(resp *apiclient.Response) (registeredRow, error) {
	var body map[string]any
	if err := resp.Decode(&body); err != nil {
		return registeredRow{}, err
	}
	if data, ok := body["data"].(map[string]any); ok {
		body = data
	}

	rows, err := apiclient.DecodeRows[registeredRow]([]map[string]any{body})
	if err != nil {
		return registeredRow{}, err
	}

	return rows[0], nil
}

func numberOrString(v string) any {
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return v
}

func limitText(v string, limit int) string {
	r := []rune(strings.TrimSpace(v))
	if len(r) > limit {
		r = r[:limit]
	}
	return strings.TrimSpace(string(r))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
