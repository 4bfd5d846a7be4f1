package merchant

import (
	"context"
	"net/http"
	"strings"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/seaneb/seaneb-auth/internal/serviceerr"
	"github.com/seaneb/seaneb-auth/pkg/cookiejar"
	"github.com/seaneb/seaneb-auth/pkg/session"
)

const verifiedMaxAge = 7 * 24 * time.Hour

type panRequest struct {
	PAN        string `json:"pan"`
	BranchID   string `json:"branch_id"`
	ProductKey string `json:"product_key"`
}

type gstRequest struct {
	GSTIN      string `json:"gstin"`
	BranchID   string `json:"branch_id"`
	ProductKey string `json:"product_key"`
}

// VerifyPAN verifies pan for the branch. The format is checked before anything
// is sent.
func (s *Service) VerifyPAN(ctx context.Context, pan, branchID string) error {
	pan, ok := NormalizePAN(pan)
	switch {
	case pan == "":
		return serviceerr.Invalid("pan", "PAN is required")
	case !ok:
		return serviceerr.Invalid("pan", "Invalid PAN number")
	}
	branchID = strings.TrimSpace(branchID)
	if branchID == "" {
		return serviceerr.Invalid("branch_id", "branch_id is required for PAN verification")
	}

	key := s.products.Key(ctx)
	payload := panRequest{PAN: pan, BranchID: branchID, ProductKey: key}
	if _, err := s.send(ctx, s.client, http.MethodPost, "/verification/verify-pan", key, nil, payload); err != nil {
		return serviceerr.WithMessage(err, "PAN verification failed")
	}

	s.holder.Store().Set(ctx, session.CookieVerifiedPAN, pan, cookiejar.Options{MaxAge: verifiedMaxAge})
	slogctx.Info(ctx, "PAN verified", "branch_id", branchID)

	return nil
}

// VerifyGST verifies gstin for the branch. The format is checked before
// anything is sent.
func (s *Service) VerifyGST(ctx context.Context, gstin, branchID string) error {
	gstin, ok := NormalizeGSTIN(gstin)
	switch {
	case gstin == "":
		return serviceerr.Invalid("gstin", "GSTIN is required")
	case !ok:
		return serviceerr.Invalid("gstin", "Invalid GSTIN number")
	}
	branchID = strings.TrimSpace(branchID)
	if branchID == "" {
		return serviceerr.Invalid("branch_id", "branch_id is required for GST verification")
	}

	key := s.products.Key(ctx)
	payload := gstRequest{GSTIN: gstin, BranchID: branchID, ProductKey: key}
	if _, err := s.send(ctx, s.client, http.MethodPost, "/verification/verify-gst", key, nil, payload); err != nil {
		return serviceerr.WithMessage(err, "GST verification failed")
	}

	s.holder.Store().Set(ctx, session.CookieVerifiedGSTIN, gstin, cookiejar.Options{MaxAge: verifiedMaxAge})
	slogctx.Info(ctx, "GSTIN verified", "branch_id", branchID)

	return nil
}
