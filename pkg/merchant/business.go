package merchant

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/seaneb/seaneb-auth/internal/serviceerr"
	"github.com/seaneb/seaneb-auth/pkg/apiclient"
)

const autocompleteMinInput = 2

var listPaths = []string{"", "businesses", "data.businesses", "data", "result"}

// Business is the subset of a business record the client uses.
type Business struct {
	ID           string `mapstructure:"business_id" json:"business_id"`
	Name         string `mapstructure:"business_name" json:"business_name"`
	DisplayName  string `mapstructure:"display_name" json:"display_name,omitempty"`
	BusinessType string `mapstructure:"business_type" json:"business_type,omitempty"`
	Description  string `mapstructure:"business_description" json:"business_description,omitempty"`
	PlaceID      string `mapstructure:"place_id" json:"place_id,omitempty"`
	BranchID     string `mapstructure:"branch_id" json:"branch_id,omitempty"`
}

// Update holds the editable fields. Empty fields are left unchanged.
type Update struct {
	BusinessName        string `json:"business_name,omitempty" yaml:"business_name"`
	BusinessType        string `json:"business_type,omitempty" yaml:"business_type"`
	BusinessDescription string `json:"business_description,omitempty" yaml:"business_description"`
	RegistrationNumber  string `json:"registration_number,omitempty" yaml:"registration_number"`
}

func (s *Service) Get(ctx context.Context, id string) (*Business, error) {
	path, err := businessPath(id)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Get(ctx, path, nil, nil)
	if err != nil {
		return nil, err
	}

	return decodeBusiness(resp)
}

func (s *Service) Update(ctx context.Context, id string, u Update) (*Business, error) {
	path, err := businessPath(id)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Put(ctx, path, u, nil)
	if err != nil {
		return nil, err
	}
	slogctx.Info(ctx, "Business updated", "business_id", id)

	return decodeBusiness(resp)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	path, err := businessPath(id)
	if err != nil {
		return err
	}

	if _, err := s.client.Delete(ctx, path, nil); err != nil {
		return err
	}
	slogctx.Info(ctx, "Business deleted", "business_id", id)

	return nil
}

// List returns the businesses of the logged in user.
func (s *Service) List(ctx context.Context) ([]Business, error) {
	resp, err := s.client.Get(ctx, "/business/list", nil, nil)
	if err != nil {
		return nil, err
	}

	return apiclient.DecodeRows[Business](resp.Rows(listPaths...))
}

// Autocomplete suggests businesses whose name contains input. Each candidate
// product key is tried until one yields suggestions; an auth failure is
// retried without credentials. Failures yield an empty list.
func (s *Service) Autocomplete(ctx context.Context, input string) []Business {
	input = strings.TrimSpace(input)
	if len([]rune(input)) < autocompleteMinInput {
		return []Business{}
	}

	query := url.Values{"input": {input}}
	for _, key := range s.products.Candidates(ctx) {
		list, err := s.autocomplete(ctx, s.client, key, query)
		if err != nil && serviceerr.IsAuthRelated(err) {
			slogctx.Info(ctx, "Autocomplete auth failed, retrying without credentials", "product_key", key, "error", err)
			list, err = s.autocomplete(ctx, s.public, key, query)
		}

		switch {
		case err == nil && len(list) > 0:
			return list
		case err == nil:
			continue
		case serviceerr.IsInvalidProduct(err):
			slogctx.Debug(ctx, "Autocomplete product rejected, trying next key", "product_key", key)
			continue
		default:
			slogctx.Warn(ctx, "Business autocomplete failed", "error", err)
			return []Business{}
		}
	}

	return []Business{}
}

func (s *Service) autocomplete(ctx context.Context, client *apiclient.Client, key string, query url.Values) ([]Business, error) {
	resp, err := s.send(ctx, client, http.MethodGet, "/business/autocomplete", key, query, nil)
	if err != nil {
		return nil, err
	}

	return apiclient.DecodeRows[Business](resp.Rows(listPaths...))
}

func businessPath(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", serviceerr.Invalid("business_id", "Business ID is required")
	}
	return "/business/" + url.PathEscape(id), nil
}

func decodeBusiness(resp *apiclient.Response) (*Business, error) {
	var body map[string]any
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	if data, ok := body["data"].(map[string]any); ok {
		body = data
	}

	list, err := apiclient.DecodeRows[Business]([]map[string]any{body})
	if err != nil {
		return nil, err
	}

	return &list[0], nil
}
