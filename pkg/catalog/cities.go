package catalog

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/seaneb/seaneb-auth/pkg/apiclient"
)

const (
	cityMinInput = 2
	cityLimit    = 20
)

type City struct {
	PlaceID     string `mapstructure:"place_id" json:"place_id"`
	Name        string `mapstructure:"city_name" json:"city_name"`
	Description string `mapstructure:"description" json:"description,omitempty"`
	State       string `mapstructure:"state" json:"state,omitempty"`
	Country     string `mapstructure:"country" json:"country,omitempty"`
}

// Cities suggests cities for input. Inputs shorter than two characters and
// failures both yield an empty list.
func (s *Service) Cities(ctx context.Context, input string) []City {
	input = strings.TrimSpace(input)
	if len([]rune(input)) < cityMinInput {
		return []City{}
	}

	cities, err := s.cities(ctx, "/cities", url.Values{
		"search": {input},
		"limit":  {strconv.Itoa(cityLimit)},
	}, "", "cities")
	if err != nil {
		slogctx.Warn(ctx, "City search failed", "error", err)
		return []City{}
	}
	if len(cities) > 0 {
		return cities
	}

	cities, err = s.cities(ctx, "/autocomplete-cities", url.Values{"input": {input}}, "cities")
	if err != nil {
		slogctx.Warn(ctx, "City autocomplete failed", "error", err)
		return []City{}
	}

	return cities
}

func (s *Service) cities(ctx context.Context, path string, query url.Values, paths ...string) ([]City, error) {
	resp, err := s.client.Get(ctx, path, query, nil)
	if err != nil {
		return nil, err
	}

	return apiclient.DecodeRows[City](resp.Rows(paths...))
}
