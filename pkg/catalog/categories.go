package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/seaneb/seaneb-auth/internal/serviceerr"
	"github.com/seaneb/seaneb-auth/pkg/apiclient"
)

// PreferredMainCategory is picked by ResolveMainCategoryID when it exists.
const PreferredMainCategory = "Real Estate"

var categoryPaths = []string{"", "data", "categories", "data.categories", "rows"}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// categoryRow covers the field names the category endpoints have been seen to use.
type categoryRow struct {
	MainCategoryID   string `mapstructure:"main_category_id"`
	CategoryID       string `mapstructure:"category_id"`
	ID               string `mapstructure:"id"`
	MainCategoryName string `mapstructure:"main_category_name"`
	CategoryName     string `mapstructure:"category_name"`
	Name             string `mapstructure:"name"`
}

func (r categoryRow) category() Category {
	return Category{
		ID:   strings.TrimSpace(firstNonEmpty(r.MainCategoryID, r.CategoryID, r.ID)),
		Name: strings.TrimSpace(firstNonEmpty(r.MainCategoryName, r.CategoryName, r.Name)),
	}
}

// CreateMainCategory creates the category and returns its id. When it already
// exists the id of the existing category is returned.
func (s *Service) CreateMainCategory(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", serviceerr.Invalid("main_category_name", "Category name is required")
	}

	var resp *apiclient.Response
	err := s.withRecovery(ctx, func() error {
		var err error
		resp, err = s.client.Post(ctx, "/category/create", map[string]string{
			"main_category_name": name,
			"product_key":        s.products.Key(ctx),
		}, nil)
		return err
	})

	var apiErr *serviceerr.APIError
	if serviceerr.IsConflict(err) || (errors.As(err, &apiErr) && apiErr.Code == serviceerr.CodeCategoryAlreadyExists) {
		slogctx.Info(ctx, "Category already exists, looking it up", "name", name)

		existing, lerr := s.ActiveCategories(ctx)
		if lerr != nil {
			return "", lerr
		}
		return findByName(existing, name).ID, nil
	}
	if err != nil {
		return "", err
	}

	var row map[string]any
	if err := resp.Decode(&row); err != nil {
		return "", err
	}
	created, err := toCategories([]map[string]any{row})
	if err != nil {
		return "", err
	}
	slogctx.Info(ctx, "Category created", "name", name, "main_category_id", created[0].ID)

	return created[0].ID, nil
}

// ActiveCategories lists the active main categories. When the backend has none
// for the working product, the categories of the first product are returned.
func (s *Service) ActiveCategories(ctx context.Context) ([]Category, error) {
	list, err := s.categoriesList(ctx)
	if err != nil {
		return nil, err
	}
	if len(list) > 0 {
		return list, nil
	}

	products, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return list, nil
	}

	return s.CategoriesForProduct(ctx, products[0].ID)
}

// MainCategoryID returns the first active main category, or "" when there is none.
func (s *Service) MainCategoryID(ctx context.Context) (string, error) {
	list, err := s.categoriesList(ctx)
	if err != nil {
		return "", err
	}

	return firstID(list), nil
}

func (s *Service) CategoriesForProduct(ctx context.Context, productID string) ([]Category, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return []Category{}, nil
	}

	var resp *apiclient.Response
	err := s.withRecovery(ctx, func() error {
		var err error
		resp, err = s.client.Post(ctx, "/category/list", map[string]string{
			"product_id":  productID,
			"product_key": s.products.Key(ctx),
		}, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	return toCategories(resp.Rows(categoryPaths...))
}

// ResolveMainCategoryID picks the main category new businesses are filed under:
// the preferred category, else the first active one, else the first category
// of the first product.
func (s *Service) ResolveMainCategoryID(ctx context.Context) (string, error) {
	list, err := s.ActiveCategories(ctx)
	if err != nil {
		slogctx.Warn(ctx, "Listing active categories failed", "error", err)
	}
	if c := findByName(list, PreferredMainCategory); c.ID != "" {
		return c.ID, nil
	}
	if id := firstID(list); id != "" {
		return id, nil
	}

	products, err := s.List(ctx)
	if err != nil {
		return "", fmt.Errorf("listing products: %w", err)
	}
	if len(products) == 0 {
		return "", fmt.Errorf("%w: no products to take a category from", serviceerr.ErrNotFound)
	}

	byProduct, err := s.CategoriesForProduct(ctx, products[0].ID)
	if err != nil {
		return "", err
	}
	if id := firstID(byProduct); id != "" {
		return id, nil
	}

	return "", fmt.Errorf("%w: no main category", serviceerr.ErrNotFound)
}

func (s *Service) categoriesList(ctx context.Context) ([]Category, error) {
	var resp *apiclient.Response
	err := s.withRecovery(ctx, func() error {
		var err error
		resp, err = s.client.Get(ctx, "/category/categorieslist", url.Values{"product_key": {s.products.Key(ctx)}}, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	return toCategories(resp.Rows(categoryPaths...))
}

// withRecovery runs fn again after one more refresh when it still ends in a 401.
func (s *Service) withRecovery(ctx context.Context, fn func() error) error {
	err := fn()
	if !serviceerr.IsUnauthorized(err) {
		return err
	}

	slogctx.Info(ctx, "Category request unauthorized, refreshing once more")
	if _, rerr := s.client.Refresh(ctx); rerr != nil {
		return rerr
	}

	return fn()
}

func toCategories(rows []map[string]any) ([]Category, error) {
	decoded, err := apiclient.DecodeRows[categoryRow](rows)
	if err != nil {
		return nil, err
	}

	list := make([]Category, 0, len(decoded))
	for _, row := range decoded {
		list = append(list, row.category())
	}

	return list, nil
}

func findByName(list []Category, name string) Category {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return Category{}
	}

	for _, c := range list {
		if strings.ToLower(c.Name) == needle && c.ID != "" {
			return c
		}
	}

	return Category{}
}

func firstID(list []Category) string {
	for _, c := range list {
		if c.ID != "" {
			return c.ID
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
