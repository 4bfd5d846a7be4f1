package catalog_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaneb/seaneb-auth/internal/backendtest"
	"github.com/seaneb/seaneb-auth/internal/serviceerr"
	"github.com/seaneb/seaneb-auth/pkg/catalog"
)

func setup(t *testing.T, opts ...backendtest.Option) (*backendtest.Backend, *backendtest.Harness, *catalog.Service) {
	t.Helper()

	b := backendtest.New(t, opts...)
	h := backendtest.NewHarness(t, b)

	return b, h, catalog.New(h.Client, h.Products)
}

func TestList(t *testing.T) {
	t.Run("first product becomes the working product", func(t *testing.T) {
		b, h, svc := setup(t, backendtest.WithProducts("land", "property"))
		h.Login(t, b, "9876543210")

		list, err := svc.List(t.Context())
		require.NoError(t, err)

		require.Len(t, list, 2)
		assert.Equal(t, catalog.Product{ID: "prod-1", Key: "land", Name: "Land"}, list[0])
		assert.Equal(t, "land", h.Products.Key(t.Context()))

		call := b.CallsTo("/products")[0]
		assert.Equal(t, "product_key=property", call.Query)
		assert.NotEmpty(t, call.Header.Get("Authorization"))
	})

	t.Run("default product is created when there is none", func(t *testing.T) {
		b, h, svc := setup(t, backendtest.WithProducts())
		h.Login(t, b, "9876543210")

		list, err := svc.List(t.Context())
		require.NoError(t, err)

		require.Len(t, list, 1)
		assert.Equal(t, "property", list[0].Key)

		created := b.CallsTo("/products")[1]
		assert.Equal(t, http.MethodPost, created.Method)
		assert.Equal(t, map[string]any{"product_key": "property", "product_name": "Property"}, created.Body)
	})

	t.Run("no session means no request", func(t *testing.T) {
		b, _, svc := setup(t)

		list, err := svc.List(t.Context())
		require.NoError(t, err)

		assert.Empty(t, list)
		assert.Empty(t, b.Calls())
	})
}

func TestEnsureProduct(t *testing.T) {
	b, _, svc := setup(t)

	require.NoError(t, svc.EnsureProduct(t.Context()), "existing product is fine")
	assert.Len(t, b.Products(), 1)

	b.FailNext("/products", http.StatusInternalServerError, `{"error":{"message":"boom"}}`)
	assert.Error(t, svc.EnsureProduct(t.Context()))
}

func TestPublicProducts(t *testing.T) {
	b, h, svc := setup(t, backendtest.WithProducts("property", "land"))
	h.Login(t, b, "9876543210")
	ctx := t.Context()

	list, err := svc.ListPublic(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	p, err := svc.GetPublic(ctx, "prod-2")
	require.NoError(t, err)
	assert.Equal(t, "land", p.Key)

	found, err := svc.SearchPublic(ctx, "lan")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "prod-2", found[0].ID)

	none, err := svc.SearchPublic(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, none)

	for _, call := range b.Calls() {
		assert.Empty(t, call.Header.Get("Authorization"), call.Path)
	}

	_, err = svc.GetPublic(ctx, "missing")
	assert.True(t, serviceerr.IsStatus(err, http.StatusNotFound))
	assert.Zero(t, b.RefreshCalls())
}

func TestPublicProducts_Validation(t *testing.T) {
	b, _, svc := setup(t)

	_, err := svc.GetPublic(t.Context(), " ")
	assert.EqualError(t, err, "Product ID is required")

	_, err = svc.SearchPublic(t.Context(), "")
	assert.EqualError(t, err, "Search query is required")

	assert.Empty(t, b.Calls())
}

func TestCreateMainCategory(t *testing.T) {
	b, h, svc := setup(t)
	h.Login(t, b, "9876543210")
	ctx := t.Context()

	id, err := svc.CreateMainCategory(ctx, " Real Estate ")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	create := b.CallsTo("/category/create")[0]
	assert.Equal(t, "Real Estate", create.Body["main_category_name"])
	assert.Equal(t, "property", create.Body["product_key"])

	again, err := svc.CreateMainCategory(ctx, "real estate")
	require.NoError(t, err)
	assert.Equal(t, id, again, "an existing category is looked up by name")

	_, err = svc.CreateMainCategory(ctx, "")
	assert.True(t, serviceerr.IsValidation(err))
}

func TestActiveCategories(t *testing.T) {
	t.Run("active categories", func(t *testing.T) {
		b, h, svc := setup(t)
		h.Login(t, b, "9876543210")
		farm := b.AddCategory("Farm Land")

		list, err := svc.ActiveCategories(t.Context())
		require.NoError(t, err)

		assert.Equal(t, []catalog.Category{{ID: farm, Name: "Farm Land"}}, list)
		assert.Empty(t, b.CallsTo("/category/list"))
	})

	t.Run("falls back to the categories of the first product", func(t *testing.T) {
		b, h, svc := setup(t)
		h.Login(t, b, "9876543210")
		shop := b.AddProductCategory("Shops")

		list, err := svc.ActiveCategories(t.Context())
		require.NoError(t, err)

		assert.Equal(t, []catalog.Category{{ID: shop, Name: "Shops"}}, list)
		require.Len(t, b.CallsTo("/category/list"), 1)
		assert.Equal(t, "prod-1", b.CallsTo("/category/list")[0].Body["product_id"])
	})
}

func TestResolveMainCategoryID(t *testing.T) {
	t.Run("prefers real estate", func(t *testing.T) {
		b, h, svc := setup(t)
		h.Login(t, b, "9876543210")
		b.AddCategory("Farm Land")
		realEstate := b.AddCategory("Real Estate")

		id, err := svc.ResolveMainCategoryID(t.Context())
		require.NoError(t, err)
		assert.Equal(t, realEstate, id)
	})

	t.Run("first active category", func(t *testing.T) {
		b, h, svc := setup(t)
		h.Login(t, b, "9876543210")
		farm := b.AddCategory("Farm Land")
		b.AddCategory("Shops")

		id, err := svc.ResolveMainCategoryID(t.Context())
		require.NoError(t, err)
		assert.Equal(t, farm, id)

		first, err := svc.MainCategoryID(t.Context())
		require.NoError(t, err)
		assert.Equal(t, farm, first)
	})

	t.Run("product category", func(t *testing.T) {
		b, h, svc := setup(t)
		h.Login(t, b, "9876543210")
		shop := b.AddProductCategory("Shops")

		id, err := svc.ResolveMainCategoryID(t.Context())
		require.NoError(t, err)
		assert.Equal(t, shop, id)
	})

	t.Run("nothing to pick", func(t *testing.T) {
		b, h, svc := setup(t)
		h.Login(t, b, "9876543210")

		_, err := svc.ResolveMainCategoryID(t.Context())
		assert.ErrorIs(t, err, serviceerr.ErrNotFound)
	})
}

func TestCategories_RefreshOnceMoreOnUnauthorized(t *testing.T) {
	b, h, svc := setup(t)
	h.Login(t, b, "9876543210")
	b.AddCategory("Farm Land")
	b.FailNext("/category/categorieslist", http.StatusUnauthorized, `{"error":{"code":"TOKEN_EXPIRED"}}`)
	b.FailNext("/category/categorieslist", http.StatusUnauthorized, `{"error":{"code":"TOKEN_EXPIRED"}}`)

	list, err := svc.ActiveCategories(t.Context())
	require.NoError(t, err)

	assert.Len(t, list, 1)
	assert.Equal(t, 2, b.RefreshCalls())
	assert.Len(t, b.CallsTo("/category/categorieslist"), 3)
}

func TestCities(t *testing.T) {
	t.Run("short input", func(t *testing.T) {
		b, _, svc := setup(t)

		assert.Empty(t, svc.Cities(t.Context(), " a "))
		assert.Empty(t, b.Calls())
	})

	t.Run("search", func(t *testing.T) {
		b, _, svc := setup(t)

		cities := svc.Cities(t.Context(), "ahm")
		require.Len(t, cities, 2)
		assert.Equal(t, "Ahmedabad", cities[0].Name)
		assert.Equal(t, "ChIJ-ahmedabad", cities[0].PlaceID)

		assert.Equal(t, "limit=20&search=ahm", b.CallsTo("/cities")[0].Query)
		assert.Empty(t, b.CallsTo("/autocomplete-cities"))
	})

	t.Run("fallback endpoint", func(t *testing.T) {
		b, _, svc := setup(t, backendtest.WithCitiesFallbackOnly())

		cities := svc.Cities(t.Context(), "sur")
		require.Len(t, cities, 1)
		assert.Equal(t, "Surat", cities[0].Name)
		assert.Equal(t, "input=sur", b.CallsTo("/autocomplete-cities")[0].Query)
	})

	t.Run("errors yield an empty list", func(t *testing.T) {
		b, _, svc := setup(t)
		b.FailNext("/cities", http.StatusInternalServerError, `{}`)

		assert.Empty(t, svc.Cities(t.Context(), "ahm"))
	})
}
