package backendtest

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	panPattern   = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
)

type category struct {
	ID        string
	Name      string
	ProductID string
}

type City struct {
	PlaceID string `json:"place_id"`
	Name    string `json:"city_name"`
	State   string `json:"state"`
	Country string `json:"country"`
}

func defaultCities() []City {
	return []City{
		{PlaceID: "ChIJ-ahmedabad", Name: "Ahmedabad", State: "Gujarat", Country: "India"},
		{PlaceID: "ChIJ-ahmednagar", Name: "Ahmednagar", State: "Maharashtra", Country: "India"},
		{PlaceID: "ChIJ-surat", Name: "Surat", State: "Gujarat", Country: "India"},
	}
}

// AddCategory seeds an active main category.
func (b *Backend) AddCategory(name string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := "cat-" + uuid.NewString()[:8]
	b.categories = append(b.categories, category{ID: id, Name: name})

	return id
}

// AddProductCategory seeds a category of the first product. It is only listed
// by /category/list.
func (b *Backend) AddProductCategory(name string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := "cat-" + uuid.NewString()[:8]
	productID := ""
	if len(b.products) > 0 {
		productID = b.products[0].ID
	}
	b.categories = append(b.categories, category{ID: id, Name: name, ProductID: productID})

	return id
}

func (b *Backend) listProducts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, b.Products())
}

func (b *Backend) createProduct(w http.ResponseWriter, r *http.Request) {
	body := decode(r)
	key := strings.TrimSpace(str(body, "product_key"))
	if key == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "product_key is required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.knownProductLocked(key) {
		writeError(w, http.StatusConflict, "PRODUCT_ALREADY_EXISTS", "Product already exists")
		return
	}

	p := Product{ID: fmt.Sprintf("prod-%d", len(b.products)+1), Key: key, Name: str(body, "product_name")}
	b.products = append(b.products, p)
	writeJSON(w, http.StatusCreated, p)
}

func (b *Backend) searchProducts(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(r.URL.Query().Get("query"))

	var found []Product
	for _, p := range b.Products() {
		if strings.Contains(strings.ToLower(p.Name), query) || strings.Contains(p.Key, query) {
			found = append(found, p)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"products": found})
}

func (b *Backend) getProduct(w http.ResponseWriter, r *http.Request) {
	for _, p := range b.Products() {
		if p.ID == r.PathValue("id") {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Product not found")
}

func (b *Backend) createBusiness(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	absent := b.businessCreateAbsent
	b.mu.Unlock()
	if absent {
		http.NotFound(w, r)
		return
	}

	b.registerBusiness(w, r)
}

func (b *Backend) registerBusiness(w http.ResponseWriter, r *http.Request) {
	body := decode(r)

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.knownProductLocked(r.Header.Get("x-product-key")) {
		writeError(w, http.StatusBadRequest, "INVALID_PRODUCT", "Invalid or inactive product")
		return
	}
	name := str(body, "business_name")
	if name == "" || len(name) > 30 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "business_name must be 1-30 characters")
		return
	}

	businessID := "biz-" + uuid.NewString()[:8]
	branchID := "br-" + uuid.NewString()[:8]
	body["business_id"] = businessID
	body["branch_id"] = branchID
	b.businesses[businessID] = body
	b.branches[branchID] = map[string]any{"business_id": businessID, "place_id": str(body, "place_id")}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data": map[string]any{
			"business_id":   businessID,
			"branch_id":     branchID,
			"business_name": name,
		},
	})
}

func (b *Backend) createBranch(w http.ResponseWriter, r *http.Request) {
	body := decode(r)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.businesses[str(body, "business_id")]; !ok {
		writeError(w, http.StatusNotFound, "BUSINESS_NOT_FOUND", "Business not found")
		return
	}

	branchID := "br-" + uuid.NewString()[:8]
	b.branches[branchID] = body
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "branch_id": branchID})
}

func (b *Backend) listBusinesses(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := make([]map[string]any, 0, len(b.businesses))
	for _, biz := range b.businesses {
		list = append(list, biz)
	}

	writeJSON(w, http.StatusOK, map[string]any{"businesses": list})
}

func (b *Backend) autocompleteBusiness(w http.ResponseWriter, r *http.Request) {
	input := strings.ToLower(r.URL.Query().Get("input"))
	if len(input) < 2 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "input must be at least 2 characters")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.knownProductLocked(r.Header.Get("x-product-key")) {
		writeError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found")
		return
	}

	list := []map[string]any{}
	for id, biz := range b.businesses {
		if strings.Contains(strings.ToLower(str(biz, "business_name")), input) {
			list = append(list, map[string]any{"business_id": id, "business_name": str(biz, "business_name")})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"businesses": list}})
}

func (b *Backend) getBusiness(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	biz, ok := b.businesses[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "BUSINESS_NOT_FOUND", "Business not found")
		return
	}

	writeJSON(w, http.StatusOK, biz)
}

func (b *Backend) updateBusiness(w http.ResponseWriter, r *http.Request) {
	body := decode(r)

	b.mu.Lock()
	defer b.mu.Unlock()

	biz, ok := b.businesses[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "BUSINESS_NOT_FOUND", "Business not found")
		return
	}
	for k, v := range body {
		if v != nil && v != "" {
			biz[k] = v
		}
	}

	writeJSON(w, http.StatusOK, biz)
}

func (b *Backend) deleteBusiness(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.businesses[r.PathValue("id")]; !ok {
		writeError(w, http.StatusNotFound, "BUSINESS_NOT_FOUND", "Business not found")
		return
	}
	delete(b.businesses, r.PathValue("id"))

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (b *Backend) verifyPAN(w http.ResponseWriter, r *http.Request) {
	body := decode(r)
	if !panPattern.MatchString(str(body, "pan")) {
		writeError(w, http.StatusBadRequest, "INVALID_PAN", "PAN format is invalid")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "verified": true, "pan": str(body, "pan")})
}

func (b *Backend) verifyGST(w http.ResponseWriter, r *http.Request) {
	body := decode(r)
	if !gstinPattern.MatchString(str(body, "gstin")) {
		writeError(w, http.StatusBadRequest, "INVALID_GSTIN", "GSTIN format is invalid")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "verified": true, "gstin": str(body, "gstin")})
}

func (b *Backend) createCategory(w http.ResponseWriter, r *http.Request) {
	body := decode(r)
	name := strings.TrimSpace(str(body, "main_category_name"))

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range b.categories {
		if strings.EqualFold(c.Name, name) {
			writeError(w, http.StatusConflict, "CATEGORY_ALREADY_EXISTS", "Category already exists")
			return
		}
	}

	id := "cat-" + uuid.NewString()[:8]
	b.categories = append(b.categories, category{ID: id, Name: name})
	writeJSON(w, http.StatusCreated, map[string]any{"main_category_id": id})
}

// activeCategories answers in the {"data": [...]} shape.
func (b *Backend) activeCategories(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rows := make([]map[string]any, 0, len(b.categories))
	for _, c := range b.categories {
		if c.ProductID == "" {
			rows = append(rows, map[string]any{"main_category_id": c.ID, "main_category_name": c.Name})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": rows})
}

// categoriesForProduct answers in the {"categories": [...]} shape with other field names.
func (b *Backend) categoriesForProduct(w http.ResponseWriter, r *http.Request) {
	body := decode(r)

	b.mu.Lock()
	defer b.mu.Unlock()

	rows := []map[string]any{}
	for _, c := range b.categories {
		if c.ProductID == str(body, "product_id") {
			rows = append(rows, map[string]any{"category_id": c.ID, "category_name": c.Name})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"categories": rows})
}

func (b *Backend) searchCities(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	fallbackOnly := b.citiesFallbackOnly
	b.mu.Unlock()
	if fallbackOnly {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"cities": b.matchCities(r.URL.Query().Get("search"))})
}

func (b *Backend) autocompleteCities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"cities": b.matchCities(r.URL.Query().Get("input"))})
}

func (b *Backend) matchCities(query string) []City {
	query = strings.ToLower(query)

	b.mu.Lock()
	defer b.mu.Unlock()

	found := []City{}
	for _, c := range b.cities {
		if strings.HasPrefix(strings.ToLower(c.Name), query) {
			found = append(found, c)
		}
	}

	return found
}
