package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/abdshekho/msa-sub001/internal/domain"
	"github.com/abdshekho/msa-sub001/internal/store"
)

const (
	defaultProductLimit        = 10
	maxProductLimit            = 100
	defaultRecommendationLimit = 5
	maxRecommendationLimit     = 20
)

// ProductInput defines the expected input for creating or updating a product.
type ProductInput struct {
	Name        LocalizedInput       `json:"name"`
	Description domain.LocalizedText `json:"description"`
	Slug        string               `json:"slug" validate:"omitempty,max=255,slug"`
	Price       *decimal.Decimal     `json:"price" validate:"required"`
	Image       string               `json:"image" validate:"max=2048"`
	Images      []string             `json:"images" validate:"omitempty,dive,max=2048"`
	CategoryID  string               `json:"category_id" validate:"required,uuid"`
	BrandID     *string              `json:"brand_id" validate:"omitempty,uuid"`
	Specs       *domain.SpecTable    `json:"specs"`
}

func (in ProductInput) toDomain() *domain.Product {
	name := in.Name.toDomain()
	images := in.Images
	if images == nil {
		images = []string{}
	}
	return &domain.Product{
		Slug:        resolveSlug(in.Slug, name),
		Name:        name,
		Description: in.Description,
		Price:       in.Price.Round(2),
		Image:       in.Image,
		Images:      images,
		CategoryID:  in.CategoryID,
		BrandID:     in.BrandID,
		Specs:       in.Specs,
	}
}

// respondWithProductWriteError treats unresolved category or brand
// references as invalid input rather than missing resources.
func respondWithProductWriteError(w http.ResponseWriter, op string, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrCategoryNotFound):
		respondWithError(w, http.StatusBadRequest, "Validation failed: category does not exist")
	case errors.Is(err, store.ErrBrandNotFound):
		respondWithError(w, http.StatusBadRequest, "Validation failed: brand does not exist")
	default:
		respondWithStoreError(w, op, err, fallback)
	}
}

// parsePriceParam reads an optional decimal query parameter.
func parsePriceParam(r *http.Request, name string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	price, err := decimal.NewFromString(raw)
	if err != nil || price.IsNegative() {
		return nil, errors.New("invalid " + name)
	}
	return &price, nil
}

// ListProducts handles GET /products with filtering, sorting and pagination.
func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit, offset := pageParams(r, defaultProductLimit, maxProductLimit)

	params := store.ListProductsParams{
		Limit:     limit,
		Offset:    offset,
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}
	if search := strings.TrimSpace(q.Get("q")); search != "" {
		params.SearchQuery = &search
	}
	if slug := q.Get("slug"); slug != "" {
		params.Slug = &slug
	}
	// category and brand accept either an ID or a slug.
	if category := q.Get("category"); category != "" {
		if isUUID(category) {
			params.CategoryID = &category
		} else {
			params.CategorySlug = &category
		}
	}
	if brand := q.Get("brand"); brand != "" {
		if isUUID(brand) {
			params.BrandID = &brand
		} else {
			params.BrandSlug = &brand
		}
	}

	var err error
	if params.MinPrice, err = parsePriceParam(r, "min_price"); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid min_price: must be a non-negative number")
		return
	}
	if params.MaxPrice, err = parsePriceParam(r, "max_price"); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid max_price: must be a non-negative number")
		return
	}
	if params.MinPrice != nil && params.MaxPrice != nil && params.MinPrice.GreaterThan(*params.MaxPrice) {
		respondWithError(w, http.StatusBadRequest, "min_price cannot be greater than max_price")
		return
	}

	products, totalCount, err := h.productStore.ListProducts(r.Context(), params)
	if err != nil {
		respondWithStoreError(w, "ListProducts", err, "Failed to retrieve products")
		return
	}
	respondWithList(w, r, products, page, limit, totalCount)
}

// GetProductByID handles GET /products/{productId}.
func (h *HTTPHandler) GetProductByID(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidParam(w, r, "productId", "product")
	if !ok {
		return
	}

	product, err := h.productStore.GetProductByID(r.Context(), productID)
	if err != nil {
		respondWithStoreError(w, "GetProductByID "+productID, err, "Failed to retrieve product")
		return
	}
	respondWithRecord(w, r, product)
}

// GetProductRecommendations returns the newest products, optionally limited
// to one category. A product_id excludes that product from the result.
func (h *HTTPHandler) GetProductRecommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	_, limit, _ := pageParams(r, defaultRecommendationLimit, maxRecommendationLimit)

	exclude := q.Get("product_id")
	if exclude != "" && !isUUID(exclude) {
		respondWithError(w, http.StatusBadRequest, "Invalid product ID format")
		return
	}

	params := store.ListProductsParams{
		Limit:     limit,
		SortBy:    "created_at",
		SortOrder: "desc",
	}
	if category := q.Get("category"); category != "" {
		if isUUID(category) {
			params.CategoryID = &category
		} else {
			params.CategorySlug = &category
		}
	}
	if exclude != "" {
		// One extra row so the excluded product does not shrink the result.
		params.Limit++
	}

	products, _, err := h.productStore.ListProducts(r.Context(), params)
	if err != nil {
		respondWithStoreError(w, "GetProductRecommendations", err, "Failed to retrieve recommendations")
		return
	}

	recommendations := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.ID == exclude {
			continue
		}
		if len(recommendations) == limit {
			break
		}
		recommendations = append(recommendations, p)
	}
	respondWithRecord(w, r, recommendations)
}

// CreateProduct handles POST /admin/products.
func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var input ProductInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	product := input.toDomain()
	if err := product.Validate(); err != nil {
		respondWithStoreError(w, "CreateProduct", err, "Invalid product")
		return
	}
	if product.Slug == "" {
		respondWithError(w, http.StatusBadRequest, "Validation failed: a slug could not be derived from the name")
		return
	}

	created, err := h.productStore.CreateProduct(r.Context(), product)
	if err != nil {
		respondWithProductWriteError(w, "CreateProduct", err, "Failed to create product")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

// UpdateProduct handles PUT /admin/products/{productId}.
func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidParam(w, r, "productId", "product")
	if !ok {
		return
	}
	var input ProductInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	product := input.toDomain()
	product.ID = productID
	if err := product.Validate(); err != nil {
		respondWithStoreError(w, "UpdateProduct "+productID, err, "Invalid product")
		return
	}
	if product.Slug == "" {
		respondWithError(w, http.StatusBadRequest, "Validation failed: a slug could not be derived from the name")
		return
	}

	updated, err := h.productStore.UpdateProduct(r.Context(), product)
	if err != nil {
		respondWithProductWriteError(w, "UpdateProduct "+productID, err, "Failed to update product")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

// DeleteProduct handles DELETE /admin/products/{productId}.
func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidParam(w, r, "productId", "product")
	if !ok {
		return
	}
	if err := h.productStore.DeleteProduct(r.Context(), productID); err != nil {
		respondWithStoreError(w, "DeleteProduct "+productID, err, "Failed to delete product")
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

// productSummaries fetches the products referenced by ids in one query.
func (h *HTTPHandler) productSummaries(r *http.Request, ids []string) (map[string]domain.ProductSummary, error) {
	summaries := make(map[string]domain.ProductSummary, len(ids))
	if len(ids) == 0 {
		return summaries, nil
	}
	products, err := h.productStore.GetProductsByIDs(r.Context(), ids)
	if err != nil {
		return nil, err
	}
	for i := range products {
		summaries[products[i].ID] = products[i].Summary()
	}
	return summaries, nil
}
