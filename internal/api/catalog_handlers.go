package api

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/abdshekho/msa-sub001/internal/domain"
	"github.com/abdshekho/msa-sub001/internal/store"
)

// Categories and brands are small; without a limit parameter the whole
// list is returned.
const maxCatalogLimit = 100

// LocalizedInput is a bilingual name. English is required.
type LocalizedInput struct {
	EN string `json:"en" validate:"required,max=255"`
	AR string `json:"ar" validate:"max=255"`
}

func (in LocalizedInput) toDomain() domain.LocalizedText {
	return domain.LocalizedText{EN: strings.TrimSpace(in.EN), AR: strings.TrimSpace(in.AR)}
}

// resolveSlug returns the requested slug, or derives one from name.
func resolveSlug(requested string, name domain.LocalizedText) string {
	if requested != "" {
		return requested
	}
	return domain.SlugFor(name)
}

// catalogPage interprets limit/page for categories and brands. A zero
// limit means "no pagination".
func catalogPage(r *http.Request) (page, limit, offset int) {
	if r.URL.Query().Get("limit") == "" {
		return 1, 0, 0
	}
	return pageParams(r, maxCatalogLimit, maxCatalogLimit)
}

func respondWithList(w http.ResponseWriter, r *http.Request, data interface{}, page, limit, total int) {
	projected, err := project(data, parseFields(r))
	if err != nil {
		log.Printf("ERROR: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to encode response")
		return
	}
	if limit == 0 {
		limit = total
	}
	respondWithJSON(w, http.StatusOK, ListResponse{Data: projected, Pagination: newPagination(page, limit, total)})
}

func respondWithRecord(w http.ResponseWriter, r *http.Request, record interface{}) {
	projected, err := project(record, parseFields(r))
	if err != nil {
		log.Printf("ERROR: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to encode response")
		return
	}
	respondWithJSON(w, http.StatusOK, projected)
}

// --- Category Handlers ---

// CategoryInput defines the expected input for creating or updating a category.
type CategoryInput struct {
	Name     LocalizedInput `json:"name"`
	Slug     string         `json:"slug" validate:"omitempty,max=255,slug"`
	ParentID *string        `json:"parent_id" validate:"omitempty,uuid"`
	Image    *string        `json:"image" validate:"omitempty,max=2048"`
}

func (in CategoryInput) toDomain() *domain.Category {
	name := in.Name.toDomain()
	return &domain.Category{
		Name:     name,
		Slug:     resolveSlug(in.Slug, name),
		ParentID: in.ParentID,
		Image:    in.Image,
	}
}

// ListCategories handles GET /categories?parent=&slug=&limit=&page=&fields=&nested=.
func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit, offset := catalogPage(r)
	params := store.ListCategoriesParams{Limit: limit, Offset: offset}

	parent := q.Get("parent")
	switch {
	case parent == "":
	case strings.EqualFold(parent, "root"):
		params.RootsOnly = true
	case isUUID(parent):
		params.ParentID = &parent
	default:
		respondWithError(w, http.StatusBadRequest, "Invalid parent: must be a category ID or \"root\"")
		return
	}
	if slug := q.Get("slug"); slug != "" {
		params.Slug = &slug
	}

	nested, _ := strconv.ParseBool(q.Get("nested"))
	if nested {
		h.listCategoryTree(w, r, params)
		return
	}

	categories, totalCount, err := h.categoryStore.ListCategories(r.Context(), params)
	if err != nil {
		respondWithStoreError(w, "ListCategories", err, "Failed to retrieve categories")
		return
	}
	if params.Slug != nil && totalCount == 0 {
		respondWithError(w, http.StatusNotFound, publicMessage(store.ErrCategoryNotFound))
		return
	}
	respondWithList(w, r, categories, page, limit, totalCount)
}

// listCategoryTree loads every category once and returns the forest rooted
// at the requested parent (or at the top level).
func (h *HTTPHandler) listCategoryTree(w http.ResponseWriter, r *http.Request, params store.ListCategoriesParams) {
	all, totalCount, err := h.categoryStore.ListCategories(r.Context(), store.ListCategoriesParams{})
	if err != nil {
		respondWithStoreError(w, "ListCategories", err, "Failed to retrieve categories")
		return
	}

	forest := domain.BuildCategoryTree(all)
	switch {
	case params.Slug != nil:
		node := findCategoryNode(forest, func(n *domain.CategoryNode) bool { return n.Slug == *params.Slug })
		if node == nil {
			respondWithError(w, http.StatusNotFound, publicMessage(store.ErrCategoryNotFound))
			return
		}
		forest = []*domain.CategoryNode{node}
	case params.ParentID != nil:
		node := findCategoryNode(forest, func(n *domain.CategoryNode) bool { return n.ID == *params.ParentID })
		if node == nil {
			respondWithError(w, http.StatusNotFound, publicMessage(store.ErrCategoryNotFound))
			return
		}
		forest = node.Children
	}
	respondWithList(w, r, forest, 1, 0, totalCount)
}

func findCategoryNode(nodes []*domain.CategoryNode, match func(*domain.CategoryNode) bool) *domain.CategoryNode {
	for _, n := range nodes {
		if match(n) {
			return n
		}
		if found := findCategoryNode(n.Children, match); found != nil {
			return found
		}
	}
	return nil
}

func (h *HTTPHandler) GetCategoryByID(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := uuidParam(w, r, "categoryId", "category")
	if !ok {
		return
	}

	category, err := h.categoryStore.GetCategoryByID(r.Context(), categoryID)
	if err != nil {
		respondWithStoreError(w, "GetCategoryByID "+categoryID, err, "Failed to retrieve category")
		return
	}
	respondWithRecord(w, r, category)
}

func (h *HTTPHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var input CategoryInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	category := input.toDomain()
	if category.Slug == "" {
		respondWithError(w, http.StatusBadRequest, "Validation failed: a slug could not be derived from the name")
		return
	}

	created, err := h.categoryStore.CreateCategory(r.Context(), category)
	if err != nil {
		respondWithStoreError(w, "CreateCategory", err, "Failed to create category")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := uuidParam(w, r, "categoryId", "category")
	if !ok {
		return
	}
	var input CategoryInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	// A category cannot be its own parent.
	if input.ParentID != nil && strings.EqualFold(*input.ParentID, categoryID) {
		respondWithError(w, http.StatusBadRequest, "Category cannot be its own parent")
		return
	}

	category := input.toDomain()
	category.ID = categoryID
	if category.Slug == "" {
		respondWithError(w, http.StatusBadRequest, "Validation failed: a slug could not be derived from the name")
		return
	}

	updated, err := h.categoryStore.UpdateCategory(r.Context(), category)
	if err != nil {
		respondWithStoreError(w, "UpdateCategory "+categoryID, err, "Failed to update category")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *HTTPHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := uuidParam(w, r, "categoryId", "category")
	if !ok {
		return
	}
	if err := h.categoryStore.DeleteCategory(r.Context(), categoryID); err != nil {
		respondWithStoreError(w, "DeleteCategory "+categoryID, err, "Failed to delete category")
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

// --- Brand Handlers ---

// BrandInput defines the expected input for creating or updating a brand.
type BrandInput struct {
	Name        LocalizedInput       `json:"name"`
	Description domain.LocalizedText `json:"description"`
	Slug        string               `json:"slug" validate:"omitempty,max=255,slug"`
	Image       *string              `json:"image" validate:"omitempty,max=2048"`
}

func (in BrandInput) toDomain() *domain.Brand {
	name := in.Name.toDomain()
	return &domain.Brand{
		Name:        name,
		Description: in.Description,
		Slug:        resolveSlug(in.Slug, name),
		Image:       in.Image,
	}
}

func (h *HTTPHandler) ListBrands(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := catalogPage(r)
	params := store.ListBrandsParams{Limit: limit, Offset: offset}
	if slug := r.URL.Query().Get("slug"); slug != "" {
		params.Slug = &slug
	}

	brands, totalCount, err := h.brandStore.ListBrands(r.Context(), params)
	if err != nil {
		respondWithStoreError(w, "ListBrands", err, "Failed to retrieve brands")
		return
	}
	if params.Slug != nil && totalCount == 0 {
		respondWithError(w, http.StatusNotFound, publicMessage(store.ErrBrandNotFound))
		return
	}
	respondWithList(w, r, brands, page, limit, totalCount)
}

func (h *HTTPHandler) GetBrandByID(w http.ResponseWriter, r *http.Request) {
	brandID, ok := uuidParam(w, r, "brandId", "brand")
	if !ok {
		return
	}
	brand, err := h.brandStore.GetBrandByID(r.Context(), brandID)
	if err != nil {
		respondWithStoreError(w, "GetBrandByID "+brandID, err, "Failed to retrieve brand")
		return
	}
	respondWithRecord(w, r, brand)
}

func (h *HTTPHandler) CreateBrand(w http.ResponseWriter, r *http.Request) {
	var input BrandInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	brand := input.toDomain()
	if brand.Slug == "" {
		respondWithError(w, http.StatusBadRequest, "Validation failed: a slug could not be derived from the name")
		return
	}

	created, err := h.brandStore.CreateBrand(r.Context(), brand)
	if err != nil {
		respondWithStoreError(w, "CreateBrand", err, "Failed to create brand")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) UpdateBrand(w http.ResponseWriter, r *http.Request) {
	brandID, ok := uuidParam(w, r, "brandId", "brand")
	if !ok {
		return
	}
	var input BrandInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	brand := input.toDomain()
	brand.ID = brandID
	if brand.Slug == "" {
		respondWithError(w, http.StatusBadRequest, "Validation failed: a slug could not be derived from the name")
		return
	}

	updated, err := h.brandStore.UpdateBrand(r.Context(), brand)
	if err != nil {
		respondWithStoreError(w, "UpdateBrand "+brandID, err, "Failed to update brand")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *HTTPHandler) DeleteBrand(w http.ResponseWriter, r *http.Request) {
	brandID, ok := uuidParam(w, r, "brandId", "brand")
	if !ok {
		return
	}
	if err := h.brandStore.DeleteBrand(r.Context(), brandID); err != nil {
		respondWithStoreError(w, "DeleteBrand "+brandID, err, "Failed to delete brand")
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}
