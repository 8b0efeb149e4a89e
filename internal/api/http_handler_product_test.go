package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"

	"github.com/abdshekho/msa-sub001/internal/domain"
	"github.com/abdshekho/msa-sub001/internal/store"
)

func sampleProduct(id, slug, price string) domain.Product {
	now := time.Now().Truncate(time.Millisecond)
	return domain.Product{
		ID:          id,
		Slug:        slug,
		Name:        domain.LocalizedText{EN: "Desk Lamp", AR: "مصباح مكتب"},
		Description: domain.LocalizedText{EN: "Warm light"},
		Price:       decimal.RequireFromString(price),
		Image:       "/uploads/products/lamp.jpg",
		Images:      []string{},
		CategoryID:  testCategoryID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func validProductInput() ProductInput {
	return ProductInput{
		Name:       LocalizedInput{EN: "Desk Lamp", AR: "مصباح مكتب"},
		Price:      PtrTo(decimal.RequireFromString("19.999")),
		CategoryID: testCategoryID,
		Specs: &domain.SpecTable{
			Headers: []string{"Property", "Value"},
			Rows:    [][]domain.SpecCell{{{Value: "Power"}, {Value: "40W"}}, {{Value: "Dimmable", ColSpan: 2}}},
		},
	}
}

func TestHTTPHandler_ListProducts_Filters(t *testing.T) {
	env := setupTestChiServer(t)
	products := []domain.Product{sampleProduct(testProductAID, "desk-lamp", "19.99")}

	env.products.On("ListProducts", mock.Anything, mock.MatchedBy(func(p store.ListProductsParams) bool {
		return p.Limit == 10 && p.Offset == 10 &&
			p.CategorySlug != nil && *p.CategorySlug == "lighting" && p.CategoryID == nil &&
			p.BrandID != nil && *p.BrandID == testBrandID &&
			p.SearchQuery != nil && *p.SearchQuery == "lamp" &&
			p.MinPrice != nil && p.MinPrice.Equal(decimal.RequireFromString("5")) &&
			p.MaxPrice != nil && p.MaxPrice.Equal(decimal.RequireFromString("50.5")) &&
			p.SortBy == "price" && p.SortOrder == "asc"
	})).Return(products, 11, nil).Once()

	res := env.doRequest(t, http.MethodGet,
		"/api/v1/products?category=lighting&brand="+testBrandID+"&q=lamp&min_price=5&max_price=50.5&sort_by=price&sort_order=asc&page=2",
		"", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var responsePayload struct {
		Data       []domain.Product `json:"data"`
		Pagination Pagination       `json:"pagination"`
	}
	decodeBody(t, res, &responsePayload)
	require.Len(t, responsePayload.Data, 1)
	assert.True(t, responsePayload.Data[0].Price.Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, Pagination{Page: 2, Limit: 10, TotalItems: 11, TotalPages: 2}, responsePayload.Pagination)

	env.assertExpectations(t)
}

func TestHTTPHandler_ListProducts_InvalidPrice(t *testing.T) {
	env := setupTestChiServer(t)

	res := env.doRequest(t, http.MethodGet, "/api/v1/products?min_price=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = env.doRequest(t, http.MethodGet, "/api/v1/products?min_price=10&max_price=5", "", nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	env.products.AssertNotCalled(t, "ListProducts", mock.Anything, mock.Anything)
}

func TestHTTPHandler_GetProductByID_NotFound(t *testing.T) {
	env := setupTestChiServer(t)

	env.products.On("GetProductByID", mock.Anything, testMissingUUID).Return(nil, store.ErrProductNotFound).Once()

	res := env.doRequest(t, http.MethodGet, "/api/v1/products/"+testMissingUUID, "", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "Product not found", decodeError(t, res))

	env.assertExpectations(t)
}

func TestHTTPHandler_GetProductRecommendations_ExcludesProduct(t *testing.T) {
	env := setupTestChiServer(t)
	products := []domain.Product{
		sampleProduct(testProductAID, "desk-lamp", "19.99"),
		sampleProduct(testProductBID, "floor-lamp", "49.00"),
	}

	env.products.On("ListProducts", mock.Anything, store.ListProductsParams{
		Limit:      2,
		SortBy:     "created_at",
		SortOrder:  "desc",
		CategoryID: PtrTo(testCategoryID),
	}).Return(products, 2, nil).Once()

	res := env.doRequest(t, http.MethodGet,
		"/api/v1/products/recommendations?limit=1&category="+testCategoryID+"&product_id="+testProductAID, "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var got []domain.Product
	decodeBody(t, res, &got)
	require.Len(t, got, 1)
	assert.Equal(t, testProductBID, got[0].ID)

	env.assertExpectations(t)
}

func TestHTTPHandler_CreateProduct_Success(t *testing.T) {
	env := setupTestChiServer(t)
	created := sampleProduct(testProductAID, "desk-lamp", "20.00")

	env.products.On("CreateProduct", mock.Anything, mock.MatchedBy(func(p *domain.Product) bool {
		return p.Slug == "desk-lamp" && p.Price.Equal(decimal.RequireFromString("20.00")) &&
			p.CategoryID == testCategoryID && p.Specs != nil && len(p.Specs.Rows) == 2
	})).Return(&created, nil).Once()

	res := env.doRequest(t, http.MethodPost, "/api/v1/admin/products", env.adminToken, validProductInput())
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var got domain.Product
	decodeBody(t, res, &got)
	assert.Equal(t, testProductAID, got.ID)

	env.assertExpectations(t)
}

func TestHTTPHandler_CreateProduct_Invalid(t *testing.T) {
	env := setupTestChiServer(t)

	negative := validProductInput()
	negative.Price = PtrTo(decimal.RequireFromString("-1"))
	res := env.doRequest(t, http.MethodPost, "/api/v1/admin/products", env.adminToken, negative)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "Price must not be negative", decodeError(t, res))

	badSpecs := validProductInput()
	badSpecs.Specs.Rows = append(badSpecs.Specs.Rows, []domain.SpecCell{{Value: "only one"}})
	res = env.doRequest(t, http.MethodPost, "/api/v1/admin/products", env.adminToken, badSpecs)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	missingPrice := validProductInput()
	missingPrice.Price = nil
	res = env.doRequest(t, http.MethodPost, "/api/v1/admin/products", env.adminToken, missingPrice)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	env.products.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
}

func TestHTTPHandler_CreateProduct_UnknownCategory(t *testing.T) {
	env := setupTestChiServer(t)

	env.products.On("CreateProduct", mock.Anything, mock.AnythingOfType("*domain.Product")).
		Return(nil, store.ErrCategoryNotFound).Once()

	res := env.doRequest(t, http.MethodPost, "/api/v1/admin/products", env.adminToken, validProductInput())
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, decodeError(t, res), "category does not exist")

	env.assertExpectations(t)
}

func TestHTTPHandler_DeleteProduct(t *testing.T) {
	env := setupTestChiServer(t)

	env.products.On("DeleteProduct", mock.Anything, testProductAID).Return(nil).Once()

	res := env.doRequest(t, http.MethodDelete, "/api/v1/admin/products/"+testProductAID, env.adminToken, nil)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	env.assertExpectations(t)
}

func TestHTTPHandler_ExportProducts(t *testing.T) {
	env := setupTestChiServer(t)
	products := []domain.Product{
		sampleProduct(testProductAID, "desk-lamp", "19.99"),
		sampleProduct(testProductBID, "floor-lamp", "49.00"),
	}

	env.products.On("ListProducts", mock.Anything, store.ListProductsParams{
		Limit: exportPageSize, SortBy: "created_at", SortOrder: "asc",
	}).Return(products, 2, nil).Once()

	res := env.doRequest(t, http.MethodGet, "/api/v1/admin/products/export", env.adminToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, xlsxContentType, res.Header.Get("Content-Type"))
	assert.Contains(t, res.Header.Get("Content-Disposition"), "attachment; filename=products-")

	var body bytes.Buffer
	_, err := body.ReadFrom(res.Body)
	require.NoError(t, err)
	workbook, err := xlsx.OpenReaderAt(bytes.NewReader(body.Bytes()), int64(body.Len()))
	require.NoError(t, err)
	require.Len(t, workbook.Sheets, 1)

	rows := workbook.Sheets[0].Rows
	require.Len(t, rows, 3)
	assert.Equal(t, "Name (AR)", rows[0].Cells[colNameAR].String())
	assert.Equal(t, "desk-lamp", rows[1].Cells[colSlug].String())
	assert.Equal(t, "مصباح مكتب", rows[1].Cells[colNameAR].String())
	assert.Equal(t, "49.00", rows[2].Cells[colPrice].String())

	env.assertExpectations(t)
}

func importWorkbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	require.NoError(t, err)
	header := sheet.AddRow()
	for _, title := range productSheetHeaders {
		header.AddCell().SetValue(title)
	}
	for _, values := range rows {
		row := sheet.AddRow()
		for _, v := range values {
			row.AddCell().SetValue(v)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, file.Write(&buf))
	return buf.Bytes()
}

func TestHTTPHandler_ImportProducts_UpsertsBySlug(t *testing.T) {
	env := setupTestChiServer(t)
	existing := sampleProduct(testProductAID, "desk-lamp", "19.99")
	existing.Images = []string{"/uploads/products/a.jpg"}

	content := importWorkbook(t, [][]string{
		{"", "desk-lamp", "Desk Lamp", "مصباح مكتب", "", "", "21.50", "", testCategoryID, ""},
		{"", "", "Floor Lamp", "", "", "", "49", "", testCategoryID, testBrandID},
		{"", "", "", "", "", "", "10", "", testCategoryID, ""},
		{"", "", "Broken Price", "", "", "", "ten", "", testCategoryID, ""},
	})

	env.products.On("ListProducts", mock.Anything, store.ListProductsParams{Limit: 1, Slug: PtrTo("desk-lamp")}).
		Return([]domain.Product{existing}, 1, nil).Once()
	env.products.On("ListProducts", mock.Anything, store.ListProductsParams{Limit: 1, Slug: PtrTo("floor-lamp")}).
		Return([]domain.Product{}, 0, nil).Once()
	env.products.On("UpdateProduct", mock.Anything, mock.MatchedBy(func(p *domain.Product) bool {
		return p.ID == testProductAID && p.Price.Equal(decimal.RequireFromString("21.50")) && len(p.Images) == 1
	})).Return(&existing, nil).Once()
	env.products.On("CreateProduct", mock.Anything, mock.MatchedBy(func(p *domain.Product) bool {
		return p.Slug == "floor-lamp" && p.BrandID != nil && *p.BrandID == testBrandID
	})).Return(&existing, nil).Once()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "products.xlsx")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/v1/admin/products/import", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+env.adminToken)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	var result ImportResult
	decodeBody(t, res, &result)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 2, result.Skipped)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "row 4")

	env.assertExpectations(t)
}
