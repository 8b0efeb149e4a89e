package api

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"

	"github.com/abdshekho/msa-sub001/internal/domain"
	"github.com/abdshekho/msa-sub001/internal/store"
)

const (
	exportPageSize  = 100
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	timestampLayout = "2006-01-02 15:04:05"
)

// Column order shared by export and import.
var productSheetHeaders = []string{
	"ID", "Slug", "Name (EN)", "Name (AR)", "Description (EN)", "Description (AR)",
	"Price", "Image", "Category ID", "Brand ID", "Created At", "Updated At",
}

const (
	colID = iota
	colSlug
	colNameEN
	colNameAR
	colDescriptionEN
	colDescriptionAR
	colPrice
	colImage
	colCategoryID
	colBrandID
)

// ImportResult summarizes an .xlsx import.
type ImportResult struct {
	Created int      `json:"created_count"`
	Updated int      `json:"updated_count"`
	Skipped int      `json:"skipped_count"`
	Errors  []string `json:"errors,omitempty"`
}

// ExportProducts handles GET /admin/products/export.
func (h *HTTPHandler) ExportProducts(w http.ResponseWriter, r *http.Request) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	if err != nil {
		log.Printf("ERROR: ExportProducts failed to create sheet: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to create Excel sheet")
		return
	}

	headerRow := sheet.AddRow()
	for _, title := range productSheetHeaders {
		headerRow.AddCell().SetValue(title)
	}

	params := store.ListProductsParams{Limit: exportPageSize, SortBy: "created_at", SortOrder: "asc"}
	for {
		products, totalCount, err := h.productStore.ListProducts(r.Context(), params)
		if err != nil {
			respondWithStoreError(w, "ExportProducts", err, "Failed to fetch products")
			return
		}
		for i := range products {
			writeProductRow(sheet.AddRow(), &products[i])
		}
		params.Offset += len(products)
		if len(products) == 0 || params.Offset >= totalCount {
			break
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		log.Printf("ERROR: ExportProducts failed to write workbook: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to write Excel file")
		return
	}

	filename := fmt.Sprintf("products-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("ERROR: ExportProducts failed to send workbook: %v", err)
	}
}

func writeProductRow(row *xlsx.Row, p *domain.Product) {
	brandID := ""
	if p.BrandID != nil {
		brandID = *p.BrandID
	}
	row.AddCell().SetValue(p.ID)
	row.AddCell().SetValue(p.Slug)
	row.AddCell().SetValue(p.Name.EN)
	row.AddCell().SetValue(p.Name.AR)
	row.AddCell().SetValue(p.Description.EN)
	row.AddCell().SetValue(p.Description.AR)
	row.AddCell().SetValue(p.Price.StringFixed(2))
	row.AddCell().SetValue(p.Image)
	row.AddCell().SetValue(p.CategoryID)
	row.AddCell().SetValue(brandID)
	row.AddCell().SetValue(p.CreatedAt.UTC().Format(timestampLayout))
	row.AddCell().SetValue(p.UpdatedAt.UTC().Format(timestampLayout))
}

// ImportProducts handles POST /admin/products/import: a multipart "file"
// in the export layout. Rows are matched to existing products by slug.
func (h *HTTPHandler) ImportProducts(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		respondWithError(w, http.StatusBadRequest, "Excel file is required")
		return
	}
	defer r.MultipartForm.RemoveAll()

	upload, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Excel file is required")
		return
	}
	defer upload.Close()

	workbook, err := xlsx.OpenReaderAt(upload, header.Size)
	if err != nil {
		log.Printf("WARN: ImportProducts could not parse workbook: %v", err)
		respondWithError(w, http.StatusBadRequest, "Failed to parse Excel file")
		return
	}
	if len(workbook.Sheets) == 0 || workbook.Sheets[0].MaxRow < 2 {
		respondWithError(w, http.StatusBadRequest, "Excel file is empty or missing header row")
		return
	}

	sheet := workbook.Sheets[0]
	var result ImportResult
	for i := 1; i < len(sheet.Rows); i++ {
		rowNumber := i + 1
		product, err := productFromRow(sheet.Rows[i])
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNumber, err))
			continue
		}

		updated, err := h.upsertProduct(r, product)
		if err != nil {
			log.Printf("WARN: ImportProducts row %d: %v", rowNumber, err)
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %s", rowNumber, publicMessage(err)))
			continue
		}
		if updated {
			result.Updated++
		} else {
			result.Created++
		}
	}

	log.Printf("INFO: product import finished: %d created, %d updated, %d skipped",
		result.Created, result.Updated, result.Skipped)
	respondWithJSON(w, http.StatusOK, result)
}

func productFromRow(row *xlsx.Row) (*domain.Product, error) {
	if row == nil {
		return nil, errors.New("empty row")
	}
	get := func(index int) string {
		if index < len(row.Cells) {
			return strings.TrimSpace(row.Cells[index].String())
		}
		return ""
	}

	name := domain.LocalizedText{EN: get(colNameEN), AR: get(colNameAR)}
	if name.EN == "" {
		return nil, errors.New("name (EN) is required")
	}
	price, err := decimal.NewFromString(get(colPrice))
	if err != nil {
		return nil, errors.New("price is not a number")
	}
	categoryID := get(colCategoryID)
	if !isUUID(categoryID) {
		return nil, errors.New("category ID is not a valid UUID")
	}

	product := &domain.Product{
		Slug:        resolveSlug(get(colSlug), name),
		Name:        name,
		Description: domain.LocalizedText{EN: get(colDescriptionEN), AR: get(colDescriptionAR)},
		Price:       price.Round(2),
		Image:       get(colImage),
		Images:      []string{},
		CategoryID:  categoryID,
	}
	if !domain.IsValidSlug(product.Slug) {
		return nil, errors.New("slug is not valid")
	}
	if brandID := get(colBrandID); brandID != "" {
		if !isUUID(brandID) {
			return nil, errors.New("brand ID is not a valid UUID")
		}
		product.BrandID = &brandID
	}
	if err := product.Validate(); err != nil {
		return nil, errors.New(publicMessage(err))
	}
	return product, nil
}

// upsertProduct updates the product with the same slug, keeping its
// gallery and specs, or creates a new one. It reports whether it updated.
func (h *HTTPHandler) upsertProduct(r *http.Request, product *domain.Product) (bool, error) {
	slug := product.Slug
	existing, _, err := h.productStore.ListProducts(r.Context(), store.ListProductsParams{Limit: 1, Slug: &slug})
	if err != nil {
		return false, err
	}
	if len(existing) == 0 {
		_, err := h.productStore.CreateProduct(r.Context(), product)
		return false, err
	}

	current := existing[0]
	product.ID = current.ID
	product.Images = current.Images
	product.Specs = current.Specs
	_, err = h.productStore.UpdateProduct(r.Context(), product)
	return true, err
}
