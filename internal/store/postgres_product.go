package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/abdshekho/msa-sub001/internal/domain"
)

const productColumns = `id, slug, name_en, name_ar, description_en, description_ar, price, image, images,
	category_id, brand_id, specs, created_at, updated_at`

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	var images pq.StringArray
	var scannedSpecs sql.NullString // JSONB, NULL when the product has no spec table
	err := row.Scan(
		&p.ID, &p.Slug, &p.Name.EN, &p.Name.AR, &p.Description.EN, &p.Description.AR,
		&p.Price, &p.Image, &images, &p.CategoryID, &p.BrandID, &scannedSpecs,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Images = []string(images)
	if p.Images == nil {
		p.Images = []string{}
	}
	if scannedSpecs.Valid && scannedSpecs.String != "" && scannedSpecs.String != "null" {
		var specs domain.SpecTable
		if err := json.Unmarshal([]byte(scannedSpecs.String), &specs); err != nil {
			return nil, fmt.Errorf("store: failed to decode product specs: %w", err)
		}
		p.Specs = &specs
	}
	return &p, nil
}

func mapProductWriteError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProductNotFound
	}
	if constraint, ok := pqConstraintError(err, pqUniqueViolation); ok && constraint == "products_slug_key" {
		return ErrProductSlugExists
	}
	if constraint, ok := pqConstraintError(err, pqForeignKeyViolation); ok {
		switch constraint {
		case "products_category_id_fkey":
			return ErrCategoryNotFound
		case "products_brand_id_fkey":
			return ErrBrandNotFound
		}
	}
	return fmt.Errorf("store: %s failed to scan row: %w", op, err)
}

func (s *PostgresStore) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	query := `
		INSERT INTO storefront.products
			(slug, name_en, name_ar, description_en, description_ar, price, image, images, category_id, brand_id, specs)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + productColumns + `;`
	specs, err := jsonbValue(product.Specs, product.Specs == nil)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, query,
		product.Slug, product.Name.EN, product.Name.AR, product.Description.EN, product.Description.AR,
		product.Price, product.Image, pq.Array(product.Images), product.CategoryID, product.BrandID, specs,
	)
	created, err := scanProduct(row)
	if err != nil {
		return nil, mapProductWriteError("CreateProduct", err)
	}
	return created, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context, params ListProductsParams) ([]domain.Product, int, error) {
	var queryArgs []interface{}
	var whereClauses []string
	argID := 1

	if params.SearchQuery != nil && *params.SearchQuery != "" {
		whereClauses = append(whereClauses,
			fmt.Sprintf("(name_en ILIKE $%d OR name_ar ILIKE $%d OR description_en ILIKE $%d)", argID, argID, argID))
		queryArgs = append(queryArgs, "%"+*params.SearchQuery+"%")
		argID++
	}
	if params.CategoryID != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("category_id = $%d", argID))
		queryArgs = append(queryArgs, *params.CategoryID)
		argID++
	}
	if params.CategorySlug != nil {
		whereClauses = append(whereClauses,
			fmt.Sprintf("category_id = (SELECT id FROM storefront.categories WHERE slug = $%d)", argID))
		queryArgs = append(queryArgs, *params.CategorySlug)
		argID++
	}
	if params.BrandID != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("brand_id = $%d", argID))
		queryArgs = append(queryArgs, *params.BrandID)
		argID++
	}
	if params.BrandSlug != nil {
		whereClauses = append(whereClauses,
			fmt.Sprintf("brand_id = (SELECT id FROM storefront.brands WHERE slug = $%d)", argID))
		queryArgs = append(queryArgs, *params.BrandSlug)
		argID++
	}
	if params.Slug != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("slug = $%d", argID))
		queryArgs = append(queryArgs, *params.Slug)
		argID++
	}
	if params.MinPrice != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("price >= $%d", argID))
		queryArgs = append(queryArgs, *params.MinPrice)
		argID++
	}
	if params.MaxPrice != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("price <= $%d", argID))
		queryArgs = append(queryArgs, *params.MaxPrice)
		argID++
	}

	whereCondition := ""
	if len(whereClauses) > 0 {
		whereCondition = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM storefront.products" + whereCondition
	var totalCount int
	if err := s.db.QueryRowContext(ctx, countQuery, queryArgs...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("store: ListProducts failed to count products: %w", err)
	}
	if totalCount == 0 {
		return []domain.Product{}, 0, nil
	}

	sortColumn := "created_at"
	allowedSortColumns := map[string]string{
		"name":       "name_en",
		"price":      "price",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}
	if col, ok := allowedSortColumns[strings.ToLower(params.SortBy)]; ok {
		sortColumn = col
	}
	sortOrder := "DESC" // Newest first unless asked otherwise
	if strings.ToUpper(params.SortOrder) == "ASC" {
		sortOrder = "ASC"
	}

	limitClause, limitArgs := paginate(params.Limit, params.Offset, argID)
	dataQuery := fmt.Sprintf("SELECT %s FROM storefront.products%s ORDER BY %s %s, id ASC%s",
		productColumns, whereCondition, sortColumn, sortOrder, limitClause)

	rows, err := s.db.QueryContext(ctx, dataQuery, append(queryArgs, limitArgs...)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: ListProducts failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, params.Limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("store: ListProducts failed to scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: ListProducts iteration error: %w", err)
	}

	return products, totalCount, nil
}

func (s *PostgresStore) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM storefront.products WHERE id = $1;`
	product, err := scanProduct(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: GetProductByID failed to scan row: %w", err)
	}
	return product, nil
}

// GetProductsByIDs returns the products that still exist among ids, in no particular order.
func (s *PostgresStore) GetProductsByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}
	query := `SELECT ` + productColumns + ` FROM storefront.products WHERE id = ANY($1::uuid[]);`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("store: GetProductsByIDs failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("store: GetProductsByIDs failed to scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: GetProductsByIDs iteration error: %w", err)
	}
	return products, nil
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	query := `
		UPDATE storefront.products
		SET slug = $1, name_en = $2, name_ar = $3, description_en = $4, description_ar = $5, price = $6,
			image = $7, images = $8, category_id = $9, brand_id = $10, specs = $11, updated_at = CURRENT_TIMESTAMP
		WHERE id = $12
		RETURNING ` + productColumns + `;`
	specs, err := jsonbValue(product.Specs, product.Specs == nil)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, query,
		product.Slug, product.Name.EN, product.Name.AR, product.Description.EN, product.Description.AR,
		product.Price, product.Image, pq.Array(product.Images), product.CategoryID, product.BrandID, specs,
		product.ID,
	)
	updated, err := scanProduct(row)
	if err != nil {
		return nil, mapProductWriteError("UpdateProduct", err)
	}
	return updated, nil
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM storefront.products WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}
