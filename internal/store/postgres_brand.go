package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/abdshekho/msa-sub001/internal/domain"
)

const brandColumns = `id, name_en, name_ar, description_en, description_ar, slug, image, created_at, updated_at`

func scanBrand(row rowScanner) (*domain.Brand, error) {
	var b domain.Brand
	err := row.Scan(
		&b.ID,
		&b.Name.EN,
		&b.Name.AR,
		&b.Description.EN,
		&b.Description.AR,
		&b.Slug,
		&b.Image,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func mapBrandWriteError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrBrandNotFound
	}
	if constraint, ok := pqConstraintError(err, pqUniqueViolation); ok && constraint == "brands_slug_key" {
		return ErrBrandSlugExists
	}
	return fmt.Errorf("store: %s failed to scan row: %w", op, err)
}

func (s *PostgresStore) CreateBrand(ctx context.Context, brand *domain.Brand) (*domain.Brand, error) {
	query := `
		INSERT INTO storefront.brands (name_en, name_ar, description_en, description_ar, slug, image)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + brandColumns + `;`
	row := s.db.QueryRowContext(ctx, query,
		brand.Name.EN, brand.Name.AR, brand.Description.EN, brand.Description.AR, brand.Slug, brand.Image)

	created, err := scanBrand(row)
	if err != nil {
		return nil, mapBrandWriteError("CreateBrand", err)
	}
	return created, nil
}

func (s *PostgresStore) GetBrandByID(ctx context.Context, id string) (*domain.Brand, error) {
	query := `SELECT ` + brandColumns + ` FROM storefront.brands WHERE id = $1;`
	brand, err := scanBrand(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBrandNotFound
		}
		return nil, fmt.Errorf("store: GetBrandByID failed to scan row: %w", err)
	}
	return brand, nil
}

func (s *PostgresStore) ListBrands(ctx context.Context, params ListBrandsParams) ([]domain.Brand, int, error) {
	var queryArgs []interface{}
	whereCondition := ""
	argID := 1
	if params.Slug != nil {
		whereCondition = " WHERE slug = $1"
		queryArgs = append(queryArgs, *params.Slug)
		argID++
	}

	var totalCount int
	countQuery := "SELECT COUNT(*) FROM storefront.brands" + whereCondition
	if err := s.db.QueryRowContext(ctx, countQuery, queryArgs...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("store: ListBrands failed to count brands: %w", err)
	}
	if totalCount == 0 {
		return []domain.Brand{}, 0, nil
	}

	limitClause, limitArgs := paginate(params.Limit, params.Offset, argID)
	query := "SELECT " + brandColumns + " FROM storefront.brands" + whereCondition +
		" ORDER BY name_en ASC" + limitClause
	rows, err := s.db.QueryContext(ctx, query, append(queryArgs, limitArgs...)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: ListBrands failed to query brands: %w", err)
	}
	defer rows.Close()

	brands := make([]domain.Brand, 0, params.Limit)
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("store: ListBrands failed to scan brand row: %w", err)
		}
		brands = append(brands, *b)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: ListBrands iteration error: %w", err)
	}
	return brands, totalCount, nil
}

func (s *PostgresStore) UpdateBrand(ctx context.Context, brand *domain.Brand) (*domain.Brand, error) {
	query := `
		UPDATE storefront.brands
		SET name_en = $1, name_ar = $2, description_en = $3, description_ar = $4, slug = $5, image = $6,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $7
		RETURNING ` + brandColumns + `;`
	row := s.db.QueryRowContext(ctx, query,
		brand.Name.EN, brand.Name.AR, brand.Description.EN, brand.Description.AR, brand.Slug, brand.Image, brand.ID)

	updated, err := scanBrand(row)
	if err != nil {
		return nil, mapBrandWriteError("UpdateBrand", err)
	}
	return updated, nil
}

func (s *PostgresStore) DeleteBrand(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM storefront.brands WHERE id = $1;`, id)
	if err != nil {
		if _, ok := pqConstraintError(err, pqForeignKeyViolation); ok {
			return ErrBrandInUse
		}
		return fmt.Errorf("store: DeleteBrand failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: DeleteBrand failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrBrandNotFound
	}
	return nil
}
