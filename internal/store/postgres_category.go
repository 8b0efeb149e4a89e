package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/abdshekho/msa-sub001/internal/domain"
)

const categoryColumns = `id, name_en, name_ar, slug, parent_id, image, created_at, updated_at`

func scanCategory(row rowScanner) (*domain.Category, error) {
	var c domain.Category
	err := row.Scan(
		&c.ID,
		&c.Name.EN,
		&c.Name.AR,
		&c.Slug,
		&c.ParentID,
		&c.Image,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// mapCategoryWriteError translates constraint violations raised by INSERT/UPDATE.
func mapCategoryWriteError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCategoryNotFound
	}
	if constraint, ok := pqConstraintError(err, pqUniqueViolation); ok && constraint == "categories_slug_key" {
		return ErrCategorySlugExists
	}
	if constraint, ok := pqConstraintError(err, pqForeignKeyViolation); ok && constraint == "categories_parent_id_fkey" {
		return ErrParentCategoryNotFound
	}
	return fmt.Errorf("store: %s failed to scan row: %w", op, err)
}

func (s *PostgresStore) CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	query := `
		INSERT INTO storefront.categories (name_en, name_ar, slug, parent_id, image)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + categoryColumns + `;`
	row := s.db.QueryRowContext(ctx, query,
		category.Name.EN, category.Name.AR, category.Slug, category.ParentID, category.Image)

	created, err := scanCategory(row)
	if err != nil {
		return nil, mapCategoryWriteError("CreateCategory", err)
	}
	return created, nil
}

// ListCategories retrieves categories ordered by English name.
func (s *PostgresStore) ListCategories(ctx context.Context, params ListCategoriesParams) ([]domain.Category, int, error) {
	var queryArgs []interface{}
	var whereClauses []string
	argID := 1

	if params.RootsOnly {
		whereClauses = append(whereClauses, "parent_id IS NULL")
	} else if params.ParentID != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("parent_id = $%d", argID))
		queryArgs = append(queryArgs, *params.ParentID)
		argID++
	}
	if params.Slug != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("slug = $%d", argID))
		queryArgs = append(queryArgs, *params.Slug)
		argID++
	}

	whereCondition := ""
	if len(whereClauses) > 0 {
		whereCondition = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM storefront.categories" + whereCondition
	var totalCount int
	if err := s.db.QueryRowContext(ctx, countQuery, queryArgs...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("store: ListCategories failed to count categories: %w", err)
	}
	if totalCount == 0 {
		return []domain.Category{}, 0, nil
	}

	limitClause, limitArgs := paginate(params.Limit, params.Offset, argID)
	query := "SELECT " + categoryColumns + " FROM storefront.categories" + whereCondition +
		" ORDER BY name_en ASC" + limitClause
	rows, err := s.db.QueryContext(ctx, query, append(queryArgs, limitArgs...)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: ListCategories failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, params.Limit)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("store: ListCategories failed to scan category row: %w", err)
		}
		categories = append(categories, *c)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: ListCategories iteration error: %w", err)
	}

	return categories, totalCount, nil
}

func (s *PostgresStore) GetCategoryByID(ctx context.Context, id string) (*domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM storefront.categories WHERE id = $1;`
	category, err := scanCategory(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("store: GetCategoryByID failed to scan row: %w", err)
	}
	return category, nil
}

// createsCycle reports whether making parentID the parent of id would put
// id among its own ancestors.
func (s *PostgresStore) createsCycle(ctx context.Context, id, parentID string) (bool, error) {
	query := `
		WITH RECURSIVE ancestors AS (
			SELECT id, parent_id FROM storefront.categories WHERE id = $1
			UNION
			SELECT c.id, c.parent_id FROM storefront.categories c
			JOIN ancestors a ON c.id = a.parent_id
		)
		SELECT EXISTS(SELECT 1 FROM ancestors WHERE id = $2);`
	var cycle bool
	if err := s.db.QueryRowContext(ctx, query, parentID, id).Scan(&cycle); err != nil {
		return false, fmt.Errorf("store: UpdateCategory failed to check ancestry: %w", err)
	}
	return cycle, nil
}

func (s *PostgresStore) UpdateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	if category.ParentID != nil {
		cycle, err := s.createsCycle(ctx, category.ID, *category.ParentID)
		if err != nil {
			return nil, err
		}
		if cycle {
			return nil, ErrCategoryCycle
		}
	}

	query := `
		UPDATE storefront.categories
		SET name_en = $1, name_ar = $2, slug = $3, parent_id = $4, image = $5, updated_at = CURRENT_TIMESTAMP
		WHERE id = $6
		RETURNING ` + categoryColumns + `;`
	row := s.db.QueryRowContext(ctx, query,
		category.Name.EN, category.Name.AR, category.Slug, category.ParentID, category.Image, category.ID)

	updated, err := scanCategory(row)
	if err != nil {
		return nil, mapCategoryWriteError("UpdateCategory", err)
	}
	return updated, nil
}

// DeleteCategory removes a leaf category that no product references.
func (s *PostgresStore) DeleteCategory(ctx context.Context, id string) error {
	var hasChildren bool
	childQuery := `SELECT EXISTS(SELECT 1 FROM storefront.categories WHERE parent_id = $1);`
	if err := s.db.QueryRowContext(ctx, childQuery, id).Scan(&hasChildren); err != nil {
		return fmt.Errorf("store: DeleteCategory failed to check children: %w", err)
	}
	if hasChildren {
		return ErrCategoryHasChildren
	}

	query := `DELETE FROM storefront.categories WHERE id = $1;`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		// The foreign keys still guard against a child or product added concurrently.
		if constraint, ok := pqConstraintError(err, pqForeignKeyViolation); ok {
			if constraint == "categories_parent_id_fkey" {
				return ErrCategoryHasChildren
			}
			return ErrCategoryInUse
		}
		return fmt.Errorf("store: DeleteCategory failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: DeleteCategory failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}
