package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdshekho/msa-sub001/internal/domain"
)

// Helper function to create a mock DB and PostgresStore for testing
func newMockDBAndStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresStore) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Failed to create sqlmock")

	store := NewPostgresStore(db)
	require.NotNil(t, store, "Store should not be nil")

	return db, mock, store
}

func PtrTo[T any](v T) *T {
	return &v
}

var categoryRowColumns = []string{"id", "name_en", "name_ar", "slug", "parent_id", "image", "created_at", "updated_at"}

func TestPostgresStore_CreateCategory(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	categoryToCreate := &domain.Category{
		Name: domain.LocalizedText{EN: "Phones", AR: "هواتف"},
		Slug: "phones",
	}
	expectedID := "0b6f3c3e-8a57-4c1f-9f59-0c6a3a6b2f10"

	rows := sqlmock.NewRows(categoryRowColumns).
		AddRow(expectedID, "Phones", "هواتف", "phones", nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO storefront.categories (name_en, name_ar, slug, parent_id, image)")).
		WithArgs("Phones", "هواتف", "phones", categoryToCreate.ParentID, categoryToCreate.Image).
		WillReturnRows(rows)

	created, err := store.CreateCategory(context.Background(), categoryToCreate)

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, expectedID, created.ID)
	assert.Equal(t, "هواتف", created.Name.AR)
	assert.Nil(t, created.ParentID)
	assert.WithinDuration(t, now, created.CreatedAt, time.Second)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateCategory_SlugExists(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	pqErr := &pq.Error{Code: "23505", Constraint: "categories_slug_key"}
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO storefront.categories")).WillReturnError(pqErr)

	created, err := store.CreateCategory(context.Background(), &domain.Category{
		Name: domain.LocalizedText{EN: "Phones"}, Slug: "phones",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCategorySlugExists), "Error should be ErrCategorySlugExists")
	assert.Nil(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateCategory_ParentMissing(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	pqErr := &pq.Error{Code: "23503", Constraint: "categories_parent_id_fkey"}
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO storefront.categories")).WillReturnError(pqErr)

	_, err := store.CreateCategory(context.Background(), &domain.Category{
		Name: domain.LocalizedText{EN: "Android"}, Slug: "android", ParentID: PtrTo("missing"),
	})
	assert.ErrorIs(t, err, ErrParentCategoryNotFound)
}

func TestPostgresStore_GetCategoryByID_Found(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	rows := sqlmock.NewRows(categoryRowColumns).
		AddRow("cat-1", "Android", "أندرويد", "android", "cat-0", "/uploads/categories/a.jpg", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM storefront.categories WHERE id = $1")).
		WithArgs("cat-1").WillReturnRows(rows)

	category, err := store.GetCategoryByID(context.Background(), "cat-1")

	require.NoError(t, err)
	require.NotNil(t, category.ParentID)
	assert.Equal(t, "cat-0", *category.ParentID)
	require.NotNil(t, category.Image)
	assert.Equal(t, "/uploads/categories/a.jpg", *category.Image)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCategoryByID_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM storefront.categories WHERE id = $1")).
		WithArgs("nope").WillReturnError(sql.ErrNoRows)

	category, err := store.GetCategoryByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrCategoryNotFound)
	assert.Nil(t, category)
}

func TestPostgresStore_ListCategories_RootsWithLimit(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM storefront.categories WHERE parent_id IS NULL")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE parent_id IS NULL ORDER BY name_en ASC LIMIT $1 OFFSET $2")).
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(categoryRowColumns).
			AddRow("a", "Books", "كتب", "books", nil, nil, now, now).
			AddRow("b", "Phones", "هواتف", "phones", nil, nil, now, now))

	categories, total, err := store.ListCategories(context.Background(), ListCategoriesParams{Limit: 10, RootsOnly: true})

	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, categories, 2)
	assert.Equal(t, "books", categories[0].Slug)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListCategories_EmptySkipsDataQuery(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM storefront.categories WHERE slug = $1")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	categories, total, err := store.ListCategories(context.Background(), ListCategoriesParams{Slug: PtrTo("ghost")})

	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NotNil(t, categories)
	assert.Empty(t, categories)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateCategory_RejectsCycle(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WITH RECURSIVE ancestors")).
		WithArgs("child", "parent").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := store.UpdateCategory(context.Background(), &domain.Category{
		ID: "parent", Name: domain.LocalizedText{EN: "Parent"}, Slug: "parent", ParentID: PtrTo("child"),
	})

	assert.ErrorIs(t, err, ErrCategoryCycle)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteCategory_WithChildren(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM storefront.categories WHERE parent_id = $1)")).
		WithArgs("cat-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := store.DeleteCategory(context.Background(), "cat-1")

	assert.ErrorIs(t, err, ErrCategoryHasChildren)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteCategory_ReferencedByProducts(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("cat-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM storefront.categories WHERE id = $1")).
		WithArgs("cat-1").
		WillReturnError(&pq.Error{Code: "23503", Constraint: "products_category_id_fkey"})

	assert.ErrorIs(t, store.DeleteCategory(context.Background(), "cat-1"), ErrCategoryInUse)
}

func TestPostgresStore_DeleteCategory_Success(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("cat-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM storefront.categories WHERE id = $1")).
		WithArgs("cat-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.DeleteCategory(context.Background(), "cat-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteCategory_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("cat-9").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM storefront.categories")).
		WithArgs("cat-9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, store.DeleteCategory(context.Background(), "cat-9"), ErrCategoryNotFound)
}

func TestPostgresStore_CreateBrand_SlugExists(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO storefront.brands")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "brands_slug_key"})

	_, err := store.CreateBrand(context.Background(), &domain.Brand{
		Name: domain.LocalizedText{EN: "Acme"}, Slug: "acme",
	})
	assert.ErrorIs(t, err, ErrBrandSlugExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteBrand_InUse(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM storefront.brands")).
		WithArgs("brand-1").
		WillReturnError(&pq.Error{Code: "23503", Constraint: "products_brand_id_fkey"})

	assert.ErrorIs(t, store.DeleteBrand(context.Background(), "brand-1"), ErrBrandInUse)
}
