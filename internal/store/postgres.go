package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/lib/pq"
)

// Predefined errors for store operations
var (
	ErrCategoryNotFound       = errors.New("store: category not found")
	ErrParentCategoryNotFound = errors.New("store: parent category not found")
	ErrCategorySlugExists     = errors.New("store: category slug already exists")
	ErrCategoryHasChildren    = errors.New("store: category has child categories")
	ErrCategoryInUse          = errors.New("store: category is referenced by products")
	ErrCategoryCycle          = errors.New("store: category parent would create a cycle")
	ErrBrandNotFound          = errors.New("store: brand not found")
	ErrBrandSlugExists        = errors.New("store: brand slug already exists")
	ErrBrandInUse             = errors.New("store: brand is referenced by products")
	ErrProductNotFound        = errors.New("store: product not found")
	ErrProductSlugExists      = errors.New("store: product slug already exists")
	ErrCartNotFound           = errors.New("store: cart not found")
	ErrCartChanged            = errors.New("store: cart changed while placing the order")
	ErrOrderNotFound          = errors.New("store: order not found")
	ErrOrderStatusConflict    = errors.New("store: order status changed concurrently")
	ErrUserNotFound           = errors.New("store: user not found")
	ErrEmailExists            = errors.New("store: email already registered")
	ErrProviderIdentityExists = errors.New("store: provider identity already linked")
)

// PostgreSQL error codes mapped by the store.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// PostgresStore implements every Storer interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore instance around an existing pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping checks that the pool can reach the database.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		log.Println("INFO: Closing database connection pool...")
		err := s.db.Close()
		if err != nil {
			log.Printf("ERROR: Failed to close database connection pool: %v", err)
			return err
		}
		log.Println("INFO: Database connection pool closed successfully.")
		return nil
	}
	return nil
}

// pqConstraintError returns the violated constraint name when err is a
// PostgreSQL error with the given code.
func pqConstraintError(err error, code string) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == code {
		return pqErr.Constraint, true
	}
	return "", false
}

// jsonbValue encodes v for a JSONB parameter. A nil pointer becomes SQL NULL.
// lib/pq sends []byte as bytea, so the document is passed as a string.
func jsonbValue(v interface{}, isNil bool) (interface{}, error) {
	if isNil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: failed to encode JSONB value: %w", err)
	}
	return string(b), nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func paginate(limit, offset, argID int) (string, []interface{}) {
	if limit <= 0 {
		return "", nil
	}
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", argID, argID+1), []interface{}{limit, offset}
}
