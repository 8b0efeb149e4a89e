package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abdshekho/msa-sub001/internal/domain"
)

const cartColumns = `id, user_id, items, total_price, created_at, updated_at`

func scanCart(row rowScanner) (*domain.Cart, error) {
	var c domain.Cart
	var items []byte
	if err := row.Scan(&c.ID, &c.UserID, &items, &c.TotalPrice, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Items = []domain.LineItem{}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &c.Items); err != nil {
			return nil, fmt.Errorf("store: failed to decode cart items: %w", err)
		}
	}
	return &c, nil
}

// GetCartByUserID loads the cart document owned by userID.
func (s *PostgresStore) GetCartByUserID(ctx context.Context, userID string) (*domain.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM storefront.carts WHERE user_id = $1;`
	cart, err := scanCart(s.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("store: GetCartByUserID failed to scan row: %w", err)
	}
	return cart, nil
}

// SaveCart writes the whole cart document, creating it on first use.
// Concurrent writers for the same user overwrite each other (last write wins).
func (s *PostgresStore) SaveCart(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	items := cart.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	itemsJSON, err := jsonbValue(items, false)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO storefront.carts (user_id, items, total_price)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET items = EXCLUDED.items, total_price = EXCLUDED.total_price, updated_at = CURRENT_TIMESTAMP
		RETURNING ` + cartColumns + `;`
	saved, err := scanCart(s.db.QueryRowContext(ctx, query, cart.UserID, itemsJSON, cart.TotalPrice))
	if err != nil {
		if constraint, ok := pqConstraintError(err, pqForeignKeyViolation); ok && constraint == "carts_user_id_fkey" {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("store: SaveCart failed to scan row: %w", err)
	}
	return saved, nil
}
