package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abdshekho/msa-sub001/internal/domain"
)

const orderColumns = `id, user_id, items, total_price, status, created_at, updated_at`

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var items []byte
	if err := row.Scan(&o.ID, &o.UserID, &items, &o.TotalPrice, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Items = []domain.OrderItem{}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, fmt.Errorf("store: failed to decode order items: %w", err)
		}
	}
	return &o, nil
}

// PlaceOrder persists the order and empties the owner's cart in one transaction.
// The cart is only cleared while its updated_at still equals cartUpdatedAt;
// otherwise the order is rolled back with ErrCartChanged.
func (s *PostgresStore) PlaceOrder(ctx context.Context, order *domain.Order, cartUpdatedAt time.Time) (*domain.Order, error) {
	itemsJSON, err := jsonbValue(order.Items, false)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: PlaceOrder failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op once committed

	insertQuery := `
		INSERT INTO storefront.orders (user_id, items, total_price, status)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + orderColumns + `;`
	created, err := scanOrder(tx.QueryRowContext(ctx, insertQuery, order.UserID, itemsJSON, order.TotalPrice, order.Status))
	if err != nil {
		return nil, fmt.Errorf("store: PlaceOrder failed to insert order: %w", err)
	}

	clearQuery := `
		UPDATE storefront.carts
		SET items = '[]'::jsonb, total_price = 0, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1 AND updated_at = $2;`
	result, err := tx.ExecContext(ctx, clearQuery, order.UserID, cartUpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: PlaceOrder failed to clear cart: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("store: PlaceOrder failed to check cart clear: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrCartChanged
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: PlaceOrder failed to commit: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM storefront.orders WHERE id = $1;`
	order, err := scanOrder(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("store: GetOrderByID failed to scan row: %w", err)
	}
	return order, nil
}

// ListOrders returns orders newest first.
func (s *PostgresStore) ListOrders(ctx context.Context, params ListOrdersParams) ([]domain.Order, int, error) {
	var queryArgs []interface{}
	var whereClauses []string
	argID := 1

	if params.UserID != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("user_id = $%d", argID))
		queryArgs = append(queryArgs, *params.UserID)
		argID++
	}
	if params.Status != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("status = $%d", argID))
		queryArgs = append(queryArgs, string(*params.Status))
		argID++
	}
	whereCondition := ""
	if len(whereClauses) > 0 {
		whereCondition = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	var totalCount int
	countQuery := "SELECT COUNT(*) FROM storefront.orders" + whereCondition
	if err := s.db.QueryRowContext(ctx, countQuery, queryArgs...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("store: ListOrders failed to count orders: %w", err)
	}
	if totalCount == 0 {
		return []domain.Order{}, 0, nil
	}

	limitClause, limitArgs := paginate(params.Limit, params.Offset, argID)
	query := "SELECT " + orderColumns + " FROM storefront.orders" + whereCondition +
		" ORDER BY created_at DESC" + limitClause
	rows, err := s.db.QueryContext(ctx, query, append(queryArgs, limitArgs...)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: ListOrders failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, params.Limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("store: ListOrders failed to scan order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: ListOrders iteration error: %w", err)
	}
	return orders, totalCount, nil
}

// UpdateOrderStatus moves an order from one status to another. The WHERE
// clause on the old status makes the check-then-write safe against a
// concurrent transition.
func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	query := `
		UPDATE storefront.orders
		SET status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND status = $3
		RETURNING ` + orderColumns + `;`
	updated, err := scanOrder(s.db.QueryRowContext(ctx, query, string(to), id, string(from)))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: UpdateOrderStatus failed to scan row: %w", err)
	}

	var exists bool
	checkExistenceQuery := `SELECT EXISTS(SELECT 1 FROM storefront.orders WHERE id = $1);`
	if err := s.db.QueryRowContext(ctx, checkExistenceQuery, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("store: UpdateOrderStatus failed to check existence: %w", err)
	}
	if !exists {
		return nil, ErrOrderNotFound
	}
	return nil, ErrOrderStatusConflict
}
