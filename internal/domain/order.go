package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle label of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Delivered and cancelled have no outgoing edges.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// ParseOrderStatus converts a label into an OrderStatus.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := orderTransitions[status]; !ok {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// CanTransitionTo reports whether s may move to next. Re-applying the
// current status is always allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderItem is an immutable line of an order.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      LocalizedText   `json:"name"`
	Image     string          `json:"image,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Order is a snapshot of a cart taken at checkout. Status is the only
// field that changes after creation.
type Order struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Items      []OrderItem     `json:"items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Status     OrderStatus     `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// NewOrderFromCart copies the cart's lines and total verbatim into a
// pending order. Product summaries, when present, add the name and image
// snapshot to each line.
func NewOrderFromCart(cart *Cart, products map[string]ProductSummary) (*Order, error) {
	if cart == nil || cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	items := make([]OrderItem, 0, len(cart.Items))
	for _, li := range cart.Items {
		item := OrderItem{
			ProductID: li.ProductID,
			Price:     li.Price,
			Quantity:  li.Quantity,
		}
		if summary, ok := products[li.ProductID]; ok {
			item.Name = summary.Name
			item.Image = summary.Image
		}
		items = append(items, item)
	}

	return &Order{
		UserID:     cart.UserID,
		Items:      items,
		TotalPrice: cart.TotalPrice,
		Status:     OrderStatusPending,
	}, nil
}
