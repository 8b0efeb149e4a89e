package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxLineQuantity caps the quantity of a single cart line.
const MaxLineQuantity = 999

// MaxCartTotal is the largest total the NUMERIC(12,2) price columns hold.
var MaxCartTotal = decimal.RequireFromString("9999999999.99")

// LineItem is a (product reference, captured price, quantity) tuple.
type LineItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	AddedAt   time.Time       `json:"added_at"`
}

// Subtotal is Price × Quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart is the per-user collection of prospective purchase line items.
// TotalPrice is derived and must be refreshed with Recalculate after any
// change to Items; the mutating methods below do so themselves.
type Cart struct {
	ID         string          `json:"id,omitempty"`
	UserID     string          `json:"user_id"`
	Items      []LineItem      `json:"items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// NewCart returns an empty, unsaved cart for userID.
func NewCart(userID string) *Cart {
	return &Cart{
		UserID:     userID,
		Items:      []LineItem{},
		TotalPrice: decimal.Zero,
	}
}

// AddItem appends a line for productID at the given captured price, or
// increments the quantity of the existing line for that product. The
// existing line keeps the price captured when it was first added. The cart
// is left unchanged when the result would exceed MaxLineQuantity or
// MaxCartTotal.
func (c *Cart) AddItem(productID string, price decimal.Decimal, quantity int) (LineItem, error) {
	if quantity < 1 {
		return LineItem{}, ErrInvalidQuantity
	}
	if quantity > MaxLineQuantity {
		return LineItem{}, ErrQuantityTooLarge
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			if c.Items[i].Quantity > MaxLineQuantity-quantity {
				return LineItem{}, ErrQuantityTooLarge
			}
			previous := c.Items[i].Quantity
			c.Items[i].Quantity += quantity
			if err := c.recalculateWithinLimit(); err != nil {
				c.Items[i].Quantity = previous
				c.Recalculate()
				return LineItem{}, err
			}
			return c.Items[i], nil
		}
	}

	item := LineItem{
		ID:        uuid.NewString(),
		ProductID: productID,
		Price:     price,
		Quantity:  quantity,
		AddedAt:   time.Now().UTC(),
	}
	c.Items = append(c.Items, item)
	if err := c.recalculateWithinLimit(); err != nil {
		c.Items = c.Items[:len(c.Items)-1]
		c.Recalculate()
		return LineItem{}, err
	}
	return item, nil
}

// UpdateItemQuantity sets the quantity of a line, clamped to at least 1.
// Quantities above MaxLineQuantity are rejected.
func (c *Cart) UpdateItemQuantity(itemID string, quantity int) (LineItem, error) {
	if quantity < 1 {
		quantity = 1
	}
	if quantity > MaxLineQuantity {
		return LineItem{}, ErrQuantityTooLarge
	}
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			previous := c.Items[i].Quantity
			c.Items[i].Quantity = quantity
			if err := c.recalculateWithinLimit(); err != nil {
				c.Items[i].Quantity = previous
				c.Recalculate()
				return LineItem{}, err
			}
			return c.Items[i], nil
		}
	}
	return LineItem{}, ErrCartItemNotFound
}

// RemoveItem deletes a line. The cart itself survives even when emptied.
func (c *Cart) RemoveItem(itemID string) error {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.Recalculate()
			return nil
		}
	}
	return ErrCartItemNotFound
}

// Clear removes every line.
func (c *Cart) Clear() {
	c.Items = []LineItem{}
	c.Recalculate()
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Recalculate refreshes TotalPrice as Σ(price × quantity).
func (c *Cart) Recalculate() {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	c.TotalPrice = total.Round(2)
}

func (c *Cart) recalculateWithinLimit() error {
	c.Recalculate()
	if c.TotalPrice.GreaterThan(MaxCartTotal) {
		return ErrCartTotalTooLarge
	}
	return nil
}

// ProductIDs lists the distinct products referenced by the cart, in line order.
func (c *Cart) ProductIDs() []string {
	seen := make(map[string]bool, len(c.Items))
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}

// CartLineView is a line item decorated for display.
type CartLineView struct {
	LineItem
	Subtotal decimal.Decimal `json:"subtotal"`
	Product  *ProductSummary `json:"product,omitempty"`
}

// CartView is the cart as returned to clients.
type CartView struct {
	UserID     string          `json:"user_id"`
	Items      []CartLineView  `json:"items"`
	ItemCount  int             `json:"item_count"`
	TotalPrice decimal.Decimal `json:"total_price"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// View populates each line with its product summary, when one is known.
// Lines whose product no longer exists keep their captured price.
func (c *Cart) View(products map[string]ProductSummary) CartView {
	view := CartView{
		UserID:     c.UserID,
		Items:      make([]CartLineView, 0, len(c.Items)),
		TotalPrice: c.TotalPrice,
		UpdatedAt:  c.UpdatedAt,
	}
	for _, item := range c.Items {
		line := CartLineView{LineItem: item, Subtotal: item.Subtotal()}
		if summary, ok := products[item.ProductID]; ok {
			s := summary
			line.Product = &s
		}
		view.Items = append(view.Items, line)
		view.ItemCount += item.Quantity
	}
	return view
}
