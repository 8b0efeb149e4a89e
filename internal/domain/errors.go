package domain

import "errors"

// Domain rule violations. Handlers translate these into 4xx responses.
var (
	ErrInvalidQuantity   = errors.New("domain: quantity must be at least 1")
	ErrQuantityTooLarge  = errors.New("domain: quantity must be at most 999")
	ErrCartTotalTooLarge = errors.New("domain: cart total exceeds the maximum order value")
	ErrNegativePrice     = errors.New("domain: price must not be negative")
	ErrInvalidSpecTable  = errors.New("domain: every spec row must span all header columns")
	ErrCartItemNotFound  = errors.New("domain: cart item not found")
	ErrEmptyCart         = errors.New("domain: cart is empty")
	ErrInvalidStatus     = errors.New("domain: unknown order status")
	ErrInvalidTransition = errors.New("domain: order status transition not allowed")
	ErrInvalidRole       = errors.New("domain: unknown user role")
)
