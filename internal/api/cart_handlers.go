package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/abdshekho/msa-sub001/internal/domain"
	"github.com/abdshekho/msa-sub001/internal/store"
)

// AddCartItemInput is the body of POST /cart/items. Quantity defaults to 1.
type AddCartItemInput struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  *int   `json:"quantity" validate:"omitempty,max=999"`
}

// UpdateCartItemInput is the body of PUT /cart/items/{itemId}.
type UpdateCartItemInput struct {
	Quantity int `json:"quantity" validate:"max=999"`
}

// loadCart returns the caller's cart, or a fresh unsaved one.
func (h *HTTPHandler) loadCart(r *http.Request, userID string) (*domain.Cart, error) {
	cart, err := h.cartStore.GetCartByUserID(r.Context(), userID)
	if errors.Is(err, store.ErrCartNotFound) {
		return domain.NewCart(userID), nil
	}
	return cart, err
}

// respondWithCart writes the cart decorated with product summaries. A
// failed lookup still returns the cart, just without summaries.
func (h *HTTPHandler) respondWithCart(w http.ResponseWriter, r *http.Request, status int, cart *domain.Cart) {
	summaries, err := h.productSummaries(r, cart.ProductIDs())
	if err != nil {
		log.Printf("WARN: failed to load product summaries for cart of user %s: %v", cart.UserID, err)
		summaries = nil
	}
	respondWithJSON(w, status, cart.View(summaries))
}

// GetCart handles GET /cart.
func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	cart, err := h.loadCart(r, claims.UserID())
	if err != nil {
		respondWithStoreError(w, "GetCart "+claims.UserID(), err, "Failed to retrieve cart")
		return
	}
	h.respondWithCart(w, r, http.StatusOK, cart)
}

// AddCartItem handles POST /cart/items.
func (h *HTTPHandler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	var input AddCartItemInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	quantity := 1
	if input.Quantity != nil {
		quantity = *input.Quantity
	}

	product, err := h.productStore.GetProductByID(r.Context(), input.ProductID)
	if err != nil {
		respondWithStoreError(w, "AddCartItem "+input.ProductID, err, "Failed to add item to cart")
		return
	}

	cart, err := h.loadCart(r, claims.UserID())
	if err != nil {
		respondWithStoreError(w, "AddCartItem "+claims.UserID(), err, "Failed to add item to cart")
		return
	}
	if _, err := cart.AddItem(product.ID, product.Price, quantity); err != nil {
		respondWithStoreError(w, "AddCartItem", err, "Failed to add item to cart")
		return
	}

	saved, err := h.cartStore.SaveCart(r.Context(), cart)
	if err != nil {
		respondWithStoreError(w, "AddCartItem "+claims.UserID(), err, "Failed to add item to cart")
		return
	}
	h.respondWithCart(w, r, http.StatusOK, saved)
}

// UpdateCartItem handles PUT /cart/items/{itemId}. Quantities below 1 are
// raised to 1.
func (h *HTTPHandler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	itemID, ok := uuidParam(w, r, "itemId", "cart item")
	if !ok {
		return
	}
	var input UpdateCartItemInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	cart, err := h.cartStore.GetCartByUserID(r.Context(), claims.UserID())
	if err != nil {
		respondWithStoreError(w, "UpdateCartItem "+claims.UserID(), err, "Failed to update cart item")
		return
	}
	if _, err := cart.UpdateItemQuantity(itemID, input.Quantity); err != nil {
		respondWithStoreError(w, "UpdateCartItem "+itemID, err, "Failed to update cart item")
		return
	}

	saved, err := h.cartStore.SaveCart(r.Context(), cart)
	if err != nil {
		respondWithStoreError(w, "UpdateCartItem "+claims.UserID(), err, "Failed to update cart item")
		return
	}
	h.respondWithCart(w, r, http.StatusOK, saved)
}

// RemoveCartItem handles DELETE /cart/items/{itemId}. The cart row stays,
// even when its last line goes.
func (h *HTTPHandler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	itemID, ok := uuidParam(w, r, "itemId", "cart item")
	if !ok {
		return
	}

	cart, err := h.cartStore.GetCartByUserID(r.Context(), claims.UserID())
	if err != nil {
		respondWithStoreError(w, "RemoveCartItem "+claims.UserID(), err, "Failed to remove cart item")
		return
	}
	if err := cart.RemoveItem(itemID); err != nil {
		respondWithStoreError(w, "RemoveCartItem "+itemID, err, "Failed to remove cart item")
		return
	}

	saved, err := h.cartStore.SaveCart(r.Context(), cart)
	if err != nil {
		respondWithStoreError(w, "RemoveCartItem "+claims.UserID(), err, "Failed to remove cart item")
		return
	}
	h.respondWithCart(w, r, http.StatusOK, saved)
}

// ClearCart handles DELETE /cart.
func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	cart, err := h.cartStore.GetCartByUserID(r.Context(), claims.UserID())
	if errors.Is(err, store.ErrCartNotFound) {
		respondWithJSON(w, http.StatusOK, domain.NewCart(claims.UserID()).View(nil))
		return
	}
	if err != nil {
		respondWithStoreError(w, "ClearCart "+claims.UserID(), err, "Failed to clear cart")
		return
	}

	cart.Clear()
	saved, err := h.cartStore.SaveCart(r.Context(), cart)
	if err != nil {
		respondWithStoreError(w, "ClearCart "+claims.UserID(), err, "Failed to clear cart")
		return
	}
	respondWithJSON(w, http.StatusOK, saved.View(nil))
}
