package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/abdshekho/msa-sub001/internal/domain"
	"github.com/abdshekho/msa-sub001/internal/store"
)

const (
	defaultOrderLimit = 20
	maxOrderLimit     = 100
)

// UpdateOrderStatusInput is the body of PUT /admin/orders/{orderId}/status.
type UpdateOrderStatusInput struct {
	Status string `json:"status" validate:"required"`
}

// CreateOrder handles POST /orders: the caller's cart becomes a pending
// order and is emptied in the same transaction. A cart edited between the
// read and the commit yields 409 and no order.
func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	cart, err := h.cartStore.GetCartByUserID(r.Context(), claims.UserID())
	if errors.Is(err, store.ErrCartNotFound) {
		respondWithError(w, http.StatusBadRequest, publicMessage(domain.ErrEmptyCart))
		return
	}
	if err != nil {
		respondWithStoreError(w, "CreateOrder "+claims.UserID(), err, "Failed to create order")
		return
	}
	if cart.IsEmpty() {
		respondWithError(w, http.StatusBadRequest, publicMessage(domain.ErrEmptyCart))
		return
	}

	summaries, err := h.productSummaries(r, cart.ProductIDs())
	if err != nil {
		log.Printf("WARN: failed to load product snapshots for order of user %s: %v", claims.UserID(), err)
		summaries = nil
	}

	order, err := domain.NewOrderFromCart(cart, summaries)
	if err != nil {
		respondWithStoreError(w, "CreateOrder", err, "Failed to create order")
		return
	}

	created, err := h.orderStore.PlaceOrder(r.Context(), order, cart.UpdatedAt)
	if err != nil {
		respondWithStoreError(w, "CreateOrder "+claims.UserID(), err, "Failed to create order")
		return
	}
	log.Printf("INFO: order %s placed by user %s (total %s)", created.ID, created.UserID, created.TotalPrice.StringFixed(2))
	respondWithJSON(w, http.StatusCreated, created)
}

// ListMyOrders handles GET /orders.
func (h *HTTPHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	userID := claims.UserID()
	h.listOrders(w, r, store.ListOrdersParams{UserID: &userID})
}

// ListAllOrders handles GET /admin/orders?status=.
func (h *HTTPHandler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	var params store.ListOrdersParams
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domain.ParseOrderStatus(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, publicMessage(err))
			return
		}
		params.Status = &status
	}
	h.listOrders(w, r, params)
}

func (h *HTTPHandler) listOrders(w http.ResponseWriter, r *http.Request, params store.ListOrdersParams) {
	page, limit, offset := pageParams(r, defaultOrderLimit, maxOrderLimit)
	params.Limit = limit
	params.Offset = offset

	orders, totalCount, err := h.orderStore.ListOrders(r.Context(), params)
	if err != nil {
		respondWithStoreError(w, "ListOrders", err, "Failed to retrieve orders")
		return
	}
	respondWithJSON(w, http.StatusOK, ListResponse{Data: orders, Pagination: newPagination(page, limit, totalCount)})
}

// GetOrderByID handles GET /orders/{orderId}. Orders of other users look
// missing unless the caller is an admin.
func (h *HTTPHandler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	orderID, ok := uuidParam(w, r, "orderId", "order")
	if !ok {
		return
	}

	order, err := h.orderStore.GetOrderByID(r.Context(), orderID)
	if err != nil {
		respondWithStoreError(w, "GetOrderByID "+orderID, err, "Failed to retrieve order")
		return
	}
	if order.UserID != claims.UserID() && !claims.IsAdmin() {
		respondWithError(w, http.StatusNotFound, publicMessage(store.ErrOrderNotFound))
		return
	}
	respondWithJSON(w, http.StatusOK, order)
}

// UpdateOrderStatus handles PUT /admin/orders/{orderId}/status.
func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "orderId", "order")
	if !ok {
		return
	}
	var input UpdateOrderStatusInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	next, err := domain.ParseOrderStatus(input.Status)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, publicMessage(err))
		return
	}

	order, err := h.orderStore.GetOrderByID(r.Context(), orderID)
	if err != nil {
		respondWithStoreError(w, "UpdateOrderStatus "+orderID, err, "Failed to update order status")
		return
	}
	if order.Status == next {
		respondWithJSON(w, http.StatusOK, order)
		return
	}
	if !order.Status.CanTransitionTo(next) {
		respondWithError(w, http.StatusConflict,
			"Cannot change order status from "+string(order.Status)+" to "+string(next))
		return
	}

	updated, err := h.orderStore.UpdateOrderStatus(r.Context(), orderID, order.Status, next)
	if err != nil {
		respondWithStoreError(w, "UpdateOrderStatus "+orderID, err, "Failed to update order status")
		return
	}
	log.Printf("INFO: order %s moved from %s to %s", orderID, order.Status, next)
	respondWithJSON(w, http.StatusOK, updated)
}
