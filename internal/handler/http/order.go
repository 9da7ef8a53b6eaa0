package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/erickpaine43/Mascotas-sub000/pkg/httputil"
	"github.com/erickpaine43/Mascotas-sub000/pkg/validator"

	"github.com/erickpaine43/Mascotas-sub000/internal/repository"
	"github.com/erickpaine43/Mascotas-sub000/internal/service"
)

// OrderHandler handles HTTP requests for the order endpoints.
type OrderHandler struct {
	orders   *service.OrderService
	checkout *service.CheckoutService
	logger   *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(orders *service.OrderService, checkout *service.CheckoutService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		checkout: checkout,
		logger:   logger,
	}
}

// --- Request DTOs ---

// CreateOrderLineRequest is the JSON body for one order line.
type CreateOrderLineRequest struct {
	ProductID string `json:"product_id" validate:"omitempty,uuid"`
	AnimalID  string `json:"animal_id" validate:"omitempty,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// CreateOrderRequest is the JSON body for creating an order.
type CreateOrderRequest struct {
	UserID   string                   `json:"user_id" validate:"required,uuid"`
	Lines    []CreateOrderLineRequest `json:"lines" validate:"required,min=1,dive"`
	Currency string                   `json:"currency" validate:"required,len=3"`
}

// CancelOrderRequest is the JSON body for canceling an order.
type CancelOrderRequest struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor" validate:"omitempty,oneof=customer support system"`
}

// UpdateStatusRequest is the JSON body for fulfillment transitions.
type UpdateStatusRequest struct {
	Status   string `json:"status" validate:"required,oneof=shipped delivered completed"`
	Note     string `json:"note"`
	Location string `json:"location"`
}

// CheckoutRequest is the JSON body for opening a payment session.
type CheckoutRequest struct {
	SuccessURL string `json:"success_url" validate:"omitempty,url"`
	CancelURL  string `json:"cancel_url" validate:"omitempty,url"`
}

// --- Handlers ---

// CreateOrder handles POST /api/v1/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	lines := make([]service.CreateOrderLineInput, len(req.Lines))
	for i, line := range req.Lines {
		lines[i] = service.CreateOrderLineInput{
			ProductID: line.ProductID,
			AnimalID:  line.AnimalID,
			Quantity:  line.Quantity,
		}
	}

	order, err := h.orders.CreateOrder(r.Context(), service.CreateOrderInput{
		UserID:   req.UserID,
		Lines:    lines,
		Currency: req.Currency,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: order})
}

// ListOrders handles GET /api/v1/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	filter := repository.OrderFilter{
		Page:    1,
		PerPage: 20,
	}

	if v := r.URL.Query().Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "page must be a valid positive integer"},
			})
			return
		}
		filter.Page = page
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		perPage, err := strconv.Atoi(v)
		if err != nil || perPage < 1 || perPage > 100 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "per_page must be a valid integer between 1 and 100"},
			})
			return
		}
		filter.PerPage = perPage
	}
	if v := r.URL.Query().Get("user_id"); v != "" {
		filter.UserID = &v
	}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = &v
	}

	orders, total, err := h.orders.ListOrders(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(orders, total, filter.Page, filter.PerPage))
}

// GetOrder handles GET /api/v1/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// GetHistory handles GET /api/v1/orders/{id}/history
func (h *OrderHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	entries, err := h.orders.GetHistory(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: entries})
}

// CancelOrder handles POST /api/v1/orders/{id}/cancel
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "canceled by customer"
	}
	if req.Actor != "" {
		reason = reason + " (" + req.Actor + ")"
	}

	order, err := h.orders.CancelOrder(r.Context(), id.String(), reason)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// UpdateStatus handles POST /api/v1/orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	var (
		order any
		err   error
	)
	switch req.Status {
	case "shipped":
		order, err = h.orders.MarkShipped(r.Context(), id.String(), req.Note, req.Location)
	case "delivered":
		order, err = h.orders.MarkDelivered(r.Context(), id.String(), req.Note, req.Location)
	case "completed":
		order, err = h.orders.MarkCompleted(r.Context(), id.String(), req.Note)
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// Checkout handles POST /api/v1/orders/{id}/checkout
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	session, err := h.checkout.CreateSession(r.Context(), service.CreateSessionInput{
		OrderID:    id.String(),
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: session})
}
