package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/erickpaine43/Mascotas-sub000/pkg/httputil"
	"github.com/erickpaine43/Mascotas-sub000/pkg/pagination"
	"github.com/erickpaine43/Mascotas-sub000/pkg/validator"

	"github.com/erickpaine43/Mascotas-sub000/internal/domain"
	"github.com/erickpaine43/Mascotas-sub000/internal/service"
)

// StockHandler handles the stock seed, audit, and animal registry endpoints.
type StockHandler struct {
	stock  *service.StockService
	logger *slog.Logger
}

// NewStockHandler creates a new stock HTTP handler.
func NewStockHandler(stock *service.StockService, logger *slog.Logger) *StockHandler {
	return &StockHandler{
		stock:  stock,
		logger: logger,
	}
}

// SeedStockRequest is the JSON body for initializing product stock.
type SeedStockRequest struct {
	SKU               string `json:"sku" validate:"required,min=3,max=64"`
	Name              string `json:"name" validate:"required"`
	PriceCents        int64  `json:"price_cents" validate:"required,gt=0"`
	Quantity          int    `json:"quantity" validate:"gte=0"`
	LowStockThreshold int    `json:"low_stock_threshold" validate:"gte=0"`
}

// CheckStockRequest is the JSON body for a bulk availability check.
type CheckStockRequest struct {
	Items []StockCheckItemRequest `json:"items" validate:"required,min=1,dive"`
}

// StockCheckItemRequest is a single item in an availability check request.
type StockCheckItemRequest struct {
	SKU      string `json:"sku" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gte=1"`
}

// RegisterAnimalRequest is the JSON body for registering an animal.
type RegisterAnimalRequest struct {
	Name       string `json:"name" validate:"required"`
	Species    string `json:"species" validate:"required"`
	Breed      string `json:"breed"`
	AgeMonths  int    `json:"age_months" validate:"gte=0"`
	PriceCents int64  `json:"price_cents" validate:"required,gt=0"`
}

// SeedStock handles POST /api/v1/stock
func (h *StockHandler) SeedStock(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req SeedStockRequest
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

	product, err := h.stock.SeedStock(r.Context(), service.SeedStockInput{
		SKU:               req.SKU,
		Name:              req.Name,
		PriceCents:        req.PriceCents,
		Quantity:          req.Quantity,
		LowStockThreshold: req.LowStockThreshold,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: product})
}

// GetStock handles GET /api/v1/stock/{sku}
func (h *StockHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")

	product, err := h.stock.GetStock(r.Context(), sku)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// CheckStock handles POST /api/v1/stock/check
func (h *StockHandler) CheckStock(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CheckStockRequest
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

	items := make([]domain.StockCheckItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = domain.StockCheckItem{SKU: item.SKU, Quantity: item.Quantity}
	}

	results, allAvailable, err := h.stock.CheckAvailability(r.Context(), items)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"items":         results,
		"all_available": allAvailable,
	}})
}

// ListReservations handles GET /api/v1/stock/reservations
func (h *StockHandler) ListReservations(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)

	orders, total, err := h.stock.ListActiveReservations(r.Context(), params.Page, params.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(orders, total, params.Page, params.PerPage))
}

// RegisterAnimal handles POST /api/v1/animals
func (h *StockHandler) RegisterAnimal(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req RegisterAnimalRequest
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

	animal, err := h.stock.RegisterAnimal(r.Context(), service.RegisterAnimalInput{
		Name:       req.Name,
		Species:    req.Species,
		Breed:      req.Breed,
		AgeMonths:  req.AgeMonths,
		PriceCents: req.PriceCents,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: animal})
}

// GetAnimal handles GET /api/v1/animals/{id}
func (h *StockHandler) GetAnimal(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	animal, err := h.stock.GetAnimal(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: animal})
}
