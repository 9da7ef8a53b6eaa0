package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/erickpaine43/Mascotas-sub000/pkg/errors"

	"github.com/erickpaine43/Mascotas-sub000/internal/domain"
	"github.com/erickpaine43/Mascotas-sub000/internal/repository"
)

// StockService covers the catalog surface: seeding product stock,
// registering animals, and the audit queries. Counter mutations never go
// through here; those belong to the ledger.
type StockService struct {
	stockRepo  repository.StockRepository
	animalRepo repository.AnimalRepository
	orderRepo  repository.OrderRepository
	logger     *slog.Logger
}

// NewStockService creates a new stock service.
func NewStockService(
	stockRepo repository.StockRepository,
	animalRepo repository.AnimalRepository,
	orderRepo repository.OrderRepository,
	logger *slog.Logger,
) *StockService {
	return &StockService{
		stockRepo:  stockRepo,
		animalRepo: animalRepo,
		orderRepo:  orderRepo,
		logger:     logger,
	}
}

// SeedStockInput holds the parameters for initializing product stock.
type SeedStockInput struct {
	SKU               string `json:"sku"`
	Name              string `json:"name"`
	PriceCents        int64  `json:"price_cents"`
	Quantity          int    `json:"quantity"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

// SeedStock creates a product with its initial counters, or tops up an
// existing SKU. Re-running a seed is safe.
func (s *StockService) SeedStock(ctx context.Context, input SeedStockInput) (*domain.Product, error) {
	if input.SKU == "" {
		return nil, apperrors.InvalidInput("sku is required")
	}
	if input.Name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if input.PriceCents <= 0 {
		return nil, apperrors.InvalidInput("price_cents must be greater than zero")
	}
	if input.Quantity < 0 {
		return nil, apperrors.InvalidInput("quantity cannot be negative")
	}

	product, err := s.stockRepo.CreateProduct(ctx, &domain.Product{
		SKU:               input.SKU,
		Name:              input.Name,
		PriceCents:        input.PriceCents,
		Total:             input.Quantity,
		Available:         input.Quantity,
		LowStockThreshold: input.LowStockThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("seed stock: %w", err)
	}

	s.logger.InfoContext(ctx, "stock seeded",
		slog.String("sku", product.SKU),
		slog.Int("quantity", input.Quantity),
		slog.Int("available", product.Available),
	)

	return product, nil
}

// GetStock returns the current counters for a SKU.
func (s *StockService) GetStock(ctx context.Context, sku string) (*domain.Product, error) {
	product, err := s.stockRepo.GetBySKU(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("get stock by sku: %w", err)
	}
	return product, nil
}

// CheckAvailability answers a bulk availability query without taking any
// holds. Unknown SKUs are reported as out of stock rather than failing the
// whole check.
func (s *StockService) CheckAvailability(ctx context.Context, items []domain.StockCheckItem) ([]domain.StockCheckResult, bool, error) {
	if len(items) == 0 {
		return nil, false, apperrors.InvalidInput("items list cannot be empty")
	}

	results := make([]domain.StockCheckResult, len(items))
	allAvailable := true
	for i, item := range items {
		result := domain.StockCheckResult{SKU: item.SKU, Requested: item.Quantity}
		product, err := s.stockRepo.GetBySKU(ctx, item.SKU)
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			// out of stock result already zeroed
		case err != nil:
			return nil, false, fmt.Errorf("check availability: %w", err)
		default:
			result.Available = product.Available
			result.InStock = product.Available >= item.Quantity
		}
		if !result.InStock {
			allAvailable = false
		}
		results[i] = result
	}

	return results, allAvailable, nil
}

// ListActiveReservations returns the orders currently holding stock, for the
// audit surface.
func (s *StockService) ListActiveReservations(ctx context.Context, page, perPage int) ([]domain.Order, int, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	orders, total, err := s.orderRepo.ListActiveReservations(ctx, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list active reservations: %w", err)
	}
	return orders, total, nil
}

// RegisterAnimalInput holds the parameters for registering an animal.
type RegisterAnimalInput struct {
	Name       string `json:"name"`
	Species    string `json:"species"`
	Breed      string `json:"breed,omitempty"`
	AgeMonths  int    `json:"age_months,omitempty"`
	PriceCents int64  `json:"price_cents"`
}

// RegisterAnimal adds a new animal to the registry as available.
func (s *StockService) RegisterAnimal(ctx context.Context, input RegisterAnimalInput) (*domain.Animal, error) {
	if input.Name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if input.Species == "" {
		return nil, apperrors.InvalidInput("species is required")
	}
	if input.PriceCents <= 0 {
		return nil, apperrors.InvalidInput("price_cents must be greater than zero")
	}

	animal, err := s.animalRepo.Create(ctx, &domain.Animal{
		Name:       input.Name,
		Species:    input.Species,
		Breed:      input.Breed,
		AgeMonths:  input.AgeMonths,
		PriceCents: input.PriceCents,
	})
	if err != nil {
		return nil, fmt.Errorf("register animal: %w", err)
	}

	s.logger.InfoContext(ctx, "animal registered",
		slog.String("animal_id", animal.ID),
		slog.String("species", animal.Species),
	)

	return animal, nil
}

// GetAnimal returns an animal by id.
func (s *StockService) GetAnimal(ctx context.Context, id string) (*domain.Animal, error) {
	animal, err := s.animalRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get animal by id: %w", err)
	}
	return animal, nil
}
