package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/erickpaine43/Mascotas-sub000/pkg/errors"

	"github.com/erickpaine43/Mascotas-sub000/internal/domain"
)

func newStockFixture() (*StockService, *mockStockRepository, *mockAnimalRepository, *mockOrderRepository) {
	stockRepo := new(mockStockRepository)
	animalRepo := new(mockAnimalRepository)
	orderRepo := new(mockOrderRepository)
	svc := NewStockService(stockRepo, animalRepo, orderRepo, newTestLogger())
	return svc, stockRepo, animalRepo, orderRepo
}

func TestSeedStock_CreatesBalancedCounters(t *testing.T) {
	svc, stockRepo, _, _ := newStockFixture()
	ctx := context.Background()

	stockRepo.On("CreateProduct", ctx, mock.MatchedBy(func(p *domain.Product) bool {
		return p.SKU == "FOOD-CAT-2KG" && p.Total == 10 && p.Available == 10 && p.Reserved == 0 && p.Sold == 0
	})).Return(&domain.Product{ID: "prod-1", SKU: "FOOD-CAT-2KG", Total: 10, Available: 10}, nil)

	product, err := svc.SeedStock(ctx, SeedStockInput{
		SKU:        "FOOD-CAT-2KG",
		Name:       "Cat Food 2kg",
		PriceCents: 1999,
		Quantity:   10,
	})

	require.NoError(t, err)
	assert.NoError(t, product.CheckInvariant())
	stockRepo.AssertExpectations(t)
}

func TestSeedStock_Validation(t *testing.T) {
	svc, _, _, _ := newStockFixture()
	ctx := context.Background()

	_, err := svc.SeedStock(ctx, SeedStockInput{Name: "x", PriceCents: 1, Quantity: 1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.SeedStock(ctx, SeedStockInput{SKU: "X", Name: "x", PriceCents: 1, Quantity: -1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCheckAvailability_ReportsPerItemResults(t *testing.T) {
	svc, stockRepo, _, _ := newStockFixture()
	ctx := context.Background()

	stockRepo.On("GetBySKU", ctx, "FOOD-CAT-2KG").
		Return(&domain.Product{SKU: "FOOD-CAT-2KG", Total: 10, Available: 3, Sold: 7}, nil)
	stockRepo.On("GetBySKU", ctx, "TOY-MOUSE").
		Return(nil, apperrors.NotFound("product", "TOY-MOUSE"))

	results, allAvailable, err := svc.CheckAvailability(ctx, []domain.StockCheckItem{
		{SKU: "FOOD-CAT-2KG", Quantity: 2},
		{SKU: "TOY-MOUSE", Quantity: 1},
	})

	require.NoError(t, err)
	assert.False(t, allAvailable)
	require.Len(t, results, 2)
	assert.True(t, results[0].InStock)
	assert.Equal(t, 3, results[0].Available)
	assert.False(t, results[1].InStock)
	assert.Equal(t, 0, results[1].Available)
}

func TestCheckAvailability_EmptyItems(t *testing.T) {
	svc, _, _, _ := newStockFixture()

	_, _, err := svc.CheckAvailability(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRegisterAnimal_StartsFree(t *testing.T) {
	svc, _, animalRepo, _ := newStockFixture()
	ctx := context.Background()

	animalRepo.On("Create", ctx, mock.AnythingOfType("*domain.Animal")).
		Return(&domain.Animal{ID: "animal-1", Name: "Firulais", Species: "dog", Available: true}, nil)

	animal, err := svc.RegisterAnimal(ctx, RegisterAnimalInput{
		Name:       "Firulais",
		Species:    "dog",
		PriceCents: 250000,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.AnimalStateFree, animal.State())
}

func TestListActiveReservations_ClampsPagination(t *testing.T) {
	svc, _, _, orderRepo := newStockFixture()
	ctx := context.Background()

	orderRepo.On("ListActiveReservations", ctx, 1, 100).Return([]domain.Order{}, 0, nil)

	_, _, err := svc.ListActiveReservations(ctx, -1, 900)

	require.NoError(t, err)
	orderRepo.AssertExpectations(t)
}
