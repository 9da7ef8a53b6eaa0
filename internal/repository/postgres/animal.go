package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/erickpaine43/Mascotas-sub000/internal/domain"
	"github.com/erickpaine43/Mascotas-sub000/pkg/database"
	apperrors "github.com/erickpaine43/Mascotas-sub000/pkg/errors"
)

const animalColumns = `id, name, species, breed, age_months, price_cents,
	available, reserved, reservation_expires_at, updated_at`

// AnimalRepository implements repository.AnimalRepository using PostgreSQL.
type AnimalRepository struct {
	pool database.DBTX
}

// NewAnimalRepository creates a new PostgreSQL-backed animal repository.
func NewAnimalRepository(pool database.DBTX) *AnimalRepository {
	return &AnimalRepository{pool: pool}
}

// Create registers a new animal as available.
func (r *AnimalRepository) Create(ctx context.Context, a *domain.Animal) (*domain.Animal, error) {
	query := `
		INSERT INTO animals (id, name, species, breed, age_months, price_cents, available, reserved, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, FALSE, NOW())
		RETURNING ` + animalColumns

	var result domain.Animal
	err := r.pool.QueryRow(ctx, query,
		a.ID,
		a.Name,
		a.Species,
		a.Breed,
		a.AgeMonths,
		a.PriceCents,
	).Scan(
		&result.ID,
		&result.Name,
		&result.Species,
		&result.Breed,
		&result.AgeMonths,
		&result.PriceCents,
		&result.Available,
		&result.Reserved,
		&result.ReservationExpiresAt,
		&result.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create animal: %w", err)
	}

	return &result, nil
}

// GetByID retrieves an animal by id.
func (r *AnimalRepository) GetByID(ctx context.Context, id string) (*domain.Animal, error) {
	query := `SELECT ` + animalColumns + ` FROM animals WHERE id = $1`

	var a domain.Animal
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.Name,
		&a.Species,
		&a.Breed,
		&a.AgeMonths,
		&a.PriceCents,
		&a.Available,
		&a.Reserved,
		&a.ReservationExpiresAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get animal by id: %w", err)
	}

	return &a, nil
}
