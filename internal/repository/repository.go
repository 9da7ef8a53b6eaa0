package repository

import (
	"context"
	"time"

	"github.com/erickpaine43/Mascotas-sub000/internal/domain"
)

// OrderFilter defines filter criteria for listing orders.
type OrderFilter struct {
	UserID  *string
	Status  *string
	Page    int
	PerPage int
}

// OrderRepository defines the interface for order persistence operations.
type OrderRepository interface {
	// Create inserts a new order and its lines atomically.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by its unique identifier, including lines.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetByCheckoutSessionID looks up the order correlated to a gateway
	// checkout session.
	GetByCheckoutSessionID(ctx context.Context, sessionID string) (*domain.Order, error)

	// GetByPaymentIntentID looks up the order correlated to a gateway
	// payment intent.
	GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Order, error)

	// List returns orders matching the given filter along with the total count.
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)

	// UpdateStatus moves an order from one status to another, optionally
	// recording a cancel reason. The update only lands if the order is still
	// in the from status; otherwise ErrInvalidTransition (or ErrNotFound) is
	// returned and the caller backs off.
	UpdateStatus(ctx context.Context, id string, from string, to string, reason string) error

	// SetCheckoutSession stores the gateway session correlation id.
	SetCheckoutSession(ctx context.Context, id string, sessionID string) error

	// SetPaymentIntent stores the gateway payment intent correlation id.
	SetPaymentIntent(ctx context.Context, id string, intentID string) error

	// AppendHistory appends a customer-facing history entry.
	AppendHistory(ctx context.Context, entry *domain.HistoryEntry) error

	// ListHistory returns the history entries of an order, oldest first.
	ListHistory(ctx context.Context, orderID string) ([]domain.HistoryEntry, error)

	// ListExpiredReservations returns ids of pending orders whose active
	// reservation lapsed before now.
	ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]string, error)

	// ListActiveReservations returns orders currently holding stock.
	ListActiveReservations(ctx context.Context, page, perPage int) ([]domain.Order, int, error)
}

// StockRepository defines catalog-level product operations. Counter mutations
// go through the ledger, not this interface.
type StockRepository interface {
	// CreateProduct inserts a product with its initial stock, or tops up the
	// counters of an existing SKU (idempotent seed).
	CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error)

	// GetBySKU retrieves a product by SKU.
	GetBySKU(ctx context.Context, sku string) (*domain.Product, error)

	// GetByID retrieves a product by id.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// SweepOrphanedProducts returns reserved counters stamped with a lapsed
	// expiry back to available, skipping units still held by an order with an
	// active reservation. Returns the number of rows repaired.
	SweepOrphanedProducts(ctx context.Context, now time.Time) (int, error)

	// SweepOrphanedAnimals is the animal counterpart of SweepOrphanedProducts.
	SweepOrphanedAnimals(ctx context.Context, now time.Time) (int, error)
}

// AnimalRepository defines registry operations for exclusive animal units.
type AnimalRepository interface {
	// Create registers a new animal as available.
	Create(ctx context.Context, a *domain.Animal) (*domain.Animal, error)

	// GetByID retrieves an animal by id.
	GetByID(ctx context.Context, id string) (*domain.Animal, error)
}
