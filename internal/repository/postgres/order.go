package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/erickpaine43/Mascotas-sub000/internal/domain"
	"github.com/erickpaine43/Mascotas-sub000/internal/repository"
	"github.com/erickpaine43/Mascotas-sub000/pkg/database"
	apperrors "github.com/erickpaine43/Mascotas-sub000/pkg/errors"
)

const orderColumns = `id, user_id, status, subtotal_cents, tax_cents, total_cents, currency,
	reservation_active, reservation_expires_at, checkout_session_id, payment_intent_id,
	canceled_reason, created_at, updated_at`

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts a new order and its lines atomically within a transaction.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	orderQuery := `
		INSERT INTO orders (id, user_id, status, subtotal_cents, tax_cents, total_cents, currency, reservation_active, reservation_expires_at, canceled_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = tx.Exec(ctx, orderQuery,
		o.ID,
		o.UserID,
		o.Status,
		o.SubtotalCents,
		o.TaxCents,
		o.TotalCents,
		o.Currency,
		o.ReservationActive,
		o.ReservationExpiresAt,
		o.CanceledReason,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	lineQuery := `
		INSERT INTO order_lines (id, order_id, product_id, animal_id, name, unit_price_cents, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, line := range o.Lines {
		_, err = tx.Exec(ctx, lineQuery,
			line.ID,
			line.OrderID,
			line.ProductID,
			line.AnimalID,
			line.Name,
			line.UnitPriceCents,
			line.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves an order by its ID, eagerly loading its lines.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getByColumn(ctx, "id", id)
}

// GetByCheckoutSessionID retrieves the order correlated to a gateway session.
func (r *OrderRepository) GetByCheckoutSessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	o, err := r.getByColumn(ctx, "checkout_session_id", sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.CorrelationNotFound(sessionID)
		}
		return nil, err
	}
	return o, nil
}

// GetByPaymentIntentID retrieves the order correlated to a payment intent.
func (r *OrderRepository) GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	o, err := r.getByColumn(ctx, "payment_intent_id", intentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.CorrelationNotFound(intentID)
		}
		return nil, err
	}
	return o, nil
}

func (r *OrderRepository) getByColumn(ctx context.Context, column, value string) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE %s = $1`, orderColumns, column)

	var o domain.Order
	err := r.pool.QueryRow(ctx, query, value).Scan(
		&o.ID,
		&o.UserID,
		&o.Status,
		&o.SubtotalCents,
		&o.TaxCents,
		&o.TotalCents,
		&o.Currency,
		&o.ReservationActive,
		&o.ReservationExpiresAt,
		&o.CheckoutSessionID,
		&o.PaymentIntentID,
		&o.CanceledReason,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	lines, err := r.loadLines(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Lines = lines[o.ID]
	if o.Lines == nil {
		o.Lines = []domain.OrderLine{}
	}

	return &o, nil
}

func (r *OrderRepository) loadLines(ctx context.Context, orderIDs []string) (map[string][]domain.OrderLine, error) {
	query := `
		SELECT id, order_id, product_id, animal_id, name, unit_price_cents, quantity
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	byOrder := make(map[string][]domain.OrderLine, len(orderIDs))
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(
			&l.ID,
			&l.OrderID,
			&l.ProductID,
			&l.AnimalID,
			&l.Name,
			&l.UnitPriceCents,
			&l.Quantity,
		); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		byOrder[l.OrderID] = append(byOrder[l.OrderID], l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}

	return byOrder, nil
}

// List returns orders matching the given filter with the total count.
func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIndex))
		args = append(args, *filter.UserID)
		argIndex++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM orders
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		orderColumns, whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders, totalCount, err := scanOrderRows(rows)
	if err != nil {
		return nil, 0, err
	}

	if err := r.attachLines(ctx, orders); err != nil {
		return nil, 0, err
	}

	return orders, totalCount, nil
}

func scanOrderRows(rows pgx.Rows) ([]domain.Order, int, error) {
	var totalCount int
	orders := make([]domain.Order, 0)

	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID,
			&o.UserID,
			&o.Status,
			&o.SubtotalCents,
			&o.TaxCents,
			&o.TotalCents,
			&o.Currency,
			&o.ReservationActive,
			&o.ReservationExpiresAt,
			&o.CheckoutSessionID,
			&o.PaymentIntentID,
			&o.CanceledReason,
			&o.CreatedAt,
			&o.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, totalCount, nil
}

func (r *OrderRepository) attachLines(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	orderIDs := make([]string, len(orders))
	for i := range orders {
		orderIDs[i] = orders[i].ID
	}

	byOrder, err := r.loadLines(ctx, orderIDs)
	if err != nil {
		return err
	}

	for i := range orders {
		orders[i].Lines = byOrder[orders[i].ID]
		if orders[i].Lines == nil {
			orders[i].Lines = []domain.OrderLine{}
		}
	}

	return nil
}

// UpdateStatus moves an order from one status to another. The WHERE clause
// pins the expected current status, so a concurrent writer that got there
// first makes this a zero-row update instead of an overwrite.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id, from, to, reason string) error {
	query := `
		UPDATE orders
		SET status = $1, canceled_reason = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`

	tag, err := r.pool.Exec(ctx, query, to, reason, id, from)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var current string
		err := r.pool.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("order", id)
		}
		if err != nil {
			return fmt.Errorf("read order status: %w", err)
		}
		return apperrors.InvalidTransition(current, to)
	}

	return nil
}

// SetCheckoutSession stores the gateway session correlation id.
func (r *OrderRepository) SetCheckoutSession(ctx context.Context, id, sessionID string) error {
	return r.setCorrelation(ctx, id, "checkout_session_id", sessionID)
}

// SetPaymentIntent stores the gateway payment intent correlation id.
func (r *OrderRepository) SetPaymentIntent(ctx context.Context, id, intentID string) error {
	return r.setCorrelation(ctx, id, "payment_intent_id", intentID)
}

func (r *OrderRepository) setCorrelation(ctx context.Context, id, column, value string) error {
	query := fmt.Sprintf(`UPDATE orders SET %s = $1, updated_at = NOW() WHERE id = $2`, column)

	tag, err := r.pool.Exec(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("set order %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// AppendHistory appends a customer-facing history entry.
func (r *OrderRepository) AppendHistory(ctx context.Context, entry *domain.HistoryEntry) error {
	query := `
		INSERT INTO order_history (id, order_id, status, note, location, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.OrderID,
		entry.Status,
		entry.Note,
		entry.Location,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order history: %w", err)
	}

	return nil
}

// ListHistory returns the history entries of an order, oldest first.
func (r *OrderRepository) ListHistory(ctx context.Context, orderID string) ([]domain.HistoryEntry, error) {
	query := `
		SELECT id, order_id, status, note, location, created_at
		FROM order_history
		WHERE order_id = $1
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order history: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.HistoryEntry, 0)
	for rows.Next() {
		var e domain.HistoryEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Status, &e.Note, &e.Location, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history entries: %w", err)
	}

	return entries, nil
}

// ListExpiredReservations returns ids of pending orders whose active
// reservation lapsed before now.
func (r *OrderRepository) ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id
		FROM orders
		WHERE reservation_active
		  AND reservation_expires_at < $1
		  AND status = 'pending'
		ORDER BY reservation_expires_at ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired reservations: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired reservation id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired reservation ids: %w", err)
	}

	return ids, nil
}

// ListActiveReservations returns orders currently holding stock.
func (r *OrderRepository) ListActiveReservations(ctx context.Context, page, perPage int) ([]domain.Order, int, error) {
	if perPage <= 0 {
		perPage = 20
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * perPage
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM orders
		WHERE reservation_active
		ORDER BY reservation_expires_at ASC
		LIMIT $1 OFFSET $2`, orderColumns)

	rows, err := r.pool.Query(ctx, query, perPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list active reservations: %w", err)
	}
	defer rows.Close()

	orders, totalCount, err := scanOrderRows(rows)
	if err != nil {
		return nil, 0, err
	}

	if err := r.attachLines(ctx, orders); err != nil {
		return nil, 0, err
	}

	return orders, totalCount, nil
}
