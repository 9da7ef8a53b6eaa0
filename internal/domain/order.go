package domain

import "time"

// Order status constants.
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCompleted = "completed"
	OrderStatusCanceled  = "canceled"
	OrderStatusExpired   = "expired"
)

// Order represents a customer order. While Status is pending and
// ReservationActive is true, the order holds stock; confirmation converts the
// hold into a sale and cancellation or expiry returns it.
type Order struct {
	ID                   string      `json:"id"`
	UserID               string      `json:"user_id"`
	Status               string      `json:"status"`
	Lines                []OrderLine `json:"lines"`
	SubtotalCents        int64       `json:"subtotal_cents"`
	TaxCents             int64       `json:"tax_cents"`
	TotalCents           int64       `json:"total_cents"`
	Currency             string      `json:"currency"`
	ReservationActive    bool        `json:"reservation_active"`
	ReservationExpiresAt *time.Time  `json:"reservation_expires_at,omitempty"`
	CheckoutSessionID    *string     `json:"checkout_session_id,omitempty"`
	PaymentIntentID      *string     `json:"payment_intent_id,omitempty"`
	CanceledReason       string      `json:"canceled_reason,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// HistoryEntry is one append-only row of the customer-facing order history.
type HistoryEntry struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	Location  string    `json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidStatuses returns all valid order statuses.
func ValidStatuses() []string {
	return []string{
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCompleted,
		OrderStatusCanceled,
		OrderStatusExpired,
	}
}

// IsValidStatus checks if a status string is valid.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// AllowedTransitions defines which status transitions are valid. Canceled,
// expired, and completed are terminal.
func AllowedTransitions() map[string][]string {
	return map[string][]string{
		OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCanceled, OrderStatusExpired},
		OrderStatusConfirmed: {OrderStatusShipped},
		OrderStatusShipped:   {OrderStatusDelivered},
		OrderStatusDelivered: {OrderStatusCompleted},
		OrderStatusCompleted: {},
		OrderStatusCanceled:  {},
		OrderStatusExpired:   {},
	}
}

// CanTransitionTo checks if the order can transition to the target status.
func (o *Order) CanTransitionTo(target string) bool {
	allowed, ok := AllowedTransitions()[o.Status]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the order status admits no further transitions.
func (o *Order) IsTerminal() bool {
	return len(AllowedTransitions()[o.Status]) == 0
}

// ReservationExpired reports whether the order holds a reservation whose
// expiry has passed.
func (o *Order) ReservationExpired(now time.Time) bool {
	return o.ReservationActive && o.ReservationExpiresAt != nil && o.ReservationExpiresAt.Before(now)
}
