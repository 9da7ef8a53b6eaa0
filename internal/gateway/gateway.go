package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Gateway event types delivered via webhook.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
	EventCheckoutUnpaid    = "checkout.session.unpaid"
	EventPaymentSucceeded  = "payment_intent.succeeded"
	EventPaymentFailed     = "payment_intent.payment_failed"
)

// LineItem describes one line presented on the hosted payment page.
type LineItem struct {
	Name            string `json:"name"`
	UnitAmountCents int64  `json:"unit_amount_cents"`
	Quantity        int    `json:"quantity"`
}

// SessionInput holds the parameters for creating a checkout session.
type SessionInput struct {
	OrderID     string            `json:"order_id"`
	AmountCents int64             `json:"amount_cents"`
	Currency    string            `json:"currency"`
	LineItems   []LineItem        `json:"line_items"`
	SuccessURL  string            `json:"success_url"`
	CancelURL   string            `json:"cancel_url"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Session is a hosted checkout session created at the gateway. The customer
// completes payment at URL; the outcome arrives later as a webhook event.
type Session struct {
	ID              string    `json:"id"`
	URL             string    `json:"url"`
	PaymentIntentID string    `json:"payment_intent_id"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// Event is a notification delivered by the gateway's webhook.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Data      EventData `json:"data"`
}

// EventData carries the object the event refers to. Which fields are set
// depends on the event type.
type EventData struct {
	SessionID       string `json:"session_id,omitempty"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
	AmountCents     int64  `json:"amount_cents,omitempty"`
	Currency        string `json:"currency,omitempty"`
	FailureReason   string `json:"failure_reason,omitempty"`
}

// ParseEvent decodes a webhook payload into an Event.
func ParseEvent(payload []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("parse gateway event: %w", err)
	}
	return event, nil
}

// Provider defines the interface for payment gateway integrations.
type Provider interface {
	// Name returns the provider name (e.g., "mock", "hosted").
	Name() string

	// CreateSession opens a hosted checkout session for an order.
	CreateSession(ctx context.Context, input *SessionInput) (*Session, error)

	// ExpireSession voids a session so the customer can no longer pay it.
	ExpireSession(ctx context.Context, sessionID string) error
}
