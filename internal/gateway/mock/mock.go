// Package mock provides an in-process gateway for development and tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erickpaine43/Mascotas-sub000/internal/gateway"
)

// SessionTTL is how long a mock session stays payable.
const SessionTTL = 15 * time.Minute

// Provider is a mock payment gateway that always succeeds. Sessions are held
// in memory so tests can complete or expire them.
type Provider struct {
	mu       sync.Mutex
	sessions map[string]*gateway.Session
	now      func() time.Time
}

// NewProvider creates a new mock gateway provider.
func NewProvider() *Provider {
	return &Provider{
		sessions: make(map[string]*gateway.Session),
		now:      time.Now,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "mock"
}

// CreateSession returns a deterministic session pointing at a fake pay page.
func (p *Provider) CreateSession(_ context.Context, _ *gateway.SessionInput) (*gateway.Session, error) {
	session := &gateway.Session{
		ID:              "mock_cs_" + uuid.New().String(),
		PaymentIntentID: "mock_pi_" + uuid.New().String(),
		ExpiresAt:       p.now().UTC().Add(SessionTTL),
	}
	session.URL = "https://pay.mock.local/session/" + session.ID

	p.mu.Lock()
	p.sessions[session.ID] = session
	p.mu.Unlock()

	return session, nil
}

// ExpireSession drops the session from the in-memory store.
func (p *Provider) ExpireSession(_ context.Context, sessionID string) error {
	p.mu.Lock()
	delete(p.sessions, sessionID)
	p.mu.Unlock()
	return nil
}

// CompletedEvent builds the webhook event the real gateway would send after
// the customer pays the given session. Test helper.
func (p *Provider) CompletedEvent(sessionID string) gateway.Event {
	p.mu.Lock()
	session, ok := p.sessions[sessionID]
	p.mu.Unlock()

	data := gateway.EventData{SessionID: sessionID}
	if ok {
		data.PaymentIntentID = session.PaymentIntentID
	}

	return gateway.Event{
		ID:        "mock_evt_" + uuid.New().String(),
		Type:      gateway.EventCheckoutCompleted,
		CreatedAt: p.now().UTC(),
		Data:      data,
	}
}
