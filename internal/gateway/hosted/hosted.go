// Package hosted integrates with an external payment gateway exposing a
// hosted checkout page over a JSON HTTP API.
package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/erickpaine43/Mascotas-sub000/pkg/errors"
	"github.com/erickpaine43/Mascotas-sub000/pkg/httpclient"

	"github.com/erickpaine43/Mascotas-sub000/internal/gateway"
)

const providerName = "hosted"

// Config holds the hosted gateway connection settings.
type Config struct {
	BaseURL string
	APIKey  string
}

// Provider talks to the remote gateway API behind a circuit breaker.
type Provider struct {
	cfg    Config
	client *httpclient.CircuitBreakerClient
	logger *slog.Logger
}

// NewProvider creates a hosted gateway provider.
func NewProvider(cfg Config, logger *slog.Logger) *Provider {
	base := httpclient.New(httpclient.DefaultConfig())
	cb := httpclient.NewCircuitBreakerClient(base, httpclient.DefaultCircuitBreakerConfig("payment_gateway"), logger)

	return &Provider{
		cfg:    cfg,
		client: cb,
		logger: logger,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

type sessionResponse struct {
	ID              string `json:"id"`
	URL             string `json:"url"`
	PaymentIntentID string `json:"payment_intent_id"`
	ExpiresAt       int64  `json:"expires_at"`
}

// CreateSession opens a checkout session at the gateway.
func (p *Provider) CreateSession(ctx context.Context, input *gateway.SessionInput) (*gateway.Session, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("marshal session request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("build session request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Idempotency-Key", input.OrderID)

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, apperrors.Gateway("gateway unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, httpclient.ParseResponseError(resp, providerName)
	}

	var sr sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, apperrors.Gateway("decode session response", err)
	}

	p.logger.InfoContext(ctx, "checkout session created",
		slog.String("session_id", sr.ID),
		slog.String("order_id", input.OrderID),
	)

	return &gateway.Session{
		ID:              sr.ID,
		URL:             sr.URL,
		PaymentIntentID: sr.PaymentIntentID,
		ExpiresAt:       time.Unix(sr.ExpiresAt, 0).UTC(),
	}, nil
}

// ExpireSession voids a session at the gateway. A session the gateway no
// longer knows about counts as already expired.
func (p *Provider) ExpireSession(ctx context.Context, sessionID string) error {
	url := fmt.Sprintf("%s/v1/checkout/sessions/%s/expire", p.cfg.BaseURL, sessionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("build expire request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return apperrors.Gateway("gateway unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return httpclient.ParseResponseError(resp, providerName)
	}

	return nil
}
