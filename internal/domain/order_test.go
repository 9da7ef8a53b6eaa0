package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// Status machine tests
// ============================================================================

func TestCanTransitionTo_HappyPath(t *testing.T) {
	steps := []string{
		OrderStatusConfirmed,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCompleted,
	}

	o := &Order{Status: OrderStatusPending}
	for _, next := range steps {
		assert.True(t, o.CanTransitionTo(next), "expected %s -> %s to be allowed", o.Status, next)
		o.Status = next
	}
}

func TestCanTransitionTo_PendingExits(t *testing.T) {
	o := &Order{Status: OrderStatusPending}
	assert.True(t, o.CanTransitionTo(OrderStatusCanceled))
	assert.True(t, o.CanTransitionTo(OrderStatusExpired))
	assert.False(t, o.CanTransitionTo(OrderStatusShipped))
	assert.False(t, o.CanTransitionTo(OrderStatusCompleted))
}

func TestCanTransitionTo_ConfirmedCannotCancel(t *testing.T) {
	// Once payment is settled the order no longer cancels through the
	// lifecycle; refunds are out of band.
	o := &Order{Status: OrderStatusConfirmed}
	assert.False(t, o.CanTransitionTo(OrderStatusCanceled))
	assert.False(t, o.CanTransitionTo(OrderStatusExpired))
}

func TestCanTransitionTo_TerminalStates(t *testing.T) {
	for _, status := range []string{OrderStatusCompleted, OrderStatusCanceled, OrderStatusExpired} {
		o := &Order{Status: status}
		assert.True(t, o.IsTerminal(), "expected %s to be terminal", status)
		for _, target := range ValidStatuses() {
			assert.False(t, o.CanTransitionTo(target), "%s -> %s must be rejected", status, target)
		}
	}
}

func TestIsValidStatus(t *testing.T) {
	for _, s := range ValidStatuses() {
		assert.True(t, IsValidStatus(s))
	}
	assert.False(t, IsValidStatus("refunded"))
	assert.False(t, IsValidStatus(""))
}

func TestReservationExpired(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Second)
	future := now.Add(time.Minute)

	assert.True(t, (&Order{ReservationActive: true, ReservationExpiresAt: &past}).ReservationExpired(now))
	assert.False(t, (&Order{ReservationActive: true, ReservationExpiresAt: &future}).ReservationExpired(now))
	// An order whose reservation was already confirmed or released never expires.
	assert.False(t, (&Order{ReservationActive: false, ReservationExpiresAt: &past}).ReservationExpired(now))
}

// ============================================================================
// Order line tests
// ============================================================================

func TestNewProductLine(t *testing.T) {
	l := NewProductLine("prod-1", "Dog Food 5kg", 2500, 3)

	assert.Equal(t, LineKindProduct, l.Kind())
	assert.Equal(t, "prod-1", l.UnitID())
	assert.Equal(t, int64(7500), l.LineTotal())
	assert.NoError(t, l.Validate())
}

func TestNewAnimalLine(t *testing.T) {
	l := NewAnimalLine("animal-1", "Firulais", 150000)

	assert.Equal(t, LineKindAnimal, l.Kind())
	assert.Equal(t, "animal-1", l.UnitID())
	assert.Equal(t, 1, l.Quantity)
	assert.Equal(t, int64(150000), l.LineTotal())
	assert.NoError(t, l.Validate())
}

func TestOrderLineValidate_Rejections(t *testing.T) {
	pid := "prod-1"
	aid := "animal-1"

	tests := []struct {
		name string
		line OrderLine
	}{
		{"neither reference", OrderLine{Quantity: 1}},
		{"both references", OrderLine{ProductID: &pid, AnimalID: &aid, Quantity: 1}},
		{"animal with quantity 2", OrderLine{AnimalID: &aid, Quantity: 2}},
		{"zero quantity", OrderLine{ProductID: &pid, Quantity: 0}},
		{"negative quantity", OrderLine{ProductID: &pid, Quantity: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.line.Validate())
		})
	}
}

// ============================================================================
// Tax policy tests
// ============================================================================

func TestFlatRateTaxPolicy(t *testing.T) {
	policy := FlatRateTaxPolicy(1600)

	assert.Equal(t, int64(1600), policy(10000))
	assert.Equal(t, int64(0), policy(0))
	// 16% of 333 = 53.28, rounds to 53.
	assert.Equal(t, int64(53), policy(333))
}

func TestNoTaxPolicy(t *testing.T) {
	assert.Equal(t, int64(0), NoTaxPolicy()(99999))
}
