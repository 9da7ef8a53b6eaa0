package domain

import "time"

// Animal represents a non-fungible inventory unit: one physical animal that
// can belong to at most one order. Its availability is a pair of booleans
// rather than counters:
//
//	free:     available=true,  reserved=false
//	reserved: available=false, reserved=true
//	sold:     available=false, reserved=false
//
// available && reserved is never valid.
type Animal struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Species              string     `json:"species"`
	Breed                string     `json:"breed,omitempty"`
	AgeMonths            int        `json:"age_months,omitempty"`
	PriceCents           int64      `json:"price_cents"`
	Available            bool       `json:"available"`
	Reserved             bool       `json:"reserved"`
	ReservationExpiresAt *time.Time `json:"reservation_expires_at,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Animal availability states derived from the flag pair.
const (
	AnimalStateFree     = "free"
	AnimalStateReserved = "reserved"
	AnimalStateSold     = "sold"
	AnimalStateInvalid  = "invalid"
)

// State returns the symbolic availability state for the flag pair.
func (a *Animal) State() string {
	switch {
	case a.Available && a.Reserved:
		return AnimalStateInvalid
	case a.Available:
		return AnimalStateFree
	case a.Reserved:
		return AnimalStateReserved
	default:
		return AnimalStateSold
	}
}

// HasExpiredReservation reports whether the animal is held by a reservation
// that lapsed before now.
func (a *Animal) HasExpiredReservation(now time.Time) bool {
	return a.Reserved && a.ReservationExpiresAt != nil && a.ReservationExpiresAt.Before(now)
}
