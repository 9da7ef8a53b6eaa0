package domain

import (
	"fmt"
	"time"
)

// Product represents the stock ledger entry for a fungible SKU (food, toys,
// accessories). The four counters form the ledger invariant:
//
//	Total == Available + Reserved + Sold
//
// Every mutation moves quantity between exactly two counters, so Total never
// changes after initialization.
type Product struct {
	ID                   string     `json:"id"`
	SKU                  string     `json:"sku"`
	Name                 string     `json:"name"`
	PriceCents           int64      `json:"price_cents"`
	Total                int        `json:"total"`
	Available            int        `json:"available"`
	Reserved             int        `json:"reserved"`
	Sold                 int        `json:"sold"`
	LowStockThreshold    int        `json:"low_stock_threshold"`
	ReservationExpiresAt *time.Time `json:"reservation_expires_at,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// CheckInvariant verifies the ledger counter invariant. A violation means the
// row was corrupted outside the ledger's transactional operations.
func (p *Product) CheckInvariant() error {
	if p.Total != p.Available+p.Reserved+p.Sold {
		return fmt.Errorf("product %s: total %d != available %d + reserved %d + sold %d",
			p.SKU, p.Total, p.Available, p.Reserved, p.Sold)
	}
	if p.Available < 0 || p.Reserved < 0 || p.Sold < 0 {
		return fmt.Errorf("product %s: negative counter (available=%d reserved=%d sold=%d)",
			p.SKU, p.Available, p.Reserved, p.Sold)
	}
	return nil
}

// IsLowStock reports whether available stock has dropped to or below the
// configured threshold.
func (p *Product) IsLowStock() bool {
	return p.LowStockThreshold > 0 && p.Available <= p.LowStockThreshold
}

// HasExpiredReservation reports whether the product carries reserved units
// whose hold lapsed before now.
func (p *Product) HasExpiredReservation(now time.Time) bool {
	return p.Reserved > 0 && p.ReservationExpiresAt != nil && p.ReservationExpiresAt.Before(now)
}

// StockCheckItem is a single availability query.
type StockCheckItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// StockCheckResult is the availability answer for one item.
type StockCheckResult struct {
	SKU       string `json:"sku"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	InStock   bool   `json:"in_stock"`
}
