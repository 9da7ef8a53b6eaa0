package domain

// TaxPolicy computes the tax owed on a subtotal in cents. It is injected into
// the order lifecycle so the rate is a deployment decision, not a constant in
// the pricing code.
type TaxPolicy func(subtotalCents int64) int64

// FlatRateTaxPolicy returns a policy charging rateBps basis points of the
// subtotal, rounded half up (e.g. 1600 bps = 16%).
func FlatRateTaxPolicy(rateBps int64) TaxPolicy {
	return func(subtotalCents int64) int64 {
		return (subtotalCents*rateBps + 5000) / 10000
	}
}

// NoTaxPolicy charges nothing. Used in tests and tax-exempt deployments.
func NoTaxPolicy() TaxPolicy {
	return func(int64) int64 { return 0 }
}
