package domain

import "errors"

// Line kinds.
const (
	LineKindProduct = "product"
	LineKindAnimal  = "animal"
)

var errInvalidLine = errors.New("order line must reference exactly one of product or animal")

// OrderLine is a line item in an order. Exactly one of ProductID and AnimalID
// is set: a product line carries a quantity of a fungible SKU, an animal line
// always has quantity 1.
type OrderLine struct {
	ID             string  `json:"id"`
	OrderID        string  `json:"order_id"`
	ProductID      *string `json:"product_id,omitempty"`
	AnimalID       *string `json:"animal_id,omitempty"`
	Name           string  `json:"name"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	Quantity       int     `json:"quantity"`
}

// NewProductLine builds a line holding qty units of a fungible SKU.
func NewProductLine(productID, name string, priceCents int64, qty int) OrderLine {
	return OrderLine{
		ProductID:      &productID,
		Name:           name,
		UnitPriceCents: priceCents,
		Quantity:       qty,
	}
}

// NewAnimalLine builds a line holding one exclusive animal.
func NewAnimalLine(animalID, name string, priceCents int64) OrderLine {
	return OrderLine{
		AnimalID:       &animalID,
		Name:           name,
		UnitPriceCents: priceCents,
		Quantity:       1,
	}
}

// Kind returns LineKindProduct or LineKindAnimal.
func (l *OrderLine) Kind() string {
	if l.AnimalID != nil {
		return LineKindAnimal
	}
	return LineKindProduct
}

// UnitID returns the referenced inventory unit id regardless of kind.
func (l *OrderLine) UnitID() string {
	if l.AnimalID != nil {
		return *l.AnimalID
	}
	if l.ProductID != nil {
		return *l.ProductID
	}
	return ""
}

// Validate checks the tagged-union shape of the line.
func (l *OrderLine) Validate() error {
	if (l.ProductID == nil) == (l.AnimalID == nil) {
		return errInvalidLine
	}
	if l.AnimalID != nil && l.Quantity != 1 {
		return errors.New("animal line quantity must be 1")
	}
	if l.Quantity <= 0 {
		return errors.New("line quantity must be positive")
	}
	return nil
}

// LineTotal returns the total price for this line.
func (l *OrderLine) LineTotal() int64 {
	return l.UnitPriceCents * int64(l.Quantity)
}
