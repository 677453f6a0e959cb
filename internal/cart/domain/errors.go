package domain

import (
	"errors"
	"fmt"
)

var ErrInvalidQuantity = errors.New("quantity must be >= 0")

// InsufficientStockError is a business outcome, not a fault: the requested
// quantity exceeds what is left. Available carries the actual remainder so
// callers can clamp or display it.
type InsufficientStockError struct {
	ProductID string
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: only %d available", e.ProductID, e.Available)
}

// AsInsufficientStock unwraps err into an InsufficientStockError, if it is one.
func AsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}
