package domain

import "time"

type Cart struct {
	ID         string
	CustomerID string
	TenantID   string
	Items      []CartItem
	CreatedAt  time.Time
}

type CartItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Reservation is a soft hold of stock on behalf of one cart. At most one
// reservation exists per (cart, product) pair.
type Reservation struct {
	CartID    string
	ProductID string
	TenantID  string
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StockLevel mirrors one stock ledger row. available + reserved equals the
// total physical stock, which only inventory-receiving flows change.
type StockLevel struct {
	TenantID  string
	ProductID string
	Available int
	Reserved  int
}
