package models

// OrderRequest is a request to place an order on a single product.
type OrderRequest struct {
	ProductID  int
	Symbol     string
	Size       int
	Side       OrderSide
	Type       OrderType
	LimitPrice float64
}

// OrderResult is the exchange acknowledgement of an order.
type OrderResult struct {
	OrderID string
	Status  string
}

// CloseResult reports the outcome of closing one product.
type CloseResult struct {
	ProductID     int
	AlreadyClosed bool
	Order         *OrderResult
}
