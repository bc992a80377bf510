package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale records a committed stock decrement. It is never modified after creation,
// and ProductName keeps the name the product had at sale time.
type Sale struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Date        time.Time       `json:"date"`
}
