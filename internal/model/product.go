// Package model contains the records kept in the store and the views derived from them.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// prices and totals are stored and served as JSON numbers, not strings
	decimal.MarshalJSONWithoutQuotes = true
}

// Product is a catalog entry. ID and CreatedAt never change after creation.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	ImageURL    string          `json:"imageUrl"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   *time.Time      `json:"updatedAt,omitempty"`
}
