// Package events contains the domain events published by the service.
package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/stockroom/pkg/messaging"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/propagation"
)

// SaleRecordedEvent is emitted after a sale and its stock decrement are committed.
type SaleRecordedEvent struct {
	// Carrier holds the trace context of the request that recorded the sale.
	Carrier           propagation.MapCarrier `json:"carrier,omitempty"`
	SaleID            string          `json:"sale_id"`
	ProductID         string          `json:"product_id"`
	ProductName       string          `json:"product_name"`
	Quantity          int             `json:"quantity"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	RemainingQuantity int             `json:"remaining_quantity"`
	RecordedAt        time.Time       `json:"recorded_at"`
}

func (e SaleRecordedEvent) Subject() string {
	return messaging.SalesRecordedSubject
}

func (e SaleRecordedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
