// Package messaging defines domain events and the publishers that deliver them.
package messaging

import (
	"context"
)

// SalesRecordedSubject is the subject a SaleRecordedEvent is published on.
const SalesRecordedSubject = "sales.recorded"

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher discards every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
