package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/abgdnv/stockroom/pkg/config"
	"github.com/sony/gobreaker/v2"
)

// ErrPublisherUnavailable is returned while the circuit is open and publishing is skipped.
var ErrPublisherUnavailable = errors.New("event publisher unavailable")

// BreakerPublisher guards a Publisher with a circuit breaker so a broker outage
// fails fast instead of adding a dial timeout to every sale.
type BreakerPublisher struct {
	next Publisher
	cb   *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerPublisher wraps next with a circuit breaker configured from cfg.
func NewBreakerPublisher(next Publisher, cfg config.CircuitBreakerConfig) *BreakerPublisher {
	st := gobreaker.Settings{
		Name:        "event-publisher-cb",
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			total := counts.TotalSuccesses + counts.TotalFailures
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(total > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(total)*100 > float64(cfg.ErrorRatePercent))
		},
		IsSuccessful: func(err error) bool {
			// a payload that cannot be encoded is a bug in the event, not a broker failure
			return err == nil || errors.Is(err, errEncode)
		},
	}
	return &BreakerPublisher{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[struct{}](st),
	}
}

var errEncode = errors.New("event encoding failed")

// Publish forwards the event unless the circuit is open.
func (p *BreakerPublisher) Publish(ctx context.Context, event Event) error {
	_, err := p.cb.Execute(func() (struct{}, error) {
		if _, err := event.Payload(); err != nil {
			return struct{}{}, fmt.Errorf("%w: %w", errEncode, err)
		}
		return struct{}{}, p.next.Publish(ctx, event)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrPublisherUnavailable, err)
	}
	return err
}

// State reports the breaker state, mainly for health output and tests.
func (p *BreakerPublisher) State() gobreaker.State {
	return p.cb.State()
}
