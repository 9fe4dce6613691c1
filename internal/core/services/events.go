package services

import (
	"context"

	"github.com/google/uuid"

	"agentmarket.ledger/internal/core/circuitbreaker"
	"agentmarket.ledger/internal/core/domain"
	"agentmarket.ledger/internal/core/logger"
	"agentmarket.ledger/internal/core/ports"
)

// GuardedPublisher wraps an event publisher with a circuit breaker so a
// sick broker cannot stall the settlement path.
type GuardedPublisher struct {
	inner   ports.EventPublisher
	breaker *circuitbreaker.CircuitBreaker
}

func NewGuardedPublisher(inner ports.EventPublisher) *GuardedPublisher {
	return &GuardedPublisher{
		inner:   inner,
		breaker: circuitbreaker.New("event-publisher"),
	}
}

func (p *GuardedPublisher) Publish(ctx context.Context, event *domain.Event) error {
	return p.breaker.Execute(ctx, func() error {
		return p.inner.Publish(ctx, event)
	})
}

func (p *GuardedPublisher) Subscribe(ctx context.Context) (<-chan domain.Event, error) {
	return p.inner.Subscribe(ctx)
}

// emit publishes best effort. Events fan out after commit; losing one never
// unwinds the operation that produced it.
func emit(ctx context.Context, pub ports.EventPublisher, event *domain.Event) {
	if pub == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if err := pub.Publish(ctx, event); err != nil {
		logger.Warn("event publish failed", "type", string(event.Type), "error", err)
	}
}
