package memory

import (
	"context"
	"sync"

	"agentmarket.ledger/internal/core/domain"
)

// EventLog is an in-process event publisher and hire feed. Suitable for
// tests and single-process demos; deployments use Redis for both.
type EventLog struct {
	mu     sync.Mutex
	events []domain.Event
	feed   []*domain.Event // append order; Recent walks it backwards
	subs   []chan domain.Event
}

func NewEventLog() *EventLog {
	return &EventLog{}
}

func (l *EventLog) Publish(ctx context.Context, event *domain.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, *event)
	for _, sub := range l.subs {
		select {
		case sub <- *event:
		default:
			// Slow subscriber drops events rather than blocking publish.
		}
	}
	return nil
}

func (l *EventLog) Subscribe(ctx context.Context) (<-chan domain.Event, error) {
	ch := make(chan domain.Event, 64)
	l.mu.Lock()
	l.subs = append(l.subs, ch)
	l.mu.Unlock()
	return ch, nil
}

// Events returns everything published so far.
func (l *EventLog) Events() []domain.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Event(nil), l.events...)
}

// EventsOfType filters the published events by type.
func (l *EventLog) EventsOfType(t domain.EventType) []domain.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []domain.Event{}
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Hire feed methods

func (l *EventLog) Append(ctx context.Context, event *domain.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *event
	l.feed = append(l.feed, &cp)
	return nil
}

func (l *EventLog) Recent(ctx context.Context, offset, limit int64) ([]*domain.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	out := []*domain.Event{}
	for i := int64(len(l.feed)) - 1 - offset; i >= 0 && int64(len(out)) < limit; i-- {
		cp := *l.feed[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (l *EventLog) Count(ctx context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.feed)), nil
}
