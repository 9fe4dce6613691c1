package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"agentmarket.ledger/internal/core/domain"
)

const (
	EventChannel = "market:events"
)

// Publisher fans protocol events out over Redis pub/sub. Subscribers are the
// WebSocket hub and the MQTT bridge; delivery is fire-and-forget.
type Publisher struct {
	client *redis.Client
}

// NewPublisher parses the Redis URL and returns the publisher plus the raw
// client for health checks and the feed archive.
func NewPublisher(url string) (*Publisher, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)
	return &Publisher{client: client}, client, nil
}

func (p *Publisher) Publish(ctx context.Context, event *domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, EventChannel, data).Err()
}

func (p *Publisher) Subscribe(ctx context.Context) (<-chan domain.Event, error) {
	pubsub := p.client.Subscribe(ctx, EventChannel)
	ch := make(chan domain.Event)

	go func() {
		defer pubsub.Close()
		defer close(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var event domain.Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case ch <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}
