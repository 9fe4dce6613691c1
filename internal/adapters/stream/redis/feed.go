package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"agentmarket.ledger/internal/core/domain"
)

const (
	feedKey        = "agentmarket:feed"
	feedMetaPrefix = "agentmarket:feed:meta:"
	feedMetaTTL    = 24 * time.Hour
)

// Feed is the recent-hires archive behind the economy ticker: a sorted set
// of event IDs scored by time, with the event body in a side key. It is a
// cache of emitted events, not protocol state.
type Feed struct {
	client  *redis.Client
	maxSize int64
}

func NewFeed(client *redis.Client, maxSize int64) *Feed {
	if maxSize <= 0 {
		maxSize = 500
	}
	return &Feed{client: client, maxSize: maxSize}
}

// Append records a hire event and trims the archive to its size cap.
func (f *Feed) Append(ctx context.Context, event *domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal feed entry: %w", err)
	}

	score := float64(event.Timestamp.UnixNano())
	if err := f.client.ZAdd(ctx, feedKey, redis.Z{
		Score:  score,
		Member: event.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to add to feed: %w", err)
	}

	metaKey := feedMetaPrefix + event.ID
	if err := f.client.Set(ctx, metaKey, data, feedMetaTTL).Err(); err != nil {
		return fmt.Errorf("failed to store feed entry: %w", err)
	}

	// Oldest entries beyond the cap fall off; their meta keys expire on TTL.
	return f.client.ZRemRangeByRank(ctx, feedKey, 0, -(f.maxSize + 1)).Err()
}

// Recent returns hire events newest first.
func (f *Feed) Recent(ctx context.Context, offset, limit int64) ([]*domain.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	ids, err := f.client.ZRevRange(ctx, feedKey, offset, offset+limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list feed: %w", err)
	}

	events := make([]*domain.Event, 0, len(ids))
	for _, id := range ids {
		data, err := f.client.Get(ctx, feedMetaPrefix+id).Bytes()
		if err != nil {
			// Entry expired between ZREVRANGE and GET; skip it.
			continue
		}
		var event domain.Event
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}
		events = append(events, &event)
	}

	return events, nil
}

// Count returns the number of archived hire events.
func (f *Feed) Count(ctx context.Context) (int64, error) {
	count, err := f.client.ZCard(ctx, feedKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count feed: %w", err)
	}
	return count, nil
}
