package services

import (
	"context"
	"time"

	"agentmarket.ledger/internal/core/logger"
	"agentmarket.ledger/internal/core/ports"
)

const samplerInterval = 30 * time.Second

// MarketGauges receives a periodic snapshot of the protocol aggregates for
// export (Prometheus gauges live in the HTTP adapter).
type MarketGauges func(totalAgents, activeAgents, cumulativeVolume, treasuryBalance int64)

// StatsSampler periodically samples the counters row and the treasury
// balance and pushes them into the metrics layer.
type StatsSampler struct {
	store    ports.Store
	treasury string
	publish  MarketGauges
}

func NewStatsSampler(store ports.Store, treasury string, publish MarketGauges) *StatsSampler {
	return &StatsSampler{
		store:    store,
		treasury: treasury,
		publish:  publish,
	}
}

// Start runs the sampling loop until the context is cancelled.
func (s *StatsSampler) Start(ctx context.Context) {
	ticker := time.NewTicker(samplerInterval)
	defer ticker.Stop()

	s.sample(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample(ctx)
		}
	}
}

func (s *StatsSampler) sample(ctx context.Context) {
	counters, err := s.store.GetCounters(ctx)
	if err != nil {
		logger.Warn("stats sample failed", "error", err)
		return
	}
	treasuryBalance, err := s.store.Balance(ctx, s.treasury)
	if err != nil {
		logger.Warn("treasury balance sample failed", "error", err)
		treasuryBalance = 0
	}
	if s.publish != nil {
		s.publish(counters.TotalAgents, counters.ActiveAgents, counters.CumulativeVolume, treasuryBalance)
	}
}
