package services

import (
	"context"

	"agentmarket.ledger/internal/core/domain"
	"agentmarket.ledger/internal/core/ports"
)

// StatsService is the read-only aggregate view over the counters row.
type StatsService struct {
	store ports.Store
}

func NewStatsService(store ports.Store) *StatsService {
	return &StatsService{store: store}
}

// GetProtocolStats returns the running counters. They are maintained
// transactionally by the registry and hiring engine, so this is a single-row
// read, never a scan.
func (s *StatsService) GetProtocolStats(ctx context.Context) (*domain.ProtocolCounters, error) {
	return s.store.GetCounters(ctx)
}

// GetAgentCount returns every identity ever registered, active or not.
func (s *StatsService) GetAgentCount(ctx context.Context) (int64, error) {
	counters, err := s.store.GetCounters(ctx)
	if err != nil {
		return 0, err
	}
	return counters.TotalAgents, nil
}
