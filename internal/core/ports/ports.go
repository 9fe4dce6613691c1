package ports

import (
	"context"

	"agentmarket.ledger/internal/core/domain"
)

// AgentRepository owns identity records and the capability index.
type AgentRepository interface {
	CreateAgent(ctx context.Context, agent *domain.Agent) error
	// GetAgent returns nil, nil when the address has no identity.
	GetAgent(ctx context.Context, address string) (*domain.Agent, error)
	// GetAgentForUpdate locks the identity row for the current transaction.
	GetAgentForUpdate(ctx context.Context, address string) (*domain.Agent, error)
	AgentExists(ctx context.Context, address string) (bool, error)
	// SaveProfile persists the mutable profile fields (name, endpoint,
	// capabilities, mcp version). Reputation, counters, registered_at and
	// is_active are never written through this path.
	SaveProfile(ctx context.Context, agent *domain.Agent) error
	SetInactive(ctx context.Context, address string) error
	ListActiveAddresses(ctx context.Context) ([]string, error)
	FindAddressesByCapability(ctx context.Context, capability string) ([]string, error)
	ListTopAgents(ctx context.Context, limit int) ([]*domain.Agent, error)
	ReplaceCapabilities(ctx context.Context, address string, capabilities []string) error
	RemoveCapabilities(ctx context.Context, address string) error
	// ApplySettlement increments completed_jobs by one and adds the earnings
	// and reputation deltas in place. Increments, never overwrites.
	ApplySettlement(ctx context.Context, address string, earningsDelta, reputationDelta int64) error
	AddSpent(ctx context.Context, address string, amount int64) error
}

// BalanceLedger realizes the fund-movement primitive. Implementations must
// fail a Transfer with domain.ErrTransferFailed when the source balance does
// not cover the amount.
type BalanceLedger interface {
	Transfer(ctx context.Context, from, to string, amount int64) error
	Deposit(ctx context.Context, address string, amount int64) error
	Balance(ctx context.Context, address string) (int64, error)
}

// CounterRepository maintains the O(1) protocol aggregates.
type CounterRepository interface {
	BumpCounters(ctx context.Context, totalDelta, activeDelta, volumeDelta int64) error
	GetCounters(ctx context.Context) (*domain.ProtocolCounters, error)
}

// Store is the authoritative state behind the protocol. InTx runs fn against
// a store bound to a single transaction; any error rolls back everything fn
// did, which is what gives every operation its all-or-nothing semantics.
type Store interface {
	AgentRepository
	BalanceLedger
	CounterRepository
	InTx(ctx context.Context, fn func(Store) error) error
}

// EventPublisher fans protocol events out to off-chain listeners. Publishing
// happens strictly after commit and is best effort: a failed publish never
// unwinds a settled operation.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.Event) error
	Subscribe(ctx context.Context) (<-chan domain.Event, error)
}

// HireFeed is the non-authoritative recent-hires cache behind the economy
// ticker. Newest first.
type HireFeed interface {
	Append(ctx context.Context, event *domain.Event) error
	Recent(ctx context.Context, offset, limit int64) ([]*domain.Event, error)
	Count(ctx context.Context) (int64, error)
}
