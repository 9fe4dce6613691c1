package services

import (
	"context"
	"strings"
	"time"

	"agentmarket.ledger/internal/core/domain"
	"agentmarket.ledger/internal/core/ports"
)

// AgentProfile is the caller-supplied subset of an identity. Address,
// timestamps, reputation and counters are derived internally and never
// trusted from input.
type AgentProfile struct {
	Name         string   `json:"name"`
	EndpointURL  string   `json:"endpoint_url"`
	Capabilities []string `json:"capabilities"`
	MCPVersion   string   `json:"mcp_version"`
}

// RegistryService owns the identity lifecycle and discovery surface.
type RegistryService struct {
	store          ports.Store
	events         ports.EventPublisher
	baseReputation int64
}

func NewRegistryService(store ports.Store, events ports.EventPublisher, baseReputation int64) *RegistryService {
	return &RegistryService{
		store:          store,
		events:         events,
		baseReputation: baseReputation,
	}
}

// Register creates the identity for the caller's address. One identity per
// address, ever; a second registration fails with ErrAlreadyRegistered and
// leaves no trace.
func (s *RegistryService) Register(ctx context.Context, caller string, profile AgentProfile) (*domain.Agent, error) {
	address, err := domain.NormalizeAddress(caller)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	name := strings.TrimSpace(profile.Name)
	if name == "" {
		return nil, domain.ErrInvalidProfile
	}
	capabilities := normalizeCapabilities(profile.Capabilities)

	agent := &domain.Agent{
		WalletAddress:   address,
		Name:            name,
		EndpointURL:     strings.TrimSpace(profile.EndpointURL),
		Capabilities:    capabilities,
		MCPVersion:      strings.TrimSpace(profile.MCPVersion),
		ReputationScore: s.baseReputation,
		RegisteredAt:    time.Now(),
		IsActive:        true,
	}

	err = s.store.InTx(ctx, func(tx ports.Store) error {
		exists, err := tx.AgentExists(ctx, address)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrAlreadyRegistered
		}
		if err := tx.CreateAgent(ctx, agent); err != nil {
			return err
		}
		if err := tx.ReplaceCapabilities(ctx, address, capabilities); err != nil {
			return err
		}
		return tx.BumpCounters(ctx, 1, 1, 0)
	})
	if err != nil {
		return nil, err
	}

	emit(ctx, s.events, &domain.Event{
		Type:         domain.EventAgentRegistered,
		Agent:        address,
		Name:         agent.Name,
		Capabilities: capabilities,
		Timestamp:    agent.RegisteredAt,
	})

	return agent, nil
}

// Update replaces the mutable profile fields and re-indexes capabilities.
// Reputation, counters, registered_at and is_active are untouched.
func (s *RegistryService) Update(ctx context.Context, caller string, profile AgentProfile) (*domain.Agent, error) {
	address, err := domain.NormalizeAddress(caller)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	name := strings.TrimSpace(profile.Name)
	if name == "" {
		return nil, domain.ErrInvalidProfile
	}
	capabilities := normalizeCapabilities(profile.Capabilities)

	var agent *domain.Agent
	err = s.store.InTx(ctx, func(tx ports.Store) error {
		agent, err = tx.GetAgentForUpdate(ctx, address)
		if err != nil {
			return err
		}
		if agent == nil {
			return domain.ErrNotRegistered
		}

		agent.Name = name
		agent.EndpointURL = strings.TrimSpace(profile.EndpointURL)
		agent.Capabilities = capabilities
		agent.MCPVersion = strings.TrimSpace(profile.MCPVersion)
		agent.UpdatedAt = time.Now()

		if err := tx.SaveProfile(ctx, agent); err != nil {
			return err
		}
		// Stale index entries go away, new ones come in. An inactive agent
		// keeps its profile editable but stays out of the index.
		if !agent.IsActive {
			return tx.RemoveCapabilities(ctx, address)
		}
		return tx.ReplaceCapabilities(ctx, address, capabilities)
	})
	if err != nil {
		return nil, err
	}
	return agent, nil
}

// Deactivate takes the caller's agent out of discovery and hiring. The
// record itself stays queryable. Deactivating twice is a no-op.
func (s *RegistryService) Deactivate(ctx context.Context, caller string) error {
	address, err := domain.NormalizeAddress(caller)
	if err != nil {
		return domain.ErrUnauthorized
	}

	return s.store.InTx(ctx, func(tx ports.Store) error {
		agent, err := tx.GetAgentForUpdate(ctx, address)
		if err != nil {
			return err
		}
		if agent == nil {
			return domain.ErrNotRegistered
		}
		if !agent.IsActive {
			return nil
		}
		if err := tx.SetInactive(ctx, address); err != nil {
			return err
		}
		if err := tx.RemoveCapabilities(ctx, address); err != nil {
			return err
		}
		return tx.BumpCounters(ctx, 0, -1, 0)
	})
}

// IsRegistered reports whether the address holds an identity. Malformed
// addresses are simply not registered; this lookup never fails on input.
func (s *RegistryService) IsRegistered(ctx context.Context, address string) (bool, error) {
	normalized, err := domain.NormalizeAddress(address)
	if err != nil {
		return false, nil
	}
	return s.store.AgentExists(ctx, normalized)
}

// GetAgent returns the full identity view, active or not. Unregistered
// addresses fail with ErrInvalidAgent.
func (s *RegistryService) GetAgent(ctx context.Context, address string) (*domain.Agent, error) {
	normalized, err := domain.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	agent, err := s.store.GetAgent(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, domain.ErrInvalidAgent
	}
	return agent, nil
}

// FindAgentsByCapability is an exact-string match against the capability
// index: active agents only, registration order.
func (s *RegistryService) FindAgentsByCapability(ctx context.Context, capability string) ([]string, error) {
	capability = strings.TrimSpace(capability)
	if capability == "" {
		return []string{}, nil
	}
	return s.store.FindAddressesByCapability(ctx, capability)
}

// ListActiveAgents returns all active addresses in registration order.
func (s *RegistryService) ListActiveAgents(ctx context.Context) ([]string, error) {
	return s.store.ListActiveAddresses(ctx)
}

// Leaderboard returns the top active agents by reputation, then earnings.
func (s *RegistryService) Leaderboard(ctx context.Context, limit int) ([]*domain.Agent, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return s.store.ListTopAgents(ctx, limit)
}

// normalizeCapabilities trims entries, drops empties and deduplicates while
// preserving first-seen order.
func normalizeCapabilities(in []string) domain.Capabilities {
	out := make(domain.Capabilities, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
