package memory

import (
	"context"
	"sync"

	"agentmarket.ledger/internal/core/domain"
	"agentmarket.ledger/internal/core/ports"
)

// Store is an in-memory ports.Store for tests and single-process demos.
// InTx snapshots the whole state up front and restores it when fn fails,
// which gives the same all-or-nothing behavior the Postgres store gets from
// transactions.
type Store struct {
	mu       sync.Mutex
	agents   map[string]*domain.Agent
	order    []string                   // registration order
	caps     map[string]map[string]bool // capability -> address set
	accounts map[string]int64
	counters domain.ProtocolCounters
}

func NewStore() *Store {
	return &Store{
		agents:   make(map[string]*domain.Agent),
		caps:     make(map[string]map[string]bool),
		accounts: make(map[string]int64),
		counters: domain.ProtocolCounters{ID: 1},
	}
}

func (s *Store) InTx(ctx context.Context, fn func(ports.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(&txView{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// txView exposes the store inside an InTx callback without re-locking.
type txView struct {
	s *Store
}

func (t *txView) InTx(ctx context.Context, fn func(ports.Store) error) error {
	// Nested transactions just run in the enclosing one.
	return fn(t)
}

type stateSnapshot struct {
	agents   map[string]*domain.Agent
	order    []string
	caps     map[string]map[string]bool
	accounts map[string]int64
	counters domain.ProtocolCounters
}

func (s *Store) snapshot() stateSnapshot {
	snap := stateSnapshot{
		agents:   make(map[string]*domain.Agent, len(s.agents)),
		order:    append([]string(nil), s.order...),
		caps:     make(map[string]map[string]bool, len(s.caps)),
		accounts: make(map[string]int64, len(s.accounts)),
		counters: s.counters,
	}
	for addr, a := range s.agents {
		snap.agents[addr] = copyAgent(a)
	}
	for c, set := range s.caps {
		cp := make(map[string]bool, len(set))
		for addr := range set {
			cp[addr] = true
		}
		snap.caps[c] = cp
	}
	for addr, bal := range s.accounts {
		snap.accounts[addr] = bal
	}
	return snap
}

func (s *Store) restore(snap stateSnapshot) {
	s.agents = snap.agents
	s.order = snap.order
	s.caps = snap.caps
	s.accounts = snap.accounts
	s.counters = snap.counters
}

func copyAgent(a *domain.Agent) *domain.Agent {
	cp := *a
	cp.Capabilities = append(domain.Capabilities(nil), a.Capabilities...)
	return &cp
}

// Agent methods. The exported methods on Store lock; the logic lives in the
// unexported ones shared with txView.

func (s *Store) CreateAgent(ctx context.Context, agent *domain.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createAgent(agent)
}

func (t *txView) CreateAgent(ctx context.Context, agent *domain.Agent) error {
	return t.s.createAgent(agent)
}

func (s *Store) createAgent(agent *domain.Agent) error {
	s.agents[agent.WalletAddress] = copyAgent(agent)
	s.order = append(s.order, agent.WalletAddress)
	return nil
}

func (s *Store) GetAgent(ctx context.Context, address string) (*domain.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAgent(address)
}

func (t *txView) GetAgent(ctx context.Context, address string) (*domain.Agent, error) {
	return t.s.getAgent(address)
}

func (s *Store) getAgent(address string) (*domain.Agent, error) {
	a, ok := s.agents[address]
	if !ok {
		return nil, nil
	}
	return copyAgent(a), nil
}

func (s *Store) GetAgentForUpdate(ctx context.Context, address string) (*domain.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAgent(address)
}

func (t *txView) GetAgentForUpdate(ctx context.Context, address string) (*domain.Agent, error) {
	return t.s.getAgent(address)
}

func (s *Store) AgentExists(ctx context.Context, address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.agents[address]
	return ok, nil
}

func (t *txView) AgentExists(ctx context.Context, address string) (bool, error) {
	_, ok := t.s.agents[address]
	return ok, nil
}

func (s *Store) SaveProfile(ctx context.Context, agent *domain.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveProfile(agent)
}

func (t *txView) SaveProfile(ctx context.Context, agent *domain.Agent) error {
	return t.s.saveProfile(agent)
}

func (s *Store) saveProfile(agent *domain.Agent) error {
	existing, ok := s.agents[agent.WalletAddress]
	if !ok {
		return domain.ErrNotRegistered
	}
	existing.Name = agent.Name
	existing.EndpointURL = agent.EndpointURL
	existing.Capabilities = append(domain.Capabilities(nil), agent.Capabilities...)
	existing.MCPVersion = agent.MCPVersion
	existing.UpdatedAt = agent.UpdatedAt
	return nil
}

func (s *Store) SetInactive(ctx context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setInactive(address)
}

func (t *txView) SetInactive(ctx context.Context, address string) error {
	return t.s.setInactive(address)
}

func (s *Store) setInactive(address string) error {
	a, ok := s.agents[address]
	if !ok {
		return domain.ErrNotRegistered
	}
	a.IsActive = false
	return nil
}

func (s *Store) ListActiveAddresses(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listActiveAddresses()
}

func (t *txView) ListActiveAddresses(ctx context.Context) ([]string, error) {
	return t.s.listActiveAddresses()
}

func (s *Store) listActiveAddresses() ([]string, error) {
	out := []string{}
	for _, addr := range s.order {
		if a, ok := s.agents[addr]; ok && a.IsActive {
			out = append(out, addr)
		}
	}
	return out, nil
}

func (s *Store) FindAddressesByCapability(ctx context.Context, capability string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findByCapability(capability)
}

func (t *txView) FindAddressesByCapability(ctx context.Context, capability string) ([]string, error) {
	return t.s.findByCapability(capability)
}

func (s *Store) findByCapability(capability string) ([]string, error) {
	set := s.caps[capability]
	out := []string{}
	for _, addr := range s.order {
		if !set[addr] {
			continue
		}
		if a, ok := s.agents[addr]; ok && a.IsActive {
			out = append(out, addr)
		}
	}
	return out, nil
}

func (s *Store) ListTopAgents(ctx context.Context, limit int) ([]*domain.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listTopAgents(limit)
}

func (t *txView) ListTopAgents(ctx context.Context, limit int) ([]*domain.Agent, error) {
	return t.s.listTopAgents(limit)
}

func (s *Store) listTopAgents(limit int) ([]*domain.Agent, error) {
	out := []*domain.Agent{}
	for _, addr := range s.order {
		if a, ok := s.agents[addr]; ok && a.IsActive {
			out = append(out, copyAgent(a))
		}
	}
	// Insertion sort by reputation desc, then earnings desc; the slices stay
	// small in tests and demos.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, b := out[j-1], out[j]
			if b.ReputationScore > a.ReputationScore ||
				(b.ReputationScore == a.ReputationScore && b.TotalEarnings > a.TotalEarnings) {
				out[j-1], out[j] = b, a
			} else {
				break
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ReplaceCapabilities(ctx context.Context, address string, capabilities []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceCapabilities(address, capabilities)
}

func (t *txView) ReplaceCapabilities(ctx context.Context, address string, capabilities []string) error {
	return t.s.replaceCapabilities(address, capabilities)
}

func (s *Store) replaceCapabilities(address string, capabilities []string) error {
	s.removeCapabilities(address)
	for _, c := range capabilities {
		set, ok := s.caps[c]
		if !ok {
			set = make(map[string]bool)
			s.caps[c] = set
		}
		set[address] = true
	}
	return nil
}

func (s *Store) RemoveCapabilities(ctx context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeCapabilities(address)
	return nil
}

func (t *txView) RemoveCapabilities(ctx context.Context, address string) error {
	t.s.removeCapabilities(address)
	return nil
}

func (s *Store) removeCapabilities(address string) {
	for c, set := range s.caps {
		delete(set, address)
		if len(set) == 0 {
			delete(s.caps, c)
		}
	}
}

func (s *Store) ApplySettlement(ctx context.Context, address string, earningsDelta, reputationDelta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applySettlement(address, earningsDelta, reputationDelta)
}

func (t *txView) ApplySettlement(ctx context.Context, address string, earningsDelta, reputationDelta int64) error {
	return t.s.applySettlement(address, earningsDelta, reputationDelta)
}

func (s *Store) applySettlement(address string, earningsDelta, reputationDelta int64) error {
	a, ok := s.agents[address]
	if !ok {
		return domain.ErrInvalidAgent
	}
	a.CompletedJobs++
	a.TotalEarnings += earningsDelta
	a.ReputationScore += reputationDelta
	return nil
}

func (s *Store) AddSpent(ctx context.Context, address string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addSpent(address, amount)
}

func (t *txView) AddSpent(ctx context.Context, address string, amount int64) error {
	return t.s.addSpent(address, amount)
}

func (s *Store) addSpent(address string, amount int64) error {
	a, ok := s.agents[address]
	if !ok {
		return domain.ErrNotRegistered
	}
	a.TotalSpent += amount
	return nil
}

// Balance ledger methods

func (s *Store) Transfer(ctx context.Context, from, to string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transfer(from, to, amount)
}

func (t *txView) Transfer(ctx context.Context, from, to string, amount int64) error {
	return t.s.transfer(from, to, amount)
}

func (s *Store) transfer(from, to string, amount int64) error {
	if s.accounts[from] < amount {
		return domain.ErrTransferFailed
	}
	s.accounts[from] -= amount
	s.accounts[to] += amount
	return nil
}

func (s *Store) Deposit(ctx context.Context, address string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[address] += amount
	return nil
}

func (t *txView) Deposit(ctx context.Context, address string, amount int64) error {
	t.s.accounts[address] += amount
	return nil
}

func (s *Store) Balance(ctx context.Context, address string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[address], nil
}

func (t *txView) Balance(ctx context.Context, address string) (int64, error) {
	return t.s.accounts[address], nil
}

// Counter methods

func (s *Store) BumpCounters(ctx context.Context, totalDelta, activeDelta, volumeDelta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bumpCounters(totalDelta, activeDelta, volumeDelta)
	return nil
}

func (t *txView) BumpCounters(ctx context.Context, totalDelta, activeDelta, volumeDelta int64) error {
	t.s.bumpCounters(totalDelta, activeDelta, volumeDelta)
	return nil
}

func (s *Store) bumpCounters(totalDelta, activeDelta, volumeDelta int64) {
	s.counters.TotalAgents += totalDelta
	s.counters.ActiveAgents += activeDelta
	s.counters.CumulativeVolume += volumeDelta
}

func (s *Store) GetCounters(ctx context.Context) (*domain.ProtocolCounters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.counters
	return &c, nil
}

func (t *txView) GetCounters(ctx context.Context) (*domain.ProtocolCounters, error) {
	c := t.s.counters
	return &c, nil
}
