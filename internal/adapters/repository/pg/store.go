package pg

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"agentmarket.ledger/internal/core/domain"
	"agentmarket.ledger/internal/core/ports"
)

const countersRowID = 1

// Store is the Postgres-backed authoritative state: identities, capability
// index, balance accounts and the protocol counters row. Mutating operations
// run inside InTx; concurrent hires rely on row locks plus expression
// increments, never read-modify-write from Go.
type Store struct {
	db *gorm.DB
}

func NewStore(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&domain.Agent{},
		&domain.CapabilityEntry{},
		&domain.Account{},
		&domain.ProtocolCounters{},
	); err != nil {
		return nil, err
	}

	// The counters row must exist before the first bump.
	seed := &domain.ProtocolCounters{ID: countersRowID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// InTx runs fn against a store bound to one transaction.
func (s *Store) InTx(ctx context.Context, fn func(ports.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// Agent methods

func (s *Store) CreateAgent(ctx context.Context, agent *domain.Agent) error {
	return s.db.WithContext(ctx).Create(agent).Error
}

func (s *Store) GetAgent(ctx context.Context, address string) (*domain.Agent, error) {
	var agent domain.Agent
	err := s.db.WithContext(ctx).First(&agent, "wallet_address = ?", address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (s *Store) GetAgentForUpdate(ctx context.Context, address string) (*domain.Agent, error) {
	var agent domain.Agent
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&agent, "wallet_address = ?", address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (s *Store) AgentExists(ctx context.Context, address string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.Agent{}).
		Where("wallet_address = ?", address).Count(&count).Error
	return count > 0, err
}

func (s *Store) SaveProfile(ctx context.Context, agent *domain.Agent) error {
	return s.db.WithContext(ctx).Model(&domain.Agent{}).
		Where("wallet_address = ?", agent.WalletAddress).
		Updates(map[string]interface{}{
			"name":         agent.Name,
			"endpoint_url": agent.EndpointURL,
			"capabilities": agent.Capabilities,
			"mcp_version":  agent.MCPVersion,
			"updated_at":   time.Now(),
		}).Error
}

func (s *Store) SetInactive(ctx context.Context, address string) error {
	return s.db.WithContext(ctx).Model(&domain.Agent{}).
		Where("wallet_address = ?", address).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now(),
		}).Error
}

func (s *Store) ListActiveAddresses(ctx context.Context) ([]string, error) {
	addresses := []string{}
	err := s.db.WithContext(ctx).Model(&domain.Agent{}).
		Where("is_active = ?", true).
		Order("registered_at, wallet_address").
		Pluck("wallet_address", &addresses).Error
	return addresses, err
}

func (s *Store) FindAddressesByCapability(ctx context.Context, capability string) ([]string, error) {
	addresses := []string{}
	err := s.db.WithContext(ctx).
		Table("capability_index").
		Select("capability_index.wallet_address").
		Joins("JOIN agents ON agents.wallet_address = capability_index.wallet_address").
		Where("capability_index.capability = ? AND agents.is_active = ?", capability, true).
		Order("agents.registered_at, agents.wallet_address").
		Pluck("capability_index.wallet_address", &addresses).Error
	return addresses, err
}

func (s *Store) ListTopAgents(ctx context.Context, limit int) ([]*domain.Agent, error) {
	var agents []*domain.Agent
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("reputation_score DESC, total_earnings DESC, registered_at").
		Limit(limit).
		Find(&agents).Error
	return agents, err
}

func (s *Store) ReplaceCapabilities(ctx context.Context, address string, capabilities []string) error {
	if err := s.RemoveCapabilities(ctx, address); err != nil {
		return err
	}
	if len(capabilities) == 0 {
		return nil
	}
	entries := make([]domain.CapabilityEntry, 0, len(capabilities))
	for _, c := range capabilities {
		entries = append(entries, domain.CapabilityEntry{
			Capability:    c,
			WalletAddress: address,
		})
	}
	return s.db.WithContext(ctx).Create(&entries).Error
}

func (s *Store) RemoveCapabilities(ctx context.Context, address string) error {
	return s.db.WithContext(ctx).
		Where("wallet_address = ?", address).
		Delete(&domain.CapabilityEntry{}).Error
}

func (s *Store) ApplySettlement(ctx context.Context, address string, earningsDelta, reputationDelta int64) error {
	res := s.db.WithContext(ctx).Model(&domain.Agent{}).
		Where("wallet_address = ?", address).
		Updates(map[string]interface{}{
			"completed_jobs":   gorm.Expr("completed_jobs + 1"),
			"total_earnings":   gorm.Expr("total_earnings + ?", earningsDelta),
			"reputation_score": gorm.Expr("reputation_score + ?", reputationDelta),
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrInvalidAgent
	}
	return nil
}

func (s *Store) AddSpent(ctx context.Context, address string, amount int64) error {
	return s.db.WithContext(ctx).Model(&domain.Agent{}).
		Where("wallet_address = ?", address).
		Updates(map[string]interface{}{
			"total_spent": gorm.Expr("total_spent + ?", amount),
			"updated_at":  time.Now(),
		}).Error
}

// Balance ledger methods

// Transfer debits from and credits to in place. The debit carries a balance
// guard in the WHERE clause; zero rows touched means the funds are not there
// (or the account does not exist) and the operation fails with
// domain.ErrTransferFailed, rolling back the enclosing transaction.
func (s *Store) Transfer(ctx context.Context, from, to string, amount int64) error {
	res := s.db.WithContext(ctx).Model(&domain.Account{}).
		Where("address = ? AND balance >= ?", from, amount).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrTransferFailed
	}
	return s.credit(ctx, to, amount)
}

func (s *Store) Deposit(ctx context.Context, address string, amount int64) error {
	return s.credit(ctx, address, amount)
}

func (s *Store) credit(ctx context.Context, address string, amount int64) error {
	account := &domain.Account{
		Address:   address,
		Balance:   amount,
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "address"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance":    gorm.Expr("accounts.balance + EXCLUDED.balance"),
			"updated_at": time.Now(),
		}),
	}).Create(account).Error
}

func (s *Store) Balance(ctx context.Context, address string) (int64, error) {
	var account domain.Account
	err := s.db.WithContext(ctx).First(&account, "address = ?", address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// Counter methods

func (s *Store) BumpCounters(ctx context.Context, totalDelta, activeDelta, volumeDelta int64) error {
	return s.db.WithContext(ctx).Model(&domain.ProtocolCounters{}).
		Where("id = ?", countersRowID).
		Updates(map[string]interface{}{
			"total_agents":      gorm.Expr("total_agents + ?", totalDelta),
			"active_agents":     gorm.Expr("active_agents + ?", activeDelta),
			"cumulative_volume": gorm.Expr("cumulative_volume + ?", volumeDelta),
		}).Error
}

func (s *Store) GetCounters(ctx context.Context) (*domain.ProtocolCounters, error) {
	var counters domain.ProtocolCounters
	err := s.db.WithContext(ctx).First(&counters, "id = ?", countersRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.ProtocolCounters{ID: countersRowID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &counters, nil
}

// DB returns the underlying gorm DB instance for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}
