package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"agentmarket.ledger/internal/core/domain"
	"agentmarket.ledger/internal/core/logger"
	"agentmarket.ledger/internal/core/ports"
)

// HiringService settles payments between a hirer and a hired agent: fee
// split, balance transfers, counter and reputation bookkeeping, event
// emission. Every hire is one database transaction; the fan-out to
// listeners happens only after commit, so no listener can observe or
// re-enter a half-applied settlement.
type HiringService struct {
	store          ports.Store
	events         ports.EventPublisher
	feed           ports.HireFeed
	treasury       string
	feeBps         int64
	reputationGain int64
}

func NewHiringService(store ports.Store, events ports.EventPublisher, feed ports.HireFeed, treasury string, feeBps, reputationGain int64) *HiringService {
	return &HiringService{
		store:          store,
		events:         events,
		feed:           feed,
		treasury:       treasury,
		feeBps:         feeBps,
		reputationGain: reputationGain,
	}
}

// HireAgent settles a hire from any caller, registered or not.
func (s *HiringService) HireAgent(ctx context.Context, caller, agentAddress string, amount int64) (*domain.HireReceipt, error) {
	return s.hire(ctx, caller, agentAddress, amount, false)
}

// HireAgentFromAgent is the agent-to-agent variant: the caller must itself
// be a registered, active agent. Settlement effects are identical; a
// distinct event marks autonomous economy activity.
func (s *HiringService) HireAgentFromAgent(ctx context.Context, caller, agentAddress string, amount int64) (*domain.HireReceipt, error) {
	return s.hire(ctx, caller, agentAddress, amount, true)
}

func (s *HiringService) hire(ctx context.Context, caller, agentAddress string, amount int64, agentToAgent bool) (*domain.HireReceipt, error) {
	if amount <= 0 {
		return nil, domain.ErrInsufficientPayment
	}
	hirer, err := domain.NormalizeAddress(caller)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	target, err := domain.NormalizeAddress(agentAddress)
	if err != nil {
		return nil, err
	}
	// Self-hire is rejected: an agent paying itself would inflate volume and
	// reputation without a counterparty.
	if hirer == target {
		return nil, domain.ErrInvalidAgent
	}

	fee, net := domain.SplitFee(amount, s.feeBps)

	var agent *domain.Agent
	err = s.store.InTx(ctx, func(tx ports.Store) error {
		agent, err = tx.GetAgentForUpdate(ctx, target)
		if err != nil {
			return err
		}
		if agent == nil {
			return domain.ErrInvalidAgent
		}
		if !agent.IsActive {
			return domain.ErrAgentInactive
		}

		hirerRegistered := false
		if agentToAgent {
			hiringAgent, err := tx.GetAgentForUpdate(ctx, hirer)
			if err != nil {
				return err
			}
			if hiringAgent == nil {
				return domain.ErrNotRegistered
			}
			if !hiringAgent.IsActive {
				return domain.ErrAgentInactive
			}
			hirerRegistered = true
		} else {
			hirerRegistered, err = tx.AgentExists(ctx, hirer)
			if err != nil {
				return err
			}
		}

		// Funds move first, bookkeeping second; both are inside the same
		// transaction, so a failed transfer rolls back everything.
		if fee > 0 {
			if err := tx.Transfer(ctx, hirer, s.treasury, fee); err != nil {
				return err
			}
		}
		if err := tx.Transfer(ctx, hirer, target, net); err != nil {
			return err
		}

		if err := tx.ApplySettlement(ctx, target, net, s.reputationGain); err != nil {
			return err
		}
		if hirerRegistered {
			if err := tx.AddSpent(ctx, hirer, amount); err != nil {
				return err
			}
		}
		return tx.BumpCounters(ctx, 0, 0, amount)
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	oldScore := agent.ReputationScore
	newScore := oldScore + s.reputationGain

	receipt := &domain.HireReceipt{
		Hirer:         hirer,
		Agent:         target,
		GrossAmount:   amount,
		ProtocolFee:   fee,
		NetPayment:    net,
		AgentToAgent:  agentToAgent,
		NewReputation: newScore,
		CompletedJobs: agent.CompletedJobs + 1,
		Timestamp:     now,
	}

	hireEvent := &domain.Event{
		ID:          uuid.New().String(),
		Type:        domain.EventAgentHired,
		Hirer:       hirer,
		Agent:       target,
		Amount:      amount,
		ProtocolFee: fee,
		Timestamp:   now,
	}
	emit(ctx, s.events, hireEvent)
	if agentToAgent {
		emit(ctx, s.events, &domain.Event{
			Type:      domain.EventAgentToAgentHire,
			Hirer:     hirer,
			Agent:     target,
			Amount:    amount,
			Timestamp: now,
		})
	}
	emit(ctx, s.events, &domain.Event{
		Type:      domain.EventReputationUpdated,
		Agent:     target,
		OldScore:  oldScore,
		NewScore:  newScore,
		Increased: true,
		Timestamp: now,
	})
	emit(ctx, s.events, &domain.Event{
		Type:      domain.EventJobCompleted,
		Agent:     target,
		Hirer:     hirer,
		Amount:    amount,
		Timestamp: now,
	})

	if s.feed != nil {
		if err := s.feed.Append(ctx, hireEvent); err != nil {
			logger.Warn("failed to append hire to feed", "error", err)
		}
	}

	return receipt, nil
}
