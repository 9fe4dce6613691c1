package services

import (
	"context"

	"agentmarket.ledger/internal/core/domain"
	"agentmarket.ledger/internal/core/ports"
)

// AccountService exposes the demo balance surface: a faucet-style deposit
// and a balance read. Real deployments would replace the deposit with an
// on-ramp; the protocol core only ever moves funds through hires.
type AccountService struct {
	store ports.Store
}

func NewAccountService(store ports.Store) *AccountService {
	return &AccountService{store: store}
}

func (s *AccountService) Deposit(ctx context.Context, address string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInsufficientPayment
	}
	normalized, err := domain.NormalizeAddress(address)
	if err != nil {
		return 0, err
	}
	var balance int64
	err = s.store.InTx(ctx, func(tx ports.Store) error {
		if err := tx.Deposit(ctx, normalized, amount); err != nil {
			return err
		}
		balance, err = tx.Balance(ctx, normalized)
		return err
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *AccountService) Balance(ctx context.Context, address string) (int64, error) {
	normalized, err := domain.NormalizeAddress(address)
	if err != nil {
		return 0, err
	}
	return s.store.Balance(ctx, normalized)
}
