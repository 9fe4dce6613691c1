package services

import (
	"context"
	"errors"
	"testing"

	"agentmarket.ledger/internal/adapters/repository/memory"
	"agentmarket.ledger/internal/core/domain"
)

const treasuryAddr = "0x00000000000000000000000000000000000000fe"

type hiringFixture struct {
	store    *memory.Store
	events   *memory.EventLog
	registry *RegistryService
	hiring   *HiringService
}

func newHiringFixture(t *testing.T) *hiringFixture {
	t.Helper()
	store := memory.NewStore()
	events := memory.NewEventLog()
	return &hiringFixture{
		store:    store,
		events:   events,
		registry: NewRegistryService(store, events, 100),
		hiring:   NewHiringService(store, events, events, treasuryAddr, 200, 5),
	}
}

func (f *hiringFixture) register(t *testing.T, addr, name string) {
	t.Helper()
	if _, err := f.registry.Register(context.Background(), addr, AgentProfile{Name: name}); err != nil {
		t.Fatalf("Register %s failed: %v", name, err)
	}
}

func (f *hiringFixture) fund(t *testing.T, addr string, amount int64) {
	t.Helper()
	if err := f.store.Deposit(context.Background(), addr, amount); err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}
}

func TestHireAgent(t *testing.T) {
	ctx := context.Background()
	f := newHiringFixture(t)
	f.register(t, addrAlpha, "Oracle Prime")
	f.fund(t, addrBeta, 5000)

	receipt, err := f.hiring.HireAgent(ctx, addrBeta, addrAlpha, 1000)
	if err != nil {
		t.Fatalf("HireAgent failed: %v", err)
	}

	// 2% protocol fee on 1000: 20 to the treasury, 980 to the agent.
	if receipt.ProtocolFee != 20 || receipt.NetPayment != 980 {
		t.Errorf("split = fee %d / net %d, want 20 / 980", receipt.ProtocolFee, receipt.NetPayment)
	}
	if receipt.NewReputation != 105 {
		t.Errorf("new reputation = %d, want 105", receipt.NewReputation)
	}

	if bal, _ := f.store.Balance(ctx, addrBeta); bal != 4000 {
		t.Errorf("hirer balance = %d, want 4000", bal)
	}
	if bal, _ := f.store.Balance(ctx, addrAlpha); bal != 980 {
		t.Errorf("agent balance = %d, want 980", bal)
	}
	if bal, _ := f.store.Balance(ctx, treasuryAddr); bal != 20 {
		t.Errorf("treasury balance = %d, want 20", bal)
	}

	agent, _ := f.registry.GetAgent(ctx, addrAlpha)
	if agent.CompletedJobs != 1 || agent.TotalEarnings != 980 || agent.ReputationScore != 105 {
		t.Errorf("agent bookkeeping = jobs %d / earnings %d / reputation %d, want 1 / 980 / 105",
			agent.CompletedJobs, agent.TotalEarnings, agent.ReputationScore)
	}

	counters, _ := f.store.GetCounters(ctx)
	if counters.CumulativeVolume != 1000 {
		t.Errorf("cumulative volume = %d, want gross 1000", counters.CumulativeVolume)
	}

	if got := f.events.EventsOfType(domain.EventAgentHired); len(got) != 1 {
		t.Errorf("expected 1 AgentHired event, got %d", len(got))
	}
	if got := f.events.EventsOfType(domain.EventJobCompleted); len(got) != 1 {
		t.Errorf("expected 1 JobCompleted event, got %d", len(got))
	}
	rep := f.events.EventsOfType(domain.EventReputationUpdated)
	if len(rep) != 1 || rep[0].OldScore != 100 || rep[0].NewScore != 105 || !rep[0].Increased {
		t.Errorf("unexpected ReputationUpdated events: %+v", rep)
	}

	feedCount, _ := f.events.Count(ctx)
	if feedCount != 1 {
		t.Errorf("feed count = %d, want 1", feedCount)
	}
}

func TestHireAccumulates(t *testing.T) {
	ctx := context.Background()
	f := newHiringFixture(t)
	f.register(t, addrAlpha, "Oracle Prime")
	f.fund(t, addrBeta, 10_000)

	for i := 0; i < 3; i++ {
		if _, err := f.hiring.HireAgent(ctx, addrBeta, addrAlpha, 1000); err != nil {
			t.Fatalf("hire %d failed: %v", i, err)
		}
	}

	agent, _ := f.registry.GetAgent(ctx, addrAlpha)
	if agent.CompletedJobs != 3 {
		t.Errorf("completed jobs = %d, want 3", agent.CompletedJobs)
	}
	if agent.TotalEarnings != 2940 {
		t.Errorf("total earnings = %d, want 3 x 980", agent.TotalEarnings)
	}
	if agent.ReputationScore != 115 {
		t.Errorf("reputation = %d, want 100 + 3 x 5", agent.ReputationScore)
	}
	counters, _ := f.store.GetCounters(ctx)
	if counters.CumulativeVolume != 3000 {
		t.Errorf("cumulative volume = %d, want 3000", counters.CumulativeVolume)
	}
}

func TestHireInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	f := newHiringFixture(t)
	f.register(t, addrAlpha, "Oracle Prime")
	f.fund(t, addrBeta, 500) // covers the fee, not the net payment

	_, err := f.hiring.HireAgent(ctx, addrBeta, addrAlpha, 1000)
	if !errors.Is(err, domain.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}

	// The fee transfer succeeded before the net transfer failed; everything
	// must roll back, including the treasury credit.
	if bal, _ := f.store.Balance(ctx, addrBeta); bal != 500 {
		t.Errorf("hirer balance = %d, want untouched 500", bal)
	}
	if bal, _ := f.store.Balance(ctx, treasuryAddr); bal != 0 {
		t.Errorf("treasury balance = %d, want 0 after rollback", bal)
	}
	agent, _ := f.registry.GetAgent(ctx, addrAlpha)
	if agent.CompletedJobs != 0 || agent.TotalEarnings != 0 || agent.ReputationScore != 100 {
		t.Errorf("failed hire left bookkeeping: %+v", agent)
	}
	counters, _ := f.store.GetCounters(ctx)
	if counters.CumulativeVolume != 0 {
		t.Errorf("failed hire bumped volume: %d", counters.CumulativeVolume)
	}
	if got := f.events.Events(); len(got) != 1 {
		// Only the AgentRegistered event from setup.
		t.Errorf("failed hire emitted events: %+v", got)
	}
}

func TestHireValidation(t *testing.T) {
	ctx := context.Background()
	f := newHiringFixture(t)
	f.register(t, addrAlpha, "Oracle Prime")
	if err := f.registry.Deactivate(ctx, addrAlpha); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}
	f.register(t, addrGamma, "Active Agent")
	f.fund(t, addrBeta, 10_000)

	tests := []struct {
		name    string
		caller  string
		target  string
		amount  int64
		wantErr error
	}{
		{
			name:    "zero amount",
			caller:  addrBeta,
			target:  addrGamma,
			amount:  0,
			wantErr: domain.ErrInsufficientPayment,
		},
		{
			name:    "negative amount",
			caller:  addrBeta,
			target:  addrGamma,
			amount:  -5,
			wantErr: domain.ErrInsufficientPayment,
		},
		{
			name:    "malformed caller",
			caller:  "bogus",
			target:  addrGamma,
			amount:  100,
			wantErr: domain.ErrUnauthorized,
		},
		{
			name:    "malformed target",
			caller:  addrBeta,
			target:  "bogus",
			amount:  100,
			wantErr: domain.ErrInvalidAgent,
		},
		{
			name:    "unregistered target",
			caller:  addrBeta,
			target:  "0xdddddddddddddddddddddddddddddddddddddddd",
			amount:  100,
			wantErr: domain.ErrInvalidAgent,
		},
		{
			name:    "inactive target",
			caller:  addrBeta,
			target:  addrAlpha,
			amount:  100,
			wantErr: domain.ErrAgentInactive,
		},
		{
			name:    "self hire",
			caller:  addrGamma,
			target:  addrGamma,
			amount:  100,
			wantErr: domain.ErrInvalidAgent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.hiring.HireAgent(ctx, tt.caller, tt.target, tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	// None of the rejected hires moved money or bumped counters.
	if bal, _ := f.store.Balance(ctx, addrBeta); bal != 10_000 {
		t.Errorf("rejected hires moved funds: balance %d", bal)
	}
	counters, _ := f.store.GetCounters(ctx)
	if counters.CumulativeVolume != 0 {
		t.Errorf("rejected hires bumped volume: %d", counters.CumulativeVolume)
	}
}

func TestHireAgentFromAgent(t *testing.T) {
	ctx := context.Background()
	f := newHiringFixture(t)
	f.register(t, addrAlpha, "Oracle Prime")
	f.register(t, addrBeta, "Strategy Bot")
	f.fund(t, addrBeta, 5000)

	receipt, err := f.hiring.HireAgentFromAgent(ctx, addrBeta, addrAlpha, 1000)
	if err != nil {
		t.Fatalf("HireAgentFromAgent failed: %v", err)
	}
	if !receipt.AgentToAgent {
		t.Error("receipt not marked agent-to-agent")
	}

	// The hiring agent's spending is tracked.
	hirer, _ := f.registry.GetAgent(ctx, addrBeta)
	if hirer.TotalSpent != 1000 {
		t.Errorf("hirer total spent = %d, want gross 1000", hirer.TotalSpent)
	}

	if got := f.events.EventsOfType(domain.EventAgentToAgentHire); len(got) != 1 {
		t.Errorf("expected 1 AgentToAgentHire event, got %d", len(got))
	}
	// The regular hire event is emitted as well.
	if got := f.events.EventsOfType(domain.EventAgentHired); len(got) != 1 {
		t.Errorf("expected 1 AgentHired event, got %d", len(got))
	}
}

func TestHireAgentFromAgentRequiresRegistration(t *testing.T) {
	ctx := context.Background()
	f := newHiringFixture(t)
	f.register(t, addrAlpha, "Oracle Prime")
	f.fund(t, addrBeta, 5000)

	_, err := f.hiring.HireAgentFromAgent(ctx, addrBeta, addrAlpha, 1000)
	if !errors.Is(err, domain.ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
	if bal, _ := f.store.Balance(ctx, addrBeta); bal != 5000 {
		t.Errorf("rejected a2a hire moved funds: %d", bal)
	}
}

func TestHumanHirerSpendingNotTracked(t *testing.T) {
	ctx := context.Background()
	f := newHiringFixture(t)
	f.register(t, addrAlpha, "Oracle Prime")
	f.fund(t, addrBeta, 5000)

	if _, err := f.hiring.HireAgent(ctx, addrBeta, addrAlpha, 1000); err != nil {
		t.Fatalf("HireAgent failed: %v", err)
	}

	// An unregistered hirer has no identity to account spending against, but
	// the hire itself settles normally.
	if ok, _ := f.registry.IsRegistered(ctx, addrBeta); ok {
		t.Fatal("hirer unexpectedly registered")
	}
	if bal, _ := f.store.Balance(ctx, addrAlpha); bal != 980 {
		t.Errorf("agent balance = %d, want 980", bal)
	}
}

func TestHireSmallAmountNoFee(t *testing.T) {
	ctx := context.Background()
	f := newHiringFixture(t)
	f.register(t, addrAlpha, "Oracle Prime")
	f.fund(t, addrBeta, 100)

	// 2% of 49 truncates to zero; the agent keeps the whole amount.
	receipt, err := f.hiring.HireAgent(ctx, addrBeta, addrAlpha, 49)
	if err != nil {
		t.Fatalf("HireAgent failed: %v", err)
	}
	if receipt.ProtocolFee != 0 || receipt.NetPayment != 49 {
		t.Errorf("split = fee %d / net %d, want 0 / 49", receipt.ProtocolFee, receipt.NetPayment)
	}
	if bal, _ := f.store.Balance(ctx, treasuryAddr); bal != 0 {
		t.Errorf("treasury balance = %d, want 0", bal)
	}
}

func TestAccountService(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := NewAccountService(store)

	if _, err := svc.Deposit(ctx, addrAlpha, 0); !errors.Is(err, domain.ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment for zero deposit, got %v", err)
	}

	balance, err := svc.Deposit(ctx, addrAlpha, 2500)
	if err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}
	if balance != 2500 {
		t.Errorf("balance after deposit = %d, want 2500", balance)
	}

	balance, err = svc.Balance(ctx, addrAlpha)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance != 2500 {
		t.Errorf("Balance = %d, want 2500", balance)
	}

	// Unknown accounts read as zero, not as an error.
	balance, err = svc.Balance(ctx, addrBeta)
	if err != nil || balance != 0 {
		t.Errorf("Balance for unknown account = %d, %v; want 0, nil", balance, err)
	}
}
