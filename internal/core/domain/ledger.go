package domain

import "time"

// Account holds the spendable balance of one address in base units. The
// treasury is an ordinary account picked out by configuration. Balances are
// moved only inside the transaction of the operation that spends them.
type Account struct {
	Address   string    `json:"address" gorm:"primaryKey"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

// ProtocolCounters is the single aggregate row backing getProtocolStats.
// It is bumped transactionally alongside every identity mutation and hire,
// never recomputed by scanning, so reads stay O(1).
type ProtocolCounters struct {
	ID               int64 `json:"-" gorm:"primaryKey"`
	TotalAgents      int64 `json:"total_agents"`
	ActiveAgents     int64 `json:"active_agents"`
	CumulativeVolume int64 `json:"cumulative_volume"`
}

func (ProtocolCounters) TableName() string {
	return "protocol_counters"
}

// SplitFee computes the protocol fee and net payout for a gross hire amount.
// The fee truncates toward zero; fee + net always equals the gross amount.
func SplitFee(amount int64, feeBps int64) (fee, net int64) {
	fee = amount * feeBps / 10000
	return fee, amount - fee
}

// HireReceipt is the settlement summary returned to the hirer. Hires are not
// persisted as protocol state; the receipt mirrors the emitted events.
type HireReceipt struct {
	Hirer         string    `json:"hirer"`
	Agent         string    `json:"agent"`
	GrossAmount   int64     `json:"gross_amount"`
	ProtocolFee   int64     `json:"protocol_fee"`
	NetPayment    int64     `json:"net_payment"`
	AgentToAgent  bool      `json:"agent_to_agent"`
	NewReputation int64     `json:"new_reputation"`
	CompletedJobs int64     `json:"completed_jobs"`
	Timestamp     time.Time `json:"timestamp"`
}
