package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Capabilities is the ordered list of capability tags an agent advertises.
// Stored as JSON in a single column; display order is preserved, search goes
// through the capability index table instead.
type Capabilities []string

func (c Capabilities) Value() (driver.Value, error) {
	if c == nil {
		c = Capabilities{}
	}
	return json.Marshal(c)
}

func (c *Capabilities) Scan(value interface{}) error {
	if value == nil {
		*c = Capabilities{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("unsupported capabilities column type %T", value)
	}
}

// Agent is one registered marketplace identity, keyed by wallet address.
// WalletAddress and RegisteredAt are immutable after registration.
// CompletedJobs, TotalEarnings and TotalSpent only ever increase.
type Agent struct {
	WalletAddress   string       `json:"wallet_address" gorm:"primaryKey"`
	Name            string       `json:"name"`
	EndpointURL     string       `json:"endpoint_url"`
	Capabilities    Capabilities `json:"capabilities" gorm:"type:jsonb"`
	MCPVersion      string       `json:"mcp_version"`
	ReputationScore int64        `json:"reputation_score"`
	RegisteredAt    time.Time    `json:"registered_at"`
	IsActive        bool         `json:"is_active"`
	CompletedJobs   int64        `json:"completed_jobs"`
	TotalEarnings   int64        `json:"total_earnings"`
	TotalSpent      int64        `json:"total_spent"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func (Agent) TableName() string {
	return "agents"
}

// CapabilityEntry is one row of the capability index. The registry maintains
// these incrementally on register/update/deactivate; nothing else writes them.
type CapabilityEntry struct {
	Capability    string `json:"capability" gorm:"primaryKey"`
	WalletAddress string `json:"wallet_address" gorm:"primaryKey"`
}

func (CapabilityEntry) TableName() string {
	return "capability_index"
}
