package domain

import "time"

// EventType names the append-only protocol events consumed by off-chain
// listeners (ticker, leaderboard, dashboards).
type EventType string

const (
	EventAgentRegistered   EventType = "AgentRegistered"
	EventAgentHired        EventType = "AgentHired"
	EventAgentToAgentHire  EventType = "AgentToAgentHire"
	EventReputationUpdated EventType = "ReputationUpdated"
	EventJobCompleted      EventType = "JobCompleted"
)

// Event is one emitted protocol event. Fields are populated per type; unset
// fields are omitted on the wire.
type Event struct {
	ID           string       `json:"id"`
	Type         EventType    `json:"type"`
	Agent        string       `json:"agent,omitempty"`
	Hirer        string       `json:"hirer,omitempty"`
	Name         string       `json:"name,omitempty"`
	Capabilities Capabilities `json:"capabilities,omitempty"`
	Amount       int64        `json:"amount,omitempty"`
	ProtocolFee  int64        `json:"protocol_fee,omitempty"`
	OldScore     int64        `json:"old_score,omitempty"`
	NewScore     int64        `json:"new_score,omitempty"`
	Increased    bool         `json:"increased,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
}
