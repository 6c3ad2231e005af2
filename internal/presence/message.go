package presence

import (
	"encoding/json"
	"time"
)

// Message types exchanged over the relay.
const (
	TypeIdentifyAgent    = "identify_agent"
	TypeIdentifyLeader   = "identify_leader"
	TypeStateChange      = "state_change"
	TypeRequestAllStatus = "request_all_status"
	TypePing             = "ping"

	TypeConnected        = "connected"
	TypeUserConnected    = "user_connected"
	TypeUserDisconnected = "user_disconnected"
	TypeAllStatus        = "all_status"
	TypePong             = "pong"
	TypeLimitExceeded    = "limit_exceeded"
	TypeError            = "error"
)

// Inbound is a message sent by a relay client.
type Inbound struct {
	Type      string     `json:"type"`
	AdvisorID int64      `json:"advisor_id"`
	Name      string     `json:"name"`
	Role      string     `json:"role"`
	Area      string     `json:"area"`
	State     string     `json:"state"`
	Timestamp *time.Time `json:"timestamp"`
}

// Outbound is a message sent to relay clients. Only the fields relevant to Type are set.
type Outbound struct {
	Type         string     `json:"type"`
	AdvisorID    int64      `json:"advisor_id,omitempty"`
	Name         string     `json:"name,omitempty"`
	Role         string     `json:"role,omitempty"`
	Area         string     `json:"area,omitempty"`
	State        string     `json:"state,omitempty"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	Agents       []Agent    `json:"agents,omitempty"`
	LimitMinutes int        `json:"limit_minutes,omitempty"`
	UsedMinutes  int        `json:"used_minutes,omitempty"`
	Message      string     `json:"message,omitempty"`
	ServerTime   *time.Time `json:"server_time,omitempty"`
}

// Agent is the presence record of a connected advisor.
type Agent struct {
	AdvisorID  int64     `json:"advisor_id"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	Area       string    `json:"area"`
	State      string    `json:"state"`
	LastUpdate time.Time `json:"last_update"`
}

func encode(msg Outbound) []byte {
	// Outbound only holds plain values, so marshalling cannot fail.
	b, _ := json.Marshal(msg)
	return b
}
