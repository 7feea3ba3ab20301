package contract

import "time"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message is the single internal representation of a transcript entry.
// Hidden marks messages that drive the model but are never rendered (the seeding trigger).
type Message struct {
	ID              string           `json:"id,omitempty"`
	Role            Role             `json:"role"`
	Content         string           `json:"content"`
	Hidden          bool             `json:"hidden,omitempty"`
	ToolInvocations []ToolInvocation `json:"tool_invocations,omitempty"`
}

type ToolStatus string

const (
	ToolPending  ToolStatus = "pending"
	ToolResolved ToolStatus = "resolved"
	ToolRejected ToolStatus = "rejected"
)

type ToolInvocation struct {
	CallID    string         `json:"call_id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    string         `json:"result,omitempty"`
	Status    ToolStatus     `json:"status"`
	Error     string         `json:"error,omitempty"`
}

// LeadInfo is the booking metadata carried alongside a transcript into the summary.
type LeadInfo struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	MeetingTime string `json:"meeting_time"`
	Challenge   string `json:"challenge"`
	DemoType    string `json:"demo_type"`
}

type LeadSummary struct {
	SessionID    string    `json:"session_id"`
	Lead         LeadInfo  `json:"lead"`
	Summary      string    `json:"summary"`
	Empty        bool      `json:"empty"`
	DispatchedAt time.Time `json:"dispatched_at"`
}

type SummaryRequest struct {
	SessionID  string    `json:"session_id"`
	Lead       LeadInfo  `json:"lead"`
	Transcript []Message `json:"transcript"`
}

type SummaryResult struct {
	Summary    LeadSummary `json:"summary"`
	Dispatched bool        `json:"dispatched"`
	Duplicate  bool        `json:"duplicate"`
}
