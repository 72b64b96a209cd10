package model

import "time"

// Direction says which way an email crossed the workspace boundary.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// Built-in action types used when no category keyword matches. Inbound
// actions carry the ReceivedPrefix (e.g. "received_reply").
const (
	ActionTypeEmail   = "email"
	ActionTypeReply   = "reply"
	ActionTypeForward = "forward"

	ReceivedPrefix = "received_"
)

// StageLead is the stage assigned when no stage keyword matches.
const StageLead = "lead"

// Action is a sales pipeline touchpoint. One email attributes to exactly
// one action; threads of related emails share an action.
type Action struct {
	ID          string          `json:"id"`
	WorkspaceID string          `json:"workspace_id"`
	Type        string          `json:"type"`
	Subject     string          `json:"subject"`
	CompletedAt time.Time       `json:"completed_at"`
	Direction   Direction       `json:"direction"`
	Stage       string          `json:"stage"`
	PersonID    string          `json:"person_id,omitempty"`
	CompanyID   string          `json:"company_id,omitempty"`
	Metadata    *ActionMetadata `json:"metadata,omitempty"`
	Fingerprint string          `json:"fingerprint"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ActionMetadata records which email and provider thread an action
// originated from. Stored as JSONB alongside the action row.
type ActionMetadata struct {
	EmailID  string `json:"email_id"`
	ThreadID string `json:"thread_id,omitempty"`
}
