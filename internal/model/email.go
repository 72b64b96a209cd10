package model

import "time"

// EmailMessage is an already-ingested email as the sync job stored it.
// The engine treats it as immutable input.
type EmailMessage struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Sender      string    `json:"sender"`
	Recipients  []string  `json:"recipients"`
	CC          []string  `json:"cc,omitempty"`
	BCC         []string  `json:"bcc,omitempty"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	ThreadID    string    `json:"thread_id,omitempty"` // provider conversation id, when the sync job had one
	SentAt      time.Time `json:"sent_at"`
}
