package model

import "time"

// Link rows join an email to the records it was attributed to. Each pair is
// unique; writing an existing pair is a no-op, not an error.

// EmailPersonLink joins an email to a person.
type EmailPersonLink struct {
	EmailID     string    `json:"email_id"`
	PersonID    string    `json:"person_id"`
	WorkspaceID string    `json:"workspace_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// EmailCompanyLink joins an email to a company.
type EmailCompanyLink struct {
	EmailID     string    `json:"email_id"`
	CompanyID   string    `json:"company_id"`
	WorkspaceID string    `json:"workspace_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// EmailActionLink joins an email to the action it was attributed to.
type EmailActionLink struct {
	EmailID     string    `json:"email_id"`
	ActionID    string    `json:"action_id"`
	WorkspaceID string    `json:"workspace_id"`
	CreatedAt   time.Time `json:"created_at"`
}
