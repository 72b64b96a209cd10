package model

import "time"

// Person is a canonical contact record. Any non-empty subset of the four
// address fields may be populated; PrimaryEmail backs the uniqueness
// constraint within a workspace.
type Person struct {
	ID             string    `json:"id"`
	WorkspaceID    string    `json:"workspace_id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	PrimaryEmail   string    `json:"primary_email,omitempty"`
	WorkEmail      string    `json:"work_email,omitempty"`
	PersonalEmail  string    `json:"personal_email,omitempty"`
	SecondaryEmail string    `json:"secondary_email,omitempty"`
	CompanyID      string    `json:"company_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// EmailAddresses returns the person's populated address fields in priority
// order (primary, work, personal, secondary).
func (p *Person) EmailAddresses() []string {
	addrs := make([]string, 0, 4)
	for _, a := range []string{p.PrimaryEmail, p.WorkEmail, p.PersonalEmail, p.SecondaryEmail} {
		if a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}
