package model

import "time"

// Company is a canonical organization record. Domain backs the uniqueness
// constraint within a workspace; engine-created companies always carry one.
type Company struct {
	ID           string    `json:"id"`
	WorkspaceID  string    `json:"workspace_id"`
	Name         string    `json:"name"`
	PrimaryEmail string    `json:"primary_email,omitempty"`
	Domain       string    `json:"domain,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
