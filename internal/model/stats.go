package model

import (
	"math"
	"time"
)

// Percent returns round(100 * part / total) as a whole number, 0 when total
// is zero.
func Percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(total)))
}

// BatchStats summarizes one attribution batch. Percentages are whole
// numbers, round(100 * linked / processed).
type BatchStats struct {
	WorkspaceID string `json:"workspace_id"`

	Processed    int `json:"processed"`
	PersonLinks  int `json:"person_links"`
	CompanyLinks int `json:"company_links"`
	ActionLinks  int `json:"action_links"`

	EmailsWithPerson  int `json:"emails_with_person"`
	EmailsWithCompany int `json:"emails_with_company"`
	EmailsWithAction  int `json:"emails_with_action"`

	PersonsCreated   int `json:"persons_created"`
	CompaniesCreated int `json:"companies_created"`
	ActionsCreated   int `json:"actions_created"`

	PersonCoveragePct  int `json:"person_coverage_pct"`
	CompanyCoveragePct int `json:"company_coverage_pct"`
	ActionCoveragePct  int `json:"action_coverage_pct"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// CoverageReport is a point-in-time view of how much of a workspace's email
// corpus has been attributed, counted over the link tables.
type CoverageReport struct {
	WorkspaceID string `json:"workspace_id"`

	EmailsTotal     int `json:"emails_total"`
	WithPersonLink  int `json:"with_person_link"`
	WithCompanyLink int `json:"with_company_link"`
	WithActionLink  int `json:"with_action_link"`

	PersonCoveragePct  int `json:"person_coverage_pct"`
	CompanyCoveragePct int `json:"company_coverage_pct"`
	ActionCoveragePct  int `json:"action_coverage_pct"`

	CollectedAt time.Time `json:"collected_at"`
}
