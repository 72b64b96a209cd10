package engine

import (
	"fmt"
	"strings"

	"github.com/sells-group/attribution-cli/internal/model"
)

// FormatBatchReport renders batch totals as a human-readable block for CLI
// output. The machine-readable form is the marshaled BatchStats itself.
func FormatBatchReport(stats *model.BatchStats) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Attribution Report: %s\n\n", stats.WorkspaceID)

	b.WriteString("## Batch\n")
	fmt.Fprintf(&b, "- Emails processed: %d\n", stats.Processed)
	fmt.Fprintf(&b, "- Elapsed: %s\n\n", stats.FinishedAt.Sub(stats.StartedAt).Round(0))

	b.WriteString("## Links written\n")
	fmt.Fprintf(&b, "- Person links: %d\n", stats.PersonLinks)
	fmt.Fprintf(&b, "- Company links: %d\n", stats.CompanyLinks)
	fmt.Fprintf(&b, "- Action links: %d\n\n", stats.ActionLinks)

	b.WriteString("## Entities created\n")
	fmt.Fprintf(&b, "- Persons: %d\n", stats.PersonsCreated)
	fmt.Fprintf(&b, "- Companies: %d\n", stats.CompaniesCreated)
	fmt.Fprintf(&b, "- Actions: %d\n\n", stats.ActionsCreated)

	b.WriteString("## Coverage\n")
	fmt.Fprintf(&b, "- Person:  %d/%d (%d%%)\n", stats.EmailsWithPerson, stats.Processed, stats.PersonCoveragePct)
	fmt.Fprintf(&b, "- Company: %d/%d (%d%%)\n", stats.EmailsWithCompany, stats.Processed, stats.CompanyCoveragePct)
	fmt.Fprintf(&b, "- Action:  %d/%d (%d%%)\n", stats.EmailsWithAction, stats.Processed, stats.ActionCoveragePct)

	return b.String()
}

// FormatCoverageReport renders workspace-wide link coverage counted over
// the store's link tables.
func FormatCoverageReport(r *model.CoverageReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Coverage: %s\n\n", r.WorkspaceID)
	fmt.Fprintf(&b, "- Emails: %d\n", r.EmailsTotal)
	fmt.Fprintf(&b, "- Linked to a person:  %d (%d%%)\n", r.WithPersonLink, r.PersonCoveragePct)
	fmt.Fprintf(&b, "- Linked to a company: %d (%d%%)\n", r.WithCompanyLink, r.CompanyCoveragePct)
	fmt.Fprintf(&b, "- Linked to an action: %d (%d%%)\n", r.WithActionLink, r.ActionCoveragePct)

	return b.String()
}
