package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/attribution-cli/internal/model"
)

func TestFormatBatchReport(t *testing.T) {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	out := FormatBatchReport(&model.BatchStats{
		WorkspaceID:        "ws1",
		Processed:          3,
		PersonLinks:        2,
		CompanyLinks:       1,
		ActionLinks:        3,
		EmailsWithPerson:   2,
		EmailsWithCompany:  1,
		EmailsWithAction:   3,
		PersonsCreated:     1,
		CompaniesCreated:   1,
		ActionsCreated:     2,
		PersonCoveragePct:  67,
		CompanyCoveragePct: 33,
		ActionCoveragePct:  100,
		StartedAt:          start,
		FinishedAt:         start.Add(2 * time.Second),
	})

	assert.Contains(t, out, "# Attribution Report: ws1")
	assert.Contains(t, out, "- Emails processed: 3")
	assert.Contains(t, out, "- Elapsed: 2s")
	assert.Contains(t, out, "- Person links: 2")
	assert.Contains(t, out, "- Actions: 2")
	assert.Contains(t, out, "- Person:  2/3 (67%)")
	assert.Contains(t, out, "- Company: 1/3 (33%)")
	assert.Contains(t, out, "- Action:  3/3 (100%)")
}

func TestFormatCoverageReport(t *testing.T) {
	out := FormatCoverageReport(&model.CoverageReport{
		WorkspaceID:        "ws1",
		EmailsTotal:        10,
		WithPersonLink:     7,
		WithCompanyLink:    5,
		WithActionLink:     10,
		PersonCoveragePct:  70,
		CompanyCoveragePct: 50,
		ActionCoveragePct:  100,
	})

	assert.Contains(t, out, "# Coverage: ws1")
	assert.Contains(t, out, "- Emails: 10")
	assert.Contains(t, out, "- Linked to a person:  7 (70%)")
	assert.Contains(t, out, "- Linked to a company: 5 (50%)")
	assert.Contains(t, out, "- Linked to an action: 10 (100%)")
}
