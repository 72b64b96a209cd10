package engine

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/attribution-cli/internal/model"
)

// ExportCoverageXLSX writes coverage reports to an xlsx workbook, one row
// per workspace, for handing off to revenue ops.
func ExportCoverageXLSX(path string, reports []*model.CoverageReport) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Coverage")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{
		"Workspace", "Emails",
		"With Person", "Person %",
		"With Company", "Company %",
		"With Action", "Action %",
		"Collected At",
	} {
		header.AddCell().SetString(h)
	}

	for _, r := range reports {
		row := sheet.AddRow()
		row.AddCell().SetString(r.WorkspaceID)
		row.AddCell().SetInt(r.EmailsTotal)
		row.AddCell().SetInt(r.WithPersonLink)
		row.AddCell().SetInt(r.PersonCoveragePct)
		row.AddCell().SetInt(r.WithCompanyLink)
		row.AddCell().SetInt(r.CompanyCoveragePct)
		row.AddCell().SetInt(r.WithActionLink)
		row.AddCell().SetInt(r.ActionCoveragePct)
		row.AddCell().SetString(r.CollectedAt.UTC().Format("2006-01-02 15:04:05"))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}
