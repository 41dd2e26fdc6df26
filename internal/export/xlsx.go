// Package export writes project rollups to spreadsheet files for the office
// side of the house.
package export

import (
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/blueline-build/fieldreport-cli/internal/model"
	"github.com/blueline-build/fieldreport-cli/internal/store"
)

// Exporter renders rollups as xlsx workbooks.
type Exporter struct {
	db store.Store
}

// New creates an Exporter.
func New(db store.Store) *Exporter {
	return &Exporter{db: db}
}

// ExportRollup writes the stored rollup for a project window as an xlsx
// workbook. The rollup must already exist; exporting never recomputes.
func (e *Exporter) ExportRollup(ctx context.Context, projectID string, w store.Window, out io.Writer) error {
	rollup, err := e.db.GetRollup(ctx, projectID, w)
	if err != nil {
		return eris.Wrapf(err, "export: load rollup for %s", projectID)
	}
	if rollup == nil {
		return eris.Errorf("export: no rollup for project %s in window, run aggregate first", projectID)
	}

	f := xlsx.NewFile()
	if err := addLaborSheet(f, rollup); err != nil {
		return err
	}
	if err := addVendorSheet(f, rollup); err != nil {
		return err
	}
	if err := addConstraintSheet(f, rollup); err != nil {
		return err
	}

	if err := f.Write(out); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	zap.L().Info("rollup exported",
		zap.String("project_id", projectID),
		zap.Int("vendors", len(rollup.Vendors)),
		zap.Int("constraint_categories", len(rollup.Constraints)),
	)
	return nil
}

func addLaborSheet(f *xlsx.File, rollup *model.ProjectRollup) error {
	sheet, err := f.AddSheet("Labor")
	if err != nil {
		return eris.Wrap(err, "export: add labor sheet")
	}

	addStringRow(sheet, "Project", rollup.ProjectID)
	addStringRow(sheet, "Window start", rollup.WindowStart.Format("2006-01-02"))
	addStringRow(sheet, "Window end", rollup.WindowEnd.Format("2006-01-02"))
	addStringRow(sheet, "Reports", fmt.Sprintf("%d", rollup.ReportCount))
	sheet.AddRow()

	header := sheet.AddRow()
	for _, h := range []string{"Regular hours", "Overtime hours", "Double-time hours", "Labor cost", "Workers"} {
		header.AddCell().Value = h
	}
	row := sheet.AddRow()
	row.AddCell().SetFloat(rollup.Labor.RegularHours)
	row.AddCell().SetFloat(rollup.Labor.OvertimeHours)
	row.AddCell().SetFloat(rollup.Labor.DoubleTimeHours)
	row.AddCell().SetFloat(rollup.Labor.LaborCost)
	row.AddCell().SetInt(rollup.Labor.PersonCount)
	return nil
}

func addVendorSheet(f *xlsx.File, rollup *model.ProjectRollup) error {
	sheet, err := f.AddSheet("Vendors")
	if err != nil {
		return eris.Wrap(err, "export: add vendor sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Vendor", "Deliveries", "On-time rate", "Incident cost", "Grade"} {
		header.AddCell().Value = h
	}
	for _, v := range rollup.Vendors {
		row := sheet.AddRow()
		row.AddCell().Value = v.VendorName
		row.AddCell().SetInt(v.Deliveries)
		row.AddCell().SetFloat(v.OnTimeRate)
		row.AddCell().SetFloat(v.IncidentCost)
		row.AddCell().Value = v.Grade
	}
	return nil
}

func addConstraintSheet(f *xlsx.File, rollup *model.ProjectRollup) error {
	sheet, err := f.AddSheet("Constraints")
	if err != nil {
		return eris.Wrap(err, "export: add constraint sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Category", "Count", "Cost impact"} {
		header.AddCell().Value = h
	}
	for _, c := range rollup.Constraints {
		row := sheet.AddRow()
		row.AddCell().Value = string(c.Category)
		row.AddCell().SetInt(c.Count)
		row.AddCell().SetFloat(c.CostImpact)
	}
	return nil
}

func addStringRow(sheet *xlsx.Sheet, label, value string) {
	row := sheet.AddRow()
	row.AddCell().Value = label
	row.AddCell().Value = value
}
