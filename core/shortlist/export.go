package shortlist

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Shortlist"

var exportHeader = []interface{}{
	"Block", "Registration Number", "Student Name", "Father Name", "Gender", "GMAT Score", "SAT Score", "Composite Score",
}

// ExportFileName is the attachment name of a batch export.
func ExportFileName(batch Batch) string {
	return fmt.Sprintf("shortlist-%d-%d.xlsx", batch.ID, batch.Year)
}

// ExportBatchXLSX writes the shortlisted applicants of a batch as a spreadsheet,
// grouped by block and best composite score first.
func (svc *Service) ExportBatchXLSX(ctx context.Context, batchID int64, w io.Writer) error {
	applicants, err := svc.ShortlistedApplicants(ctx, batchID)
	if err != nil {
		return err
	}
	return writeXLSX(applicants, w)
}

func writeXLSX(applicants []ShortlistedApplicant, w io.Writer) error {
	sort.SliceStable(applicants, func(i, j int) bool {
		a, b := applicants[i], applicants[j]
		if a.BlockName != b.BlockName {
			return a.BlockName < b.BlockName
		}
		if c := a.Composite().Cmp(b.Composite()); c != 0 {
			return c > 0
		}
		return a.ApplicantID < b.ApplicantID
	})

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return errors.Wrap(err, "writing header")
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeader))
	if err = f.SetCellStyle(exportSheet, "A1", lastCol+"1", bold); err != nil {
		return errors.Wrap(err, "styling header")
	}

	for i, a := range applicants {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{
			a.BlockName,
			a.RegNumber,
			a.Name,
			a.FatherName,
			a.Gender,
			a.GMATScore.InexactFloat64(),
			a.SATScore.InexactFloat64(),
			a.Composite().InexactFloat64(),
		}
		if err = f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return errors.Wrapf(err, "writing row %d", i+2)
		}
	}
	if err = f.SetColWidth(exportSheet, "A", lastCol, 20); err != nil {
		return errors.Wrap(err, "sizing columns")
	}

	return errors.Wrap(f.Write(w), "writing workbook")
}
