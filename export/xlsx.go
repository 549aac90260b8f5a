// CLAUDE:SUMMARY XLSX writer via excelize: one workbook, one sheet per record stream.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/hazyhaar/okpyeon/record"
)

// Sheet is one record stream destined for one worksheet.
type Sheet struct {
	Name    string
	Columns []string
	Records []record.Record
}

// WriteXLSXFile writes the sheets into a single workbook at path. At
// least one sheet is required; sheet names must be unique and non-empty
// (excelize enforces the rest of its naming rules itself).
func WriteXLSXFile(path string, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("export: no sheets to write")
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		if sheet.Name == "" {
			return fmt.Errorf("export: sheet %d has no name", i)
		}
		if i == 0 {
			// Rename the default sheet instead of leaving an empty Sheet1.
			if err := f.SetSheetName(f.GetSheetName(0), sheet.Name); err != nil {
				return fmt.Errorf("export: name sheet %q: %w", sheet.Name, err)
			}
		} else {
			if _, err := f.NewSheet(sheet.Name); err != nil {
				return fmt.Errorf("export: add sheet %q: %w", sheet.Name, err)
			}
		}
		if err := writeSheet(f, sheet); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("export: save %s: %w", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet Sheet) error {
	header := make([]any, len(sheet.Columns))
	for i, c := range sheet.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet.Name, "A1", &header); err != nil {
		return fmt.Errorf("export: sheet %q header: %w", sheet.Name, err)
	}

	for i, rec := range sheet.Records {
		cells := Row(sheet.Columns, rec)
		row := make([]any, len(cells))
		for j, c := range cells {
			row[j] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export: sheet %q row %d: %w", sheet.Name, i, err)
		}
		if err := f.SetSheetRow(sheet.Name, cell, &row); err != nil {
			return fmt.Errorf("export: sheet %q row %d: %w", sheet.Name, i, err)
		}
	}
	return nil
}
