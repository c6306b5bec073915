package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the rows.
const SheetName = "intervals"

var xlsxHeader = []interface{}{
	"case_id", "activity", "instance", "kind", "start", "duration_seconds", "offset_seconds",
}

// WriteXLSX writes rows to a workbook with a single sheet.
// The run ID is stored in the document identifier property.
func WriteXLSX(w io.Writer, rows []Row, meta Metadata) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Creator:     "caseline",
		Identifier:  meta.RunID,
		Description: meta.Source,
	}); err != nil {
		return fmt.Errorf("failed to set workbook properties: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	if err := sw.SetRow("A1", xlsxHeader); err != nil {
		return err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{
			r.CaseID,
			r.Activity,
			r.Instance,
			string(r.Kind),
			r.Start.UTC(),
			r.Duration.Seconds(),
			r.Offset.Seconds(),
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
