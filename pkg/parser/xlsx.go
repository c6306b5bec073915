package parser

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/logflow/caseline/internal/model"
)

// XLSXParser parses Excel XLSX event logs. The first sheet is read; its first
// row is the header.
type XLSXParser struct {
	cfg Config
}

// NewXLSXParser creates a new XLSX parser.
func NewXLSXParser(cfg Config) *XLSXParser {
	return &XLSXParser{cfg: cfg}
}

// Parse reads from an Excel workbook and sends parsed events to out.
func (p *XLSXParser) Parse(ctx context.Context, r io.Reader, out chan<- *model.Event) error {
	var xlFile *excelize.File
	var err error
	if f, ok := r.(*os.File); ok {
		xlFile, err = excelize.OpenFile(f.Name())
	} else {
		xlFile, err = excelize.OpenReader(r)
	}
	if err != nil {
		return fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer xlFile.Close()

	sheetList := xlFile.GetSheetList()
	if len(sheetList) == 0 {
		return ErrInvalidXLSX
	}

	rows, err := xlFile.Rows(sheetList[0])
	if err != nil {
		return fmt.Errorf("failed to read rows: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return ErrInvalidXLSX
	}
	header, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[strings.TrimSpace(col)] = i
	}

	caseIDIdx, ok := findColumnIndex(colIdx, p.cfg.CaseIDColumn, "case_id", "Case ID", "CaseID")
	if !ok {
		return fmt.Errorf("%w: case id (tried %s)", ErrMissingColumn, p.cfg.CaseIDColumn)
	}
	activityIdx, ok := findColumnIndex(colIdx, p.cfg.ActivityColumn, "activity", "Activity")
	if !ok {
		return fmt.Errorf("%w: activity (tried %s)", ErrMissingColumn, p.cfg.ActivityColumn)
	}
	transitionIdx, ok := findColumnIndex(colIdx, p.cfg.TransitionColumn, "lifecycle", "transition", "Lifecycle")
	if !ok {
		return fmt.Errorf("%w: lifecycle transition (tried %s)", ErrMissingColumn, p.cfg.TransitionColumn)
	}
	timestampIdx, ok := findColumnIndex(colIdx, p.cfg.TimestampColumn, "timestamp", "Timestamp", "time")
	if !ok {
		return fmt.Errorf("%w: timestamp (tried %s)", ErrMissingColumn, p.cfg.TimestampColumn)
	}
	resourceIdx, _ := findColumnIndex(colIdx, p.cfg.ResourceColumn, "resource", "Resource")

	row := 0
	for rows.Next() {
		select {
		case <-ctx.Done():
			return ErrContextCanceled
		default:
		}

		row++
		// Raw values keep date cells as serial numbers instead of display strings.
		cols, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil || len(cols) == 0 {
			p.cfg.skip(row, "unreadable or empty row")
			continue
		}

		event := &model.Event{
			CaseID:     cell(cols, caseIDIdx),
			Activity:   cell(cols, activityIdx),
			Transition: model.ParseTransition(cell(cols, transitionIdx)),
			Resource:   cell(cols, resourceIdx),
		}
		if event.CaseID == "" {
			p.cfg.skip(row, "missing case id")
			continue
		}
		if ts, ok := p.parseTimestamp(cell(cols, timestampIdx)); ok {
			event.Timestamp = ts
		}

		select {
		case out <- event:
		case <-ctx.Done():
			return ErrContextCanceled
		}
	}

	return rows.Error()
}

// parseTimestamp accepts Excel serial dates as well as textual layouts.
func (p *XLSXParser) parseTimestamp(s string) (ts time.Time, ok bool) {
	if t, ok := parseExcelSerial(s); ok {
		return t, true
	}
	t, err := ParseTimestamp(s, p.cfg.TimestampFormat)
	return t, err == nil
}

// findColumnIndex tries multiple column names and returns the first match.
func findColumnIndex(colIdx map[string]int, names ...string) (int, bool) {
	for _, name := range names {
		if idx, ok := colIdx[name]; ok {
			return idx, true
		}
	}
	return -1, false
}

func cell(cols []string, idx int) string {
	if idx < 0 || idx >= len(cols) {
		return ""
	}
	return strings.TrimSpace(cols[idx])
}
