package parser

import (
	"bufio"
	"context"
	"io"

	"github.com/logflow/caseline/internal/model"
)

// CSVParser implements byte-level CSV parsing of tabular event logs.
type CSVParser struct {
	cfg Config
}

// NewCSVParser creates a new CSV parser.
func NewCSVParser(cfg Config) *CSVParser {
	if cfg.Delimiter == 0 {
		cfg.Delimiter = ','
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64 * 1024
	}
	return &CSVParser{cfg: cfg}
}

// csvColumns holds the resolved positions of the mapped columns.
type csvColumns struct {
	caseID, activity, transition, timestamp, resource int
}

func (c csvColumns) required() int {
	n := c.caseID
	for _, idx := range []int{c.activity, c.transition, c.timestamp} {
		if idx > n {
			n = idx
		}
	}
	return n + 1
}

// Parse implements the Parser interface.
// Rows with too few fields are skipped. Rows with an unparseable timestamp
// are emitted with a zero timestamp so the case fails validation downstream.
func (p *CSVParser) Parse(ctx context.Context, r io.Reader, out chan<- *model.Event) error {
	reader := bufio.NewReaderSize(r, p.cfg.BufferSize)

	headerLine, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return err
	}
	headerLine = trimLineEnding(trimBOM(headerLine))
	if len(headerLine) == 0 {
		return ErrInvalidCSV
	}

	cols, err := p.resolveColumns(p.splitFields(headerLine))
	if err != nil {
		return err
	}
	minFields := cols.required()

	row := 0
	for {
		select {
		case <-ctx.Done():
			return ErrContextCanceled
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return err
		}
		if len(line) == 0 && err == io.EOF {
			break
		}

		line = trimLineEnding(line)
		if len(line) == 0 {
			if err == io.EOF {
				break
			}
			continue
		}
		row++

		fields := p.splitFields(line)
		if len(fields) < minFields {
			p.cfg.skip(row, "too few fields")
			if err == io.EOF {
				break
			}
			continue
		}

		event := &model.Event{
			CaseID:     string(fields[cols.caseID]),
			Activity:   string(fields[cols.activity]),
			Transition: model.ParseTransition(string(fields[cols.transition])),
		}
		if ts, tsErr := ParseTimestamp(string(fields[cols.timestamp]), p.cfg.TimestampFormat); tsErr == nil {
			event.Timestamp = ts
		}
		if cols.resource >= 0 && cols.resource < len(fields) {
			event.Resource = string(fields[cols.resource])
		}

		select {
		case out <- event:
		case <-ctx.Done():
			return ErrContextCanceled
		}

		if err == io.EOF {
			break
		}
	}

	return nil
}

// resolveColumns maps the configured column names to header positions.
func (p *CSVParser) resolveColumns(header [][]byte) (csvColumns, error) {
	colMap := make(map[string]int, len(header))
	for i, col := range header {
		colMap[string(col)] = i
	}

	cols := csvColumns{resource: -1}
	for _, m := range []struct {
		name string
		dst  *int
	}{
		{p.cfg.CaseIDColumn, &cols.caseID},
		{p.cfg.ActivityColumn, &cols.activity},
		{p.cfg.TransitionColumn, &cols.transition},
		{p.cfg.TimestampColumn, &cols.timestamp},
	} {
		idx, ok := colMap[m.name]
		if !ok {
			return cols, ErrMissingColumn
		}
		*m.dst = idx
	}
	if idx, ok := colMap[p.cfg.ResourceColumn]; ok {
		cols.resource = idx
	}

	return cols, nil
}

// splitFields parses a CSV line using byte-level scanning.
// Handles quoted fields with embedded delimiters and quotes.
func (p *CSVParser) splitFields(line []byte) [][]byte {
	if len(line) == 0 {
		return nil
	}

	fields := make([][]byte, 0, 16)
	delim := p.cfg.Delimiter
	start := 0
	inQuotes := false

	for i := 0; i < len(line); i++ {
		c := line[i]

		if c == '"' {
			if !inQuotes {
				inQuotes = true
			} else if i+1 < len(line) && line[i+1] == '"' {
				i++
			} else {
				inQuotes = false
			}
		} else if c == delim && !inQuotes {
			fields = append(fields, unquoteField(line[start:i]))
			start = i + 1
		}
	}
	fields = append(fields, unquoteField(line[start:]))

	return fields
}

// unquoteField removes surrounding quotes and unescapes embedded quotes.
func unquoteField(field []byte) []byte {
	if len(field) < 2 || field[0] != '"' || field[len(field)-1] != '"' {
		return field
	}
	field = field[1 : len(field)-1]
	result := make([]byte, 0, len(field))
	for i := 0; i < len(field); i++ {
		if field[i] == '"' && i+1 < len(field) && field[i+1] == '"' {
			i++
		}
		result = append(result, field[i])
	}
	return result
}

// trimLineEnding removes trailing \n and \r characters.
func trimLineEnding(line []byte) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}

// trimBOM strips a UTF-8 byte order mark.
func trimBOM(line []byte) []byte {
	if len(line) >= 3 && line[0] == 0xEF && line[1] == 0xBB && line[2] == 0xBF {
		return line[3:]
	}
	return line
}
