// Package parser provides streaming readers for process mining event logs
// (CSV, XES, XLSX) that emit lifecycle-tagged events.
package parser

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/logflow/caseline/internal/model"
)

// Parser defines the interface for parsing process mining data.
// Implementations must not retain references to the output channel after returning.
type Parser interface {
	// Parse reads from r and sends parsed events to out in source order.
	// It should respect context cancellation.
	// The caller is responsible for closing the out channel.
	Parse(ctx context.Context, r io.Reader, out chan<- *model.Event) error
}

// Format represents a supported input format.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatCSV
	FormatXES
	FormatXLSX
	FormatParquet
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatXES:
		return "xes"
	case FormatXLSX:
		return "xlsx"
	case FormatParquet:
		return "parquet"
	default:
		return "unknown"
	}
}

// ParseFormat parses a format string.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "csv":
		return FormatCSV
	case "xes":
		return FormatXES
	case "xlsx", "excel":
		return FormatXLSX
	case "parquet", "pq":
		return FormatParquet
	default:
		return FormatUnknown
	}
}

// DetectFormat picks a format from an explicit name or the file extension.
func DetectFormat(path, explicit string) Format {
	if explicit != "" {
		return ParseFormat(explicit)
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return ParseFormat(ext)
}

// Config holds common parser configuration.
type Config struct {
	// BufferSize is the size of the read buffer in bytes.
	BufferSize int

	// CaseIDColumn is the name of the case ID column (CSV, XLSX).
	CaseIDColumn string

	// ActivityColumn is the name of the activity column (CSV, XLSX).
	ActivityColumn string

	// TransitionColumn is the name of the lifecycle transition column (CSV, XLSX).
	TransitionColumn string

	// TimestampColumn is the name of the timestamp column (CSV, XLSX).
	TimestampColumn string

	// ResourceColumn is the name of the resource column (optional).
	ResourceColumn string

	// TimestampFormat is tried before the built-in layouts (Go time layout).
	TimestampFormat string

	// Delimiter is the field delimiter for CSV (default: comma).
	Delimiter byte

	// OnSkip is called for every row that is dropped without an error.
	OnSkip func(row int, reason string)
}

// DefaultConfig returns a Config matching logs exported from XES.
func DefaultConfig() Config {
	return Config{
		BufferSize:       64 * 1024,
		CaseIDColumn:     "case:concept:name",
		ActivityColumn:   "concept:name",
		TransitionColumn: "lifecycle:transition",
		TimestampColumn:  "time:timestamp",
		ResourceColumn:   "org:resource",
		Delimiter:        ',',
	}
}

func (c Config) skip(row int, reason string) {
	if c.OnSkip != nil {
		c.OnSkip(row, reason)
	}
}

// NewParser creates a parser for the given format.
func NewParser(format Format, cfg Config) (Parser, error) {
	switch format {
	case FormatCSV:
		return NewCSVParser(cfg), nil
	case FormatXES:
		return NewXESParser(cfg), nil
	case FormatXLSX:
		return NewXLSXParser(cfg), nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

// ReadAll drains a parser into a slice, preserving source order.
func ReadAll(ctx context.Context, p Parser, r io.Reader) ([]model.Event, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make(chan *model.Event, 1024)
	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Parse(ctx, r, out)
		close(out)
	}()

	var events []model.Event
	for ev := range out {
		ev.Row = len(events)
		events = append(events, *ev)
	}

	if err := <-errCh; err != nil {
		return nil, err
	}
	return events, nil
}
