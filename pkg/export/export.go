// Package export writes computed case timelines as JSON, Parquet or XLSX,
// locally or to object storage.
package export

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/logflow/caseline/internal/model"
)

// Kind distinguishes processing spans from waiting windows.
type Kind string

const (
	KindProcessing Kind = "processing"
	KindWaiting    Kind = "waiting"
)

// Row is one flattened bar of a case timeline.
// Offset is Start relative to the case start.
type Row struct {
	CaseID   string
	Activity string
	Instance int
	Kind     Kind
	Start    time.Time
	Duration time.Duration
	Offset   time.Duration
}

// Flatten turns results into rows: per activity (lexical order) and
// instance, one processing row followed by its waiting rows.
func Flatten(results []*model.CaseResult) []Row {
	var rows []Row
	for _, res := range results {
		for _, activity := range res.Names() {
			for i, rec := range res.Activities[activity] {
				rows = append(rows, Row{
					CaseID:   res.CaseID,
					Activity: activity,
					Instance: i,
					Kind:     KindProcessing,
					Start:    rec.Start,
					Duration: rec.Duration,
					Offset:   rec.Start.Sub(res.Start),
				})
				for _, w := range rec.Waiting {
					rows = append(rows, Row{
						CaseID:   res.CaseID,
						Activity: activity,
						Instance: i,
						Kind:     KindWaiting,
						Start:    w.Start,
						Duration: w.Duration,
						Offset:   w.Start.Sub(res.Start),
					})
				}
			}
		}
	}
	return rows
}

// Format is an export file format.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatParquet
	FormatXLSX
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatParquet:
		return "parquet"
	case FormatXLSX:
		return "xlsx"
	default:
		return "unknown"
	}
}

// ContentType returns the MIME type used for uploads.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// ParseFormat parses a format name.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "parquet", "pq":
		return FormatParquet
	case "xlsx", "excel":
		return FormatXLSX
	default:
		return FormatUnknown
	}
}

// DetectFormat picks a format from an explicit name or the file extension.
func DetectFormat(path, explicit string) Format {
	if explicit != "" {
		return ParseFormat(explicit)
	}
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Metadata describes the run that produced an export.
type Metadata struct {
	RunID     string
	Source    string
	CreatedAt time.Time
}

func (m Metadata) pairs() map[string]string {
	return map[string]string{
		"run_id":     m.RunID,
		"source":     m.Source,
		"created_at": m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Options holds writer options.
type Options struct {
	// Compression applies to Parquet output.
	Compression CompressionType
}

// DefaultOptions returns snappy-compressed Parquet.
func DefaultOptions() Options {
	return Options{Compression: CompressionSnappy}
}

// Write encodes results in the given format.
func Write(ctx context.Context, w io.Writer, format Format, results []*model.CaseResult, meta Metadata, opts Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch format {
	case FormatJSON:
		return WriteJSON(w, results, meta)
	case FormatParquet:
		return WriteParquet(w, Flatten(results), meta, opts.Compression)
	case FormatXLSX:
		return WriteXLSX(w, Flatten(results), meta)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
