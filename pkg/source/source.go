// Package source loads event logs and serves the events of one case at a time.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/logflow/caseline/pkg/parser"
	"github.com/logflow/caseline/pkg/storage/s3"
	"github.com/logflow/caseline/pkg/timeline"
)

// Source is an event log that can be queried by case.
// Events of a case are returned in file order.
type Source interface {
	timeline.EventSource

	// CaseIDs returns the distinct case IDs in order of first appearance.
	CaseIDs(ctx context.Context) ([]string, error)

	// Summary returns log-wide counts.
	Summary(ctx context.Context) (*Summary, error)

	Close() error
}

// Summary holds log-wide counts.
type Summary struct {
	Events      int            `json:"events"`
	Cases       int            `json:"cases"`
	Activities  int            `json:"activities"`
	Transitions map[string]int `json:"transitions"`
}

// Engine selects the Source implementation.
type Engine string

const (
	EngineMemory Engine = "memory"
	EngineDuckDB Engine = "duckdb"
)

// ParseEngine parses an engine name. Empty selects EngineMemory.
func ParseEngine(s string) (Engine, error) {
	switch Engine(strings.ToLower(strings.TrimSpace(s))) {
	case "", EngineMemory:
		return EngineMemory, nil
	case EngineDuckDB:
		return EngineDuckDB, nil
	default:
		return "", fmt.Errorf("unknown engine %q (want memory or duckdb)", s)
	}
}

// Config controls how a log is opened.
type Config struct {
	Engine Engine

	// Format overrides extension-based detection.
	Format string

	Parser parser.Config

	// S3 is used for s3:// locations.
	S3 s3.Config
}

// DefaultConfig returns the in-memory engine with XES column names.
func DefaultConfig() Config {
	return Config{
		Engine: EngineMemory,
		Parser: parser.DefaultConfig(),
		S3:     s3.DefaultConfig(""),
	}
}
