package source

import (
	"context"
	"io"

	"github.com/logflow/caseline/internal/model"
	"github.com/logflow/caseline/pkg/index"
	"github.com/logflow/caseline/pkg/parser"
)

// MemorySource holds a whole log in memory with a bitmap index of case rows.
type MemorySource struct {
	events []model.Event
	index  *index.AttributeIndex
}

// NewMemorySource indexes events. Row positions are taken from slice order.
func NewMemorySource(events []model.Event) *MemorySource {
	idx := index.NewAttributeIndex()
	idx.IndexEvents(events, 0)
	return &MemorySource{events: events, index: idx}
}

// LoadMemory drains p over r into a MemorySource.
func LoadMemory(ctx context.Context, p parser.Parser, r io.Reader) (*MemorySource, error) {
	events, err := parser.ReadAll(ctx, p, r)
	if err != nil {
		return nil, err
	}
	return NewMemorySource(events), nil
}

// FetchCaseEvents returns the events of caseID in file order.
// An unknown case yields an empty slice.
func (s *MemorySource) FetchCaseEvents(ctx context.Context, caseID string) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := s.index.Lookup(index.ColumnCase, caseID)
	events := make([]model.Event, 0, rows.GetCardinality())
	it := rows.Iterator()
	for it.HasNext() {
		events = append(events, s.events[it.Next()])
	}
	return events, nil
}

// CaseIDs returns the case IDs in order of first appearance.
func (s *MemorySource) CaseIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.index.DistinctValues(index.ColumnCase), nil
}

// Summary returns log-wide counts.
func (s *MemorySource) Summary(ctx context.Context) (*Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counts := s.index.Counts(index.ColumnTransition)
	transitions := make(map[string]int, len(counts))
	for t, n := range counts {
		transitions[t] = int(n)
	}

	return &Summary{
		Events:      int(s.index.RowCount()),
		Cases:       s.index.Cardinality(index.ColumnCase),
		Activities:  s.index.Cardinality(index.ColumnActivity),
		Transitions: transitions,
	}, nil
}

// Close releases nothing; the log stays in memory until garbage collected.
func (s *MemorySource) Close() error {
	return nil
}
