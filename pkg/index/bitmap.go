// Package index provides bitmap indexes for fast attribute lookups on event logs.
package index

import (
	"sync"

	"github.com/RoaringBitmap/roaring"

	"github.com/logflow/caseline/internal/model"
)

// Column names an indexed event attribute.
type Column string

const (
	ColumnCase       Column = "case"
	ColumnActivity   Column = "activity"
	ColumnTransition Column = "transition"
)

var indexedColumns = []Column{ColumnCase, ColumnActivity, ColumnTransition}

// AttributeIndex maps each distinct attribute value to a roaring bitmap of row
// positions. Distinct values are remembered in order of first appearance.
type AttributeIndex struct {
	mu sync.RWMutex

	// columns maps column -> value -> bitmap of row positions
	columns map[Column]map[string]*roaring.Bitmap

	// order keeps distinct values per column in first-appearance order
	order map[Column][]string

	// rowCount tracks total rows indexed
	rowCount uint32
}

// NewAttributeIndex creates an empty attribute index.
func NewAttributeIndex() *AttributeIndex {
	idx := &AttributeIndex{
		columns: make(map[Column]map[string]*roaring.Bitmap, len(indexedColumns)),
		order:   make(map[Column][]string, len(indexedColumns)),
	}
	for _, col := range indexedColumns {
		idx.columns[col] = make(map[string]*roaring.Bitmap)
	}
	return idx
}

// IndexEvents adds events to the index. rowOffset is the position of
// events[0] in the whole log.
func (idx *AttributeIndex) IndexEvents(events []model.Event, rowOffset uint32) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i := range events {
		row := rowOffset + uint32(i)
		ev := &events[i]
		idx.add(ColumnCase, ev.CaseID, row)
		idx.add(ColumnActivity, ev.Activity, row)
		idx.add(ColumnTransition, string(ev.Transition), row)
	}

	if end := rowOffset + uint32(len(events)); end > idx.rowCount {
		idx.rowCount = end
	}
}

func (idx *AttributeIndex) add(col Column, value string, row uint32) {
	valMap := idx.columns[col]
	bm, ok := valMap[value]
	if !ok {
		bm = roaring.New()
		valMap[value] = bm
		idx.order[col] = append(idx.order[col], value)
	}
	bm.Add(row)
}

// Lookup returns the bitmap of row positions where column == value.
func (idx *AttributeIndex) Lookup(column Column, value string) *roaring.Bitmap {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lookupUnsafe(column, value).Clone()
}

// Cardinality returns the number of distinct values for a column.
func (idx *AttributeIndex) Cardinality(column Column) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.columns[column])
}

// DistinctValues returns the distinct values of a column in first-appearance order.
func (idx *AttributeIndex) DistinctValues(column Column) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	values := idx.order[column]
	out := make([]string, len(values))
	copy(out, values)
	return out
}

// Counts returns the number of rows per distinct value of a column.
func (idx *AttributeIndex) Counts(column Column) map[string]uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	counts := make(map[string]uint64, len(idx.columns[column]))
	for value, bm := range idx.columns[column] {
		counts[value] = bm.GetCardinality()
	}
	return counts
}

// RowCount returns the total number of indexed rows.
func (idx *AttributeIndex) RowCount() uint32 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.rowCount
}

// lookupUnsafe performs a lookup without locking (caller must hold lock).
func (idx *AttributeIndex) lookupUnsafe(column Column, value string) *roaring.Bitmap {
	if valMap, ok := idx.columns[column]; ok {
		if bm, ok := valMap[value]; ok {
			return bm
		}
	}
	return roaring.New()
}
