package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/logflow/caseline/internal/model"
	cerrors "github.com/logflow/caseline/pkg/errors"
	"github.com/logflow/caseline/pkg/parser"
)

// DuckDBSource queries a CSV or Parquet log through an in-process DuckDB.
// The log is materialized once into an events table keyed by file position.
type DuckDBSource struct {
	db              *sql.DB
	timestampFormat string
}

// NewDuckDBSource loads path into DuckDB.
func NewDuckDBSource(ctx context.Context, path string, format parser.Format, cfg parser.Config) (*DuckDBSource, error) {
	reader, err := readerExpr(path, format, cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.CodeSourceInit, "failed to initialize DuckDB")
	}

	s := &DuckDBSource{db: db, timestampFormat: cfg.TimestampFormat}
	if err := s.load(ctx, reader, cfg); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func readerExpr(path string, format parser.Format, cfg parser.Config) (string, error) {
	quoted := strings.ReplaceAll(path, "'", "''")
	switch format {
	case parser.FormatCSV:
		delim := cfg.Delimiter
		if delim == 0 {
			delim = ','
		}
		return fmt.Sprintf("read_csv('%s', auto_detect=true, header=true, all_varchar=true, delim='%s')",
			quoted, strings.ReplaceAll(string(delim), "'", "''")), nil
	case parser.FormatParquet:
		return fmt.Sprintf("read_parquet('%s')", quoted), nil
	default:
		return "", fmt.Errorf("duckdb engine cannot read %s: %w", format, parser.ErrUnsupportedFormat)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *DuckDBSource) load(ctx context.Context, reader string, cfg parser.Config) error {
	available, err := s.columns(ctx, reader)
	if err != nil {
		return err
	}

	have := make(map[string]bool, len(available))
	for _, c := range available {
		have[c] = true
	}
	for _, c := range []string{cfg.CaseIDColumn, cfg.ActivityColumn, cfg.TransitionColumn, cfg.TimestampColumn} {
		if !have[c] {
			return cerrors.MissingColumn(c, available)
		}
	}

	text := func(col string) string {
		return fmt.Sprintf("COALESCE(CAST(%s AS VARCHAR), '')", quoteIdent(col))
	}
	resource := "''"
	if cfg.ResourceColumn != "" && have[cfg.ResourceColumn] {
		resource = text(cfg.ResourceColumn)
	}

	query := fmt.Sprintf(`CREATE TABLE events AS
SELECT row_number() OVER () - 1 AS rn,
       %s AS case_id,
       %s AS activity,
       %s AS transition,
       %s AS ts,
       %s AS resource
FROM %s`,
		text(cfg.CaseIDColumn), text(cfg.ActivityColumn), text(cfg.TransitionColumn),
		text(cfg.TimestampColumn), resource, reader)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return cerrors.Wrap(err, cerrors.CodeSourceInit, "failed to load log into DuckDB")
	}
	return nil
}

func (s *DuckDBSource) columns(ctx context.Context, reader string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", reader))
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.CodeSourceInit, "failed to read log header")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.CodeSourceInit, "failed to get columns")
	}
	return cols, nil
}

// FetchCaseEvents returns the events of caseID in file order.
func (s *DuckDBSource) FetchCaseEvents(ctx context.Context, caseID string) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT rn, activity, transition, ts, resource FROM events WHERE case_id = ? ORDER BY rn", caseID)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.CodeSourceQuery, "case query failed").WithContext("case", caseID)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var (
			rn                                 int64
			activity, transition, ts, resource string
		)
		if err := rows.Scan(&rn, &activity, &transition, &ts, &resource); err != nil {
			return nil, cerrors.Wrap(err, cerrors.CodeSourceQuery, "scan failed").WithContext("case", caseID)
		}

		// Unparseable timestamps stay zero and are rejected during validation.
		timestamp, _ := parser.ParseTimestamp(ts, s.timestampFormat)
		events = append(events, model.Event{
			CaseID:     caseID,
			Activity:   activity,
			Transition: model.ParseTransition(transition),
			Timestamp:  timestamp,
			Resource:   resource,
			Row:        int(rn),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, cerrors.Wrap(err, cerrors.CodeSourceQuery, "case query failed").WithContext("case", caseID)
	}
	return events, nil
}

// CaseIDs returns the case IDs in order of first appearance.
func (s *DuckDBSource) CaseIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT case_id FROM events GROUP BY case_id ORDER BY min(rn)")
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.CodeSourceQuery, "case list query failed")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Summary returns log-wide counts.
func (s *DuckDBSource) Summary(ctx context.Context) (*Summary, error) {
	sum := &Summary{Transitions: make(map[string]int)}

	row := s.db.QueryRowContext(ctx,
		"SELECT count(*), count(DISTINCT case_id), count(DISTINCT activity) FROM events")
	if err := row.Scan(&sum.Events, &sum.Cases, &sum.Activities); err != nil {
		return nil, cerrors.Wrap(err, cerrors.CodeSourceQuery, "summary query failed")
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT lower(trim(transition)), count(*) FROM events GROUP BY 1")
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.CodeSourceQuery, "transition query failed")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t string
			n int
		)
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		sum.Transitions[t] = n
	}
	return sum, rows.Err()
}

// Close closes the database.
func (s *DuckDBSource) Close() error {
	return s.db.Close()
}
