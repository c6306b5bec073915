package source

import (
	"strings"
	"context"
	"reflect"
	"testing"

	cerrors "github.com/logflow/caseline/pkg/errors"
	"github.com/logflow/caseline/pkg/parser"
)

func TestDuckDBSource_MatchesMemory(t *testing.T) {
	ctx := context.Background()
	path := writeLog(t, "log.csv", sampleCSV)

	cfg := DefaultConfig()
	cfg.Engine = EngineDuckDB
	src, err := Open(ctx, cfg, path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer src.Close()

	mem := loadSample(t)

	for _, id := range []string{"Application_1", "Application_2"} {
		got, err := src.FetchCaseEvents(ctx, id)
		if err != nil {
			t.Fatalf("FetchCaseEvents(%s) error: %v", id, err)
		}
		want, _ := mem.FetchCaseEvents(ctx, id)
		if len(got) != len(want) {
			t.Fatalf("%s: got %d events, want %d", id, len(got), len(want))
		}
		for i := range want {
			if got[i].Row != want[i].Row || got[i].Activity != want[i].Activity ||
				got[i].Transition != want[i].Transition || !got[i].Timestamp.Equal(want[i].Timestamp) {
				t.Errorf("%s[%d] = %+v, want %+v", id, i, got[i], want[i])
			}
		}
	}

	ids, err := src.CaseIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []string{"Application_2", "Application_1"}) {
		t.Errorf("CaseIDs() = %v", ids)
	}

	sum, err := src.Summary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	memSum, _ := mem.Summary(ctx)
	if !reflect.DeepEqual(sum, memSum) {
		t.Errorf("Summary() = %+v, want %+v", sum, memSum)
	}
}

func TestDuckDBSource_MissingColumn(t *testing.T) {
	path := writeLog(t, "log.csv", "case,activity\nc1,A\n")

	_, err := NewDuckDBSource(context.Background(), path, parser.FormatCSV, parser.DefaultConfig())
	if !cerrors.IsCode(err, cerrors.CodeMissingColumn) {
		t.Errorf("expected %s, got %v", cerrors.CodeMissingColumn, err)
	}
}

func TestDuckDBSource_RejectsXES(t *testing.T) {
	_, err := NewDuckDBSource(context.Background(), "log.xes", parser.FormatXES, parser.DefaultConfig())
	if err == nil {
		t.Fatal("expected error for XES input")
	}
}

func TestReaderExpr(t *testing.T) {
	cfg := parser.DefaultConfig()
	cfg.Delimiter = ';'

	expr, err := readerExpr("/logs/o'brien.csv", parser.FormatCSV, cfg)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"read_csv('/logs/o''brien.csv'", "auto_detect=true", "all_varchar=true", "delim=';'"} {
		if !strings.Contains(expr, want) {
			t.Errorf("readerExpr() = %s, missing %s", expr, want)
		}
	}

	expr, err = readerExpr("log.parquet", parser.FormatParquet, cfg)
	if err != nil || expr != "read_parquet('log.parquet')" {
		t.Errorf("readerExpr(parquet) = %q, %v", expr, err)
	}
}
