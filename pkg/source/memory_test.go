package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	cerrors "github.com/logflow/caseline/pkg/errors"
	"github.com/logflow/caseline/pkg/parser"
)

const sampleCSV = `case:concept:name,concept:name,lifecycle:transition,time:timestamp,org:resource
Application_2,A_Create Application,complete,2016-01-01 09:51:15.304000+00:00,User_1
Application_1,A_Create Application,complete,2016-01-01 10:16:11.500000+00:00,User_1
Application_2,W_Handle leads,schedule,2016-01-01 09:52:36.392000+00:00,User_1
Application_2,W_Handle leads,start,2016-01-01 09:52:36.403000+00:00,User_1
Application_1,W_Complete application,start,2016-01-01 10:20:00.000000+00:00,User_2
Application_2,W_Handle leads,complete,2016-01-01 09:58:03.001000+00:00,User_1
`

func writeLog(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func loadSample(t *testing.T) *MemorySource {
	t.Helper()
	src, err := LoadMemory(context.Background(), parser.NewCSVParser(parser.DefaultConfig()), strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("LoadMemory() error: %v", err)
	}
	return src
}

func TestMemorySource_FetchCaseEvents(t *testing.T) {
	src := loadSample(t)
	ctx := context.Background()

	events, err := src.FetchCaseEvents(ctx, "Application_2")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}

	var rows []int
	for _, ev := range events {
		if ev.CaseID != "Application_2" {
			t.Errorf("event from case %q leaked into result", ev.CaseID)
		}
		rows = append(rows, ev.Row)
	}
	if !reflect.DeepEqual(rows, []int{0, 2, 3, 5}) {
		t.Errorf("rows = %v, want file order [0 2 3 5]", rows)
	}

	missing, err := src.FetchCaseEvents(ctx, "Application_9")
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 0 {
		t.Errorf("expected no events for unknown case, got %d", len(missing))
	}
}

func TestMemorySource_CaseIDsAndSummary(t *testing.T) {
	src := loadSample(t)
	ctx := context.Background()

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
	if sum.Events != 6 || sum.Cases != 2 || sum.Activities != 3 {
		t.Errorf("Summary() = %+v", sum)
	}
	want := map[string]int{"complete": 3, "schedule": 1, "start": 2}
	if !reflect.DeepEqual(sum.Transitions, want) {
		t.Errorf("Transitions = %v, want %v", sum.Transitions, want)
	}
}

func TestMemorySource_Canceled(t *testing.T) {
	src := loadSample(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := src.FetchCaseEvents(ctx, "Application_1"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestOpen_Local(t *testing.T) {
	path := writeLog(t, "log.csv", sampleCSV)

	src, err := Open(context.Background(), DefaultConfig(), path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer src.Close()

	if _, ok := src.(*MemorySource); !ok {
		t.Errorf("expected *MemorySource, got %T", src)
	}
	ids, _ := src.CaseIDs(context.Background())
	if len(ids) != 2 {
		t.Errorf("expected 2 cases, got %v", ids)
	}
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, DefaultConfig(), filepath.Join(t.TempDir(), "missing.csv"))
	if !cerrors.IsCode(err, cerrors.CodeFileNotFound) {
		t.Errorf("expected %s, got %v", cerrors.CodeFileNotFound, err)
	}

	_, err = Open(ctx, DefaultConfig(), writeLog(t, "log.txt", sampleCSV))
	if !cerrors.IsCode(err, cerrors.CodeInvalidFormat) {
		t.Errorf("expected %s, got %v", cerrors.CodeInvalidFormat, err)
	}
}

func TestVersion_ChangesWithContent(t *testing.T) {
	ctx := context.Background()
	path := writeLog(t, "log.csv", sampleCSV)

	v1, err := Version(ctx, DefaultConfig(), path)
	if err != nil {
		t.Fatalf("Version() error: %v", err)
	}
	again, _ := Version(ctx, DefaultConfig(), path)
	if v1 != again {
		t.Errorf("unchanged log: %q != %q", v1, again)
	}

	edited := sampleCSV + "Application_1,W_Complete application,complete,2016-01-01 11:10:00.000000+00:00,User_2\n"
	if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}
	v2, err := Version(ctx, DefaultConfig(), path)
	if err != nil {
		t.Fatal(err)
	}
	if v1 == v2 {
		t.Errorf("edited log kept version %q", v1)
	}

	_, err = Version(ctx, DefaultConfig(), filepath.Join(t.TempDir(), "missing.csv"))
	if !cerrors.IsCode(err, cerrors.CodeFileNotFound) {
		t.Errorf("expected %s, got %v", cerrors.CodeFileNotFound, err)
	}
}

func TestParseEngine(t *testing.T) {
	tests := []struct {
		in      string
		want    Engine
		wantErr bool
	}{
		{"", EngineMemory, false},
		{"memory", EngineMemory, false},
		{"DuckDB", EngineDuckDB, false},
		{"sqlite", "", true},
	}
	for _, tt := range tests {
		got, err := ParseEngine(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseEngine(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseEngine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
