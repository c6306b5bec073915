package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/logflow/caseline/internal/model"
	cerrors "github.com/logflow/caseline/pkg/errors"
)

type fakeComputer struct {
	fail  map[string]error
	slow  map[string]bool
	panic map[string]bool
}

func (f *fakeComputer) ComputeCaseIntervals(ctx context.Context, caseID string) (*model.CaseResult, error) {
	if f.panic[caseID] {
		panic("bad case")
	}
	if f.slow[caseID] {
		<-ctx.Done()
		return nil, cerrors.Wrap(ctx.Err(), cerrors.CodeContextCanceled, "compute canceled")
	}
	if err := f.fail[caseID]; err != nil {
		return nil, err
	}
	return &model.CaseResult{CaseID: caseID}, nil
}

func caseIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("Application_%d", i)
	}
	return ids
}

func TestRunner_ResultsInInputOrder(t *testing.T) {
	ids := caseIDs(50)
	r := NewRunner(&fakeComputer{}, Config{Workers: 8})

	report, err := r.Run(context.Background(), ids)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(report.Results) != len(ids) {
		t.Fatalf("expected %d results, got %d", len(ids), len(report.Results))
	}
	for i, res := range report.Results {
		if res.CaseID != ids[i] {
			t.Fatalf("result %d = %s, want %s", i, res.CaseID, ids[i])
		}
	}
	if report.Err() != nil {
		t.Errorf("unexpected failures: %v", report.Err())
	}
	if _, err := uuid.Parse(report.RunID); err != nil {
		t.Errorf("RunID %q is not a UUID: %v", report.RunID, err)
	}
}

func TestRunner_IsolatesFailures(t *testing.T) {
	ids := caseIDs(5)
	comp := &fakeComputer{fail: map[string]error{
		ids[1]: cerrors.UnsortedInput(ids[1], "A", 3),
		ids[3]: cerrors.CaseNotFound(ids[3]),
	}}

	report, err := NewRunner(comp, Config{Workers: 2}).Run(context.Background(), ids)
	if err != nil {
		t.Fatalf("Run() should not fail without fail-fast: %v", err)
	}
	if len(report.Results) != 3 || len(report.Failures) != 2 {
		t.Fatalf("got %d results and %d failures", len(report.Results), len(report.Failures))
	}

	var notFound bool
	for _, f := range report.Failures {
		if f.CaseID == ids[3] && cerrors.IsCode(f, cerrors.CodeCaseNotFound) {
			notFound = true
		}
	}
	if !notFound {
		t.Errorf("missing CaseNotFound failure in %v", report.Failures)
	}

	var multi *cerrors.MultiError
	if !errors.As(report.Err(), &multi) || len(multi.Errors) != 2 {
		t.Errorf("expected MultiError with 2 errors, got %v", report.Err())
	}
}

func TestRunner_FailFast(t *testing.T) {
	ids := caseIDs(20)
	comp := &fakeComputer{fail: map[string]error{ids[0]: cerrors.CaseNotFound(ids[0])}}

	report, err := NewRunner(comp, Config{Workers: 1, FailFast: true}).Run(context.Background(), ids)
	if err == nil {
		t.Fatal("expected fail-fast error")
	}
	if !cerrors.IsCode(err, cerrors.CodeCaseNotFound) {
		t.Errorf("expected CaseNotFound cause, got %v", err)
	}
	if report.Skipped == 0 {
		t.Error("expected remaining cases to be skipped")
	}
	if len(report.Results)+len(report.Failures)+report.Skipped != len(ids) {
		t.Errorf("cases unaccounted for: %+v", report)
	}
}

func TestRunner_CaseTimeout(t *testing.T) {
	ids := caseIDs(3)
	comp := &fakeComputer{slow: map[string]bool{ids[1]: true}}

	report, err := NewRunner(comp, Config{Workers: 3, CaseTimeout: 10 * time.Millisecond}).
		Run(context.Background(), ids)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %v", report.Failures)
	}
	if !cerrors.IsCode(report.Failures[0], cerrors.CodeTimeout) {
		t.Errorf("expected %s, got %v", cerrors.CodeTimeout, report.Failures[0].Err)
	}
}

func TestRunner_RecoversPanics(t *testing.T) {
	ids := caseIDs(2)
	comp := &fakeComputer{panic: map[string]bool{ids[0]: true}}

	report, err := NewRunner(comp, Config{Workers: 2}).Run(context.Background(), ids)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Failures) != 1 || !cerrors.IsCode(report.Failures[0], cerrors.CodePanic) {
		t.Errorf("expected one panic failure, got %v", report.Failures)
	}
	if len(report.Results) != 1 {
		t.Errorf("expected the other case to succeed")
	}
}

func TestRunner_Progress(t *testing.T) {
	ids := caseIDs(10)

	var (
		mu    sync.Mutex
		calls []int
		total int
	)
	progress := func(done, n int) {
		mu.Lock()
		calls = append(calls, done)
		total = n
		mu.Unlock()
	}

	if _, err := NewRunner(&fakeComputer{}, Config{Workers: 4}, WithProgress(progress)).
		Run(context.Background(), ids); err != nil {
		t.Fatal(err)
	}
	if len(calls) != len(ids) || total != len(ids) {
		t.Fatalf("progress called %d times with total %d", len(calls), total)
	}
	for i, done := range calls {
		if done != i+1 {
			t.Errorf("progress call %d reported %d", i, done)
		}
	}
}

func TestRunner_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewRunner(&fakeComputer{}, Config{Workers: 2}).Run(ctx, caseIDs(4))
	if !cerrors.IsCode(err, cerrors.CodeContextCanceled) {
		t.Errorf("expected %s, got %v", cerrors.CodeContextCanceled, err)
	}
	if report.Skipped != 4 {
		t.Errorf("Skipped = %d, want 4", report.Skipped)
	}
}
