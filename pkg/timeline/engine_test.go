package timeline

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/logflow/caseline/internal/model"
	cerrors "github.com/logflow/caseline/pkg/errors"
)

type fakeSource struct {
	cases map[string][]model.Event
	err   error
	calls int
}

func (f *fakeSource) FetchCaseEvents(ctx context.Context, caseID string) ([]model.Event, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.cases[caseID], nil
}

func TestCompute_Scenarios(t *testing.T) {
	tests := []struct {
		name   string
		events []model.Event
		want   []model.IntervalRecord
	}{
		{
			name:   "A: suspend and resume",
			events: stream("A", start(0), suspend(1), resume(2), done(3)),
			want: []model.IntervalRecord{{
				Start:    at(0),
				Duration: 3 * time.Minute,
				Waiting:  []model.WaitingWindow{{Start: at(1), Duration: time.Minute}},
			}},
		},
		{
			name:   "B: schedule row is merged away",
			events: stream("A", sched(0), start(1), done(2)),
			want: []model.IntervalRecord{{
				Start:    at(1),
				Duration: time.Minute,
				Waiting:  []model.WaitingWindow{},
			}},
		},
		{
			name:   "C: open suspend resolves at segment end",
			events: stream("A", start(0), suspend(1), done(2)),
			want: []model.IntervalRecord{{
				Start:    at(0),
				Duration: 2 * time.Minute,
				Waiting:  []model.WaitingWindow{{Start: at(1), Duration: time.Minute}},
			}},
		},
		{
			name:   "D: single event yields no instances",
			events: stream("A", start(0)),
			want:   nil,
		},
		{
			name:   "E: back to back instances in order",
			events: stream("A", start(0), done(1), start(2), done(3)),
			want: []model.IntervalRecord{
				{Start: at(0), Duration: time.Minute, Waiting: []model.WaitingWindow{}},
				{Start: at(2), Duration: time.Minute, Waiting: []model.WaitingWindow{}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Compute("case-1", tt.events)
			if err != nil {
				t.Fatalf("Compute() error: %v", err)
			}
			if !result.Start.Equal(at(0)) {
				t.Errorf("case start = %v, want %v", result.Start, at(0))
			}

			got := result.Activities["A"]
			if len(got) != len(tt.want) {
				t.Fatalf("got %d records, want %d", len(got), len(tt.want))
			}
			if len(tt.want) > 0 && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("records = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCompute_ActivityWithoutInstancesIsOmitted(t *testing.T) {
	events := append(stream("A", start(0), done(4)), stream("B", start(1))...)

	result, err := Compute("case-1", events)
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	if _, ok := result.Activities["B"]; ok {
		t.Error("activity B should not appear in the result")
	}
	if len(result.Activities["B"]) != 0 {
		t.Error("lookup of B should yield an empty slice")
	}
	if got := result.Names(); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("Names() = %v", got)
	}
}

func TestCompute_CaseStartSpansDroppedEvents(t *testing.T) {
	// The earliest event belongs to an activity that yields no instance.
	early := stream("Early", start(-30))
	events := append(early, stream("A", sched(0), start(5), done(9))...)

	result, err := Compute("case-1", events)
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	if !result.Start.Equal(at(-30)) {
		t.Errorf("case start = %v, want %v", result.Start, at(-30))
	}
}

func TestCompute_Errors(t *testing.T) {
	if _, err := Compute("missing", nil); !cerrors.IsCode(err, cerrors.CodeCaseNotFound) {
		t.Errorf("expected CaseNotFound, got %v", err)
	}

	unsorted := stream("A", start(5), done(1))
	if _, err := Compute("case-1", unsorted); !cerrors.IsCode(err, cerrors.CodeUnsortedInput) {
		t.Errorf("expected UnsortedInput, got %v", err)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	events := randomCase(rand.New(rand.NewSource(42)), 200)

	first, err := Compute("case-1", events)
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	second, err := Compute("case-1", events)
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated computation produced different results")
	}
}

func TestCompute_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 50; i++ {
		events := randomCase(rng, 60)
		result, err := Compute("case-1", events)
		if err != nil {
			t.Fatalf("Compute() error: %v", err)
		}

		for activity, records := range result.Activities {
			for _, rec := range records {
				if rec.Duration < 0 {
					t.Fatalf("%s: negative duration %v", activity, rec.Duration)
				}
				if rec.Start.Before(result.Start) {
					t.Fatalf("%s: instance starts before case start", activity)
				}
				for _, w := range rec.Waiting {
					if w.Start.Before(rec.Start) || w.Start.After(rec.End()) {
						t.Fatalf("%s: window %v outside [%v, %v]", activity, w.Start, rec.Start, rec.End())
					}
					if w.Duration < 0 {
						t.Fatalf("%s: negative waiting duration", activity)
					}
				}
			}
		}
	}
}

// randomCase generates a chronologically ordered case over three activities.
func randomCase(rng *rand.Rand, n int) []model.Event {
	activities := []string{"A_Create", "W_Validate", "O_Sent"}
	transitions := []model.Transition{
		model.TransitionSchedule, model.TransitionStart, model.TransitionSuspend,
		model.TransitionResume, model.TransitionComplete, model.TransitionWithdraw,
		model.TransitionAbort,
	}

	events := make([]model.Event, n)
	ts := t0
	for i := range events {
		ts = ts.Add(time.Duration(rng.Intn(120)) * time.Second)
		events[i] = model.Event{
			CaseID:     "case-1",
			Activity:   activities[rng.Intn(len(activities))],
			Transition: transitions[rng.Intn(len(transitions))],
			Timestamp:  ts,
			Row:        i,
		}
	}
	return events
}

func TestEngine_ComputeCaseIntervals(t *testing.T) {
	src := &fakeSource{cases: map[string][]model.Event{
		"case-1": stream("A", start(0), suspend(1), resume(2), done(3)),
	}}
	engine := NewEngine(src)

	result, err := engine.ComputeCaseIntervals(context.Background(), "case-1")
	if err != nil {
		t.Fatalf("ComputeCaseIntervals() error: %v", err)
	}
	if result.CaseID != "case-1" || len(result.Activities["A"]) != 1 {
		t.Errorf("unexpected result: %+v", result)
	}

	_, err = engine.ComputeCaseIntervals(context.Background(), "unknown")
	if !cerrors.IsCode(err, cerrors.CodeCaseNotFound) {
		t.Errorf("expected CaseNotFound, got %v", err)
	}
}

func TestEngine_SourceError(t *testing.T) {
	boom := errors.New("source offline")
	engine := NewEngine(&fakeSource{err: boom})

	_, err := engine.ComputeCaseIntervals(context.Background(), "case-1")
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped source error, got %v", err)
	}
}

func TestEngine_Canceled(t *testing.T) {
	src := &fakeSource{cases: map[string][]model.Event{
		"case-1": stream("A", start(0), done(3)),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(src).ComputeCaseIntervals(ctx, "case-1")
	if !cerrors.IsCode(err, cerrors.CodeContextCanceled) {
		t.Errorf("expected ContextCanceled, got %v", err)
	}
}

func TestEngine_RecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	src := &fakeSource{cases: map[string][]model.Event{
		"case-1": append(
			stream("A", start(0), suspend(1), resume(2), done(3)),
			stream("B", sched(4), start(5), done(6))...),
	}}
	engine := NewEngine(src, WithTracer(provider.Tracer("test")))

	if _, err := engine.ComputeCaseIntervals(context.Background(), "case-1"); err != nil {
		t.Fatal(err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "caseline.compute" {
		t.Errorf("span name = %q", spans[0].Name())
	}

	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs["case.id"].AsString() != "case-1" {
		t.Errorf("case.id = %v", attrs["case.id"])
	}
	if attrs["case.activities"].AsInt64() != 2 || attrs["case.instances"].AsInt64() != 2 {
		t.Errorf("unexpected attributes: %v", spans[0].Attributes())
	}
}

func TestEngine_CanceledSpanStatus(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	src := &fakeSource{cases: map[string][]model.Event{
		"case-1": stream("A", start(0), done(3)),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(src, WithTracer(provider.Tracer("test"))).ComputeCaseIntervals(ctx, "case-1")
	if err == nil {
		t.Fatal("expected cancellation error")
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("span status = %v, want Error", spans[0].Status().Code)
	}
	if spans[0].Status().Description != string(cerrors.CodeContextCanceled) {
		t.Errorf("span description = %q", spans[0].Status().Description)
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected the error to be recorded on the span")
	}
}
