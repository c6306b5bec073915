package timeline

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/logflow/caseline/internal/model"
	cerrors "github.com/logflow/caseline/pkg/errors"
)

const tracerName = "github.com/logflow/caseline/pkg/timeline"

// EventSource supplies the events of one case, ordered by timestamp.
type EventSource interface {
	FetchCaseEvents(ctx context.Context, caseID string) ([]model.Event, error)
}

// Computer computes the timeline of a single case.
type Computer interface {
	ComputeCaseIntervals(ctx context.Context, caseID string) (*model.CaseResult, error)
}

// Engine fetches case events from a source and runs the interval pipeline.
// It holds no per-case state and is safe for concurrent use.
type Engine struct {
	source EventSource
	tracer trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithTracer overrides the tracer used for per-case spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// NewEngine creates an engine reading from src.
func NewEngine(src EventSource, opts ...Option) *Engine {
	e := &Engine{
		source: src,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ComputeCaseIntervals returns the activity timeline of caseID.
// A case without events yields a CodeCaseNotFound error.
func (e *Engine) ComputeCaseIntervals(ctx context.Context, caseID string) (*model.CaseResult, error) {
	ctx, span := e.tracer.Start(ctx, "caseline.compute",
		trace.WithAttributes(attribute.String("case.id", caseID)))
	defer span.End()

	events, err := e.source.FetchCaseEvents(ctx, caseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, fmt.Errorf("fetch case %q: %w", caseID, err)
	}
	if err := ctx.Err(); err != nil {
		ctxErr := cerrors.FromContext(err, "compute").WithContext("case", caseID)
		span.RecordError(ctxErr)
		span.SetStatus(codes.Error, string(ctxErr.Code))
		return nil, ctxErr
	}

	result, err := Compute(caseID, events)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(cerrors.GetCode(err)))
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("case.events", len(events)),
		attribute.Int("case.activities", len(result.Activities)),
		attribute.Int("case.instances", result.InstanceCount()),
	)
	return result, nil
}

// Compute runs the pipeline over the already-fetched events of one case.
func Compute(caseID string, events []model.Event) (*model.CaseResult, error) {
	if len(events) == 0 {
		return nil, cerrors.CaseNotFound(caseID)
	}
	if err := Validate(caseID, events); err != nil {
		return nil, err
	}

	caseStart, _ := bounds(events)
	result := &model.CaseResult{
		CaseID:     caseID,
		Start:      caseStart,
		Activities: make(map[string][]model.IntervalRecord),
	}

	groups := Group(events)
	for _, activity := range ActivityOrder(events) {
		records := Intervals(groups[activity])
		if len(records) > 0 {
			result.Activities[activity] = records
		}
	}

	return result, nil
}

// Intervals computes the interval records of one activity's event stream.
func Intervals(events []model.Event) []model.IntervalRecord {
	segments := Segment(events)
	records := make([]model.IntervalRecord, 0, len(segments))
	for _, seg := range segments {
		merged := MergeScheduleStart(seg)
		records = append(records, Aggregate(merged, ExtractWaiting(merged)))
	}
	return records
}
