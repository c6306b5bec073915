// Package batch computes the timelines of many cases in parallel.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/logflow/caseline/internal/model"
	cerrors "github.com/logflow/caseline/pkg/errors"
	"github.com/logflow/caseline/pkg/timeline"
)

const tracerName = "github.com/logflow/caseline/pkg/batch"

// Config controls a batch run.
type Config struct {
	// Workers is the number of cases computed concurrently.
	Workers int

	// CaseTimeout bounds each case (0 = no limit).
	CaseTimeout time.Duration

	// FailFast stops the run at the first failed case.
	FailFast bool
}

// DefaultConfig returns one worker per CPU and a 30s case timeout.
func DefaultConfig() Config {
	return Config{
		Workers:     runtime.NumCPU(),
		CaseTimeout: 30 * time.Second,
	}
}

// Failure records a case that could not be computed.
type Failure struct {
	CaseID string
	Err    error
}

func (f Failure) Error() string {
	return fmt.Sprintf("case %s: %v", f.CaseID, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Report is the outcome of a run.
type Report struct {
	RunID    string
	Results  []*model.CaseResult // successful cases, in input order
	Failures []Failure           // in completion order
	Skipped  int                 // cases not attempted after a fail-fast stop
	Duration time.Duration
}

// Err combines all failures, or returns nil.
func (r *Report) Err() error {
	var m cerrors.MultiError
	for _, f := range r.Failures {
		m.Add(f)
	}
	return m.Combined()
}

// ProgressFunc is called after every finished case.
type ProgressFunc func(done, total int)

// Runner runs a Computer over a list of cases.
type Runner struct {
	computer timeline.Computer
	cfg      Config
	progress ProgressFunc
	tracer   trace.Tracer
}

// Option configures a Runner.
type Option func(*Runner)

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(r *Runner) {
		r.progress = fn
	}
}

// WithTracer overrides the tracer used for the run span.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) {
		r.tracer = t
	}
}

// NewRunner creates a runner.
func NewRunner(c timeline.Computer, cfg Config, opts ...Option) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	r := &Runner{
		computer: c,
		cfg:      cfg,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run computes every case. Per-case failures are collected in the report;
// the returned error is non-nil only when the run itself stopped early
// (fail-fast or cancellation).
func (r *Runner) Run(ctx context.Context, caseIDs []string) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, "caseline.batch", trace.WithAttributes(
		attribute.String("batch.run_id", report.RunID),
		attribute.Int("batch.cases", len(caseIDs)),
		attribute.Int("batch.workers", r.cfg.Workers),
	))
	defer span.End()

	results := make([]*model.CaseResult, len(caseIDs))
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	for i, caseID := range caseIDs {
		i, caseID := i, caseID
		g.Go(func() error {
			if gctx.Err() != nil {
				mu.Lock()
				report.Skipped++
				mu.Unlock()
				return nil
			}

			res, err := r.computeOne(gctx, caseID)

			mu.Lock()
			if err != nil {
				report.Failures = append(report.Failures, Failure{CaseID: caseID, Err: err})
			} else {
				results[i] = res
			}
			done++
			if r.progress != nil {
				r.progress(done, len(caseIDs))
			}
			mu.Unlock()

			if err != nil && r.cfg.FailFast {
				return Failure{CaseID: caseID, Err: err}
			}
			return nil
		})
	}

	runErr := g.Wait()
	if runErr == nil && ctx.Err() != nil {
		runErr = cerrors.FromContext(ctx.Err(), "batch")
	}

	for _, res := range results {
		if res != nil {
			report.Results = append(report.Results, res)
		}
	}
	report.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("batch.succeeded", len(report.Results)),
		attribute.Int("batch.failed", len(report.Failures)),
	)
	if runErr != nil {
		span.RecordError(runErr)
	}
	return report, runErr
}

func (r *Runner) computeOne(ctx context.Context, caseID string) (res *model.CaseResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = cerrors.New(cerrors.CodePanic, fmt.Sprintf("panic: %v", p)).WithContext("case", caseID)
		}
	}()

	caseCtx := ctx
	if r.cfg.CaseTimeout > 0 {
		var cancel context.CancelFunc
		caseCtx, cancel = context.WithTimeout(ctx, r.cfg.CaseTimeout)
		defer cancel()
	}

	res, err = r.computer.ComputeCaseIntervals(caseCtx, caseID)
	if err != nil && ctx.Err() == nil && caseCtx.Err() == context.DeadlineExceeded {
		err = cerrors.Wrap(err, cerrors.CodeTimeout, "case timed out").
			WithContext("case", caseID).
			WithContext("timeout", r.cfg.CaseTimeout.String())
	}
	return res, err
}
