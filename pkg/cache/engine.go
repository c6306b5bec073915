package cache

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/logflow/caseline/internal/model"
	"github.com/logflow/caseline/pkg/timeline"
)

// Engine consults a ResultCache before delegating to a Computer.
// Cache failures are logged and bypassed; errors are never cached.
type Engine struct {
	next      timeline.Computer
	cache     ResultCache
	namespace string
	logger    *log.Logger
}

// NewEngine wraps next. A nil logger discards warnings.
func NewEngine(next timeline.Computer, c ResultCache, namespace string, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Engine{next: next, cache: c, namespace: namespace, logger: logger}
}

// ComputeCaseIntervals returns the cached result or computes and stores it.
func (e *Engine) ComputeCaseIntervals(ctx context.Context, caseID string) (*model.CaseResult, error) {
	result, err := e.cache.Get(ctx, e.namespace, caseID)
	switch {
	case err == nil:
		return result, nil
	case !errors.Is(err, ErrMiss):
		e.logger.Printf("WARN: cache get %s: %v", caseID, err)
	}

	result, err = e.next.ComputeCaseIntervals(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if err := e.cache.Put(ctx, e.namespace, result); err != nil {
		e.logger.Printf("WARN: cache put %s: %v", caseID, err)
	}
	return result, nil
}

// Invalidate drops all cached results of this engine's log.
func (e *Engine) Invalidate(ctx context.Context) error {
	return e.cache.Invalidate(ctx, e.namespace)
}
