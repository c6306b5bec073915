package cache

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/logflow/caseline/internal/model"
)

type countingComputer struct {
	calls int
	err   error
}

func (c *countingComputer) ComputeCaseIntervals(_ context.Context, caseID string) (*model.CaseResult, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return result(caseID), nil
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string, string) (*model.CaseResult, error) {
	return nil, errors.New("connection refused")
}
func (brokenCache) Put(context.Context, string, *model.CaseResult) error {
	return errors.New("connection refused")
}
func (brokenCache) Invalidate(context.Context, string) error { return nil }
func (brokenCache) Close() error                             { return nil }

func TestEngine_CachesResults(t *testing.T) {
	ctx := context.Background()
	inner := &countingComputer{}
	e := NewEngine(inner, NewMemoryCache(10, time.Hour), "ns", nil)

	for i := 0; i < 3; i++ {
		if _, err := e.ComputeCaseIntervals(ctx, "c1"); err != nil {
			t.Fatal(err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 compute, got %d", inner.calls)
	}

	if err := e.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	e.ComputeCaseIntervals(ctx, "c1")
	if inner.calls != 2 {
		t.Errorf("expected recompute after invalidation, got %d calls", inner.calls)
	}
}

func TestEngine_DoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	inner := &countingComputer{err: errors.New("boom")}
	e := NewEngine(inner, NewMemoryCache(10, time.Hour), "ns", nil)

	e.ComputeCaseIntervals(ctx, "c1")
	e.ComputeCaseIntervals(ctx, "c1")
	if inner.calls != 2 {
		t.Errorf("expected errors to bypass the cache, got %d calls", inner.calls)
	}
}

func TestEngine_BypassesBrokenCache(t *testing.T) {
	var buf bytes.Buffer
	inner := &countingComputer{}
	e := NewEngine(inner, brokenCache{}, "ns", log.New(&buf, "", 0))

	res, err := e.ComputeCaseIntervals(context.Background(), "c1")
	if err != nil {
		t.Fatalf("cache failure should not fail the computation: %v", err)
	}
	if res.CaseID != "c1" {
		t.Errorf("unexpected result %+v", res)
	}
	if !strings.Contains(buf.String(), "WARN: cache get c1") || !strings.Contains(buf.String(), "WARN: cache put c1") {
		t.Errorf("expected warnings, got %q", buf.String())
	}
}

func TestEngine_EditedLogMissesOldEntries(t *testing.T) {
	ctx := context.Background()
	shared := NewMemoryCache(10, time.Hour)

	before := &countingComputer{}
	first := NewEngine(before, shared, Namespace("/data/log.csv", "512-1700000000"), nil)
	if _, err := first.ComputeCaseIntervals(ctx, "c1"); err != nil {
		t.Fatal(err)
	}

	after := &countingComputer{}
	second := NewEngine(after, shared, Namespace("/data/log.csv", "640-1700000300"), nil)
	if _, err := second.ComputeCaseIntervals(ctx, "c1"); err != nil {
		t.Fatal(err)
	}
	if after.calls != 1 {
		t.Errorf("edited log served a cached result from the previous version")
	}
}
