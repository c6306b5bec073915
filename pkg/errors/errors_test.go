package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCaselineError_Error(t *testing.T) {
	err := UnsortedInput("Application_1", "A_Create Application", 7)

	msg := err.Error()
	if !strings.HasPrefix(msg, "[E205] events are not in chronological order") {
		t.Errorf("unexpected prefix: %s", msg)
	}
	if !strings.Contains(msg, "(activity=A_Create Application, case=Application_1, row=7)") {
		t.Errorf("context not rendered in key order: %s", msg)
	}
}

func TestWrap_Unwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, CodeSourceQuery, "query failed")

	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to match errors.Is")
	}
	if Wrap(nil, CodeSourceQuery, "x") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestIsCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code Code
		want bool
	}{
		{"direct", CaseNotFound("c1"), CodeCaseNotFound, true},
		{"wrapped", fmt.Errorf("compute: %w", MalformedEvent("c1", 3, "timestamp")), CodeMalformedEvent, true},
		{"other code", CaseNotFound("c1"), CodeUnsortedInput, false},
		{"plain error", errors.New("boom"), CodeCaseNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCode(tt.err, tt.code); got != tt.want {
				t.Errorf("IsCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(errors.New("plain")); got != CodeUnknown {
		t.Errorf("expected %s, got %s", CodeUnknown, got)
	}
	if got := GetCode(CaseNotFound("x")); got != CodeCaseNotFound {
		t.Errorf("expected %s, got %s", CodeCaseNotFound, got)
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(nil, "x") != nil {
		t.Error("FromContext(nil) should return nil")
	}

	err := FromContext(context.DeadlineExceeded, "compute")
	if err.Code != CodeTimeout {
		t.Errorf("deadline: got %s, want %s", err.Code, CodeTimeout)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("cause should be preserved")
	}

	wrapped := fmt.Errorf("fetch: %w", context.Canceled)
	if got := FromContext(wrapped, "batch").Code; got != CodeContextCanceled {
		t.Errorf("canceled: got %s, want %s", got, CodeContextCanceled)
	}
}

func TestMultiError(t *testing.T) {
	var m MultiError
	if m.Combined() != nil {
		t.Error("empty MultiError should combine to nil")
	}

	first := CaseNotFound("a")
	m.Add(first)
	m.Add(nil)
	if m.Combined() != first {
		t.Error("single error should be returned as-is")
	}

	m.Add(CaseNotFound("b"))
	if !m.HasErrors() || len(m.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(m.Errors))
	}
	if !strings.Contains(m.Error(), "2 errors occurred") {
		t.Errorf("unexpected message: %s", m.Error())
	}
}
