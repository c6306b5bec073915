// Package model defines core data structures for caseline.
package model

import (
	"sort"
	"strings"
	"time"
)

// Transition is the lifecycle stage tag of an event.
type Transition string

// Standard XES lifecycle transitions seen in process-mining logs.
const (
	TransitionSchedule Transition = "schedule"
	TransitionStart    Transition = "start"
	TransitionSuspend  Transition = "suspend"
	TransitionResume   Transition = "resume"
	TransitionComplete Transition = "complete"
	TransitionWithdraw Transition = "withdraw"
	TransitionAbort    Transition = "ate_abort"
)

// ParseTransition normalizes a raw lifecycle value.
// Unknown values are kept verbatim (lower-cased, trimmed).
func ParseTransition(s string) Transition {
	return Transition(strings.ToLower(strings.TrimSpace(s)))
}

// IsTerminal reports whether the transition ends a process instance.
func (t Transition) IsTerminal() bool {
	switch t {
	case TransitionComplete, TransitionWithdraw, TransitionAbort:
		return true
	default:
		return false
	}
}

// Event represents a single lifecycle-tagged process mining event.
// Events are immutable once read.
type Event struct {
	// CaseID identifies the process instance (trace).
	CaseID string

	// Activity is the event name/activity label.
	Activity string

	// Transition is the lifecycle transition (schedule, start, complete, ...).
	Transition Transition

	// Timestamp is the event instant converted to UTC. Offsets in the source
	// are applied before conversion; values without an offset are read as UTC.
	Timestamp time.Time

	// Resource is the actor/resource performing the activity.
	Resource string

	// Row is the 0-based position of the event in its source.
	Row int
}

// WaitingWindow is one suspend-to-resume gap inside a process instance.
type WaitingWindow struct {
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
}

// End returns the instant the window closes.
func (w WaitingWindow) End() time.Time {
	return w.Start.Add(w.Duration)
}

// IntervalRecord describes one execution of an activity.
type IntervalRecord struct {
	Start    time.Time       `json:"start_time"`
	Duration time.Duration   `json:"duration"`
	Waiting  []WaitingWindow `json:"waiting_windows"`
}

// End returns the instant the instance ends.
func (r IntervalRecord) End() time.Time {
	return r.Start.Add(r.Duration)
}

// WaitingTotal sums the waiting window durations.
// Windows may overlap, so the sum can exceed Duration.
func (r IntervalRecord) WaitingTotal() time.Duration {
	var total time.Duration
	for _, w := range r.Waiting {
		total += w.Duration
	}
	return total
}

// CaseResult is the timeline computed for one case.
type CaseResult struct {
	CaseID     string                      `json:"case_id"`
	Start      time.Time                   `json:"case_start_time"`
	Activities map[string][]IntervalRecord `json:"activities"`
}

// Names returns the activity names in the result in lexical order.
func (r *CaseResult) Names() []string {
	names := make([]string, 0, len(r.Activities))
	for name := range r.Activities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InstanceCount returns the total number of interval records.
func (r *CaseResult) InstanceCount() int {
	n := 0
	for _, records := range r.Activities {
		n += len(records)
	}
	return n
}
