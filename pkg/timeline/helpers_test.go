package timeline

import (
	"time"

	"github.com/logflow/caseline/internal/model"
)

var t0 = time.Date(2016, 1, 1, 9, 0, 0, 0, time.UTC)

// at returns t0 plus the given number of minutes.
func at(minutes int) time.Time {
	return t0.Add(time.Duration(minutes) * time.Minute)
}

// stream builds events for one activity from (transition, minute) pairs.
// Rows are numbered by position.
func stream(activity string, steps ...step) []model.Event {
	events := make([]model.Event, len(steps))
	for i, s := range steps {
		events[i] = model.Event{
			CaseID:     "case-1",
			Activity:   activity,
			Transition: s.tr,
			Timestamp:  at(s.min),
			Row:        i,
		}
	}
	return events
}

type step struct {
	tr  model.Transition
	min int
}

func sched(m int) step    { return step{model.TransitionSchedule, m} }
func start(m int) step    { return step{model.TransitionStart, m} }
func suspend(m int) step  { return step{model.TransitionSuspend, m} }
func resume(m int) step   { return step{model.TransitionResume, m} }
func done(m int) step     { return step{model.TransitionComplete, m} }
func withdraw(m int) step { return step{model.TransitionWithdraw, m} }
func abort(m int) step    { return step{model.TransitionAbort, m} }
