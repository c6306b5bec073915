package timeline

import "github.com/logflow/caseline/internal/model"

// MergeScheduleStart treats a schedule/start pair as a single timestamp.
//
// If the segment holds at least one schedule and at least one start event,
// its first event is dropped. The rule is positional: index 0 is removed
// regardless of which transition it carries.
func MergeScheduleStart(segment []model.Event) []model.Event {
	var hasSchedule, hasStart bool
	for _, ev := range segment {
		switch ev.Transition {
		case model.TransitionSchedule:
			hasSchedule = true
		case model.TransitionStart:
			hasStart = true
		}
	}

	if hasSchedule && hasStart {
		return segment[1:]
	}
	return segment
}
