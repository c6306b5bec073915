package timeline

import "github.com/logflow/caseline/internal/model"

// minSegmentSize is the smallest segment that can carry a duration.
const minSegmentSize = 2

// Segment splits one activity's ordered events into process instances.
//
// A segment is closed, inclusive, by a terminal transition (complete,
// withdraw, ate_abort). Events left over after the last terminal transition
// form a trailing open segment. Segments with fewer than two events are dropped.
func Segment(events []model.Event) [][]model.Event {
	var segments [][]model.Event
	start := 0

	for i, ev := range events {
		if ev.Transition.IsTerminal() {
			segments = appendSegment(segments, events[start:i+1])
			start = i + 1
		}
	}
	if start < len(events) {
		segments = appendSegment(segments, events[start:])
	}

	return segments
}

func appendSegment(segments [][]model.Event, seg []model.Event) [][]model.Event {
	if len(seg) < minSegmentSize {
		return segments
	}
	// Capped so an append to one segment cannot clobber the next.
	return append(segments, seg[:len(seg):len(seg)])
}
