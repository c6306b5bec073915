package timeline

import (
	"time"

	"github.com/logflow/caseline/internal/model"
)

// ExtractWaiting pairs suspend events with resume events.
//
// Each suspend is closed by the resume at the nearest later position. When no
// later resume exists the window runs to the latest timestamp of the segment.
// A single resume may close several suspends.
func ExtractWaiting(segment []model.Event) []model.WaitingWindow {
	windows := make([]model.WaitingWindow, 0)
	if len(segment) == 0 {
		return windows
	}

	_, processEnd := bounds(segment)

	for i, ev := range segment {
		if ev.Transition != model.TransitionSuspend {
			continue
		}

		end := processEnd
		if j := nextResume(segment, i); j >= 0 {
			end = segment[j].Timestamp
		}

		windows = append(windows, model.WaitingWindow{
			Start:    ev.Timestamp,
			Duration: nonNegative(end.Sub(ev.Timestamp)),
		})
	}

	return windows
}

// nextResume returns the position of the first resume after pos, or -1.
func nextResume(segment []model.Event, pos int) int {
	for j := pos + 1; j < len(segment); j++ {
		if segment[j].Transition == model.TransitionResume {
			return j
		}
	}
	return -1
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
