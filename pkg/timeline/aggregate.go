package timeline

import (
	"time"

	"github.com/logflow/caseline/internal/model"
)

// Aggregate builds the interval record for one process instance.
// The segment must be non-empty.
func Aggregate(segment []model.Event, waiting []model.WaitingWindow) model.IntervalRecord {
	first, last := bounds(segment)
	return model.IntervalRecord{
		Start:    first,
		Duration: last.Sub(first),
		Waiting:  waiting,
	}
}

// bounds returns the minimum and maximum timestamps of a non-empty segment.
func bounds(events []model.Event) (first, last time.Time) {
	first, last = events[0].Timestamp, events[0].Timestamp
	for _, ev := range events[1:] {
		if ev.Timestamp.Before(first) {
			first = ev.Timestamp
		}
		if ev.Timestamp.After(last) {
			last = ev.Timestamp
		}
	}
	return first, last
}
