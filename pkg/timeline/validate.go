package timeline

import (
	"github.com/logflow/caseline/internal/model"
	cerrors "github.com/logflow/caseline/pkg/errors"
)

// Validate checks the preconditions the pipeline relies on: every event
// carries an activity, a transition and a timestamp, and within each activity
// timestamps never decrease. Equal timestamps are allowed.
func Validate(caseID string, events []model.Event) error {
	last := make(map[string]model.Event)

	for _, ev := range events {
		switch {
		case ev.Activity == "":
			return cerrors.MalformedEvent(caseID, ev.Row, "activity")
		case ev.Transition == "":
			return cerrors.MalformedEvent(caseID, ev.Row, "lifecycle_transition")
		case ev.Timestamp.IsZero():
			return cerrors.MalformedEvent(caseID, ev.Row, "timestamp")
		}

		if prev, ok := last[ev.Activity]; ok && ev.Timestamp.Before(prev.Timestamp) {
			return cerrors.UnsortedInput(caseID, ev.Activity, ev.Row).
				WithContext("previous_row", prev.Row)
		}
		last[ev.Activity] = ev
	}

	return nil
}
