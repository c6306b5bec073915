// Package timeline extracts per-activity execution intervals and waiting
// windows from the lifecycle events of a single case.
//
// The pipeline is Group → Segment → MergeScheduleStart → ExtractWaiting →
// Aggregate. Every stage is a pure function over its input and never mutates it.
package timeline

import "github.com/logflow/caseline/internal/model"

// Group partitions a case's events by activity name, preserving the relative
// order of events within each activity.
func Group(events []model.Event) map[string][]model.Event {
	groups := make(map[string][]model.Event)
	for _, ev := range events {
		groups[ev.Activity] = append(groups[ev.Activity], ev)
	}
	return groups
}

// ActivityOrder returns the distinct activity names in order of first appearance.
func ActivityOrder(events []model.Event) []string {
	seen := make(map[string]struct{})
	order := make([]string, 0)
	for _, ev := range events {
		if _, ok := seen[ev.Activity]; ok {
			continue
		}
		seen[ev.Activity] = struct{}{}
		order = append(order, ev.Activity)
	}
	return order
}
