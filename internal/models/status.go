package models

import "time"

var adminTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
	StatusDelivered:  {StatusCancelled},
}

// CanTransition reports whether an order in status from may move to status to.
// Owners without admin rights may only cancel a pending order.
func CanTransition(from, to OrderStatus, admin bool) bool {
	if from == to || !to.Valid() {
		return false
	}
	if !admin {
		return from == StatusPending && to == StatusCancelled
	}
	for _, next := range adminTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TimelineStep is one row of the order progress display.
type TimelineStep struct {
	Status    OrderStatus `json:"status"`
	Completed bool        `json:"completed"`
	Timestamp *time.Time  `json:"timestamp"`
}

var timelineSteps = []OrderStatus{StatusPending, StatusProcessing, StatusShipped, StatusDelivered}

// Timeline derives the progress display from the status history.
func Timeline(history []StatusEntry) []TimelineStep {
	latest := make(map[OrderStatus]time.Time, len(history))
	for _, entry := range history {
		if at, ok := latest[entry.Status]; !ok || entry.Timestamp.After(at) {
			latest[entry.Status] = entry.Timestamp
		}
	}

	steps := make([]TimelineStep, 0, len(timelineSteps)+1)
	for _, status := range timelineSteps {
		steps = append(steps, timelineStep(status, latest))
	}
	if _, cancelled := latest[StatusCancelled]; cancelled {
		steps = append(steps, timelineStep(StatusCancelled, latest))
	}
	return steps
}

func timelineStep(status OrderStatus, latest map[OrderStatus]time.Time) TimelineStep {
	step := TimelineStep{Status: status}
	if at, ok := latest[status]; ok {
		at := at
		step.Completed = true
		step.Timestamp = &at
	}
	return step
}
