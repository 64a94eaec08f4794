package workclock

import "time"

// DB行に対応（スキャン用）
type eventRow struct {
	EventID   uint64
	EventULID string
	Timestamp time.Time
	ClockIn   bool
}

// Event is one clock-in or clock-out on the timeline.
// EventID is the auto-increment tie-breaker for equal timestamps;
// EventULID is the public identifier handed to clients.
type Event struct {
	EventID   uint64
	EventULID string
	Timestamp time.Time
	ClockIn   bool
}

// ImportEvent is a not-yet-persisted event, used for bulk historical imports.
type ImportEvent struct {
	Timestamp time.Time
	ClockIn   bool
}

func (r eventRow) toModel() Event {
	return Event{
		EventID:   r.EventID,
		EventULID: r.EventULID,
		Timestamp: r.Timestamp.UTC(),
		ClockIn:   r.ClockIn,
	}
}

func (e Event) toDTO() EventResponse {
	return EventResponse{
		WorkClockID: e.EventULID,
		Timestamp:   e.Timestamp,
		ClockIn:     e.ClockIn,
	}
}
