package workclock

import (
	"fmt"
	"time"
)

const (
	DateLayout       = "2006-01-02"
	DefaultTZ        = "Local"
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

type ClockRequest struct {
	ClockIn *bool `json:"clock_in" binding:"required"`
}

type ClockAtRequest struct {
	ClockIn   *bool     `json:"clock_in" binding:"required"`
	Timestamp time.Time `json:"timestamp" binding:"required"` // RFC3339
}

type AddPairRequest struct {
	ClockInTimestamp  time.Time `json:"clock_in_timestamp" binding:"required"`
	ClockOutTimestamp time.Time `json:"clock_out_timestamp" binding:"required"`
}

type ModifyRequest struct {
	WorkClockID  string    `json:"work_clock_id" binding:"required"`
	NewTimestamp time.Time `json:"new_timestamp" binding:"required"`
}

type DeletePairRequest struct {
	ClockInID string `json:"clock_in_id" binding:"required"`
}

type EventResponse struct {
	WorkClockID string    `json:"work_clock_id"`
	Timestamp   time.Time `json:"timestamp"`
	ClockIn     bool      `json:"clock_in"`
}

type StatusResponse struct {
	ClockedIn bool `json:"clocked_in"`
}

type EntryPairResponse struct {
	ClockInID    string     `json:"clock_in_id,omitempty"`
	ClockOutID   string     `json:"clock_out_id,omitempty"`
	ClockIn      *time.Time `json:"clock_in,omitempty"`
	ClockOut     *time.Time `json:"clock_out,omitempty"`
	DurationMS   int64      `json:"duration_ms"`
	Duration     string     `json:"duration"` // HH:MM:SS
	DayBoundary  bool       `json:"day_boundary"`
	MissingEntry bool       `json:"missing_entry"`
	Active       bool       `json:"active"`
}

type DailyRecordResponse struct {
	Date              string              `json:"date"` // YYYY-MM-DD
	Entries           []EntryPairResponse `json:"entries"`
	TotalMS           int64               `json:"total_ms"`
	Total             string              `json:"total"` // HH:MM:SS
	HasMissingEntries bool                `json:"has_missing_entries"`
	IsActive          bool                `json:"is_active"`
}

func (p EntryPair) toDTO() EntryPairResponse {
	return EntryPairResponse{
		ClockInID:    p.ClockInID,
		ClockOutID:   p.ClockOutID,
		ClockIn:      p.ClockIn,
		ClockOut:     p.ClockOut,
		DurationMS:   p.Duration.Milliseconds(),
		Duration:     FormatDuration(p.Duration),
		DayBoundary:  p.DayBoundary,
		MissingEntry: p.MissingEntry,
		Active:       p.Active,
	}
}

func (r DailyRecord) toDTO() DailyRecordResponse {
	entries := make([]EntryPairResponse, 0, len(r.Entries))
	for _, p := range r.Entries {
		entries = append(entries, p.toDTO())
	}
	return DailyRecordResponse{
		Date:              r.Date,
		Entries:           entries,
		TotalMS:           r.Total.Milliseconds(),
		Total:             FormatDuration(r.Total),
		HasMissingEntries: r.HasMissingEntries,
		IsActive:          r.IsActive,
	}
}

// FormatDuration renders d as zero-padded HH:MM:SS.
// Sub-second remainders are truncated, never rounded up.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
