package workclock

import (
	"sort"
	"time"
)

// EntryPair is one reconstructed (possibly incomplete) session.
// Duration is zero when unknown (missing counterpart).
type EntryPair struct {
	ClockInID    string
	ClockOutID   string
	ClockIn      *time.Time
	ClockOut     *time.Time
	Duration     time.Duration
	DayBoundary  bool // clock-out fell on another calendar day than clock-in
	MissingEntry bool // counterpart was never recorded
	Active       bool // still-open session, duration is running
}

// DailyRecord groups the EntryPairs whose clock-in falls on one local
// calendar day.
type DailyRecord struct {
	Date              string // YYYY-MM-DD
	Entries           []EntryPair
	Total             time.Duration
	HasMissingEntries bool
	IsActive          bool
}

// ReconstructDailyRecords derives the per-day session view from a raw event
// list. It is a pure function: no locking, no persisted state, total over any
// input including unsorted lists and logs that violate the alternation
// invariant (those degrade into missing entries rather than errors). Safe to
// re-run every second to refresh an active session's displayed duration.
//
// Pairing walks the globally sorted sequence once: a clock-in followed by a
// clock-out forms a session bucketed under the clock-in's day; a clock-in
// followed by another clock-in (or nothing, when it is not the last event)
// lost its clock-out and counts as missing; a clock-out with no open clock-in
// is an orphan bucketed under its own day. Only the last event of the entire
// log may open the single active session.
func ReconstructDailyRecords(events []Event, now time.Time, loc *time.Location) []DailyRecord {
	evs := make([]Event, len(events))
	copy(evs, events)
	sort.SliceStable(evs, func(i, j int) bool {
		if evs[i].Timestamp.Equal(evs[j].Timestamp) {
			return evs[i].EventID < evs[j].EventID
		}
		return evs[i].Timestamp.Before(evs[j].Timestamp)
	})

	buckets := make(map[string]*DailyRecord)
	var order []string
	bucket := func(date string) *DailyRecord {
		if rec, ok := buckets[date]; ok {
			return rec
		}
		rec := &DailyRecord{Date: date}
		buckets[date] = rec
		order = append(order, date)
		return rec
	}

	for i := 0; i < len(evs); {
		ev := evs[i]
		day := localDay(ev.Timestamp, loc)

		if !ev.ClockIn {
			// orphan clock-out: attributed to its own day, zero duration
			t := ev.Timestamp
			rec := bucket(day)
			rec.Entries = append(rec.Entries, EntryPair{
				ClockOutID:   ev.EventULID,
				ClockOut:     &t,
				MissingEntry: true,
			})
			rec.HasMissingEntries = true
			i++
			continue
		}

		tin := ev.Timestamp
		if i+1 < len(evs) && !evs[i+1].ClockIn {
			out := evs[i+1]
			tout := out.Timestamp
			pair := EntryPair{
				ClockInID:   ev.EventULID,
				ClockOutID:  out.EventULID,
				ClockIn:     &tin,
				ClockOut:    &tout,
				Duration:    tout.Sub(tin),
				DayBoundary: localDay(tout, loc) != day,
			}
			rec := bucket(day)
			rec.Entries = append(rec.Entries, pair)
			rec.Total += pair.Duration
			i += 2
			continue
		}

		rec := bucket(day)
		if i == len(evs)-1 {
			// the single active session: running duration counts toward the
			// total, day-boundary status compares against "now"
			dur := now.Sub(tin)
			if dur < 0 {
				dur = 0
			}
			rec.Entries = append(rec.Entries, EntryPair{
				ClockInID:   ev.EventULID,
				ClockIn:     &tin,
				Duration:    dur,
				DayBoundary: localDay(now, loc) != day,
				Active:      true,
			})
			rec.Total += dur
			rec.IsActive = true
		} else {
			// a clock-out was expected but something newer exists instead
			rec.Entries = append(rec.Entries, EntryPair{
				ClockInID:    ev.EventULID,
				ClockIn:      &tin,
				MissingEntry: true,
			})
			rec.HasMissingEntries = true
		}
		i++
	}

	out := make([]DailyRecord, 0, len(order))
	for _, d := range order {
		out = append(out, *buckets[d])
	}
	// most recent first; YYYY-MM-DD sorts lexicographically
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })

	// Only the first record may carry the active session. Anything else
	// still flagged active is stale: demote it to missing and rebuild its
	// total from fully paired entries.
	for idx := 1; idx < len(out); idx++ {
		rec := &out[idx]
		if !rec.IsActive {
			continue
		}
		rec.IsActive = false
		rec.HasMissingEntries = true
		rec.Total = 0
		for pi := range rec.Entries {
			p := &rec.Entries[pi]
			if p.Active || p.ClockIn == nil || p.ClockOut == nil {
				p.Active = false
				p.Duration = 0
				p.MissingEntry = true
				continue
			}
			rec.Total += p.Duration
		}
	}

	return out
}

func localDay(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}
