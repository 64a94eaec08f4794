// Package legacyimport ingests the predecessor tool's SQLite databases into
// the work clock timeline. The legacy schema is a single activity_log table
// of (timestamp nanoseconds, active int) rows; active maps to clock-in.
package legacyimport

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"TEMPO-backend/internal/workclock"
)

// ActivityLog is one row of the legacy activity_log table.
type ActivityLog struct {
	Timestamp time.Time
	Active    bool
}

type Service struct {
	clock *workclock.Service
}

func NewService(clock *workclock.Service) *Service {
	return &Service{clock: clock}
}

// Import reads the legacy database at dbPath and writes every row into the
// work clock log as a single batch. The batch shares one transaction and one
// sequence validation pass, so a legacy database with a broken clock-in/out
// sequence imports nothing.
func (s *Service) Import(ctx context.Context, dbPath string) (int, error) {
	logs, err := ReadActivityLogs(dbPath)
	if err != nil {
		return 0, err
	}

	events := make([]workclock.ImportEvent, 0, len(logs))
	for _, l := range logs {
		events = append(events, workclock.ImportEvent{Timestamp: l.Timestamp, ClockIn: l.Active})
	}
	if err := s.clock.ImportEvents(ctx, events); err != nil {
		return 0, err
	}
	return len(events), nil
}

// ReadActivityLogs extracts all rows from the activity_log table of a legacy
// SQLite database. Timestamps are stored as nanoseconds since epoch, active
// as an integer boolean.
func ReadActivityLogs(dbPath string) ([]ActivityLog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open legacy database: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT timestamp, active FROM activity_log ORDER BY timestamp`)
	if err != nil {
		return nil, fmt.Errorf("query activity logs: %w", err)
	}
	defer rows.Close()

	var logs []ActivityLog
	for rows.Next() {
		var timestampNano int64
		var activeInt int
		if err := rows.Scan(&timestampNano, &activeInt); err != nil {
			return nil, fmt.Errorf("scan activity log row: %w", err)
		}
		logs = append(logs, ActivityLog{
			Timestamp: time.Unix(0, timestampNano),
			Active:    activeInt != 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity logs: %w", err)
	}
	return logs, nil
}
