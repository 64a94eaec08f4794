package workclock

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"TEMPO-backend/internal/platform/db"
)

// Direction selects which chronological neighbor FindNeighbor returns.
type Direction int

const (
	Before Direction = iota
	After
)

// EventStore is the persistence surface the service depends on.
// *Store is the MySQL implementation; tests substitute an in-memory one.
type EventStore interface {
	// FindLatest returns up to n events, newest first.
	FindLatest(ctx context.Context, n int) ([]Event, error)
	FindByID(ctx context.Context, workClockID string) (Event, error)
	// FindNeighbor returns the nearest event strictly before/after ts,
	// or nil when none exists.
	FindNeighbor(ctx context.Context, ts time.Time, dir Direction) (*Event, error)
	// ExistsAt reports whether another event (id != excludeID) sits at exactly ts.
	ExistsAt(ctx context.Context, ts time.Time, excludeID string) (bool, error)
	Create(ctx context.Context, clockIn bool, ts time.Time) (Event, error)
	UpdateTimestamp(ctx context.Context, workClockID string, ts time.Time) error
	Delete(ctx context.Context, workClockID string) error
	// ListAll returns every event, oldest first (ties broken by insertion order).
	ListAll(ctx context.Context) ([]Event, error)
	// RunInTransaction runs fn against a tx-scoped store; all writes commit
	// together or roll back together. Nested calls reuse the outer tx.
	RunInTransaction(ctx context.Context, fn func(EventStore) error) error
}

const selectCols = "event_id, event_ulid, ts, clock_in"

type Store struct {
	db  db.DBTX
	sdb *sql.DB // nil while inside a transaction
}

func NewStore(sdb *sql.DB) *Store { return &Store{db: sdb, sdb: sdb} }

func (s *Store) FindLatest(ctx context.Context, n int) ([]Event, error) {
	q := fmt.Sprintf(`SELECT %s FROM work_clock_events ORDER BY ts DESC, event_id DESC LIMIT ?`, selectCols)
	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("find latest work clock records: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *Store) FindByID(ctx context.Context, workClockID string) (Event, error) {
	q := fmt.Sprintf(`SELECT %s FROM work_clock_events WHERE event_ulid = ?`, selectCols)
	var r eventRow
	err := s.db.QueryRowContext(ctx, q, workClockID).Scan(&r.EventID, &r.EventULID, &r.Timestamp, &r.ClockIn)
	if err == sql.ErrNoRows {
		return Event{}, ErrNotFound(fmt.Sprintf("work clock record with id '%s' not found", workClockID))
	}
	if err != nil {
		return Event{}, fmt.Errorf("find work clock record '%s': %w", workClockID, err)
	}
	return r.toModel(), nil
}

func (s *Store) FindNeighbor(ctx context.Context, ts time.Time, dir Direction) (*Event, error) {
	var q string
	if dir == After {
		q = fmt.Sprintf(`SELECT %s FROM work_clock_events WHERE ts > ? ORDER BY ts ASC, event_id ASC LIMIT 1`, selectCols)
	} else {
		q = fmt.Sprintf(`SELECT %s FROM work_clock_events WHERE ts < ? ORDER BY ts DESC, event_id DESC LIMIT 1`, selectCols)
	}
	var r eventRow
	err := s.db.QueryRowContext(ctx, q, ts.UTC()).Scan(&r.EventID, &r.EventULID, &r.Timestamp, &r.ClockIn)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find neighboring work clock record: %w", err)
	}
	ev := r.toModel()
	return &ev, nil
}

func (s *Store) ExistsAt(ctx context.Context, ts time.Time, excludeID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM work_clock_events WHERE ts = ? AND event_ulid <> ? LIMIT 1`,
		ts.UTC(), excludeID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check work clock record at %s: %w", ts.Format(time.RFC3339Nano), err)
	}
	return true, nil
}

func (s *Store) Create(ctx context.Context, clockIn bool, ts time.Time) (Event, error) {
	id := newULID(ts)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO work_clock_events (event_ulid, ts, clock_in) VALUES (?, ?, ?)`,
		id, ts.UTC(), clockIn,
	)
	if err != nil {
		return Event{}, fmt.Errorf("create work clock record: %w", err)
	}
	eventID, err := res.LastInsertId()
	if err != nil {
		return Event{}, fmt.Errorf("create work clock record: %w", err)
	}
	return Event{EventID: uint64(eventID), EventULID: id, Timestamp: ts.UTC(), ClockIn: clockIn}, nil
}

func (s *Store) UpdateTimestamp(ctx context.Context, workClockID string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE work_clock_events SET ts = ? WHERE event_ulid = ?`,
		ts.UTC(), workClockID,
	)
	if err != nil {
		return fmt.Errorf("update work clock record '%s': %w", workClockID, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, workClockID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM work_clock_events WHERE event_ulid = ?`, workClockID)
	if err != nil {
		return fmt.Errorf("delete work clock record '%s': %w", workClockID, err)
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return ErrNotFound(fmt.Sprintf("work clock record with id '%s' not found", workClockID))
	}
	return nil
}

func (s *Store) ListAll(ctx context.Context) ([]Event, error) {
	q := fmt.Sprintf(`SELECT %s FROM work_clock_events ORDER BY ts ASC, event_id ASC`, selectCols)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list work clock records: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *Store) RunInTransaction(ctx context.Context, fn func(EventStore) error) error {
	if s.sdb == nil {
		// 既にTxの中。外側の境界に相乗りする。
		return fn(s)
	}
	return db.RunInTx(ctx, s.sdb, nil, func(ctx context.Context, tx db.DBTX) error {
		return fn(&Store{db: tx})
	})
}

// ===== helpers =====

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		var r eventRow
		if err := rows.Scan(&r.EventID, &r.EventULID, &r.Timestamp, &r.ClockIn); err != nil {
			return nil, fmt.Errorf("scan work clock record: %w", err)
		}
		out = append(out, r.toModel())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func newULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
