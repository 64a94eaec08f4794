package workclock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ===== Error model (他モジュールと同型 + ドメイン固有コード) =====

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeSequence        Code = "SEQUENCE_VIOLATION"
	CodeAlreadyInState  Code = "ALREADY_IN_STATE"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func ErrInvalid(msg string) *APIError        { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError       { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrSequence(msg string) *APIError       { return &APIError{Code: CodeSequence, Message: msg} }
func ErrAlreadyInState(msg string) *APIError { return &APIError{Code: CodeAlreadyInState, Message: msg} }
func ErrInternal(msg string) *APIError       { return &APIError{Code: CodeInternal, Message: msg} }

// ToHTTPStatus maps service errors to HTTP status codes. Unknown errors
// (storage failures and the like) surface as 500.
func ToHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeNotFound:
			return 404
		case CodeSequence, CodeAlreadyInState:
			return 409
		default:
			return 500
		}
	}
	return 500
}

// ===== Service =====

// Service owns the single-user work clock timeline. Every mutation runs
// under mu so the check-then-write sequence of one operation cannot
// interleave with another; reads take no lock.
type Service struct {
	mu    sync.Mutex
	store EventStore
	loc   *time.Location
	now   func() time.Time
}

func NewService(sdb *sql.DB, loc *time.Location) *Service {
	return NewServiceWithStore(NewStore(sdb), loc)
}

// NewServiceWithStore wires an alternative EventStore implementation.
func NewServiceWithStore(store EventStore, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{store: store, loc: loc, now: time.Now}
}

// IsCurrentlyClockedIn derives the clock state from the latest record.
// An empty log means clocked out.
func (s *Service) IsCurrentlyClockedIn(ctx context.Context) (bool, error) {
	latest, err := s.store.FindLatest(ctx, 1)
	if err != nil {
		return false, err
	}
	if len(latest) == 0 {
		return false, nil
	}
	return latest[0].ClockIn, nil
}

func (s *Service) ClockIn(ctx context.Context) error  { return s.clockInOut(ctx, true) }
func (s *Service) ClockOut(ctx context.Context) error { return s.clockInOut(ctx, false) }

// Toggle flips the current clock state and returns the new one.
func (s *Service) Toggle(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clockedIn, err := s.IsCurrentlyClockedIn(ctx)
	if err != nil {
		return false, err
	}
	if err := s.appendNow(ctx, !clockedIn); err != nil {
		return false, err
	}
	return !clockedIn, nil
}

// clockInOut appends an event at the current time. The "already clocked
// in/out" pre-check only exists on this append-to-end path; historical
// inserts rely on checkValidity instead.
func (s *Service) clockInOut(ctx context.Context, clockIn bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clockedIn, err := s.IsCurrentlyClockedIn(ctx)
	if err != nil {
		return err
	}
	if clockedIn == clockIn {
		return ErrAlreadyInState(fmt.Sprintf("already clocked %s", map[bool]string{true: "in", false: "out"}[clockedIn]))
	}
	return s.appendNow(ctx, clockIn)
}

func (s *Service) appendNow(ctx context.Context, clockIn bool) error {
	_, err := s.store.Create(ctx, clockIn, s.now())
	return err
}

// ClockInOutAt inserts a single event at an arbitrary point of the
// timeline. The write and its validation share one transaction, so an
// invalid insert leaves no trace.
func (s *Service) ClockInOutAt(ctx context.Context, clockIn bool, timestamp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.RunInTransaction(ctx, func(tx EventStore) error {
		ev, err := tx.Create(ctx, clockIn, timestamp)
		if err != nil {
			return err
		}
		return s.checkValidity(ctx, tx, ev.EventULID)
	})
}

// AddClockInOutPair inserts a clock-in at tIn and a clock-out at tOut.
// tIn is not required to precede tOut: a reversed pair splits an existing
// session in two. Both records are validated; either failure rolls back both.
func (s *Service) AddClockInOutPair(ctx context.Context, tIn, tOut time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.RunInTransaction(ctx, func(tx EventStore) error {
		in, err := tx.Create(ctx, true, tIn)
		if err != nil {
			return err
		}
		out, err := tx.Create(ctx, false, tOut)
		if err != nil {
			return err
		}
		if err := s.checkValidity(ctx, tx, in.EventULID); err != nil {
			return err
		}
		return s.checkValidity(ctx, tx, out.EventULID)
	})
}

// ModifyTimestamp moves an existing event to a new instant and re-validates
// it against its new neighbors.
func (s *Service) ModifyTimestamp(ctx context.Context, workClockID string, newTimestamp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.FindByID(ctx, workClockID); err != nil {
		return err
	}
	return s.store.RunInTransaction(ctx, func(tx EventStore) error {
		if err := tx.UpdateTimestamp(ctx, workClockID, newTimestamp); err != nil {
			return err
		}
		if err := s.checkValidity(ctx, tx, workClockID); err != nil {
			return fmt.Errorf("work clock record with id '%s' is not valid anymore: %w", workClockID, err)
		}
		return nil
	})
}

// DeletePair removes a clock-in and its succeeding clock-out in one
// transaction. The succeeding record is looked up against the pre-delete
// state. A succeeding clock-in means the log was already inconsistent (or
// the wrong id was passed) and nothing is removed.
func (s *Service) DeletePair(ctx context.Context, clockInID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.store.FindByID(ctx, clockInID)
	if err != nil {
		return err
	}
	if !record.ClockIn {
		return ErrSequence(fmt.Sprintf("record with id '%s' is not a clock in record", clockInID))
	}

	succeeding, err := s.store.FindNeighbor(ctx, record.Timestamp, After)
	if err != nil {
		return err
	}
	if succeeding != nil && succeeding.ClockIn {
		return ErrSequence(fmt.Sprintf("succeeding record with id '%s' is not a clock out record", succeeding.EventULID))
	}

	return s.store.RunInTransaction(ctx, func(tx EventStore) error {
		if err := tx.Delete(ctx, record.EventULID); err != nil {
			return err
		}
		if succeeding != nil {
			if err := tx.Delete(ctx, succeeding.EventULID); err != nil {
				return err
			}
		}
		return nil
	})
}

// ImportEvents writes a batch of historical events in one transaction and
// validates every one of them against the merged timeline. Any invalid row
// rolls back the whole batch.
func (s *Service) ImportEvents(ctx context.Context, events []ImportEvent) error {
	if len(events) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.RunInTransaction(ctx, func(tx EventStore) error {
		created := make([]Event, 0, len(events))
		for _, ie := range events {
			ev, err := tx.Create(ctx, ie.ClockIn, ie.Timestamp)
			if err != nil {
				return err
			}
			created = append(created, ev)
		}
		for _, ev := range created {
			if err := s.checkValidity(ctx, tx, ev.EventULID); err != nil {
				return err
			}
		}
		return nil
	})
}

// LatestEvents returns the most recent raw events, newest first. The UI
// uses the returned ids for modify/delete requests.
func (s *Service) LatestEvents(ctx context.Context, limit int) ([]EventResponse, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	events, err := s.store.FindLatest(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]EventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.toDTO())
	}
	return out, nil
}

// DailyRecords reconstructs the per-day session view from the full log.
// tzName overrides the configured timezone when non-empty. Read-only, so
// it takes no lock and is safe to poll while a session is running.
func (s *Service) DailyRecords(ctx context.Context, tzName string) ([]DailyRecordResponse, error) {
	loc := s.loc
	if tzName != "" {
		l, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, ErrInvalid(fmt.Sprintf("unknown timezone %q", tzName))
		}
		loc = l
	}

	events, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	records := ReconstructDailyRecords(events, s.now(), loc)
	out := make([]DailyRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, r.toDTO())
	}
	return out, nil
}

// checkValidity verifies the alternation invariant around one event: the
// nearest record strictly before and strictly after it must both be of the
// opposite kind. A second record at the exact same instant is rejected
// outright, since the strict-inequality neighbor search cannot see it.
// Callers run this inside the transaction that wrote the event, so the
// lookup observes the post-write state.
func (s *Service) checkValidity(ctx context.Context, store EventStore, workClockID string) error {
	if workClockID == "" {
		return ErrInvalid("work clock ID cannot be empty")
	}
	record, err := store.FindByID(ctx, workClockID)
	if err != nil {
		return err
	}

	occupied, err := store.ExistsAt(ctx, record.Timestamp, record.EventULID)
	if err != nil {
		return err
	}
	if occupied {
		return ErrSequence(fmt.Sprintf("another record already exists at %s", record.Timestamp.Format(time.RFC3339Nano)))
	}

	succeeding, err := store.FindNeighbor(ctx, record.Timestamp, After)
	if err != nil {
		return err
	}
	if succeeding != nil && succeeding.ClockIn == record.ClockIn {
		return ErrSequence(fmt.Sprintf("expected the succeeding record with id '%s' to be a clock %s record",
			succeeding.EventULID, map[bool]string{true: "out", false: "in"}[record.ClockIn]))
	}

	preceding, err := store.FindNeighbor(ctx, record.Timestamp, Before)
	if err != nil {
		return err
	}
	if preceding != nil && preceding.ClockIn == record.ClockIn {
		return ErrSequence(fmt.Sprintf("expected the preceding record with id '%s' to be a clock %s record",
			preceding.EventULID, map[bool]string{true: "out", false: "in"}[record.ClockIn]))
	}

	return nil
}
