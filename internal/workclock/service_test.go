package workclock_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"TEMPO-backend/internal/workclock"
)

// fakeStore is an in-memory EventStore with transactional rollback,
// mirroring the MySQL store's contract.
type fakeStore struct {
	events []workclock.Event
	nextID uint64
	inTx   bool
}

func (f *fakeStore) sorted(desc bool) []workclock.Event {
	out := make([]workclock.Event, len(f.events))
	copy(out, f.events)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if desc {
			a, b = b, a
		}
		if a.Timestamp.Equal(b.Timestamp) {
			return a.EventID < b.EventID
		}
		return a.Timestamp.Before(b.Timestamp)
	})
	return out
}

func (f *fakeStore) FindLatest(_ context.Context, n int) ([]workclock.Event, error) {
	desc := f.sorted(true)
	if len(desc) > n {
		desc = desc[:n]
	}
	return desc, nil
}

func (f *fakeStore) FindByID(_ context.Context, id string) (workclock.Event, error) {
	for _, ev := range f.events {
		if ev.EventULID == id {
			return ev, nil
		}
	}
	return workclock.Event{}, workclock.ErrNotFound(fmt.Sprintf("work clock record with id '%s' not found", id))
}

func (f *fakeStore) FindNeighbor(_ context.Context, ts time.Time, dir workclock.Direction) (*workclock.Event, error) {
	if dir == workclock.After {
		for _, ev := range f.sorted(false) {
			if ev.Timestamp.After(ts) {
				ev := ev
				return &ev, nil
			}
		}
		return nil, nil
	}
	for _, ev := range f.sorted(true) {
		if ev.Timestamp.Before(ts) {
			ev := ev
			return &ev, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ExistsAt(_ context.Context, ts time.Time, excludeID string) (bool, error) {
	for _, ev := range f.events {
		if ev.Timestamp.Equal(ts) && ev.EventULID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) Create(_ context.Context, clockIn bool, ts time.Time) (workclock.Event, error) {
	f.nextID++
	ev := workclock.Event{
		EventID:   f.nextID,
		EventULID: fmt.Sprintf("fake-%04d", f.nextID),
		Timestamp: ts.UTC(),
		ClockIn:   clockIn,
	}
	f.events = append(f.events, ev)
	return ev, nil
}

func (f *fakeStore) UpdateTimestamp(_ context.Context, id string, ts time.Time) error {
	for i := range f.events {
		if f.events[i].EventULID == id {
			f.events[i].Timestamp = ts.UTC()
			return nil
		}
	}
	return workclock.ErrNotFound(fmt.Sprintf("work clock record with id '%s' not found", id))
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	for i := range f.events {
		if f.events[i].EventULID == id {
			f.events = append(f.events[:i], f.events[i+1:]...)
			return nil
		}
	}
	return workclock.ErrNotFound(fmt.Sprintf("work clock record with id '%s' not found", id))
}

func (f *fakeStore) ListAll(_ context.Context) ([]workclock.Event, error) {
	return f.sorted(false), nil
}

func (f *fakeStore) RunInTransaction(ctx context.Context, fn func(workclock.EventStore) error) error {
	if f.inTx {
		return fn(f)
	}
	snapshot := make([]workclock.Event, len(f.events))
	copy(snapshot, f.events)
	snapshotID := f.nextID

	f.inTx = true
	err := fn(f)
	f.inTx = false
	if err != nil {
		f.events = snapshot
		f.nextID = snapshotID
	}
	return err
}

// seed bypasses validation to construct arbitrary (even inconsistent) logs.
func (f *fakeStore) seed(t *testing.T, specs ...workclock.ImportEvent) []workclock.Event {
	t.Helper()
	out := make([]workclock.Event, 0, len(specs))
	for _, sp := range specs {
		ev, _ := f.Create(context.Background(), sp.ClockIn, sp.Timestamp)
		out = append(out, ev)
	}
	return out
}

func newTestService() (*workclock.Service, *fakeStore) {
	store := &fakeStore{}
	return workclock.NewServiceWithStore(store, time.UTC), store
}

func apiCode(t *testing.T, err error) workclock.Code {
	t.Helper()
	var api *workclock.APIError
	if !errors.As(err, &api) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	return api.Code
}

func TestClockInClockOutFlow(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	if err := svc.ClockIn(ctx); err != nil {
		t.Fatalf("clock in: %v", err)
	}
	clockedIn, err := svc.IsCurrentlyClockedIn(ctx)
	if err != nil || !clockedIn {
		t.Fatalf("expected clocked in, got %v, %v", clockedIn, err)
	}
	if err := svc.ClockOut(ctx); err != nil {
		t.Fatalf("clock out: %v", err)
	}
	clockedIn, _ = svc.IsCurrentlyClockedIn(ctx)
	if clockedIn {
		t.Fatal("expected clocked out")
	}
	if len(store.events) != 2 {
		t.Fatalf("got %d events, want 2", len(store.events))
	}
}

func TestClockInTwiceRejected(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	if err := svc.ClockIn(ctx); err != nil {
		t.Fatalf("first clock in: %v", err)
	}
	err := svc.ClockIn(ctx)
	if code := apiCode(t, err); code != workclock.CodeAlreadyInState {
		t.Fatalf("code = %s, want ALREADY_IN_STATE", code)
	}
	if len(store.events) != 1 {
		t.Fatalf("log changed on rejected clock in: %d events", len(store.events))
	}
}

func TestClockOutOnEmptyLogRejected(t *testing.T) {
	svc, _ := newTestService()
	err := svc.ClockOut(context.Background())
	if code := apiCode(t, err); code != workclock.CodeAlreadyInState {
		t.Fatalf("code = %s, want ALREADY_IN_STATE", code)
	}
}

func TestToggleAlternates(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	clockedIn, err := svc.Toggle(ctx)
	if err != nil || !clockedIn {
		t.Fatalf("first toggle: %v, %v", clockedIn, err)
	}
	clockedIn, err = svc.Toggle(ctx)
	if err != nil || clockedIn {
		t.Fatalf("second toggle: %v, %v", clockedIn, err)
	}
	if len(store.events) != 2 {
		t.Fatalf("got %d events, want 2", len(store.events))
	}
	if !store.events[0].ClockIn || store.events[1].ClockIn {
		t.Fatal("toggled events do not alternate")
	}
}

func TestClockInOutAtHistoricalInsert(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	t1 := mustTime(t, "2025-03-10T09:00:00Z")
	t2 := mustTime(t, "2025-03-10T17:00:00Z")
	if err := svc.ClockInOutAt(ctx, true, t1); err != nil {
		t.Fatalf("insert clock in: %v", err)
	}
	if err := svc.ClockInOutAt(ctx, false, t2); err != nil {
		t.Fatalf("insert clock out: %v", err)
	}

	// a clock-in between an existing clock-in and clock-out breaks alternation
	err := svc.ClockInOutAt(ctx, true, mustTime(t, "2025-03-10T12:00:00Z"))
	if code := apiCode(t, err); code != workclock.CodeSequence {
		t.Fatalf("code = %s, want SEQUENCE_VIOLATION", code)
	}
	if len(store.events) != 2 {
		t.Fatalf("rejected insert left %d events, want 2", len(store.events))
	}
}

func TestEqualTimestampRejected(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	t1 := mustTime(t, "2025-03-10T09:00:00Z")
	if err := svc.ClockInOutAt(ctx, true, t1); err != nil {
		t.Fatalf("insert clock in: %v", err)
	}
	err := svc.ClockInOutAt(ctx, false, t1)
	if code := apiCode(t, err); code != workclock.CodeSequence {
		t.Fatalf("code = %s, want SEQUENCE_VIOLATION", code)
	}
	if len(store.events) != 1 {
		t.Fatalf("rejected insert left %d events, want 1", len(store.events))
	}
}

func TestAddClockInOutPair(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	if err := svc.AddClockInOutPair(ctx,
		mustTime(t, "2025-03-10T09:00:00Z"),
		mustTime(t, "2025-03-10T17:00:00Z"),
	); err != nil {
		t.Fatalf("add pair: %v", err)
	}
	if len(store.events) != 2 {
		t.Fatalf("got %d events, want 2", len(store.events))
	}
}

func TestAddReversedPairSplitsSession(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()
	store.seed(t,
		workclock.ImportEvent{Timestamp: mustTime(t, "2025-03-10T08:00:00Z"), ClockIn: true},
		workclock.ImportEvent{Timestamp: mustTime(t, "2025-03-10T18:00:00Z"), ClockIn: false},
	)

	// tOut before tIn carves a break out of the existing session
	if err := svc.AddClockInOutPair(ctx,
		mustTime(t, "2025-03-10T14:00:00Z"),
		mustTime(t, "2025-03-10T12:00:00Z"),
	); err != nil {
		t.Fatalf("reversed pair: %v", err)
	}

	events, _ := store.ListAll(ctx)
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	for i, ev := range events {
		if ev.ClockIn != (i%2 == 0) {
			t.Fatalf("sequence does not alternate at index %d", i)
		}
	}
}

func TestAddPairRollbackOnInvalid(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()
	store.seed(t,
		workclock.ImportEvent{Timestamp: mustTime(t, "2025-03-10T08:00:00Z"), ClockIn: true},
		workclock.ImportEvent{Timestamp: mustTime(t, "2025-03-10T18:00:00Z"), ClockIn: false},
	)

	err := svc.AddClockInOutPair(ctx,
		mustTime(t, "2025-03-10T09:00:00Z"),
		mustTime(t, "2025-03-10T10:00:00Z"),
	)
	if code := apiCode(t, err); code != workclock.CodeSequence {
		t.Fatalf("code = %s, want SEQUENCE_VIOLATION", code)
	}
	if len(store.events) != 2 {
		t.Fatalf("failed pair add left %d events, want 2 (atomic rollback)", len(store.events))
	}
}

func TestModifyTimestamp(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()
	seeded := store.seed(t,
		workclock.ImportEvent{Timestamp: mustTime(t, "2025-03-10T08:00:00Z"), ClockIn: true},
		workclock.ImportEvent{Timestamp: mustTime(t, "2025-03-10T12:00:00Z"), ClockIn: false},
		workclock.ImportEvent{Timestamp: mustTime(t, "2025-03-10T14:00:00Z"), ClockIn: true},
		workclock.ImportEvent{Timestamp: mustTime(t, "2025-03-10T18:00:00Z"), ClockIn: false},
	)

	if err := svc.ModifyTimestamp(ctx, seeded[1].EventULID, mustTime(t, "2025-03-10T13:00:00Z")); err != nil {
		t.Fatalf("valid modify: %v", err)
	}

	// moving the clock-out past the next clock-in breaks alternation
	err := svc.ModifyTimestamp(ctx, seeded[1].EventULID, mustTime(t, "2025-03-10T15:00:00Z"))
	if code := apiCode(t, err); code != workclock.CodeSequence {
		t.Fatalf("code = %s, want SEQUENCE_VIOLATION", code)
	}
	moved, _ := store.FindByID(ctx, seeded[1].EventULID)
	if !moved.Timestamp.Equal(mustTime(t, "2025-03-10T13:00:00Z")) {
		t.Fatalf("failed modify was not rolled back, timestamp = %v", moved.Timestamp)
	}
}

func TestModifyTimestampNotFound(t *testing.T) {
	svc, _ := newTestService()
	err := svc.ModifyTimestamp(context.Background(), "missing", time.Now())
	if code := apiCode(t, err); code != workclock.CodeNotFound {
		t.Fatalf("code = %s, want NOT_FOUND", code)
	}
}

func TestDeletePair(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()
	seeded := store.seed(t,
		workclock.ImportEvent{Timestamp: mustTime(t, "2025-03-10T08:00:00Z"), ClockIn: true},
		workclock.ImportEvent{Timestamp: mustTime(t, "2025-03-10T12:00:00Z"), ClockIn: false},
		workclock.ImportEvent{Timestamp: mustTime(t, "2025-03-10T14:00:00Z"), ClockIn: true},
		workclock.ImportEvent{Timestamp: mustTime(t, "2025-03-10T18:00:00Z"), ClockIn: false},
	)

	if err := svc.DeletePair(ctx, seeded[0].EventULID); err != nil {
		t.Fatalf("delete pair: %v", err)
	}
	events, _ := store.ListAll(ctx)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].EventULID != seeded[2].EventULID || events[1].EventULID != seeded[3].EventULID {
		t.Fatal("wrong events removed")
	}
}

func TestDeletePairRejectsClockOutID(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()
	seeded := store.seed(t,
		workclock.ImportEvent{Timestamp: mustTime(t, "2025-03-10T08:00:00Z"), ClockIn: true},
		workclock.ImportEvent{Timestamp: mustTime(t, "2025-03-10T12:00:00Z"), ClockIn: false},
	)

	err := svc.DeletePair(ctx, seeded[1].EventULID)
	if code := apiCode(t, err); code != workclock.CodeSequence {
		t.Fatalf("code = %s, want SEQUENCE_VIOLATION", code)
	}
	if len(store.events) != 2 {
		t.Fatal("rejected delete removed events")
	}
}

func TestDeletePairRejectsInconsistentSuccessor(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()
	// an already-inconsistent log: two clock-ins in a row
	seeded := store.seed(t,
		workclock.ImportEvent{Timestamp: mustTime(t, "2025-03-10T08:00:00Z"), ClockIn: true},
		workclock.ImportEvent{Timestamp: mustTime(t, "2025-03-10T09:00:00Z"), ClockIn: true},
	)

	err := svc.DeletePair(ctx, seeded[0].EventULID)
	if code := apiCode(t, err); code != workclock.CodeSequence {
		t.Fatalf("code = %s, want SEQUENCE_VIOLATION", code)
	}
	if len(store.events) != 2 {
		t.Fatal("delete must leave both records when the successor is not a clock-out")
	}
}

func TestDeletePairWithoutSuccessor(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()
	seeded := store.seed(t,
		workclock.ImportEvent{Timestamp: mustTime(t, "2025-03-10T08:00:00Z"), ClockIn: true},
	)

	if err := svc.DeletePair(ctx, seeded[0].EventULID); err != nil {
		t.Fatalf("delete open session: %v", err)
	}
	if len(store.events) != 0 {
		t.Fatalf("got %d events, want 0", len(store.events))
	}
}

func TestImportEvents(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	err := svc.ImportEvents(ctx, []workclock.ImportEvent{
		{Timestamp: mustTime(t, "2025-03-09T09:00:00Z"), ClockIn: true},
		{Timestamp: mustTime(t, "2025-03-09T17:00:00Z"), ClockIn: false},
		{Timestamp: mustTime(t, "2025-03-10T09:00:00Z"), ClockIn: true},
		{Timestamp: mustTime(t, "2025-03-10T17:00:00Z"), ClockIn: false},
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(store.events) != 4 {
		t.Fatalf("got %d events, want 4", len(store.events))
	}
}

func TestImportEventsRollsBackWholeBatch(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	err := svc.ImportEvents(ctx, []workclock.ImportEvent{
		{Timestamp: mustTime(t, "2025-03-09T09:00:00Z"), ClockIn: true},
		{Timestamp: mustTime(t, "2025-03-09T11:00:00Z"), ClockIn: true},
		{Timestamp: mustTime(t, "2025-03-09T17:00:00Z"), ClockIn: false},
	})
	if code := apiCode(t, err); code != workclock.CodeSequence {
		t.Fatalf("code = %s, want SEQUENCE_VIOLATION", code)
	}
	if len(store.events) != 0 {
		t.Fatalf("failed import left %d events, want 0", len(store.events))
	}
}

func TestLatestEvents(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()
	store.seed(t,
		workclock.ImportEvent{Timestamp: mustTime(t, "2025-03-10T09:00:00Z"), ClockIn: true},
		workclock.ImportEvent{Timestamp: mustTime(t, "2025-03-10T12:00:00Z"), ClockIn: false},
		workclock.ImportEvent{Timestamp: mustTime(t, "2025-03-10T14:00:00Z"), ClockIn: true},
	)

	events, err := svc.LatestEvents(ctx, 2)
	if err != nil {
		t.Fatalf("latest events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if !events[0].Timestamp.After(events[1].Timestamp) {
		t.Error("latest events not ordered newest first")
	}
	if events[0].ClockIn != true {
		t.Error("newest event should be the open clock-in")
	}
}

func TestDailyRecordsFromService(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()
	store.seed(t,
		workclock.ImportEvent{Timestamp: mustTime(t, "2025-03-10T09:00:00Z"), ClockIn: true},
		workclock.ImportEvent{Timestamp: mustTime(t, "2025-03-10T17:00:00Z"), ClockIn: false},
	)

	days, err := svc.DailyRecords(ctx, "UTC")
	if err != nil {
		t.Fatalf("daily records: %v", err)
	}
	if len(days) != 1 || days[0].Date != "2025-03-10" {
		t.Fatalf("unexpected records: %+v", days)
	}
	if days[0].Total != "08:00:00" || days[0].TotalMS != 8*3600*1000 {
		t.Errorf("total = %s (%d ms), want 08:00:00", days[0].Total, days[0].TotalMS)
	}

	if _, err := svc.DailyRecords(ctx, "Not/AZone"); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}
