package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mongotx "parkhive/pkg/db/mongo"
	"parkhive/pkg/kafka"
	"parkhive/pkg/logger"
	"parkhive/pkg/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeReservationStore struct {
	mu           sync.Mutex
	reservations map[string]*model.Reservation
	findAllErr   error
	updateErr    error
	updates      int
}

func newFakeReservationStore(reservations ...*model.Reservation) *fakeReservationStore {
	s := &fakeReservationStore{reservations: make(map[string]*model.Reservation)}
	for _, r := range reservations {
		s.reservations[r.ID] = r
	}
	return s
}

func (s *fakeReservationStore) FindAll(ctx context.Context) ([]*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findAllErr != nil {
		return nil, s.findAllErr
	}
	out := make([]*model.Reservation, 0, len(s.reservations))
	for _, r := range s.reservations {
		copied := *r
		out = append(out, &copied)
	}
	return out, nil
}

func (s *fakeReservationStore) UpdateStatus(ctx context.Context, id string, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.reservations[id].Status = status
	s.updates++
	return nil
}

func (s *fakeReservationStore) status(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reservations[id].Status
}

func (s *fakeReservationStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

type fakeSlotStore struct {
	mu       sync.Mutex
	slots    map[string]*model.Slot
	replaces int

	// afterBatchLoad fires once at the end of FindByIDs, standing in
	// for a writer that commits between the pass's batch read and its
	// per-slot work.
	afterBatchLoad func()
}

func newFakeSlotStore(slots ...*model.Slot) *fakeSlotStore {
	s := &fakeSlotStore{slots: make(map[string]*model.Slot)}
	for _, slot := range slots {
		s.slots[slot.ID] = slot
	}
	return s
}

func (s *fakeSlotStore) FindByIDs(ctx context.Context, ids []string) ([]*model.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Slot, 0, len(ids))
	for _, id := range ids {
		if slot, ok := s.slots[id]; ok {
			copied := *slot
			copied.Timing = append([]model.TimeInterval(nil), slot.Timing...)
			out = append(out, &copied)
		}
	}
	if s.afterBatchLoad != nil {
		s.afterBatchLoad()
		s.afterBatchLoad = nil
	}
	return out, nil
}

func (s *fakeSlotStore) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[id]
	if !ok {
		return nil, errors.New("slot not found")
	}
	copied := *slot
	copied.Timing = append([]model.TimeInterval(nil), slot.Timing...)
	return &copied, nil
}

func (s *fakeSlotStore) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

func (s *fakeSlotStore) Replace(ctx context.Context, slot *model.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot.ID] = slot
	s.replaces++
	return nil
}

func (s *fakeSlotStore) get(id string) *model.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[id]
}

func (s *fakeSlotStore) replaceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaces
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(ctx context.Context, msg kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if eventType, ok := msg.Headers[kafka.HeaderEventType]; ok {
		p.events = append(p.events, eventType)
	}
	return nil
}

func (p *recordingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func testLog() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})
}

var base = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

func upcomingReservation(id, slotID string, start, end time.Time) *model.Reservation {
	return &model.Reservation{
		ID:        id,
		UserID:    "65f000000000000000000001",
		SlotID:    slotID,
		ParkingID: "65f000000000000000000003",
		Window:    model.ReservationWindow{Start: start, End: end},
		Price:     10,
		Status:    model.StatusUpcoming,
	}
}

func slotWithEntry(id string, start, end time.Time) *model.Slot {
	return &model.Slot{
		ID:          id,
		Position:    1,
		IsAvailable: true,
		Timing: []model.TimeInterval{
			{Start: start, End: end, IsReserved: true, ReservedBy: "65f000000000000000000001"},
		},
	}
}

func TestTickFullLifecycle(t *testing.T) {
	start := base.Add(time.Hour)
	end := base.Add(2 * time.Hour)
	store := newFakeReservationStore(upcomingReservation("r1", "s1", start, end))
	slots := newFakeSlotStore(slotWithEntry("s1", start, end))
	clock := &fakeClock{now: base}
	events := &recordingPublisher{}

	r := NewReconciler(store, slots, events, clock, time.Second, testLog())
	ctx := context.Background()

	// Before the window: nothing moves.
	r.Tick(ctx)
	if got := store.status("r1"); got != model.StatusUpcoming {
		t.Fatalf("expected upcoming before window, got %s", got)
	}
	if !slots.get("s1").IsAvailable {
		t.Fatal("slot must stay available before the window")
	}

	// Window start: upcoming becomes active, slot becomes unavailable.
	clock.Advance(time.Hour)
	r.Tick(ctx)
	if got := store.status("r1"); got != model.StatusActive {
		t.Fatalf("expected active at window start, got %s", got)
	}
	if slots.get("s1").IsAvailable {
		t.Fatal("slot must be unavailable during the window")
	}

	// Window end: active becomes completed, entry released, slot available.
	clock.Advance(time.Hour)
	r.Tick(ctx)
	if got := store.status("r1"); got != model.StatusCompleted {
		t.Fatalf("expected completed at window end, got %s", got)
	}
	slot := slots.get("s1")
	if !slot.IsAvailable {
		t.Fatal("slot must be available after the window")
	}
	if slot.Timing[0].IsReserved {
		t.Fatal("completed entry must be released")
	}

	if got := events.eventTypes(); len(got) != 2 ||
		got[0] != kafka.EventReservationActivated ||
		got[1] != kafka.EventReservationCompleted {
		t.Fatalf("unexpected event sequence: %v", got)
	}
}

func TestTickIsIdempotent(t *testing.T) {
	start := base.Add(-time.Hour)
	end := base.Add(time.Hour)
	store := newFakeReservationStore(upcomingReservation("r1", "s1", start, end))
	slots := newFakeSlotStore(slotWithEntry("s1", start, end))
	clock := &fakeClock{now: base}

	r := NewReconciler(store, slots, nil, clock, time.Second, testLog())
	ctx := context.Background()

	r.Tick(ctx)
	writesAfterFirst := store.updateCount()
	replacesAfterFirst := slots.replaceCount()

	// Same instant again: no further writes.
	r.Tick(ctx)
	r.Tick(ctx)

	if store.updateCount() != writesAfterFirst {
		t.Errorf("repeated ticks wrote statuses: %d then %d", writesAfterFirst, store.updateCount())
	}
	if slots.replaceCount() != replacesAfterFirst {
		t.Errorf("repeated ticks wrote slots: %d then %d", replacesAfterFirst, slots.replaceCount())
	}
	if got := store.status("r1"); got != model.StatusActive {
		t.Errorf("expected active, got %s", got)
	}
}

func TestTickSkipsMissedActivation(t *testing.T) {
	// The whole window elapsed between passes: upcoming jumps straight
	// to completed.
	start := base.Add(-2 * time.Hour)
	end := base.Add(-time.Hour)
	store := newFakeReservationStore(upcomingReservation("r1", "s1", start, end))
	slots := newFakeSlotStore(slotWithEntry("s1", start, end))
	clock := &fakeClock{now: base}

	r := NewReconciler(store, slots, nil, clock, time.Second, testLog())
	r.Tick(context.Background())

	if got := store.status("r1"); got != model.StatusCompleted {
		t.Fatalf("expected completed, got %s", got)
	}
	if slots.get("s1").Timing[0].IsReserved {
		t.Fatal("expired entry must be released")
	}
}

func TestTickKeepsConcurrentBookingEntry(t *testing.T) {
	// A booking for a future window commits right after the pass's batch
	// read. The per-slot write must start from the ledger as committed,
	// not from the batch snapshot, or the new entry would be erased.
	start := base.Add(-2 * time.Hour)
	end := base.Add(-time.Hour)
	reservation := upcomingReservation("r1", "s1", start, end)
	reservation.Status = model.StatusActive
	store := newFakeReservationStore(reservation)

	slot := slotWithEntry("s1", start, end)
	slots := newFakeSlotStore(slot)
	slots.afterBatchLoad = func() {
		slot.Timing = append(slot.Timing, model.TimeInterval{
			Start:      base.Add(time.Hour),
			End:        base.Add(2 * time.Hour),
			IsReserved: true,
			ReservedBy: "65f000000000000000000002",
		})
	}

	clock := &fakeClock{now: base}
	r := NewReconciler(store, slots, nil, clock, time.Second, testLog())
	r.Tick(context.Background())

	if got := store.status("r1"); got != model.StatusCompleted {
		t.Fatalf("expected completed, got %s", got)
	}
	got := slots.get("s1")
	if len(got.Timing) != 2 {
		t.Fatalf("expected 2 ledger entries after the pass, got %d", len(got.Timing))
	}
	if got.Timing[0].IsReserved {
		t.Error("expired entry must be released")
	}
	if !got.Timing[1].IsReserved {
		t.Error("concurrently booked entry must survive the pass")
	}
}

func TestTickIgnoresCancelledReservations(t *testing.T) {
	start := base.Add(-time.Hour)
	end := base.Add(time.Hour)
	reservation := upcomingReservation("r1", "s1", start, end)
	reservation.Status = model.StatusCancelled
	store := newFakeReservationStore(reservation)
	slots := newFakeSlotStore(slotWithEntry("s1", start, end))
	clock := &fakeClock{now: base}

	r := NewReconciler(store, slots, nil, clock, time.Second, testLog())
	r.Tick(context.Background())

	if got := store.status("r1"); got != model.StatusCancelled {
		t.Fatalf("cancelled reservation must not move, got %s", got)
	}
	if store.updateCount() != 0 {
		t.Errorf("expected no status writes, got %d", store.updateCount())
	}
}

func TestTickSkipsReservationWithMissingSlot(t *testing.T) {
	start := base.Add(-time.Hour)
	end := base.Add(time.Hour)
	store := newFakeReservationStore(
		upcomingReservation("r1", "missing", start, end),
		upcomingReservation("r2", "s1", start, end),
	)
	slots := newFakeSlotStore(slotWithEntry("s1", start, end))
	clock := &fakeClock{now: base}

	r := NewReconciler(store, slots, nil, clock, time.Second, testLog())
	r.Tick(context.Background())

	if got := store.status("r1"); got != model.StatusUpcoming {
		t.Errorf("reservation with missing slot must be skipped, got %s", got)
	}
	if got := store.status("r2"); got != model.StatusActive {
		t.Errorf("healthy reservation must still be reconciled, got %s", got)
	}
}

func TestTickSurvivesStoreFailure(t *testing.T) {
	store := newFakeReservationStore()
	store.findAllErr = errors.New("connection reset")
	clock := &fakeClock{now: base}

	r := NewReconciler(store, newFakeSlotStore(), nil, clock, time.Second, testLog())

	// Must not panic; the pass is simply skipped.
	r.Tick(context.Background())
}

func TestTickContinuesPastStatusWriteFailure(t *testing.T) {
	start := base.Add(-time.Hour)
	end := base.Add(time.Hour)
	store := newFakeReservationStore(upcomingReservation("r1", "s1", start, end))
	store.updateErr = errors.New("write concern error")
	slots := newFakeSlotStore(slotWithEntry("s1", start, end))
	clock := &fakeClock{now: base}

	r := NewReconciler(store, slots, nil, clock, time.Second, testLog())
	r.Tick(context.Background())

	// Failure is swallowed; the next pass retries.
	store.updateErr = nil
	r.Tick(context.Background())
	if got := store.status("r1"); got != model.StatusActive {
		t.Fatalf("expected retry to succeed, got %s", got)
	}
}

func TestStartStop(t *testing.T) {
	store := newFakeReservationStore()
	clock := &fakeClock{now: base}

	r := NewReconciler(store, newFakeSlotStore(), nil, clock, 5*time.Millisecond, testLog())
	r.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	r.Stop()
	// Stop is idempotent.
	r.Stop()
}
