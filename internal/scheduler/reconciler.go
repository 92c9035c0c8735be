package scheduler

import (
	"context"
	"sync"
	"time"

	mongotx "parkhive/pkg/db/mongo"
	"parkhive/pkg/kafka"
	"parkhive/pkg/logger"
	"parkhive/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// ReservationStore is the slice of the reservation repository the
// reconciler needs.
type ReservationStore interface {
	FindAll(ctx context.Context) ([]*model.Reservation, error)
	UpdateStatus(ctx context.Context, id string, status string) error
}

// SlotStore is the slice of the slot repository the reconciler needs.
type SlotStore interface {
	FindByID(ctx context.Context, id string) (*model.Slot, error)
	FindByIDs(ctx context.Context, ids []string) ([]*model.Slot, error)
	Replace(ctx context.Context, slot *model.Slot) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

// EventPublisher emits lifecycle events for reconciled reservations.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// Reconciler drives reservation statuses forward as time passes:
// upcoming becomes active once the window has started, active becomes
// completed once it has ended. Each pass samples the clock exactly once
// so every reservation in a pass is judged against the same instant.
// All transitions are idempotent; a pass that observes no elapsed time
// writes nothing.
type Reconciler struct {
	store    ReservationStore
	slots    SlotStore
	events   EventPublisher
	clock    Clock
	interval time.Duration
	log      *logger.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewReconciler(
	store ReservationStore,
	slots SlotStore,
	events EventPublisher,
	clock Clock,
	interval time.Duration,
	log *logger.Logger,
) *Reconciler {
	return &Reconciler{
		store:    store,
		slots:    slots,
		events:   events,
		clock:    clock,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
	}
}

// Start launches the reconciliation loop. It runs an immediate pass and
// then ticks on the configured interval until Stop is called or ctx is
// cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.run(ctx)
}

// Stop terminates the loop and waits for an in-flight pass to finish.
// Safe to call more than once.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.wg.Wait()
}

func (r *Reconciler) run(ctx context.Context) {
	defer r.wg.Done()

	r.log.Info("Status reconciler started", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("Status reconciler stopping", "reason", "context cancelled")
			return
		case <-r.stop:
			r.log.Info("Status reconciler stopping", "reason", "stop requested")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// transition is one pending status move computed against the pass clock.
type transition struct {
	reservation *model.Reservation
	to          string
}

// Tick performs a single reconciliation pass. Failures are logged and
// the affected records skipped; a pass never brings the service down.
func (r *Reconciler) Tick(ctx context.Context) {
	now := r.clock.Now().UTC()

	reservations, err := r.store.FindAll(ctx)
	if err != nil {
		r.log.Error("Reconciliation pass failed to load reservations", "error", err)
		return
	}

	bySlot := make(map[string][]transition)
	for _, reservation := range reservations {
		next := nextStatus(reservation, now)
		if next == "" {
			continue
		}
		bySlot[reservation.SlotID] = append(bySlot[reservation.SlotID], transition{
			reservation: reservation,
			to:          next,
		})
	}
	if len(bySlot) == 0 {
		return
	}

	slotIDs := make([]string, 0, len(bySlot))
	for id := range bySlot {
		slotIDs = append(slotIDs, id)
	}

	slots, err := r.slots.FindByIDs(ctx, slotIDs)
	if err != nil {
		r.log.Error("Reconciliation pass failed to load slots", "error", err)
		return
	}
	slotMap := make(map[string]*model.Slot, len(slots))
	for _, slot := range slots {
		slotMap[slot.ID] = slot
	}

	for slotID, transitions := range bySlot {
		if _, ok := slotMap[slotID]; !ok {
			r.log.Warn("Skipping reservations for missing slot", "slot_id", slotID, "count", len(transitions))
			continue
		}
		r.reconcileSlot(ctx, slotID, transitions, now)
	}
}

// nextStatus returns the status the reservation should move to as of
// now, or empty if it is already where it belongs. A window that ended
// while the reservation was still upcoming jumps straight to completed.
func nextStatus(reservation *model.Reservation, now time.Time) string {
	switch reservation.Status {
	case model.StatusUpcoming:
		if !now.Before(reservation.Window.End) {
			return model.StatusCompleted
		}
		if !now.Before(reservation.Window.Start) {
			return model.StatusActive
		}
	case model.StatusActive:
		if !now.Before(reservation.Window.End) {
			return model.StatusCompleted
		}
	}
	return ""
}

// reconcileSlot applies every pending transition for one slot. The slot
// is re-read and written inside one transaction together with the status
// updates, so a booking that appends to the same ledger concurrently is
// serialized against the pass instead of overwritten by it. A failed
// group leaves nothing half-applied and is retried whole next pass.
func (r *Reconciler) reconcileSlot(ctx context.Context, slotID string, transitions []transition, now time.Time) {
	err := r.slots.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		slot, err := r.slots.FindByID(sessCtx, slotID)
		if err != nil {
			return err
		}

		changed := false
		for _, t := range transitions {
			idx := slot.IntervalAt(t.reservation.Window.Start, t.reservation.Window.End)
			if idx < 0 {
				continue
			}
			switch t.to {
			case model.StatusActive:
				if !slot.Timing[idx].IsReserved {
					slot.Timing[idx].IsReserved = true
					slot.Timing[idx].ReservedBy = t.reservation.UserID
					changed = true
				}
			case model.StatusCompleted:
				if slot.Timing[idx].IsReserved {
					slot.Timing[idx].IsReserved = false
					slot.Timing[idx].ReservedBy = ""
					changed = true
				}
			}
		}

		if available := !slot.OccupiedAt(now); slot.IsAvailable != available {
			slot.IsAvailable = available
			changed = true
		}

		if changed {
			if err := r.slots.Replace(sessCtx, slot); err != nil {
				return err
			}
		}

		for _, t := range transitions {
			if err := r.store.UpdateStatus(sessCtx, t.reservation.ID, t.to); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.log.Error("Failed to reconcile slot", "slot_id", slotID, "count", len(transitions), "error", err)
		return
	}

	for _, t := range transitions {
		r.log.Info("Reservation status reconciled",
			"reservation_id", t.reservation.ID,
			"from", t.reservation.Status,
			"to", t.to,
		)
		t.reservation.Status = t.to
		r.publishTransition(ctx, t)
	}
}

func (r *Reconciler) publishTransition(ctx context.Context, t transition) {
	if r.events == nil {
		return
	}

	eventType := kafka.EventReservationActivated
	if t.to == model.StatusCompleted {
		eventType = kafka.EventReservationCompleted
	}

	msg := kafka.NewMessage().
		WithKey(t.reservation.ID).
		WithEventType(eventType).
		WithSource("reconciler").
		WithValue(t.reservation).
		Build()

	if err := r.events.Publish(ctx, msg); err != nil {
		r.log.Warn("Failed to publish reconciliation event",
			"event_type", eventType,
			"reservation_id", t.reservation.ID,
			"error", err,
		)
	}
}
