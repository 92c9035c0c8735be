package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationserrors "parkhive/internal/reservations/errors"
	"parkhive/internal/reservations/repository"
	"parkhive/internal/reservations/validator"
	slotserrors "parkhive/internal/slots/errors"
	slotsrepo "parkhive/internal/slots/repository"
	"parkhive/pkg/config"
	apperrors "parkhive/pkg/errors"
	"parkhive/pkg/kafka"
	"parkhive/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// EventPublisher emits reservation lifecycle events. Publishing is
// best-effort: a failed publish never fails the operation that caused it.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type ReservationService interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	Cancel(ctx context.Context, id string, userID string) error
	GetByID(ctx context.Context, id string) (*model.ReservationDetail, error)
	GetByUser(ctx context.Context, userID string) ([]*model.ReservationDetail, error)
}

// ParkingLookup is the slice of the parking repository this service
// needs for populating reservation details.
type ParkingLookup interface {
	FindByIDs(ctx context.Context, ids []string) ([]*model.Parking, error)
}

type reservationService struct {
	repo      repository.ReservationRepository
	lockRepo  repository.SlotLockRepository
	slots     slotsrepo.SlotRepository
	parkings  ParkingLookup
	validator *validator.ReservationValidator
	events    EventPublisher
	cfg       *config.Config
}

func NewReservationService(
	repo repository.ReservationRepository,
	lockRepo repository.SlotLockRepository,
	slots slotsrepo.SlotRepository,
	parkings ParkingLookup,
	validator *validator.ReservationValidator,
	events EventPublisher,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:      repo,
		lockRepo:  lockRepo,
		slots:     slots,
		parkings:  parkings,
		validator: validator,
		events:    events,
		cfg:       cfg,
	}
}

// Create admits a booking against the slot's timing ledger and records
// the reservation. The overlap check, the ledger append and the
// reservation insert run inside one transaction under a per-slot
// advisory lock, so two concurrent requests for overlapping windows on
// the same slot cannot both pass the check.
func (s *reservationService) Create(ctx context.Context, reservation *model.Reservation) error {
	s.applyDefaults(reservation)

	if err := s.validate(reservation); err != nil {
		return err
	}

	lockID, err := s.acquireSlotLock(ctx, reservation.SlotID)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := s.releaseSlotLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		slot, err := s.loadSlot(sessCtx, reservation.SlotID)
		if err != nil {
			return err
		}

		if conflict := slot.ConflictingInterval(reservation.Window.Start, reservation.Window.End); conflict != nil {
			return apperrors.Conflict(fmt.Sprintf(
				"This time window is already reserved (%s - %s)",
				conflict.Start.Format(time.RFC3339),
				conflict.End.Format(time.RFC3339),
			))
		}

		slot.Timing = append(slot.Timing, model.TimeInterval{
			Start:      reservation.Window.Start,
			End:        reservation.Window.End,
			IsReserved: true,
			ReservedBy: reservation.UserID,
		})

		if err := s.slots.Replace(sessCtx, slot); err != nil {
			return apperrors.Internal("Failed to update slot ledger", err)
		}
		if err := s.repo.Create(sessCtx, reservation); err != nil {
			return apperrors.Internal("Failed to create reservation", err)
		}

		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create reservation",
			"slot_id", reservation.SlotID,
			"user_id", reservation.UserID,
			"error", err,
		)
		return err
	}

	s.cfg.Log.Info("Reservation created successfully",
		"id", reservation.ID,
		"slot_id", reservation.SlotID,
		"parking_id", reservation.ParkingID,
		"start", reservation.Window.Start,
		"end", reservation.Window.End,
	)
	s.publishEvent(ctx, kafka.EventReservationCreated, reservation)
	return nil
}

// Cancel marks the reservation cancelled and releases its ledger entry,
// matched by exact start/end equality. Cancellation is permitted before
// or during the window; only completed reservations are immutable.
func (s *reservationService) Cancel(ctx context.Context, id string, userID string) error {
	if id == "" {
		return apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	reservation, err := s.findReservation(ctx, id)
	if err != nil {
		return err
	}

	if reservation.Status == model.StatusCompleted {
		return apperrors.Conflict("This reservation has already been completed")
	}
	if reservation.UserID != userID {
		return apperrors.Forbidden("Only the reservation owner may cancel it")
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		slot, err := s.loadSlot(sessCtx, reservation.SlotID)
		if err != nil {
			return err
		}

		if idx := slot.IntervalAt(reservation.Window.Start, reservation.Window.End); idx >= 0 {
			slot.Timing[idx].IsReserved = false
			slot.Timing[idx].ReservedBy = ""
			// A mid-window cancel frees the slot immediately; the
			// reconciler only revisits slots with pending transitions.
			slot.IsAvailable = !slot.OccupiedAt(time.Now().UTC())
			if err := s.slots.Replace(sessCtx, slot); err != nil {
				return apperrors.Internal("Failed to release slot ledger entry", err)
			}
		}

		if err := s.repo.UpdateStatus(sessCtx, id, model.StatusCancelled); err != nil {
			return apperrors.Internal("Failed to update reservation status", err)
		}

		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to cancel reservation", "id", id, "error", err)
		return err
	}

	reservation.Status = model.StatusCancelled
	s.cfg.Log.Info("Reservation cancelled", "id", id, "slot_id", reservation.SlotID)
	s.publishEvent(ctx, kafka.EventReservationCancelled, reservation)
	return nil
}

func (s *reservationService) GetByID(ctx context.Context, id string) (*model.ReservationDetail, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	reservation, err := s.findReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	details, err := s.populate(ctx, []*model.Reservation{reservation})
	if err != nil {
		return nil, err
	}
	return details[0], nil
}

func (s *reservationService) GetByUser(ctx context.Context, userID string) ([]*model.ReservationDetail, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	reservations, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		s.cfg.Log.Error("Failed to list user reservations", "user_id", userID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve reservations", err)
	}

	return s.populate(ctx, reservations)
}

// --- Helpers ---

func (s *reservationService) applyDefaults(r *model.Reservation) {
	r.Status = model.StatusUpcoming
	r.Window.Start = r.Window.Start.UTC()
	r.Window.End = r.Window.End.UTC()
}

func (s *reservationService) validate(reservation *model.Reservation) error {
	if err := s.validator.Validate(reservation); err != nil {
		s.cfg.Log.Warn("Reservation validation failed", "error", err)
		return apperrors.Validation("Reservation validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *reservationService) findReservation(ctx context.Context, id string) (*model.Reservation, error) {
	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		if errors.Is(err, reservationserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid reservation ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve reservation", err)
	}
	return reservation, nil
}

func (s *reservationService) loadSlot(ctx context.Context, slotID string) (*model.Slot, error) {
	slot, err := s.slots.FindByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, slotserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Slot", slotID)
		}
		if errors.Is(err, slotserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid slot ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve slot", err)
	}
	return slot, nil
}

// populate joins reservations with their slot and parking documents,
// one batch query per collection.
func (s *reservationService) populate(ctx context.Context, reservations []*model.Reservation) ([]*model.ReservationDetail, error) {
	slotIDs := make([]string, 0, len(reservations))
	parkingIDs := make([]string, 0, len(reservations))
	seenSlots := make(map[string]bool)
	seenParkings := make(map[string]bool)
	for _, r := range reservations {
		if !seenSlots[r.SlotID] {
			seenSlots[r.SlotID] = true
			slotIDs = append(slotIDs, r.SlotID)
		}
		if !seenParkings[r.ParkingID] {
			seenParkings[r.ParkingID] = true
			parkingIDs = append(parkingIDs, r.ParkingID)
		}
	}

	details := make([]*model.ReservationDetail, 0, len(reservations))
	if len(reservations) == 0 {
		return details, nil
	}

	slots, err := s.slots.FindByIDs(ctx, slotIDs)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve slots", err)
	}
	parkings, err := s.parkings.FindByIDs(ctx, parkingIDs)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve parking locations", err)
	}

	slotMap := make(map[string]*model.Slot, len(slots))
	for _, slot := range slots {
		slotMap[slot.ID] = slot
	}
	parkingMap := make(map[string]*model.Parking, len(parkings))
	for _, parking := range parkings {
		parkingMap[parking.ID] = parking
	}

	for _, r := range reservations {
		details = append(details, &model.ReservationDetail{
			Reservation: *r,
			Slot:        slotMap[r.SlotID],
			Parking:     parkingMap[r.ParkingID],
		})
	}
	return details, nil
}

// acquireSlotLock creates an advisory lock serializing booking writes to
// one slot. Returns a conflict error if another request holds the slot.
func (s *reservationService) acquireSlotLock(ctx context.Context, slotID string) (string, error) {
	lockID := fmt.Sprintf("slot_lock_%s", slotID)

	lock := &model.SlotLock{
		ID:        lockID,
		ExpiresAt: time.Now().UTC().Add(s.cfg.SlotLockTTL),
	}

	_, err := s.lockRepo.Create(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict("This slot is currently being booked by another request. Please try again.")
		}
		return "", apperrors.Internal("Failed to acquire slot lock", err)
	}

	return lockID, nil
}

// releaseSlotLock removes the advisory lock
func (s *reservationService) releaseSlotLock(ctx context.Context, lockID string) error {
	return s.lockRepo.Delete(ctx, lockID)
}

func (s *reservationService) publishEvent(ctx context.Context, eventType string, reservation *model.Reservation) {
	if s.events == nil {
		return
	}

	msg := kafka.NewMessage().
		WithKey(reservation.ID).
		WithEventType(eventType).
		WithSource("reservations").
		WithValue(reservation).
		Build()

	if err := s.events.Publish(ctx, msg); err != nil {
		s.cfg.Log.Warn("Failed to publish reservation event",
			"event_type", eventType,
			"reservation_id", reservation.ID,
			"error", err,
		)
	}
}
