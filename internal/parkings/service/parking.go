package service

import (
	"context"
	"errors"

	parkingserrors "parkhive/internal/parkings/errors"
	"parkhive/internal/parkings/repository"
	"parkhive/internal/parkings/validator"
	reservationsrepo "parkhive/internal/reservations/repository"
	slotsrepo "parkhive/internal/slots/repository"
	"parkhive/pkg/config"
	apperrors "parkhive/pkg/errors"
	"parkhive/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

type ParkingService interface {
	Create(ctx context.Context, parking *model.Parking) error
	GetAll(ctx context.Context, limit int, offset int) ([]*model.Parking, int64, error)
	GetByID(ctx context.Context, id string) (*model.ParkingDetail, error)
	Update(ctx context.Context, id string, update *model.ParkingUpdate) error
	Delete(ctx context.Context, id string) error
}

type parkingService struct {
	repo         repository.ParkingRepository
	slots        slotsrepo.SlotRepository
	reservations reservationsrepo.ReservationRepository
	validator    *validator.ParkingValidator
	cfg          *config.Config
}

func NewParkingService(
	repo repository.ParkingRepository,
	slots slotsrepo.SlotRepository,
	reservations reservationsrepo.ReservationRepository,
	validator *validator.ParkingValidator,
	cfg *config.Config,
) ParkingService {
	return &parkingService{
		repo:         repo,
		slots:        slots,
		reservations: reservations,
		validator:    validator,
		cfg:          cfg,
	}
}

// Create registers a parking location and its slot fleet. One slot
// document per spot, positions 1..TotalSpots, all created in the same
// transaction as the parking document so a partial failure leaves no
// orphaned slots.
func (s *parkingService) Create(ctx context.Context, parking *model.Parking) error {
	parking.AvailableSpots = parking.TotalSpots

	if err := s.validator.Validate(parking); err != nil {
		s.cfg.Log.Warn("Parking validation failed", "error", err)
		return apperrors.Validation("Parking validation failed", map[string]any{"error": err.Error()})
	}

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		slots := make([]*model.Slot, 0, parking.TotalSpots)
		for position := 1; position <= parking.TotalSpots; position++ {
			slots = append(slots, &model.Slot{
				Position:    position,
				IsAvailable: true,
				Timing:      []model.TimeInterval{},
			})
		}

		if err := s.slots.CreateMany(sessCtx, slots); err != nil {
			return apperrors.Internal("Failed to create slots", err)
		}

		parking.SlotIDs = make([]string, 0, len(slots))
		for _, slot := range slots {
			parking.SlotIDs = append(parking.SlotIDs, slot.ID)
		}

		if err := s.repo.Create(sessCtx, parking); err != nil {
			return apperrors.Internal("Failed to create parking", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create parking", "name", parking.Name, "error", err)
		return err
	}

	s.cfg.Log.Info("Parking created successfully",
		"id", parking.ID,
		"name", parking.Name,
		"total_spots", parking.TotalSpots,
	)
	return nil
}

func (s *parkingService) GetAll(ctx context.Context, limit int, offset int) ([]*model.Parking, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = int(config.NormalizeOffset(int64(offset)))

	count, err := s.repo.Count(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to count parkings", "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve parkings", err)
	}

	parkings, err := s.repo.FindAll(ctx, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list parkings", "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve parkings", err)
	}

	return parkings, count, nil
}

func (s *parkingService) GetByID(ctx context.Context, id string) (*model.ParkingDetail, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Parking ID cannot be empty")
	}

	parking, err := s.findParking(ctx, id)
	if err != nil {
		return nil, err
	}

	slots, err := s.slots.FindByIDs(ctx, parking.SlotIDs)
	if err != nil {
		s.cfg.Log.Error("Failed to load slots for parking", "parking_id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve slots", err)
	}

	return &model.ParkingDetail{Parking: *parking, Slots: slots}, nil
}

func (s *parkingService) Update(ctx context.Context, id string, update *model.ParkingUpdate) error {
	if id == "" {
		return apperrors.InvalidInput("Parking ID cannot be empty")
	}

	if err := s.validator.ValidateUpdate(update); err != nil {
		s.cfg.Log.Warn("Parking update validation failed", "parking_id", id, "error", err)
		return apperrors.Validation("Parking update validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Update(ctx, id, update); err != nil {
		if errors.Is(err, parkingserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Parking", id)
		}
		if errors.Is(err, parkingserrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid parking ID format")
		}
		s.cfg.Log.Error("Failed to update parking", "parking_id", id, "error", err)
		return apperrors.Internal("Failed to update parking", err)
	}

	s.cfg.Log.Info("Parking updated", "id", id)
	return nil
}

// Delete removes the parking and everything hanging off it. The
// reservations, the slots and the parking document go in one
// transaction.
func (s *parkingService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Parking ID cannot be empty")
	}

	parking, err := s.findParking(ctx, id)
	if err != nil {
		return err
	}

	var removedReservations, removedSlots int64
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		removedReservations, err = s.reservations.DeleteByParking(sessCtx, id)
		if err != nil {
			return apperrors.Internal("Failed to delete reservations", err)
		}

		removedSlots, err = s.slots.DeleteByIDs(sessCtx, parking.SlotIDs)
		if err != nil {
			return apperrors.Internal("Failed to delete slots", err)
		}

		if err := s.repo.Delete(sessCtx, id); err != nil {
			return apperrors.Internal("Failed to delete parking", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to delete parking", "parking_id", id, "error", err)
		return err
	}

	s.cfg.Log.Info("Parking deleted",
		"id", id,
		"reservations_removed", removedReservations,
		"slots_removed", removedSlots,
	)
	return nil
}

func (s *parkingService) findParking(ctx context.Context, id string) (*model.Parking, error) {
	parking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, parkingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Parking", id)
		}
		if errors.Is(err, parkingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid parking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve parking", err)
	}
	return parking, nil
}
