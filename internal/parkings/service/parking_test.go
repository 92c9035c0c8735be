package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	parkingserrors "parkhive/internal/parkings/errors"
	"parkhive/internal/parkings/validator"
	"parkhive/pkg/config"
	mongotx "parkhive/pkg/db/mongo"
	apperrors "parkhive/pkg/errors"
	"parkhive/pkg/logger"
	"parkhive/pkg/model"
)

// Mock repositories for testing

type mockParkingRepository struct {
	createFunc    func(ctx context.Context, parking *model.Parking) error
	findAllFunc   func(ctx context.Context, limit int, offset int) ([]*model.Parking, error)
	countFunc     func(ctx context.Context) (int64, error)
	findByIDFunc  func(ctx context.Context, id string) (*model.Parking, error)
	findByIDsFunc func(ctx context.Context, ids []string) ([]*model.Parking, error)
	updateFunc    func(ctx context.Context, id string, update *model.ParkingUpdate) error
	deleteFunc    func(ctx context.Context, id string) error
}

func (m *mockParkingRepository) Create(ctx context.Context, parking *model.Parking) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, parking)
	}
	parking.ID = "65f000000000000000000003"
	return nil
}

func (m *mockParkingRepository) FindAll(ctx context.Context, limit int, offset int) ([]*model.Parking, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, limit, offset)
	}
	return []*model.Parking{}, nil
}

func (m *mockParkingRepository) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

func (m *mockParkingRepository) FindByID(ctx context.Context, id string) (*model.Parking, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, parkingserrors.ErrNotFound
}

func (m *mockParkingRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.Parking, error) {
	if m.findByIDsFunc != nil {
		return m.findByIDsFunc(ctx, ids)
	}
	return []*model.Parking{}, nil
}

func (m *mockParkingRepository) Update(ctx context.Context, id string, update *model.ParkingUpdate) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, update)
	}
	return nil
}

func (m *mockParkingRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockParkingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockSlotRepository struct {
	createManyFunc  func(ctx context.Context, slots []*model.Slot) error
	findByIDsFunc   func(ctx context.Context, ids []string) ([]*model.Slot, error)
	deleteByIDsFunc func(ctx context.Context, ids []string) (int64, error)
}

func (m *mockSlotRepository) CreateMany(ctx context.Context, slots []*model.Slot) error {
	if m.createManyFunc != nil {
		return m.createManyFunc(ctx, slots)
	}
	for i, slot := range slots {
		slot.ID = fmt.Sprintf("65f10000000000000000%04d", i)
	}
	return nil
}

func (m *mockSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSlotRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.Slot, error) {
	if m.findByIDsFunc != nil {
		return m.findByIDsFunc(ctx, ids)
	}
	return []*model.Slot{}, nil
}

func (m *mockSlotRepository) Replace(ctx context.Context, slot *model.Slot) error {
	return nil
}

func (m *mockSlotRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if m.deleteByIDsFunc != nil {
		return m.deleteByIDsFunc(ctx, ids)
	}
	return int64(len(ids)), nil
}

func (m *mockSlotRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockReservationRepository struct {
	deleteByParkingFunc func(ctx context.Context, parkingID string) (int64, error)
}

func (m *mockReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	return nil
}

func (m *mockReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	return nil, errors.New("not implemented")
}

func (m *mockReservationRepository) FindByUser(ctx context.Context, userID string) ([]*model.Reservation, error) {
	return []*model.Reservation{}, nil
}

func (m *mockReservationRepository) FindAll(ctx context.Context) ([]*model.Reservation, error) {
	return []*model.Reservation{}, nil
}

func (m *mockReservationRepository) UpdateStatus(ctx context.Context, id string, status string) error {
	return nil
}

func (m *mockReservationRepository) DeleteByParking(ctx context.Context, parkingID string) (int64, error) {
	if m.deleteByParkingFunc != nil {
		return m.deleteByParkingFunc(ctx, parkingID)
	}
	return 0, nil
}

func (m *mockReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:   "error",
			Format:  logger.JSON,
			Service: "test",
		}),
	}
}

func testService(repo *mockParkingRepository, slots *mockSlotRepository, reservations *mockReservationRepository) *parkingService {
	cfg := testConfig()
	return &parkingService{
		repo:         repo,
		slots:        slots,
		reservations: reservations,
		validator:    validator.NewParkingValidator(cfg.Log),
		cfg:          cfg,
	}
}

func validParking() *model.Parking {
	return &model.Parking{
		Name:        "Central Garage",
		Address:     "12 Harbor Street",
		Banner:      "https://cdn.example.com/banners/central.png",
		Description: "Covered parking near the harbor",
		Hours:       model.ParkingHours{Start: "06:00", End: "23:00"},
		RatePerHour: 4.5,
		TotalSpots:  5,
		Tags:        []string{"covered"},
	}
}

func TestCreateBuildsSlotFleet(t *testing.T) {
	var createdSlots []*model.Slot
	slots := &mockSlotRepository{
		createManyFunc: func(ctx context.Context, s []*model.Slot) error {
			createdSlots = s
			for i, slot := range s {
				slot.ID = fmt.Sprintf("65f10000000000000000%04d", i)
			}
			return nil
		},
	}
	svc := testService(&mockParkingRepository{}, slots, &mockReservationRepository{})

	parking := validParking()
	if err := svc.Create(context.Background(), parking); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(createdSlots) != 5 {
		t.Fatalf("expected 5 slots, got %d", len(createdSlots))
	}
	for i, slot := range createdSlots {
		if slot.Position != i+1 {
			t.Errorf("slot %d: expected position %d, got %d", i, i+1, slot.Position)
		}
		if !slot.IsAvailable {
			t.Errorf("slot %d: expected available", i)
		}
		if len(slot.Timing) != 0 {
			t.Errorf("slot %d: expected empty timing ledger", i)
		}
	}
	if len(parking.SlotIDs) != 5 {
		t.Errorf("expected 5 slot references, got %d", len(parking.SlotIDs))
	}
	if parking.AvailableSpots != parking.TotalSpots {
		t.Errorf("expected available spots initialized to %d, got %d", parking.TotalSpots, parking.AvailableSpots)
	}
}

func TestCreateRejectsInvalidParking(t *testing.T) {
	var slotsCreated bool
	slots := &mockSlotRepository{
		createManyFunc: func(ctx context.Context, s []*model.Slot) error {
			slotsCreated = true
			return nil
		},
	}
	svc := testService(&mockParkingRepository{}, slots, &mockReservationRepository{})

	parking := validParking()
	parking.TotalSpots = 0

	err := svc.Create(context.Background(), parking)
	appErr, ok := apperrors.AsAppError(err), apperrors.IsAppError(err)
	if !ok || appErr.Code != apperrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if slotsCreated {
		t.Error("no slots may be created for an invalid parking")
	}
}

func TestDeleteCascades(t *testing.T) {
	parking := validParking()
	parking.ID = "65f000000000000000000003"
	parking.SlotIDs = []string{"65f100000000000000000000", "65f100000000000000000001"}

	var deletedReservationsFor string
	var deletedSlotIDs []string
	var deletedParking string

	repo := &mockParkingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Parking, error) {
			return parking, nil
		},
		deleteFunc: func(ctx context.Context, id string) error {
			deletedParking = id
			return nil
		},
	}
	slots := &mockSlotRepository{
		deleteByIDsFunc: func(ctx context.Context, ids []string) (int64, error) {
			deletedSlotIDs = ids
			return int64(len(ids)), nil
		},
	}
	reservations := &mockReservationRepository{
		deleteByParkingFunc: func(ctx context.Context, parkingID string) (int64, error) {
			deletedReservationsFor = parkingID
			return 3, nil
		},
	}
	svc := testService(repo, slots, reservations)

	if err := svc.Delete(context.Background(), parking.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if deletedReservationsFor != parking.ID {
		t.Errorf("expected reservations deleted for %s, got %s", parking.ID, deletedReservationsFor)
	}
	if len(deletedSlotIDs) != 2 {
		t.Errorf("expected 2 slots deleted, got %d", len(deletedSlotIDs))
	}
	if deletedParking != parking.ID {
		t.Errorf("expected parking %s deleted, got %s", parking.ID, deletedParking)
	}
}

func TestDeleteUnknownParking(t *testing.T) {
	svc := testService(&mockParkingRepository{}, &mockSlotRepository{}, &mockReservationRepository{})

	err := svc.Delete(context.Background(), "65f0000000000000000000aa")
	appErr, ok := apperrors.AsAppError(err), apperrors.IsAppError(err)
	if !ok || appErr.Code != apperrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestGetByIDPopulatesSlots(t *testing.T) {
	parking := validParking()
	parking.ID = "65f000000000000000000003"
	parking.SlotIDs = []string{"65f100000000000000000000"}

	repo := &mockParkingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Parking, error) {
			return parking, nil
		},
	}
	slots := &mockSlotRepository{
		findByIDsFunc: func(ctx context.Context, ids []string) ([]*model.Slot, error) {
			return []*model.Slot{{ID: ids[0], Position: 1, IsAvailable: true}}, nil
		},
	}
	svc := testService(repo, slots, &mockReservationRepository{})

	detail, err := svc.GetByID(context.Background(), parking.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(detail.Slots) != 1 || detail.Slots[0].Position != 1 {
		t.Errorf("expected populated slots, got %+v", detail.Slots)
	}
}

func TestGetAllNormalizesPagination(t *testing.T) {
	var gotLimit, gotOffset int
	repo := &mockParkingRepository{
		countFunc: func(ctx context.Context) (int64, error) { return 25, nil },
		findAllFunc: func(ctx context.Context, limit int, offset int) ([]*model.Parking, error) {
			gotLimit, gotOffset = limit, offset
			return []*model.Parking{}, nil
		},
	}
	svc := testService(repo, &mockSlotRepository{}, &mockReservationRepository{})

	_, count, err := svc.GetAll(context.Background(), -5, -10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 25 {
		t.Errorf("expected count 25, got %d", count)
	}
	if gotLimit <= 0 || gotOffset != 0 {
		t.Errorf("expected normalized pagination, got limit=%d offset=%d", gotLimit, gotOffset)
	}
}

func TestUpdateRejectsInvalidPatch(t *testing.T) {
	svc := testService(&mockParkingRepository{}, &mockSlotRepository{}, &mockReservationRepository{})

	rate := -1.0
	err := svc.Update(context.Background(), "65f000000000000000000003", &model.ParkingUpdate{RatePerHour: &rate})
	appErr, ok := apperrors.AsAppError(err), apperrors.IsAppError(err)
	if !ok || appErr.Code != apperrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateUnknownParking(t *testing.T) {
	repo := &mockParkingRepository{
		updateFunc: func(ctx context.Context, id string, update *model.ParkingUpdate) error {
			return parkingserrors.ErrNotFound
		},
	}
	svc := testService(repo, &mockSlotRepository{}, &mockReservationRepository{})

	err := svc.Update(context.Background(), "65f000000000000000000003", &model.ParkingUpdate{Name: "New Name"})
	appErr, ok := apperrors.AsAppError(err), apperrors.IsAppError(err)
	if !ok || appErr.Code != apperrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}
