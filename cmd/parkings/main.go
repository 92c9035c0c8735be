package main

import (
	"parkhive/internal/parkings/handler"
	"parkhive/internal/parkings/repository"
	"parkhive/internal/parkings/service"
	"parkhive/internal/parkings/validator"
	reservationsrepo "parkhive/internal/reservations/repository"
	slotsrepo "parkhive/internal/slots/repository"
	"parkhive/pkg/app"
	"parkhive/pkg/config"
)

const ServiceName = "parkings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Parkings service")

	parkingService := initServices(cfg)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewParkingHandler(parkingService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.ParkingService {
	parkingValidator := validator.NewParkingValidator(cfg.Log)
	parkingRepo := repository.NewMongoParkingRepository(cfg)
	slotRepo := slotsrepo.NewMongoSlotRepository(cfg)
	reservationRepo := reservationsrepo.NewMongoReservationRepository(cfg)

	parkingService := service.NewParkingService(
		parkingRepo,
		slotRepo,
		reservationRepo,
		parkingValidator,
		cfg,
	)

	cfg.Log.Info("Parking service initialized", "database", cfg.MongoDatabaseName)
	return parkingService
}
