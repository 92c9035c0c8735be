package main

import (
	"context"

	"parkhive/internal/parkings/repository"
	reservationshandler "parkhive/internal/reservations/handler"
	reservationsrepo "parkhive/internal/reservations/repository"
	"parkhive/internal/reservations/service"
	"parkhive/internal/reservations/validator"
	"parkhive/internal/scheduler"
	slotsrepo "parkhive/internal/slots/repository"
	"parkhive/pkg/app"
	"parkhive/pkg/config"
	"parkhive/pkg/kafka"
	kafkaconfig "parkhive/pkg/kafka/config"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Reservations service")

	reservationRepo := reservationsrepo.NewMongoReservationRepository(cfg)
	lockRepo := reservationsrepo.NewSlotLockRepository(cfg)
	slotRepo := slotsrepo.NewMongoSlotRepository(cfg)
	parkingRepo := repository.NewMongoParkingRepository(cfg)

	if err := lockRepo.EnsureIndexes(context.Background()); err != nil {
		cfg.Log.Fatal("Failed to ensure slot lock indexes", "error", err)
	}

	events := initProducer(cfg)
	if events != nil {
		defer events.Close()
	}

	reservationService := service.NewReservationService(
		reservationRepo,
		lockRepo,
		slotRepo,
		parkingRepo,
		validator.NewReservationValidator(cfg.Log),
		eventPublisher(events),
		cfg,
	)

	reconciler := scheduler.NewReconciler(
		reservationRepo,
		slotRepo,
		eventPublisher(events),
		scheduler.RealClock{},
		cfg.ReconcileInterval,
		cfg.Log,
	)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(reservationshandler.NewReservationHandler(reservationService, cfg.Log))
	serverApp.AddWorker(reconciler)
	serverApp.Run()
}

// initProducer builds the Kafka producer for lifecycle events. The
// event stream is best-effort: the service comes up without it.
func initProducer(cfg *config.Config) *kafka.Producer {
	kafkaCfg, err := kafkaconfig.Load()
	if err != nil {
		cfg.Log.Warn("Kafka configuration invalid, lifecycle events disabled", "error", err)
		return nil
	}

	producer, err := kafka.NewProducer(kafkaCfg, cfg.ReservationEventsTopic, cfg.ReservationEventsDLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Warn("Kafka producer unavailable, lifecycle events disabled", "error", err)
		return nil
	}
	return producer
}

// eventPublisher keeps a nil *Producer from sneaking into a non-nil
// interface value.
func eventPublisher(p *kafka.Producer) service.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}
