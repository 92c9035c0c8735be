package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "parkhive"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Cadence of the reservation status sweep. Worst-case scheduling
	// drift for a status transition is one interval.
	DefaultReconcileInterval = 15 * time.Second

	// Advisory per-slot lock lifetime. Long enough to cover the
	// overlap-check-then-append transaction, short enough that a
	// crashed holder does not freeze the slot.
	DefaultSlotLockTTL = 10 * time.Second

	DefaultReservationEventsTopic    = "parkhive.reservation-events"
	DefaultReservationEventsDLQTopic = "parkhive.reservation-events.dlq"

	DefaultPaginationLimit = 100
)
