package model

import "time"

// Reservation lifecycle statuses. Transitions are forward-only
// (upcoming -> active -> completed); cancelled is terminal and reachable
// from upcoming or active only through an explicit cancel request.
const (
	StatusUpcoming  = "upcoming"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

type ReservationWindow struct {
	Start time.Time `json:"start" bson:"start" validate:"required"`
	End   time.Time `json:"end" bson:"end" validate:"required,gtfield=Start"`
}

// Reservation is the user-facing booking record. Its window duplicates
// the TimeInterval appended to the slot ledger at creation time; the two
// records are matched by exact timestamp equality.
type Reservation struct {
	ID        string            `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	UserID    string            `json:"user" bson:"user" validate:"required,mongodb"`
	SlotID    string            `json:"slot" bson:"slot" validate:"required,mongodb"`
	ParkingID string            `json:"parking" bson:"parking" validate:"required,mongodb"`
	Window    ReservationWindow `json:"reservation_time" bson:"reservation_time" validate:"required"`
	Price     float64           `json:"price" bson:"price" validate:"required,gt=0"`
	Status    string            `json:"status" bson:"status" validate:"required,oneof=upcoming active completed cancelled"`
	CreatedAt time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" bson:"updated_at"`
}

// ReservationDetail is a reservation joined with summaries of the slot
// and parking location it references.
type ReservationDetail struct {
	Reservation `bson:",inline"`
	Slot        *Slot    `json:"slot_detail,omitempty" bson:"-"`
	Parking     *Parking `json:"parking_detail,omitempty" bson:"-"`
}
