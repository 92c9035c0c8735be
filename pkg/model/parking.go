package model

import "time"

type ParkingHours struct {
	Start string `json:"start" bson:"start" validate:"required"`
	End   string `json:"end" bson:"end" validate:"required"`
}

// Parking is one parking location. TotalSpots/AvailableSpots are set at
// creation time and maintained administratively; the scheduler does not
// re-derive them from slot-level availability.
type Parking struct {
	ID             string       `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name           string       `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Address        string       `json:"address" bson:"address" validate:"required,min=2,max=200"`
	Banner         string       `json:"banner" bson:"banner" validate:"required,url"`
	Description    string       `json:"description" bson:"description" validate:"required,max=2000"`
	Hours          ParkingHours `json:"hours" bson:"hours" validate:"required"`
	RatePerHour    float64      `json:"rate_per_hour" bson:"rate_per_hour" validate:"required,gt=0"`
	TotalSpots     int          `json:"total_spots" bson:"total_spots" validate:"required,min=1,max=1000"`
	AvailableSpots int          `json:"available_spots" bson:"available_spots" validate:"min=0"`
	Tags           []string     `json:"tags" bson:"tags" validate:"required,dive,min=1,max=40"`
	Rating         float64      `json:"rating" bson:"rating"`
	SlotIDs        []string     `json:"slots" bson:"slots"`
	CreatedAt      time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" bson:"updated_at"`
}

// ParkingDetail is a parking with its slot documents populated.
type ParkingDetail struct {
	Parking `bson:",inline"`
	Slots   []*Slot `json:"slot_details,omitempty" bson:"-"`
}

// ParkingUpdate carries the mutable location fields for PATCH requests.
// Slot references are never updated through this path.
type ParkingUpdate struct {
	Name           string        `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Address        string        `json:"address,omitempty" validate:"omitempty,min=2,max=200"`
	Banner         string        `json:"banner,omitempty" validate:"omitempty,url"`
	Description    string        `json:"description,omitempty" validate:"omitempty,max=2000"`
	Hours          *ParkingHours `json:"hours,omitempty" validate:"omitempty"`
	RatePerHour    *float64      `json:"rate_per_hour,omitempty" validate:"omitempty,gt=0"`
	AvailableSpots *int          `json:"available_spots,omitempty" validate:"omitempty,min=0"`
	Tags           []string      `json:"tags,omitempty" validate:"omitempty,dive,min=1,max=40"`
}
