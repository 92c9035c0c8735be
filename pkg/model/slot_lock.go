package model

import "time"

// SlotLock is an advisory lock document serializing booking writes to a
// single slot. Creation races are resolved by the unique _id constraint;
// a TTL index on expires_at reaps locks left behind by crashed holders.
type SlotLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
