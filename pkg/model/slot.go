package model

import "time"

// TimeInterval is one entry in a slot's booking ledger. Cancelled and
// expired entries are kept with IsReserved=false, so the ledger doubles
// as booking history.
type TimeInterval struct {
	Start      time.Time `json:"start" bson:"start" validate:"required"`
	End        time.Time `json:"end" bson:"end" validate:"required,gtfield=Start"`
	IsReserved bool      `json:"is_reserved" bson:"is_reserved"`
	ReservedBy string    `json:"reserved_by,omitempty" bson:"reserved_by,omitempty"`
}

// Covers reports whether t falls inside the half-open range [Start, End).
func (ti *TimeInterval) Covers(t time.Time) bool {
	return !t.Before(ti.Start) && t.Before(ti.End)
}

// Matches reports exact start/end equality. Reservations reference their
// ledger entry by timestamp pair, not by a separate interval ID.
func (ti *TimeInterval) Matches(start, end time.Time) bool {
	return ti.Start.Equal(start) && ti.End.Equal(end)
}

// Slot is one physical parking space. IsAvailable is the aggregate flag
// maintained by the reconciler: false while a reserved interval covers
// the current time.
type Slot struct {
	ID          string         `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Position    int            `json:"position" bson:"position" validate:"required,min=1"`
	IsAvailable bool           `json:"is_available" bson:"is_available"`
	Timing      []TimeInterval `json:"timing" bson:"timing"`
	CreatedAt   time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" bson:"updated_at"`
}

// ConflictingInterval returns the first reserved ledger entry that
// overlaps [start, end), or nil. The test is half-open: windows that
// only touch at a boundary do not conflict.
func (s *Slot) ConflictingInterval(start, end time.Time) *TimeInterval {
	for i := range s.Timing {
		entry := &s.Timing[i]
		if entry.IsReserved && start.Before(entry.End) && end.After(entry.Start) {
			return entry
		}
	}
	return nil
}

// IntervalAt returns the index of the ledger entry with exactly the given
// bounds, or -1.
func (s *Slot) IntervalAt(start, end time.Time) int {
	for i := range s.Timing {
		if s.Timing[i].Matches(start, end) {
			return i
		}
	}
	return -1
}

// OccupiedAt reports whether any reserved ledger entry covers the instant.
func (s *Slot) OccupiedAt(t time.Time) bool {
	for i := range s.Timing {
		if s.Timing[i].IsReserved && s.Timing[i].Covers(t) {
			return true
		}
	}
	return false
}
