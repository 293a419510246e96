package domain

import (
	"time"

	"github.com/google/uuid"
)

// Slot is a mentor-defined bookable time window. It is the unit of
// reservation: flipping IsBooked is the linearization point for concurrent
// booking attempts and only the booking state machine may do it.
type Slot struct {
	ID        uuid.UUID
	MentorID  uuid.UUID
	StartsAt  time.Time
	EndsAt    time.Time
	IsActive  bool
	IsBooked  bool
	CreatedAt time.Time
}

// Overlaps reports whether the slot's time range intersects [start, end).
func (s Slot) Overlaps(start, end time.Time) bool {
	return s.StartsAt.Before(end) && s.EndsAt.After(start)
}
