package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusExpired   BookingStatus = "expired"
)

// Terminal reports whether no further status transition is permitted.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingStatusCompleted, BookingStatusCancelled, BookingStatusExpired:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type Role string

const (
	RoleMentor  Role = "mentor"
	RoleLearner Role = "learner"
)

// Booking is a learner's claim on a slot. It exclusively owns the slot's
// reservation for its lifetime: the slot stays booked while the booking is
// pending or confirmed and is released on every terminal transition except
// completed.
type Booking struct {
	ID            uuid.UUID
	SlotID        uuid.UUID
	MentorID      uuid.UUID
	UserID        uuid.UUID
	AmountCents   int64
	Currency      string
	Status        BookingStatus
	PaymentStatus PaymentStatus
	PayDeadline   time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Session window, denormalized from the slot on reads.
	SlotStartsAt time.Time
	SlotEndsAt   time.Time
}

// Participant returns the caller's role in the booking, if any.
func (b Booking) Participant(userID uuid.UUID) (Role, bool) {
	switch userID {
	case b.MentorID:
		return RoleMentor, true
	case b.UserID:
		return RoleLearner, true
	}
	return "", false
}
