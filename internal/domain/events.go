package domain

import "time"

// Routing keys for outbound domain events. Notification and earnings
// collaborators subscribe to these; the engine never depends on their
// delivery succeeding.
const (
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventBookingCompleted = "booking.completed"
	EventRefundDue        = "booking.refund_due"
)

// BookingEvent is the payload published for every booking lifecycle event.
type BookingEvent struct {
	BookingID   string    `json:"booking_id"`
	SlotID      string    `json:"slot_id"`
	MentorID    string    `json:"mentor_id"`
	UserID      string    `json:"user_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// NewBookingEvent builds the common payload for a booking.
func NewBookingEvent(b Booking, reason string, at time.Time) BookingEvent {
	return BookingEvent{
		BookingID:   b.ID.String(),
		SlotID:      b.SlotID.String(),
		MentorID:    b.MentorID.String(),
		UserID:      b.UserID.String(),
		AmountCents: b.AmountCents,
		Currency:    b.Currency,
		Reason:      reason,
		OccurredAt:  at,
	}
}
