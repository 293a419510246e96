package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentEventType string

const (
	PaymentEventSucceeded PaymentEventType = "succeeded"
	PaymentEventFailed    PaymentEventType = "failed"
)

// EventOutcome records what applying a provider event did to the booking.
// It is persisted with the event so duplicate deliveries replay the same
// answer without re-applying effects.
type EventOutcome string

const (
	// OutcomeReceived marks a ledger row whose processing has not finished.
	OutcomeReceived EventOutcome = "received"
	// OutcomeConfirmed means the event confirmed a pending booking.
	OutcomeConfirmed EventOutcome = "confirmed"
	// OutcomeReconfirmed means a late success re-reserved the freed slot.
	OutcomeReconfirmed EventOutcome = "reconfirmed"
	// OutcomeFailed means the event cancelled the booking and freed the slot.
	OutcomeFailed EventOutcome = "failed"
	// OutcomeDuplicate means the booking was already in the target state.
	OutcomeDuplicate EventOutcome = "duplicate"
	// OutcomeUnmatched means the correlation key resolved no booking.
	OutcomeUnmatched EventOutcome = "unmatched"
	// OutcomeNeedsReview flags a late success whose slot was re-taken.
	OutcomeNeedsReview EventOutcome = "needs_review"
)

// NeedsOperator reports whether the outcome requires manual reconciliation.
func (o EventOutcome) NeedsOperator() bool {
	return o == OutcomeUnmatched || o == OutcomeNeedsReview
}

// PaymentEvent is one row of the append-only idempotency ledger. EventID is
// the provider's idempotency key; the same key is applied at most once.
type PaymentEvent struct {
	EventID        string
	CorrelationKey string
	BookingID      *uuid.UUID
	Type           PaymentEventType
	AmountCents    int64
	OccurredAt     time.Time
	Outcome        EventOutcome
	ReceivedAt     time.Time
}
