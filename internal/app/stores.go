package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mentorbay/scheduling/internal/domain"
)

// SlotStore is the persistence surface for mentor availability. WithTx on
// any store joins the transaction threaded through the context, so a service
// can compose slot and booking writes into one atomic unit.
type SlotStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Insert(ctx context.Context, slot domain.Slot) error
	Get(ctx context.Context, id uuid.UUID) (domain.Slot, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Slot, error)
	ListAvailable(ctx context.Context, mentorID uuid.UUID, from, to *time.Time, now time.Time) ([]domain.Slot, error)
	HasOverlap(ctx context.Context, mentorID uuid.UUID, start, end time.Time) (bool, error)
	Reserve(ctx context.Context, slotID uuid.UUID, now time.Time) error
	Release(ctx context.Context, slotID uuid.UUID) error
	Deactivate(ctx context.Context, slotID uuid.UUID) error
}

// BookingStore is the persistence surface for bookings.
type BookingStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Insert(ctx context.Context, b domain.Booking) error
	Get(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus, payStatus domain.PaymentStatus, now time.Time) error
	ListStalePending(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ListElapsedConfirmed(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	HasLiveForSlot(ctx context.Context, slotID uuid.UUID) (bool, error)
}

// EventLedger is the persistence surface for the payment idempotency ledger.
type EventLedger interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	InsertEvent(ctx context.Context, ev domain.PaymentEvent) (bool, error)
	GetEvent(ctx context.Context, eventID string) (*domain.PaymentEvent, error)
	RecordOutcome(ctx context.Context, eventID string, bookingID *uuid.UUID, outcome domain.EventOutcome) error
	ListUnreviewed(ctx context.Context) ([]domain.PaymentEvent, error)
}
