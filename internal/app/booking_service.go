package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mentorbay/scheduling/internal/clock"
	"github.com/mentorbay/scheduling/internal/domain"
	"github.com/mentorbay/scheduling/internal/events"
)

// BookingService is the booking state machine. Every transition runs under
// the booking's row lock, and any paired slot release lands in the same
// transaction, so a booking can never reach a terminal state with its slot
// still held (completed excepted) or vice versa.
type BookingService struct {
	bookings  BookingStore
	slots     SlotStore
	clock     clock.Clock
	publisher events.Publisher
	logger    *zap.Logger
	payWindow time.Duration
}

const defaultPaymentWindow = 15 * time.Minute

const sweepBatchSize = 100

func NewBookingService(bookings BookingStore, slots SlotStore, clk clock.Clock, pub events.Publisher, logger *zap.Logger, opts ...BookingServiceOption) *BookingService {
	svc := &BookingService{
		bookings:  bookings,
		slots:     slots,
		clock:     clk,
		publisher: pub,
		logger:    logger,
		payWindow: defaultPaymentWindow,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type BookingServiceOption func(*BookingService)

// WithPaymentWindow overrides how long a pending booking may await payment.
func WithPaymentWindow(d time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		if d > 0 {
			s.payWindow = d
		}
	}
}

type CreateBookingInput struct {
	UserID      uuid.UUID
	SlotID      uuid.UUID
	AmountCents int64
	Currency    string
}

// Create reserves the slot and inserts the pending booking in one
// transaction. A lost reservation race leaves no booking row behind.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (domain.Booking, error) {
	if in.AmountCents <= 0 {
		return domain.Booking{}, domain.ErrInvalidAmount
	}
	currency := in.Currency
	if currency == "" {
		currency = "USD"
	}

	now := s.clock.Now()
	var booking domain.Booking

	err := s.bookings.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.slots.Reserve(txCtx, in.SlotID, now); err != nil {
			return err
		}
		slot, err := s.slots.Get(txCtx, in.SlotID)
		if err != nil {
			return err
		}

		booking = domain.Booking{
			ID:            uuid.New(),
			SlotID:        slot.ID,
			MentorID:      slot.MentorID,
			UserID:        in.UserID,
			AmountCents:   in.AmountCents,
			Currency:      currency,
			Status:        domain.BookingStatusPending,
			PaymentStatus: domain.PaymentStatusUnpaid,
			PayDeadline:   now.Add(s.payWindow),
			CreatedAt:     now,
			UpdatedAt:     now,
			SlotStartsAt:  slot.StartsAt,
			SlotEndsAt:    slot.EndsAt,
		}
		return s.bookings.Insert(txCtx, booking)
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return booking, nil
}

// Get returns the booking for status and payment-status queries.
func (s *BookingService) Get(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return s.bookings.Get(ctx, id)
}

// MarkPaymentPending records that the external payment session was created.
// Informational only: booking status does not change. Idempotent.
func (s *BookingService) MarkPaymentPending(ctx context.Context, id uuid.UUID) error {
	now := s.clock.Now()
	return s.bookings.WithTx(ctx, func(txCtx context.Context) error {
		b, err := s.bookings.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if b.Status != domain.BookingStatusPending {
			return domain.ErrInvalidTransition
		}
		switch b.PaymentStatus {
		case domain.PaymentStatusPending:
			return nil
		case domain.PaymentStatusUnpaid:
			return s.bookings.UpdateStatus(txCtx, id, b.Status, domain.PaymentStatusPending, now)
		default:
			return domain.ErrInvalidTransition
		}
	})
}

// Confirm moves a pending booking to confirmed/paid. Calling it on an
// already-confirmed booking is a no-op, not an error.
func (s *BookingService) Confirm(ctx context.Context, id uuid.UUID) error {
	now := s.clock.Now()
	var confirmed domain.Booking
	var transitioned bool

	err := s.bookings.WithTx(ctx, func(txCtx context.Context) error {
		b, err := s.bookings.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		switch b.Status {
		case domain.BookingStatusConfirmed:
			return nil
		case domain.BookingStatusPending:
			if err := s.bookings.UpdateStatus(txCtx, id, domain.BookingStatusConfirmed, domain.PaymentStatusPaid, now); err != nil {
				return err
			}
			confirmed = b
			transitioned = true
			return nil
		default:
			return domain.ErrInvalidTransition
		}
	})
	if err != nil {
		return err
	}
	if transitioned {
		s.emit(ctx, domain.EventBookingConfirmed, domain.NewBookingEvent(confirmed, "", now))
	}
	return nil
}

// Fail cancels a pending booking after a failed payment and frees its slot.
// Idempotent when the booking already failed.
func (s *BookingService) Fail(ctx context.Context, id uuid.UUID, reason string) error {
	now := s.clock.Now()
	var failed domain.Booking
	var transitioned bool

	err := s.bookings.WithTx(ctx, func(txCtx context.Context) error {
		b, err := s.bookings.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if b.Status == domain.BookingStatusCancelled && b.PaymentStatus == domain.PaymentStatusFailed {
			return nil
		}
		if b.Status != domain.BookingStatusPending {
			return domain.ErrInvalidTransition
		}
		if err := s.bookings.UpdateStatus(txCtx, id, domain.BookingStatusCancelled, domain.PaymentStatusFailed, now); err != nil {
			return err
		}
		if err := s.slots.Release(txCtx, b.SlotID); err != nil {
			return err
		}
		failed = b
		transitioned = true
		return nil
	})
	if err != nil {
		return err
	}
	if transitioned {
		s.emit(ctx, domain.EventBookingCancelled, domain.NewBookingEvent(failed, reason, now))
	}
	return nil
}

// Expire moves a pending booking past its payment deadline to expired and
// frees the slot. Safe to race against the reconciler: a booking no longer
// pending, or whose deadline moved, is skipped silently.
func (s *BookingService) Expire(ctx context.Context, id uuid.UUID) error {
	now := s.clock.Now()
	return s.bookings.WithTx(ctx, func(txCtx context.Context) error {
		b, err := s.bookings.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if b.Status != domain.BookingStatusPending || b.PayDeadline.After(now) {
			return nil
		}
		if err := s.bookings.UpdateStatus(txCtx, id, domain.BookingStatusExpired, b.PaymentStatus, now); err != nil {
			return err
		}
		return s.slots.Release(txCtx, b.SlotID)
	})
}

// ExpireStale expires every pending booking whose payment window elapsed.
// Each booking is handled in its own transaction so one failure does not
// block the rest of the sweep.
func (s *BookingService) ExpireStale(ctx context.Context) (int, error) {
	ids, err := s.bookings.ListStalePending(ctx, s.clock.Now(), sweepBatchSize)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, id := range ids {
		if err := s.Expire(ctx, id); err != nil {
			s.logger.Warn("expire booking failed", zap.String("booking_id", id.String()), zap.Error(err))
			continue
		}
		expired++
	}
	return expired, nil
}

// CompleteElapsed completes every confirmed booking whose session has ended.
func (s *BookingService) CompleteElapsed(ctx context.Context) (int, error) {
	ids, err := s.bookings.ListElapsedConfirmed(ctx, s.clock.Now(), sweepBatchSize)
	if err != nil {
		return 0, err
	}
	completed := 0
	for _, id := range ids {
		if err := s.Complete(ctx, id); err != nil {
			s.logger.Warn("complete booking failed", zap.String("booking_id", id.String()), zap.Error(err))
			continue
		}
		completed++
	}
	return completed, nil
}

// Complete moves a confirmed booking whose session has ended to completed.
// Earnings accrual listens on the published event.
func (s *BookingService) Complete(ctx context.Context, id uuid.UUID) error {
	now := s.clock.Now()
	var completed domain.Booking
	var transitioned bool

	err := s.bookings.WithTx(ctx, func(txCtx context.Context) error {
		b, err := s.bookings.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		switch b.Status {
		case domain.BookingStatusCompleted:
			return nil
		case domain.BookingStatusConfirmed:
			if b.SlotEndsAt.After(now) {
				return domain.ErrSessionNotEnded
			}
			if err := s.bookings.UpdateStatus(txCtx, id, domain.BookingStatusCompleted, b.PaymentStatus, now); err != nil {
				return err
			}
			completed = b
			transitioned = true
			return nil
		default:
			return domain.ErrInvalidTransition
		}
	})
	if err != nil {
		return err
	}
	if transitioned {
		s.emit(ctx, domain.EventBookingCompleted, domain.NewBookingEvent(completed, "", now))
	}
	return nil
}

// RequestCancel is a participant-initiated cancellation of a pending or
// confirmed booking. When the booking was already paid a refund obligation
// is emitted for the payment collaborator; execution is not ours.
func (s *BookingService) RequestCancel(ctx context.Context, id, callerID uuid.UUID) error {
	now := s.clock.Now()
	var cancelled domain.Booking
	var wasPaid bool

	err := s.bookings.WithTx(ctx, func(txCtx context.Context) error {
		b, err := s.bookings.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if _, ok := b.Participant(callerID); !ok {
			return domain.ErrNotParticipant
		}
		if b.Status.Terminal() {
			return domain.ErrInvalidTransition
		}

		payStatus := b.PaymentStatus
		if payStatus == domain.PaymentStatusPaid {
			wasPaid = true
			payStatus = domain.PaymentStatusRefunded
		}
		if err := s.bookings.UpdateStatus(txCtx, id, domain.BookingStatusCancelled, payStatus, now); err != nil {
			return err
		}
		if err := s.slots.Release(txCtx, b.SlotID); err != nil {
			return err
		}
		cancelled = b
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, domain.EventBookingCancelled, domain.NewBookingEvent(cancelled, "requested", now))
	if wasPaid {
		s.emit(ctx, domain.EventRefundDue, domain.NewBookingEvent(cancelled, "cancelled after payment", now))
	}
	return nil
}

func (s *BookingService) emit(ctx context.Context, routingKey string, evt domain.BookingEvent) {
	if err := s.publisher.Publish(ctx, routingKey, evt); err != nil {
		s.logger.Warn("publish booking event failed",
			zap.String("routing_key", routingKey),
			zap.String("booking_id", evt.BookingID),
			zap.Error(err),
		)
	}
}
