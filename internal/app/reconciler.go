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

// Reconciler applies payment-provider events to bookings with at-most-once
// effect despite at-least-once delivery. The ledger's event_id primary key is
// the dedupe point; the booking row lock serializes events per booking while
// events for different bookings proceed independently.
type Reconciler struct {
	ledger    EventLedger
	bookings  BookingStore
	slots     SlotStore
	clock     clock.Clock
	publisher events.Publisher
	logger    *zap.Logger
}

func NewReconciler(ledger EventLedger, bookings BookingStore, slots SlotStore, clk clock.Clock, pub events.Publisher, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		ledger:    ledger,
		bookings:  bookings,
		slots:     slots,
		clock:     clk,
		publisher: pub,
		logger:    logger,
	}
}

type ApplyInput struct {
	EventID        string
	CorrelationKey string
	Type           domain.PaymentEventType
	AmountCents    int64
	OccurredAt     time.Time
}

type ApplyResult struct {
	Outcome domain.EventOutcome
	// Replayed is true when the event id had been processed before and the
	// recorded outcome was returned without re-applying effects.
	Replayed bool
}

// Apply processes one provider event. The ledger insert, the booking
// transition, and the outcome record land in a single transaction.
func (r *Reconciler) Apply(ctx context.Context, in ApplyInput) (ApplyResult, error) {
	if in.EventID == "" {
		return ApplyResult{}, domain.ErrEventIDRequired
	}

	now := r.clock.Now()
	var result ApplyResult
	var emitKey string
	var emitEvent domain.BookingEvent

	err := r.ledger.WithTx(ctx, func(txCtx context.Context) error {
		inserted, err := r.ledger.InsertEvent(txCtx, domain.PaymentEvent{
			EventID:        in.EventID,
			CorrelationKey: in.CorrelationKey,
			Type:           in.Type,
			AmountCents:    in.AmountCents,
			OccurredAt:     in.OccurredAt,
			Outcome:        domain.OutcomeReceived,
			ReceivedAt:     now,
		})
		if err != nil {
			return err
		}
		if !inserted {
			prev, err := r.ledger.GetEvent(txCtx, in.EventID)
			if err != nil {
				return err
			}
			result = ApplyResult{Outcome: prev.Outcome, Replayed: true}
			return nil
		}

		outcome, booking, err := r.applyToBooking(txCtx, in, now)
		if err != nil {
			return err
		}
		result = ApplyResult{Outcome: outcome}

		var bookingID *uuid.UUID
		if booking != nil {
			bookingID = &booking.ID
			switch outcome {
			case domain.OutcomeConfirmed, domain.OutcomeReconfirmed:
				emitKey = domain.EventBookingConfirmed
				emitEvent = domain.NewBookingEvent(*booking, "", now)
			case domain.OutcomeFailed:
				emitKey = domain.EventBookingCancelled
				emitEvent = domain.NewBookingEvent(*booking, "payment failed", now)
			}
		}
		return r.ledger.RecordOutcome(txCtx, in.EventID, bookingID, outcome)
	})
	if err != nil {
		return ApplyResult{}, err
	}

	if result.Outcome.NeedsOperator() && !result.Replayed {
		r.logger.Warn("payment event flagged for manual reconciliation",
			zap.String("event_id", in.EventID),
			zap.String("correlation_key", in.CorrelationKey),
			zap.String("outcome", string(result.Outcome)),
		)
	}
	if emitKey != "" {
		if err := r.publisher.Publish(ctx, emitKey, emitEvent); err != nil {
			r.logger.Warn("publish booking event failed",
				zap.String("routing_key", emitKey),
				zap.String("booking_id", emitEvent.BookingID),
				zap.Error(err),
			)
		}
	}
	return result, nil
}

// applyToBooking resolves the booking via the correlation key and advances
// it. Runs inside the ledger transaction with the booking row locked.
func (r *Reconciler) applyToBooking(ctx context.Context, in ApplyInput, now time.Time) (domain.EventOutcome, *domain.Booking, error) {
	bookingID, err := uuid.Parse(in.CorrelationKey)
	if err != nil {
		return domain.OutcomeUnmatched, nil, nil
	}

	b, err := r.bookings.GetForUpdate(ctx, bookingID)
	if err != nil {
		if err == domain.ErrBookingNotFound {
			return domain.OutcomeUnmatched, nil, nil
		}
		return "", nil, err
	}

	switch in.Type {
	case domain.PaymentEventSucceeded:
		return r.applySucceeded(ctx, b, now)
	case domain.PaymentEventFailed:
		return r.applyFailed(ctx, b, now)
	default:
		return domain.OutcomeUnmatched, &b, nil
	}
}

func (r *Reconciler) applySucceeded(ctx context.Context, b domain.Booking, now time.Time) (domain.EventOutcome, *domain.Booking, error) {
	switch b.Status {
	case domain.BookingStatusPending:
		if err := r.bookings.UpdateStatus(ctx, b.ID, domain.BookingStatusConfirmed, domain.PaymentStatusPaid, now); err != nil {
			return "", nil, err
		}
		return domain.OutcomeConfirmed, &b, nil

	case domain.BookingStatusConfirmed, domain.BookingStatusCompleted:
		return domain.OutcomeDuplicate, &b, nil

	case domain.BookingStatusExpired, domain.BookingStatusCancelled:
		// Late success after the booking was released. Honor the payment by
		// re-taking the slot when it is still free; otherwise flag it — the
		// customer was charged and an operator must decide.
		err := r.slots.Reserve(ctx, b.SlotID, now)
		if err == domain.ErrSlotUnavailable || err == domain.ErrSlotNotFound {
			return domain.OutcomeNeedsReview, &b, nil
		}
		if err != nil {
			return "", nil, err
		}
		if err := r.bookings.UpdateStatus(ctx, b.ID, domain.BookingStatusConfirmed, domain.PaymentStatusPaid, now); err != nil {
			return "", nil, err
		}
		return domain.OutcomeReconfirmed, &b, nil
	}
	return domain.OutcomeNeedsReview, &b, nil
}

func (r *Reconciler) applyFailed(ctx context.Context, b domain.Booking, now time.Time) (domain.EventOutcome, *domain.Booking, error) {
	if b.Status != domain.BookingStatusPending {
		return domain.OutcomeDuplicate, &b, nil
	}
	if err := r.bookings.UpdateStatus(ctx, b.ID, domain.BookingStatusCancelled, domain.PaymentStatusFailed, now); err != nil {
		return "", nil, err
	}
	if err := r.slots.Release(ctx, b.SlotID); err != nil {
		return "", nil, err
	}
	return domain.OutcomeFailed, &b, nil
}

// Unreviewed lists events awaiting manual reconciliation.
func (r *Reconciler) Unreviewed(ctx context.Context) ([]domain.PaymentEvent, error) {
	return r.ledger.ListUnreviewed(ctx)
}
