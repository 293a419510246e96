package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mentorbay/scheduling/internal/clock"
	"github.com/mentorbay/scheduling/internal/domain"
)

func TestReconciler_Apply(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	makeFixture := func(status domain.BookingStatus, pay domain.PaymentStatus, slotBooked bool) (*Reconciler, *fakeState, *capturingPublisher, domain.Booking) {
		slot := domain.Slot{
			ID:       uuid.New(),
			MentorID: uuid.New(),
			StartsAt: now.Add(time.Hour),
			EndsAt:   now.Add(2 * time.Hour),
			IsActive: true,
			IsBooked: slotBooked,
		}
		booking := domain.Booking{
			ID:            uuid.New(),
			SlotID:        slot.ID,
			MentorID:      slot.MentorID,
			UserID:        uuid.New(),
			AmountCents:   5000,
			Currency:      "USD",
			Status:        status,
			PaymentStatus: pay,
			PayDeadline:   now.Add(15 * time.Minute),
			SlotStartsAt:  slot.StartsAt,
			SlotEndsAt:    slot.EndsAt,
		}
		state := newFakeState([]domain.Slot{slot}, []domain.Booking{booking})
		pub := &capturingPublisher{}
		rec := NewReconciler(fakeLedger{state}, fakeBookings{state}, fakeSlots{state}, clock.NewFixed(now), pub, zap.NewNop())
		return rec, state, pub, booking
	}

	succeededInput := func(b domain.Booking, eventID string) ApplyInput {
		return ApplyInput{
			EventID:        eventID,
			CorrelationKey: b.ID.String(),
			Type:           domain.PaymentEventSucceeded,
			AmountCents:    b.AmountCents,
			OccurredAt:     now,
		}
	}

	t.Run("success confirms pending booking", func(t *testing.T) {
		rec, state, pub, b := makeFixture(domain.BookingStatusPending, domain.PaymentStatusUnpaid, true)

		res, err := rec.Apply(context.Background(), succeededInput(b, "evt-1"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Outcome != domain.OutcomeConfirmed || res.Replayed {
			t.Fatalf("unexpected result: %+v", res)
		}
		got := state.booking(b.ID)
		if got.Status != domain.BookingStatusConfirmed || got.PaymentStatus != domain.PaymentStatusPaid {
			t.Fatalf("unexpected statuses: %s/%s", got.Status, got.PaymentStatus)
		}
		if keys := pub.routingKeys(); len(keys) != 1 || keys[0] != domain.EventBookingConfirmed {
			t.Fatalf("expected one %s event, got %v", domain.EventBookingConfirmed, keys)
		}

		ev, err := fakeLedger{state}.GetEvent(context.Background(), "evt-1")
		if err != nil || ev == nil {
			t.Fatalf("expected ledger row, got %v, %v", ev, err)
		}
		if ev.Outcome != domain.OutcomeConfirmed || ev.BookingID == nil || *ev.BookingID != b.ID {
			t.Fatalf("unexpected ledger row: %+v", ev)
		}
	})

	t.Run("duplicate delivery replays the recorded outcome", func(t *testing.T) {
		rec, state, pub, b := makeFixture(domain.BookingStatusPending, domain.PaymentStatusUnpaid, true)

		first, err := rec.Apply(context.Background(), succeededInput(b, "evt-dup"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		second, err := rec.Apply(context.Background(), succeededInput(b, "evt-dup"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !second.Replayed {
			t.Fatalf("expected replayed result")
		}
		if second.Outcome != first.Outcome {
			t.Fatalf("expected outcome %s, got %s", first.Outcome, second.Outcome)
		}
		// The replay must not re-apply effects or re-publish.
		if got := state.booking(b.ID); got.Status != domain.BookingStatusConfirmed {
			t.Fatalf("unexpected status %s", got.Status)
		}
		if keys := pub.routingKeys(); len(keys) != 1 {
			t.Fatalf("expected a single published event, got %v", keys)
		}
	})

	t.Run("success on confirmed booking is a duplicate", func(t *testing.T) {
		rec, _, pub, b := makeFixture(domain.BookingStatusConfirmed, domain.PaymentStatusPaid, true)

		res, err := rec.Apply(context.Background(), succeededInput(b, "evt-2"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Outcome != domain.OutcomeDuplicate {
			t.Fatalf("expected duplicate, got %s", res.Outcome)
		}
		if keys := pub.routingKeys(); len(keys) != 0 {
			t.Fatalf("expected no events, got %v", keys)
		}
	})

	t.Run("failure cancels pending booking and frees the slot", func(t *testing.T) {
		rec, state, pub, b := makeFixture(domain.BookingStatusPending, domain.PaymentStatusPending, true)

		res, err := rec.Apply(context.Background(), ApplyInput{
			EventID:        "evt-3",
			CorrelationKey: b.ID.String(),
			Type:           domain.PaymentEventFailed,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Outcome != domain.OutcomeFailed {
			t.Fatalf("expected failed, got %s", res.Outcome)
		}
		got := state.booking(b.ID)
		if got.Status != domain.BookingStatusCancelled || got.PaymentStatus != domain.PaymentStatusFailed {
			t.Fatalf("unexpected statuses: %s/%s", got.Status, got.PaymentStatus)
		}
		if state.slot(b.SlotID).IsBooked {
			t.Fatalf("expected slot to be released")
		}
		if keys := pub.routingKeys(); len(keys) != 1 || keys[0] != domain.EventBookingCancelled {
			t.Fatalf("expected one %s event, got %v", domain.EventBookingCancelled, keys)
		}
	})

	t.Run("failure after confirmation is a duplicate", func(t *testing.T) {
		rec, state, _, b := makeFixture(domain.BookingStatusConfirmed, domain.PaymentStatusPaid, true)

		res, err := rec.Apply(context.Background(), ApplyInput{
			EventID:        "evt-4",
			CorrelationKey: b.ID.String(),
			Type:           domain.PaymentEventFailed,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Outcome != domain.OutcomeDuplicate {
			t.Fatalf("expected duplicate, got %s", res.Outcome)
		}
		if got := state.booking(b.ID); got.Status != domain.BookingStatusConfirmed {
			t.Fatalf("expected booking untouched, got %s", got.Status)
		}
	})

	t.Run("late success re-reserves a still-free slot", func(t *testing.T) {
		rec, state, pub, b := makeFixture(domain.BookingStatusExpired, domain.PaymentStatusUnpaid, false)

		res, err := rec.Apply(context.Background(), succeededInput(b, "evt-5"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Outcome != domain.OutcomeReconfirmed {
			t.Fatalf("expected reconfirmed, got %s", res.Outcome)
		}
		got := state.booking(b.ID)
		if got.Status != domain.BookingStatusConfirmed || got.PaymentStatus != domain.PaymentStatusPaid {
			t.Fatalf("unexpected statuses: %s/%s", got.Status, got.PaymentStatus)
		}
		if !state.slot(b.SlotID).IsBooked {
			t.Fatalf("expected slot to be re-reserved")
		}
		if keys := pub.routingKeys(); len(keys) != 1 || keys[0] != domain.EventBookingConfirmed {
			t.Fatalf("expected one %s event, got %v", domain.EventBookingConfirmed, keys)
		}
	})

	t.Run("late success on a re-taken slot needs review", func(t *testing.T) {
		rec, state, pub, b := makeFixture(domain.BookingStatusExpired, domain.PaymentStatusUnpaid, true)

		res, err := rec.Apply(context.Background(), succeededInput(b, "evt-6"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Outcome != domain.OutcomeNeedsReview {
			t.Fatalf("expected needs_review, got %s", res.Outcome)
		}
		// The booking stays expired; an operator decides.
		if got := state.booking(b.ID); got.Status != domain.BookingStatusExpired {
			t.Fatalf("expected booking to stay expired, got %s", got.Status)
		}
		if keys := pub.routingKeys(); len(keys) != 0 {
			t.Fatalf("expected no events, got %v", keys)
		}

		flagged, err := rec.Unreviewed(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(flagged) != 1 || flagged[0].EventID != "evt-6" {
			t.Fatalf("expected evt-6 flagged, got %+v", flagged)
		}
	})

	t.Run("unknown correlation key is unmatched but persisted", func(t *testing.T) {
		rec, _, _, _ := makeFixture(domain.BookingStatusPending, domain.PaymentStatusUnpaid, true)

		for i, key := range []string{"not-a-uuid", uuid.NewString()} {
			res, err := rec.Apply(context.Background(), ApplyInput{
				EventID:        "evt-unmatched-" + string(rune('a'+i)),
				CorrelationKey: key,
				Type:           domain.PaymentEventSucceeded,
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if res.Outcome != domain.OutcomeUnmatched {
				t.Fatalf("expected unmatched for %q, got %s", key, res.Outcome)
			}
		}

		flagged, err := rec.Unreviewed(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(flagged) != 2 {
			t.Fatalf("expected 2 flagged events, got %d", len(flagged))
		}
	})

	t.Run("missing event id is rejected", func(t *testing.T) {
		rec, _, _, b := makeFixture(domain.BookingStatusPending, domain.PaymentStatusUnpaid, true)
		_, err := rec.Apply(context.Background(), succeededInput(b, ""))
		if err != domain.ErrEventIDRequired {
			t.Fatalf("expected ErrEventIDRequired, got %v", err)
		}
	})
}
