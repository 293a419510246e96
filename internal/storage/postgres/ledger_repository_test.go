package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mentorbay/scheduling/internal/domain"
	"github.com/mentorbay/scheduling/internal/testutil"
)

func TestLedgerRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewLedgerRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	now := time.Now().UTC().Truncate(time.Microsecond)

	newEvent := func(id string, outcome domain.EventOutcome, receivedAt time.Time) domain.PaymentEvent {
		return domain.PaymentEvent{
			EventID:        id,
			CorrelationKey: uuid.NewString(),
			Type:           domain.PaymentEventSucceeded,
			AmountCents:    5000,
			OccurredAt:     now,
			Outcome:        outcome,
			ReceivedAt:     receivedAt,
		}
	}

	t.Run("InsertEvent dedupes on event id", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		inserted, err := repo.InsertEvent(ctx, newEvent("evt-1", domain.OutcomeReceived, now))
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		if !inserted {
			t.Fatalf("expected first insert to win")
		}

		inserted, err = repo.InsertEvent(ctx, newEvent("evt-1", domain.OutcomeReceived, now))
		if err != nil {
			t.Fatalf("duplicate insert: %v", err)
		}
		if inserted {
			t.Fatalf("expected duplicate insert to report false")
		}
	})

	t.Run("GetEvent returns nil for unknown ids", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		ev, err := repo.GetEvent(ctx, "missing")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if ev != nil {
			t.Fatalf("expected nil, got %+v", ev)
		}
	})

	t.Run("RecordOutcome persists the replay answer", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		if _, err := repo.InsertEvent(ctx, newEvent("evt-2", domain.OutcomeReceived, now)); err != nil {
			t.Fatalf("insert: %v", err)
		}

		bookingID := uuid.New()
		if err := repo.RecordOutcome(ctx, "evt-2", &bookingID, domain.OutcomeConfirmed); err != nil {
			t.Fatalf("record outcome: %v", err)
		}

		ev, err := repo.GetEvent(ctx, "evt-2")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if ev == nil || ev.Outcome != domain.OutcomeConfirmed {
			t.Fatalf("unexpected event: %+v", ev)
		}
		if ev.BookingID == nil || *ev.BookingID != bookingID {
			t.Fatalf("expected booking id %s, got %v", bookingID, ev.BookingID)
		}

		if err := repo.RecordOutcome(ctx, "missing", nil, domain.OutcomeConfirmed); err == nil {
			t.Fatalf("expected error for unknown event id")
		}
	})

	t.Run("ListUnreviewed returns flagged events oldest first", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		if _, err := repo.InsertEvent(ctx, newEvent("evt-ok", domain.OutcomeConfirmed, now)); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if _, err := repo.InsertEvent(ctx, newEvent("evt-review", domain.OutcomeNeedsReview, now.Add(time.Minute))); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if _, err := repo.InsertEvent(ctx, newEvent("evt-unmatched", domain.OutcomeUnmatched, now)); err != nil {
			t.Fatalf("insert: %v", err)
		}

		events, err := repo.ListUnreviewed(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("expected 2 flagged events, got %d", len(events))
		}
		if events[0].EventID != "evt-unmatched" || events[1].EventID != "evt-review" {
			t.Fatalf("unexpected order: %s, %s", events[0].EventID, events[1].EventID)
		}
	})
}
