package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mentorbay/scheduling/internal/domain"
)

// LedgerRepository owns the append-only payment-event ledger. The primary key
// on event_id is the serialization point for duplicate webhook delivery: a
// concurrent insert of the same event blocks until the first transaction
// commits, after which the recorded outcome is visible for replay.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

func (r *LedgerRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// InsertEvent records the event once. It returns false when the event id was
// already present, in which case no row is written.
func (r *LedgerRepository) InsertEvent(ctx context.Context, ev domain.PaymentEvent) (bool, error) {
	const stmt = `
INSERT INTO payment_events (event_id, correlation_key, booking_id, event_type, amount_cents, occurred_at, outcome, received_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (event_id) DO NOTHING`

	tag, err := db(ctx, r.pool).Exec(ctx, stmt,
		ev.EventID, ev.CorrelationKey, ev.BookingID, ev.Type, ev.AmountCents, ev.OccurredAt, ev.Outcome, ev.ReceivedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert payment event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *LedgerRepository) GetEvent(ctx context.Context, eventID string) (*domain.PaymentEvent, error) {
	const query = `
SELECT event_id, correlation_key, booking_id, event_type, amount_cents, occurred_at, outcome, received_at
FROM payment_events
WHERE event_id = $1`

	var ev domain.PaymentEvent
	err := db(ctx, r.pool).QueryRow(ctx, query, eventID).Scan(
		&ev.EventID, &ev.CorrelationKey, &ev.BookingID, &ev.Type, &ev.AmountCents, &ev.OccurredAt, &ev.Outcome, &ev.ReceivedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment event: %w", err)
	}
	return &ev, nil
}

// RecordOutcome stores what applying the event did, for idempotent replays.
func (r *LedgerRepository) RecordOutcome(ctx context.Context, eventID string, bookingID *uuid.UUID, outcome domain.EventOutcome) error {
	const stmt = `UPDATE payment_events SET outcome = $2, booking_id = $3 WHERE event_id = $1`

	tag, err := db(ctx, r.pool).Exec(ctx, stmt, eventID, outcome, bookingID)
	if err != nil {
		return fmt.Errorf("record event outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record event outcome: event %s not found", eventID)
	}
	return nil
}

// ListUnreviewed returns events flagged for manual reconciliation, oldest first.
func (r *LedgerRepository) ListUnreviewed(ctx context.Context) ([]domain.PaymentEvent, error) {
	const query = `
SELECT event_id, correlation_key, booking_id, event_type, amount_cents, occurred_at, outcome, received_at
FROM payment_events
WHERE outcome IN ('unmatched', 'needs_review')
ORDER BY received_at`

	rows, err := db(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list unreviewed events: %w", err)
	}
	defer rows.Close()

	var events []domain.PaymentEvent
	for rows.Next() {
		var ev domain.PaymentEvent
		if err := rows.Scan(
			&ev.EventID, &ev.CorrelationKey, &ev.BookingID, &ev.Type, &ev.AmountCents, &ev.OccurredAt, &ev.Outcome, &ev.ReceivedAt,
		); err != nil {
			return nil, fmt.Errorf("scan payment event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list unreviewed events: %w", err)
	}
	return events, nil
}
