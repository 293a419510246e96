package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mentorbay/scheduling/internal/domain"
)

type SlotRepository struct {
	pool *pgxpool.Pool
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{pool: pool}
}

func (r *SlotRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const slotColumns = `id, mentor_id, starts_at, ends_at, is_active, is_booked, created_at`

func scanSlot(row pgx.Row) (domain.Slot, error) {
	var s domain.Slot
	err := row.Scan(&s.ID, &s.MentorID, &s.StartsAt, &s.EndsAt, &s.IsActive, &s.IsBooked, &s.CreatedAt)
	return s, err
}

func (r *SlotRepository) Insert(ctx context.Context, slot domain.Slot) error {
	const stmt = `
INSERT INTO slots (id, mentor_id, starts_at, ends_at, is_active, is_booked, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := db(ctx, r.pool).Exec(ctx, stmt,
		slot.ID, slot.MentorID, slot.StartsAt, slot.EndsAt, slot.IsActive, slot.IsBooked, slot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert slot: %w", err)
	}
	return nil
}

func (r *SlotRepository) Get(ctx context.Context, id uuid.UUID) (domain.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = $1`
	s, err := scanSlot(db(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Slot{}, domain.ErrSlotNotFound
		}
		return domain.Slot{}, fmt.Errorf("get slot: %w", err)
	}
	return s, nil
}

func (r *SlotRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = $1 FOR UPDATE`
	s, err := scanSlot(db(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Slot{}, domain.ErrSlotNotFound
		}
		return domain.Slot{}, fmt.Errorf("get slot for update: %w", err)
	}
	return s, nil
}

// ListAvailable returns active, unbooked, future slots for a mentor ordered
// by start time, optionally narrowed to [from, to).
func (r *SlotRepository) ListAvailable(ctx context.Context, mentorID uuid.UUID, from, to *time.Time, now time.Time) ([]domain.Slot, error) {
	query := `
SELECT ` + slotColumns + `
FROM slots
WHERE mentor_id = $1
  AND is_active
  AND NOT is_booked
  AND starts_at > $2
  AND ($3::timestamptz IS NULL OR starts_at >= $3)
  AND ($4::timestamptz IS NULL OR starts_at < $4)
ORDER BY starts_at`

	rows, err := db(ctx, r.pool).Query(ctx, query, mentorID, now, from, to)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	defer rows.Close()

	var slots []domain.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	return slots, nil
}

// HasOverlap reports whether any of the mentor's active slots intersect
// [start, end). It first takes a per-mentor advisory lock held until the
// transaction ends, so concurrent ingestion for the same mentor serializes
// even when the conflicting windows are both new and row locks would find
// nothing to lock. Must run inside a transaction.
func (r *SlotRepository) HasOverlap(ctx context.Context, mentorID uuid.UUID, start, end time.Time) (bool, error) {
	if _, err := db(ctx, r.pool).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text))`, mentorID); err != nil {
		return false, fmt.Errorf("lock mentor slots: %w", err)
	}

	const query = `
SELECT EXISTS (
  SELECT 1 FROM slots
  WHERE mentor_id = $1 AND is_active AND starts_at < $3 AND ends_at > $2
)`

	var overlaps bool
	if err := db(ctx, r.pool).QueryRow(ctx, query, mentorID, start, end).Scan(&overlaps); err != nil {
		return false, fmt.Errorf("check slot overlap: %w", err)
	}
	return overlaps, nil
}

// Reserve atomically flips is_booked on an active, unbooked, future slot.
// The conditional update is the linearization point: of N concurrent calls
// exactly one row update succeeds.
func (r *SlotRepository) Reserve(ctx context.Context, slotID uuid.UUID, now time.Time) error {
	const stmt = `
UPDATE slots SET is_booked = TRUE
WHERE id = $1 AND is_active AND NOT is_booked AND starts_at > $2`

	tag, err := db(ctx, r.pool).Exec(ctx, stmt, slotID, now)
	if err != nil {
		return fmt.Errorf("reserve slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := db(ctx, r.pool).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM slots WHERE id = $1)`, slotID).Scan(&exists); err != nil {
			return fmt.Errorf("reserve slot: %w", err)
		}
		if !exists {
			return domain.ErrSlotNotFound
		}
		return domain.ErrSlotUnavailable
	}
	return nil
}

// Release makes the slot bookable again.
func (r *SlotRepository) Release(ctx context.Context, slotID uuid.UUID) error {
	tag, err := db(ctx, r.pool).Exec(ctx, `UPDATE slots SET is_booked = FALSE WHERE id = $1`, slotID)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSlotNotFound
	}
	return nil
}

// Deactivate soft-deletes a slot. Callers must have checked for live bookings.
func (r *SlotRepository) Deactivate(ctx context.Context, slotID uuid.UUID) error {
	tag, err := db(ctx, r.pool).Exec(ctx, `UPDATE slots SET is_active = FALSE WHERE id = $1`, slotID)
	if err != nil {
		return fmt.Errorf("deactivate slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSlotNotFound
	}
	return nil
}
