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

type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const bookingColumns = `
b.id, b.slot_id, b.mentor_id, b.user_id, b.amount_cents, b.currency,
b.status, b.payment_status, b.pay_deadline, b.created_at, b.updated_at,
s.starts_at, s.ends_at`

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var b domain.Booking
	var status, payStatus string
	err := row.Scan(
		&b.ID, &b.SlotID, &b.MentorID, &b.UserID, &b.AmountCents, &b.Currency,
		&status, &payStatus, &b.PayDeadline, &b.CreatedAt, &b.UpdatedAt,
		&b.SlotStartsAt, &b.SlotEndsAt,
	)
	if err != nil {
		return domain.Booking{}, err
	}
	b.Status = domain.BookingStatus(status)
	b.PaymentStatus = domain.PaymentStatus(payStatus)
	return b, nil
}

func (r *BookingRepository) Insert(ctx context.Context, b domain.Booking) error {
	const stmt = `
INSERT INTO bookings (id, slot_id, mentor_id, user_id, amount_cents, currency,
                      status, payment_status, pay_deadline, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := db(ctx, r.pool).Exec(ctx, stmt,
		b.ID, b.SlotID, b.MentorID, b.UserID, b.AmountCents, b.Currency,
		b.Status, b.PaymentStatus, b.PayDeadline, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// Partial unique index: another live booking already owns the slot.
			return domain.ErrSlotUnavailable
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (r *BookingRepository) Get(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b JOIN slots s ON s.id = b.slot_id WHERE b.id = $1`
	b, err := scanBooking(db(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Booking{}, domain.ErrBookingNotFound
		}
		return domain.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// GetForUpdate locks the booking row, serializing transitions per booking.
func (r *BookingRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	query := `SELECT ` + bookingColumns + `
FROM bookings b JOIN slots s ON s.id = b.slot_id
WHERE b.id = $1
FOR UPDATE OF b`

	b, err := scanBooking(db(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Booking{}, domain.ErrBookingNotFound
		}
		return domain.Booking{}, fmt.Errorf("get booking for update: %w", err)
	}
	return b, nil
}

// UpdateStatus writes the status pair. Status and payment status always move
// together so the cross-consistency invariant cannot be half-applied.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus, payStatus domain.PaymentStatus, now time.Time) error {
	const stmt = `UPDATE bookings SET status = $2, payment_status = $3, updated_at = $4 WHERE id = $1`

	tag, err := db(ctx, r.pool).Exec(ctx, stmt, id, status, payStatus, now)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

// ListStalePending returns ids of pending bookings whose payment deadline has
// passed. The sweep re-checks each booking under its row lock before
// expiring, so this read needs no locking of its own.
func (r *BookingRepository) ListStalePending(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	const query = `
SELECT id FROM bookings
WHERE status = 'pending' AND pay_deadline <= $1
ORDER BY pay_deadline
LIMIT $2`

	rows, err := db(ctx, r.pool).Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan booking id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stale pending: %w", err)
	}
	return ids, nil
}

// ListElapsedConfirmed returns ids of confirmed bookings whose session end
// has passed, ready to be completed.
func (r *BookingRepository) ListElapsedConfirmed(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	const query = `
SELECT b.id FROM bookings b
JOIN slots s ON s.id = b.slot_id
WHERE b.status = 'confirmed' AND s.ends_at <= $1
ORDER BY s.ends_at
LIMIT $2`

	rows, err := db(ctx, r.pool).Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list elapsed confirmed: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan booking id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list elapsed confirmed: %w", err)
	}
	return ids, nil
}

// HasLiveForSlot reports whether a pending or confirmed booking references
// the slot.
func (r *BookingRepository) HasLiveForSlot(ctx context.Context, slotID uuid.UUID) (bool, error) {
	const query = `
SELECT EXISTS (
	SELECT 1 FROM bookings WHERE slot_id = $1 AND status IN ('pending', 'confirmed')
)`

	var exists bool
	if err := db(ctx, r.pool).QueryRow(ctx, query, slotID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check live booking for slot: %w", err)
	}
	return exists, nil
}
