package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mentorbay/scheduling/internal/clock"
	"github.com/mentorbay/scheduling/internal/domain"
)

// SlotService owns mentor availability: listing, ingestion with non-overlap
// and future-dated validation, and soft deletion. Reservation itself belongs
// to the booking state machine.
type SlotService struct {
	slots    SlotStore
	bookings BookingStore
	clock    clock.Clock
}

func NewSlotService(slots SlotStore, bookings BookingStore, clk clock.Clock) *SlotService {
	return &SlotService{
		slots:    slots,
		bookings: bookings,
		clock:    clk,
	}
}

type SlotFilter struct {
	From *time.Time
	To   *time.Time
}

// ListAvailable returns the mentor's active, unbooked, future slots ordered
// by start time.
func (s *SlotService) ListAvailable(ctx context.Context, mentorID uuid.UUID, filter SlotFilter) ([]domain.Slot, error) {
	return s.slots.ListAvailable(ctx, mentorID, filter.From, filter.To, s.clock.Now())
}

type CreateSlotInput struct {
	MentorID uuid.UUID
	StartsAt time.Time
	EndsAt   time.Time
}

// CreateSlot ingests a mentor-defined availability window. The overlap check
// serializes on a per-mentor lock, so two concurrent ingestions for the same
// mentor cannot both insert overlapping windows.
func (s *SlotService) CreateSlot(ctx context.Context, in CreateSlotInput) (domain.Slot, error) {
	if !in.EndsAt.After(in.StartsAt) {
		return domain.Slot{}, domain.ErrInvalidSlotRange
	}
	now := s.clock.Now()
	if !in.StartsAt.After(now) {
		return domain.Slot{}, domain.ErrSlotInPast
	}

	slot := domain.Slot{
		ID:        uuid.New(),
		MentorID:  in.MentorID,
		StartsAt:  in.StartsAt.UTC(),
		EndsAt:    in.EndsAt.UTC(),
		IsActive:  true,
		CreatedAt: now,
	}

	err := s.slots.WithTx(ctx, func(txCtx context.Context) error {
		overlaps, err := s.slots.HasOverlap(txCtx, in.MentorID, slot.StartsAt, slot.EndsAt)
		if err != nil {
			return err
		}
		if overlaps {
			return domain.ErrSlotOverlap
		}
		return s.slots.Insert(txCtx, slot)
	})
	if err != nil {
		return domain.Slot{}, err
	}
	return slot, nil
}

// DeactivateSlot soft-deletes a slot. A slot referenced by a pending or
// confirmed booking cannot be removed.
func (s *SlotService) DeactivateSlot(ctx context.Context, slotID, mentorID uuid.UUID) error {
	return s.slots.WithTx(ctx, func(txCtx context.Context) error {
		slot, err := s.slots.GetForUpdate(txCtx, slotID)
		if err != nil {
			return err
		}
		if slot.MentorID != mentorID {
			return domain.ErrNotSlotOwner
		}
		live, err := s.bookings.HasLiveForSlot(txCtx, slotID)
		if err != nil {
			return err
		}
		if live {
			return domain.ErrSlotInUse
		}
		return s.slots.Deactivate(txCtx, slotID)
	})
}
