package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mentorbay/scheduling/internal/domain"
)

// fakeState backs the in-memory store fakes. WithTx serializes whole
// transactions, giving tests the same atomicity the row locks give the
// real repositories. fakeSlots, fakeBookings and fakeLedger are views over
// the shared state implementing the store interfaces.
type fakeState struct {
	txMu sync.Mutex

	mu       sync.Mutex
	slots    map[uuid.UUID]domain.Slot
	bookings map[uuid.UUID]domain.Booking
	events   map[string]domain.PaymentEvent
	eventIDs []string
}

func newFakeState(slots []domain.Slot, bookings []domain.Booking) *fakeState {
	s := &fakeState{
		slots:    make(map[uuid.UUID]domain.Slot),
		bookings: make(map[uuid.UUID]domain.Booking),
		events:   make(map[string]domain.PaymentEvent),
	}
	for _, slot := range slots {
		s.slots[slot.ID] = slot
	}
	for _, b := range bookings {
		s.bookings[b.ID] = b
	}
	return s
}

func (s *fakeState) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx)
}

func (s *fakeState) slot(id uuid.UUID) domain.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[id]
}

func (s *fakeState) booking(id uuid.UUID) domain.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings[id]
}

type fakeSlots struct{ *fakeState }

var _ SlotStore = fakeSlots{}

func (s fakeSlots) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.withTx(ctx, fn)
}

func (s fakeSlots) Insert(_ context.Context, slot domain.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot.ID] = slot
	return nil
}

func (s fakeSlots) Get(_ context.Context, id uuid.UUID) (domain.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[id]
	if !ok {
		return domain.Slot{}, domain.ErrSlotNotFound
	}
	return slot, nil
}

func (s fakeSlots) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Slot, error) {
	return s.Get(ctx, id)
}

func (s fakeSlots) ListAvailable(_ context.Context, mentorID uuid.UUID, from, to *time.Time, now time.Time) ([]domain.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Slot
	for _, slot := range s.slots {
		if slot.MentorID != mentorID || !slot.IsActive || slot.IsBooked || !slot.StartsAt.After(now) {
			continue
		}
		if from != nil && slot.StartsAt.Before(*from) {
			continue
		}
		if to != nil && !slot.StartsAt.Before(*to) {
			continue
		}
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (s fakeSlots) HasOverlap(_ context.Context, mentorID uuid.UUID, start, end time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range s.slots {
		if slot.MentorID == mentorID && slot.IsActive && slot.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (s fakeSlots) Reserve(_ context.Context, slotID uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotID]
	if !ok {
		return domain.ErrSlotNotFound
	}
	if !slot.IsActive || slot.IsBooked || !slot.StartsAt.After(now) {
		return domain.ErrSlotUnavailable
	}
	slot.IsBooked = true
	s.slots[slotID] = slot
	return nil
}

func (s fakeSlots) Release(_ context.Context, slotID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotID]
	if !ok {
		return domain.ErrSlotNotFound
	}
	slot.IsBooked = false
	s.slots[slotID] = slot
	return nil
}

func (s fakeSlots) Deactivate(_ context.Context, slotID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotID]
	if !ok {
		return domain.ErrSlotNotFound
	}
	slot.IsActive = false
	s.slots[slotID] = slot
	return nil
}

type fakeBookings struct{ *fakeState }

var _ BookingStore = fakeBookings{}

func (s fakeBookings) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.withTx(ctx, fn)
}

func (s fakeBookings) Insert(_ context.Context, b domain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.bookings {
		if other.SlotID == b.SlotID && !other.Status.Terminal() {
			return domain.ErrSlotUnavailable
		}
	}
	s.bookings[b.ID] = b
	return nil
}

func (s fakeBookings) Get(_ context.Context, id uuid.UUID) (domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, domain.ErrBookingNotFound
	}
	if slot, ok := s.slots[b.SlotID]; ok {
		b.SlotStartsAt = slot.StartsAt
		b.SlotEndsAt = slot.EndsAt
	}
	return b, nil
}

func (s fakeBookings) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return s.Get(ctx, id)
}

func (s fakeBookings) UpdateStatus(_ context.Context, id uuid.UUID, status domain.BookingStatus, payStatus domain.PaymentStatus, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return domain.ErrBookingNotFound
	}
	b.Status = status
	b.PaymentStatus = payStatus
	b.UpdatedAt = now
	s.bookings[id] = b
	return nil
}

func (s fakeBookings) ListStalePending(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for _, b := range s.bookings {
		if len(ids) == limit {
			break
		}
		if b.Status == domain.BookingStatusPending && !b.PayDeadline.After(now) {
			ids = append(ids, b.ID)
		}
	}
	return ids, nil
}

func (s fakeBookings) ListElapsedConfirmed(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for _, b := range s.bookings {
		if len(ids) == limit {
			break
		}
		if b.Status != domain.BookingStatusConfirmed {
			continue
		}
		endsAt := b.SlotEndsAt
		if slot, ok := s.slots[b.SlotID]; ok {
			endsAt = slot.EndsAt
		}
		if !endsAt.After(now) {
			ids = append(ids, b.ID)
		}
	}
	return ids, nil
}

func (s fakeBookings) HasLiveForSlot(_ context.Context, slotID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.SlotID == slotID && !b.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

type fakeLedger struct{ *fakeState }

var _ EventLedger = fakeLedger{}

func (s fakeLedger) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.withTx(ctx, fn)
}

func (s fakeLedger) InsertEvent(_ context.Context, ev domain.PaymentEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ev.EventID]; ok {
		return false, nil
	}
	s.events[ev.EventID] = ev
	s.eventIDs = append(s.eventIDs, ev.EventID)
	return true, nil
}

func (s fakeLedger) GetEvent(_ context.Context, eventID string) (*domain.PaymentEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

func (s fakeLedger) RecordOutcome(_ context.Context, eventID string, bookingID *uuid.UUID, outcome domain.EventOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return domain.ErrEventIDRequired
	}
	ev.BookingID = bookingID
	ev.Outcome = outcome
	s.events[eventID] = ev
	return nil
}

func (s fakeLedger) ListUnreviewed(_ context.Context) ([]domain.PaymentEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PaymentEvent
	for _, id := range s.eventIDs {
		if ev := s.events[id]; ev.Outcome.NeedsOperator() {
			out = append(out, ev)
		}
	}
	return out, nil
}

// capturingPublisher records published events for assertions.
type capturingPublisher struct {
	mu        sync.Mutex
	published []publishedEvent
}

type publishedEvent struct {
	RoutingKey string
	Event      domain.BookingEvent
}

func (p *capturingPublisher) Publish(_ context.Context, routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	evt, _ := payload.(domain.BookingEvent)
	p.published = append(p.published, publishedEvent{RoutingKey: routingKey, Event: evt})
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func (p *capturingPublisher) routingKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.published))
	for _, e := range p.published {
		keys = append(keys, e.RoutingKey)
	}
	return keys
}
