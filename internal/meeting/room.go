// Package meeting derives meeting rooms for booked sessions. A room is a
// deterministic name, not a stored resource: both participants can recompute
// the same join target independently, so access control is enforced by
// identity and the session time window, never by room existence.
package meeting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mentorbay/scheduling/internal/clock"
	"github.com/mentorbay/scheduling/internal/domain"
)

// roomNamespace is the fixed UUIDv5 namespace for room derivation. Changing
// it changes every room name, so it is part of the wire contract.
var roomNamespace = uuid.MustParse("9f2c7a4e-5b31-4c8d-9e06-2f8d41c7b350")

// RoomFor derives the room name for a booking. Pure and deterministic: the
// same booking always yields the same room, distinct bookings never collide.
func RoomFor(bookingID uuid.UUID) string {
	return "mentor-" + uuid.NewSHA1(roomNamespace, bookingID[:]).String()
}

// BookingGetter is the read surface the binder needs.
type BookingGetter interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Booking, error)
}

// Binder authorizes session joins and issues signed join grants.
type Binder struct {
	bookings   BookingGetter
	clock      clock.Clock
	baseURL    string
	secret     []byte
	openGrace  time.Duration
	closeGrace time.Duration
}

const (
	defaultOpenGrace  = 10 * time.Minute
	defaultCloseGrace = 15 * time.Minute
)

func NewBinder(bookings BookingGetter, clk clock.Clock, baseURL string, secret []byte, opts ...BinderOption) *Binder {
	b := &Binder{
		bookings:   bookings,
		clock:      clk,
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
		openGrace:  defaultOpenGrace,
		closeGrace: defaultCloseGrace,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type BinderOption func(*Binder)

// WithGraceWindows overrides how early a room opens and how late it closes.
func WithGraceWindows(open, close time.Duration) BinderOption {
	return func(b *Binder) {
		if open > 0 {
			b.openGrace = open
		}
		if close > 0 {
			b.closeGrace = close
		}
	}
}

// JoinGrant is what a participant needs to enter the room.
type JoinGrant struct {
	RoomName    string
	RoomURL     string
	Role        domain.Role
	DisplayName string
	Token       string
	ExpiresAt   time.Time
}

type joinClaims struct {
	Room string `json:"room"`
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JoinInfo authorizes the caller and issues a signed grant. Only the
// booking's two participants may join, only within the session window widened
// by the grace margins. Confirmed and completed bookings are joinable: the
// sweeper completes a booking the moment its session ends, and the room stays
// open through the close grace regardless.
func (b *Binder) JoinInfo(ctx context.Context, bookingID, callerID uuid.UUID, displayName string) (JoinGrant, error) {
	booking, err := b.bookings.Get(ctx, bookingID)
	if err != nil {
		return JoinGrant{}, err
	}

	role, ok := booking.Participant(callerID)
	if !ok {
		return JoinGrant{}, domain.ErrNotAuthorized
	}
	if booking.Status != domain.BookingStatusConfirmed && booking.Status != domain.BookingStatusCompleted {
		return JoinGrant{}, domain.ErrNotAuthorized
	}

	now := b.clock.Now()
	opensAt := booking.SlotStartsAt.Add(-b.openGrace)
	closesAt := booking.SlotEndsAt.Add(b.closeGrace)
	if now.Before(opensAt) {
		return JoinGrant{}, domain.ErrRoomNotYetOpen
	}
	if now.After(closesAt) {
		return JoinGrant{}, domain.ErrRoomExpired
	}

	room := RoomFor(bookingID)
	token, err := b.signGrant(room, role, displayName, callerID, bookingID, now, closesAt)
	if err != nil {
		return JoinGrant{}, fmt.Errorf("sign join grant: %w", err)
	}

	return JoinGrant{
		RoomName:    room,
		RoomURL:     fmt.Sprintf("%s/%s?jwt=%s", b.baseURL, room, token),
		Role:        role,
		DisplayName: displayName,
		Token:       token,
		ExpiresAt:   closesAt,
	}, nil
}

func (b *Binder) signGrant(room string, role domain.Role, name string, callerID, bookingID uuid.UUID, now, expiresAt time.Time) (string, error) {
	claims := joinClaims{
		Room: room,
		Role: string(role),
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   callerID.String(),
			Audience:  jwt.ClaimStrings{bookingID.String()},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
}
