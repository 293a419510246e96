package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mentorbay/scheduling/internal/app"
	"github.com/mentorbay/scheduling/internal/domain"
)

// BookingService is the minimal interface needed for booking endpoints.
type BookingService interface {
	Create(ctx context.Context, in app.CreateBookingInput) (domain.Booking, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	RequestCancel(ctx context.Context, id, callerID uuid.UUID) error
}

// HandleCreateBooking returns an HTTP handler for booking creation.
func HandleCreateBooking(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, codeIdentityRequired, "authenticated user id required")
			return
		}

		var req createBookingRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidID, "invalid slot id")
			return
		}
		if req.AmountCents <= 0 {
			writeError(w, http.StatusBadRequest, codeInvalidAmount, domain.ErrInvalidAmount.Error())
			return
		}

		booking, err := svc.Create(r.Context(), app.CreateBookingInput{
			UserID:      userID,
			SlotID:      slotID,
			AmountCents: req.AmountCents,
			Currency:    req.Currency,
		})
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidAmount):
				writeError(w, http.StatusBadRequest, codeInvalidAmount, err.Error())
			case errors.Is(err, domain.ErrSlotNotFound):
				writeError(w, http.StatusNotFound, codeSlotNotFound, err.Error())
			case errors.Is(err, domain.ErrSlotUnavailable):
				// Lost the race or the slot is gone; the client should
				// re-query availability.
				writeError(w, http.StatusConflict, codeSlotUnavailable, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusCreated, newBookingResponse(booking))
	}
}

// HandleGetBooking returns an HTTP handler for booking status queries.
func HandleGetBooking(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerID(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, codeIdentityRequired, "authenticated user id required")
			return
		}
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidID, "invalid booking id")
			return
		}

		booking, err := svc.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrBookingNotFound) {
				writeError(w, http.StatusNotFound, codeBookingNotFound, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}
		if _, ok := booking.Participant(caller); !ok {
			writeError(w, http.StatusForbidden, codeNotParticipant, domain.ErrNotParticipant.Error())
			return
		}

		writeJSON(w, http.StatusOK, newBookingResponse(booking))
	}
}

// HandleCancelBooking returns an HTTP handler for participant cancellation.
func HandleCancelBooking(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerID(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, codeIdentityRequired, "authenticated user id required")
			return
		}
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidID, "invalid booking id")
			return
		}

		if err := svc.RequestCancel(r.Context(), id, caller); err != nil {
			switch {
			case errors.Is(err, domain.ErrBookingNotFound):
				writeError(w, http.StatusNotFound, codeBookingNotFound, err.Error())
			case errors.Is(err, domain.ErrNotParticipant):
				writeError(w, http.StatusForbidden, codeNotParticipant, err.Error())
			case errors.Is(err, domain.ErrInvalidTransition):
				writeError(w, http.StatusConflict, codeInvalidTransition, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type createBookingRequest struct {
	SlotID      string `json:"slot_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type bookingResponse struct {
	ID            string    `json:"id"`
	SlotID        string    `json:"slot_id"`
	MentorID      string    `json:"mentor_id"`
	UserID        string    `json:"user_id"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	PayDeadline   time.Time `json:"pay_deadline"`
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
}

func newBookingResponse(b domain.Booking) bookingResponse {
	return bookingResponse{
		ID:            b.ID.String(),
		SlotID:        b.SlotID.String(),
		MentorID:      b.MentorID.String(),
		UserID:        b.UserID.String(),
		AmountCents:   b.AmountCents,
		Currency:      b.Currency,
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		PayDeadline:   b.PayDeadline,
		StartsAt:      b.SlotStartsAt,
		EndsAt:        b.SlotEndsAt,
	}
}
