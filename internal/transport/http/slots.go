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

// SlotLister is the minimal interface needed to list availability.
type SlotLister interface {
	ListAvailable(ctx context.Context, mentorID uuid.UUID, filter app.SlotFilter) ([]domain.Slot, error)
}

// SlotEditor is the minimal interface needed for mentor slot management.
type SlotEditor interface {
	CreateSlot(ctx context.Context, in app.CreateSlotInput) (domain.Slot, error)
	DeactivateSlot(ctx context.Context, slotID, mentorID uuid.UUID) error
}

// HandleListSlots returns an HTTP handler for availability queries.
func HandleListSlots(svc SlotLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mentorID, err := uuid.Parse(r.URL.Query().Get("mentor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidID, "mentor_id is required")
			return
		}

		var filter app.SlotFilter
		if raw := r.URL.Query().Get("from"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid from timestamp")
				return
			}
			filter.From = &t
		}
		if raw := r.URL.Query().Get("to"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid to timestamp")
				return
			}
			filter.To = &t
		}

		slots, err := svc.ListAvailable(r.Context(), mentorID, filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		resp := make([]slotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, newSlotResponse(s))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleCreateSlot returns an HTTP handler for mentor slot ingestion.
func HandleCreateSlot(svc SlotEditor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mentorID, ok := callerID(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, codeIdentityRequired, "authenticated mentor id required")
			return
		}

		var req createSlotRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid starts_at format")
			return
		}
		endsAt, err := time.Parse(time.RFC3339, req.EndsAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid ends_at format")
			return
		}

		slot, err := svc.CreateSlot(r.Context(), app.CreateSlotInput{
			MentorID: mentorID,
			StartsAt: startsAt,
			EndsAt:   endsAt,
		})
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidSlotRange):
				writeError(w, http.StatusBadRequest, codeInvalidSlotRange, err.Error())
			case errors.Is(err, domain.ErrSlotInPast):
				writeError(w, http.StatusBadRequest, codeSlotInPast, err.Error())
			case errors.Is(err, domain.ErrSlotOverlap):
				writeError(w, http.StatusConflict, codeSlotOverlap, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusCreated, newSlotResponse(slot))
	}
}

// HandleDeactivateSlot returns an HTTP handler for mentor slot removal.
func HandleDeactivateSlot(svc SlotEditor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mentorID, ok := callerID(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, codeIdentityRequired, "authenticated mentor id required")
			return
		}
		slotID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidID, "invalid slot id")
			return
		}

		if err := svc.DeactivateSlot(r.Context(), slotID, mentorID); err != nil {
			switch {
			case errors.Is(err, domain.ErrSlotNotFound):
				writeError(w, http.StatusNotFound, codeSlotNotFound, err.Error())
			case errors.Is(err, domain.ErrNotSlotOwner):
				writeError(w, http.StatusForbidden, codeNotSlotOwner, err.Error())
			case errors.Is(err, domain.ErrSlotInUse):
				writeError(w, http.StatusConflict, codeSlotInUse, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type createSlotRequest struct {
	StartsAt string `json:"starts_at"`
	EndsAt   string `json:"ends_at"`
}

type slotResponse struct {
	ID       string    `json:"id"`
	MentorID string    `json:"mentor_id"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	IsBooked bool      `json:"is_booked"`
}

func newSlotResponse(s domain.Slot) slotResponse {
	return slotResponse{
		ID:       s.ID.String(),
		MentorID: s.MentorID.String(),
		StartsAt: s.StartsAt,
		EndsAt:   s.EndsAt,
		IsBooked: s.IsBooked,
	}
}
