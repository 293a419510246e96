package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mentorbay/scheduling/internal/domain"
	"github.com/mentorbay/scheduling/internal/meeting"
)

// JoinIssuer is the minimal interface needed to issue meeting join grants.
type JoinIssuer interface {
	JoinInfo(ctx context.Context, bookingID, callerID uuid.UUID, displayName string) (meeting.JoinGrant, error)
}

// HandleJoinBooking returns an HTTP handler issuing join grants to the
// booking's participants within the session window.
func HandleJoinBooking(svc JoinIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerID(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, codeIdentityRequired, "authenticated user id required")
			return
		}
		bookingID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidID, "invalid booking id")
			return
		}

		grant, err := svc.JoinInfo(r.Context(), bookingID, caller, callerName(r))
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrBookingNotFound):
				writeError(w, http.StatusNotFound, codeBookingNotFound, err.Error())
			case errors.Is(err, domain.ErrNotAuthorized):
				writeError(w, http.StatusForbidden, codeNotAuthorized, err.Error())
			case errors.Is(err, domain.ErrRoomNotYetOpen):
				writeError(w, http.StatusConflict, codeRoomNotYetOpen, err.Error())
			case errors.Is(err, domain.ErrRoomExpired):
				writeError(w, http.StatusGone, codeRoomExpired, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusOK, joinResponse{
			RoomName:    grant.RoomName,
			RoomURL:     grant.RoomURL,
			Role:        string(grant.Role),
			DisplayName: grant.DisplayName,
			Token:       grant.Token,
			ExpiresAt:   grant.ExpiresAt,
		})
	}
}

type joinResponse struct {
	RoomName    string    `json:"room_name"`
	RoomURL     string    `json:"room_url"`
	Role        string    `json:"role"`
	DisplayName string    `json:"display_name,omitempty"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
}
