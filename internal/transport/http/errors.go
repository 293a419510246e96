package http

import (
	"encoding/json"
	"net/http"
)

const (
	codeNotFound           = "not_found"
	codeInvalidRequestBody = "invalid_request_body"
	codeInvalidID          = "invalid_id"
	codeIdentityRequired   = "identity_required"
	codeInvalidAmount      = "invalid_amount"
	codeInvalidSlotRange   = "invalid_slot_range"
	codeSlotInPast         = "slot_in_past"
	codeSlotOverlap        = "slot_overlap"
	codeSlotNotFound       = "slot_not_found"
	codeSlotUnavailable    = "slot_unavailable"
	codeSlotInUse          = "slot_in_use"
	codeNotSlotOwner       = "not_slot_owner"
	codeBookingNotFound    = "booking_not_found"
	codeInvalidTransition  = "invalid_transition"
	codeNotParticipant     = "not_participant"
	codeNotAuthorized      = "not_authorized"
	codeRoomNotYetOpen     = "room_not_yet_open"
	codeRoomExpired        = "room_expired"
	codeEventIDRequired    = "event_id_required"
	codeForbidden          = "forbidden"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
