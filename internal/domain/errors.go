package domain

import "errors"

var (
	ErrSlotNotFound      = errors.New("slot not found")
	ErrSlotUnavailable   = errors.New("slot unavailable")
	ErrSlotInUse         = errors.New("slot has a live booking")
	ErrSlotOverlap       = errors.New("slot overlaps an existing slot")
	ErrInvalidSlotRange  = errors.New("slot end must be after start")
	ErrSlotInPast        = errors.New("slot starts in the past")
	ErrNotSlotOwner      = errors.New("slot belongs to another mentor")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidTransition = errors.New("invalid booking transition")
	ErrSessionNotEnded   = errors.New("session has not ended")
	ErrNotParticipant    = errors.New("caller is not a booking participant")
	ErrNotAuthorized     = errors.New("not authorized to join this session")
	ErrRoomNotYetOpen    = errors.New("meeting room not yet open")
	ErrRoomExpired       = errors.New("meeting room has expired")
	ErrEventIDRequired   = errors.New("payment event id required")
)
