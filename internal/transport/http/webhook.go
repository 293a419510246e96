package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mentorbay/scheduling/internal/app"
	"github.com/mentorbay/scheduling/internal/domain"
)

// EventApplier is the minimal interface needed for the payment webhook.
type EventApplier interface {
	Apply(ctx context.Context, in app.ApplyInput) (app.ApplyResult, error)
	Unreviewed(ctx context.Context) ([]domain.PaymentEvent, error)
}

// HandlePaymentWebhook returns an HTTP handler consuming provider events.
// Delivery is at-least-once and possibly out of order; duplicates replay the
// recorded outcome and return success so the provider stops retrying.
func HandlePaymentWebhook(svc EventApplier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req paymentEventRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.EventID == "" {
			writeError(w, http.StatusBadRequest, codeEventIDRequired, domain.ErrEventIDRequired.Error())
			return
		}
		eventType := domain.PaymentEventType(req.EventType)
		if eventType != domain.PaymentEventSucceeded && eventType != domain.PaymentEventFailed {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "event_type must be succeeded or failed")
			return
		}

		occurredAt := time.Time{}
		if req.Timestamp != "" {
			parsed, err := time.Parse(time.RFC3339, req.Timestamp)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid timestamp format")
				return
			}
			occurredAt = parsed
		}

		result, err := svc.Apply(r.Context(), app.ApplyInput{
			EventID:        req.EventID,
			CorrelationKey: req.CorrelationKey,
			Type:           eventType,
			AmountCents:    req.AmountCents,
			OccurredAt:     occurredAt,
		})
		if err != nil {
			if errors.Is(err, domain.ErrEventIDRequired) {
				writeError(w, http.StatusBadRequest, codeEventIDRequired, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		status := http.StatusOK
		if result.Outcome.NeedsOperator() {
			// Accepted and persisted, but flagged for manual reconciliation.
			status = http.StatusAccepted
		}
		writeJSON(w, status, paymentEventResponse{
			EventID:  req.EventID,
			Outcome:  string(result.Outcome),
			Replayed: result.Replayed,
		})
	}
}

// HandleUnreviewedEvents returns an HTTP handler listing events flagged for
// operator attention.
func HandleUnreviewedEvents(svc EventApplier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		evts, err := svc.Unreviewed(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}
		resp := make([]unreviewedEventResponse, 0, len(evts))
		for _, ev := range evts {
			item := unreviewedEventResponse{
				EventID:        ev.EventID,
				CorrelationKey: ev.CorrelationKey,
				EventType:      string(ev.Type),
				AmountCents:    ev.AmountCents,
				Outcome:        string(ev.Outcome),
				ReceivedAt:     ev.ReceivedAt,
			}
			if ev.BookingID != nil {
				item.BookingID = ev.BookingID.String()
			}
			resp = append(resp, item)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type paymentEventRequest struct {
	EventID        string `json:"event_id"`
	EventType      string `json:"event_type"`
	CorrelationKey string `json:"correlation_key"`
	AmountCents    int64  `json:"amount_cents"`
	Timestamp      string `json:"timestamp"`
}

type paymentEventResponse struct {
	EventID  string `json:"event_id"`
	Outcome  string `json:"outcome"`
	Replayed bool   `json:"replayed"`
}

type unreviewedEventResponse struct {
	EventID        string    `json:"event_id"`
	CorrelationKey string    `json:"correlation_key"`
	BookingID      string    `json:"booking_id,omitempty"`
	EventType      string    `json:"event_type"`
	AmountCents    int64     `json:"amount_cents"`
	Outcome        string    `json:"outcome"`
	ReceivedAt     time.Time `json:"received_at"`
}
