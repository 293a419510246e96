package http

import (
	"net/http"

	"github.com/google/uuid"
)

// Identity is established by the external auth layer, which sets these
// headers after authenticating the caller. The engine trusts them as given.
const (
	headerUserID   = "X-User-ID"
	headerUserName = "X-User-Name"
)

// callerID extracts the authenticated user id from the request.
func callerID(r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get(headerUserID)
	if raw == "" {
		return uuid.UUID{}, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}

func callerName(r *http.Request) string {
	return r.Header.Get(headerUserName)
}
