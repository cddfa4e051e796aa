package httputil

import (
	"context"
	"net/http"
)

// Context key type to avoid collisions
type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller extracted by the auth middleware.
type Identity struct {
	UserID    string
	ContextID string
	SessionID string
}

// WithIdentity attaches the authenticated identity to the request context.
func WithIdentity(r *http.Request, id Identity) *http.Request {
	ctx := context.WithValue(r.Context(), identityKey, id)
	return r.WithContext(ctx)
}

// GetIdentity retrieves the identity from the request context; the zero
// value means the request was not authenticated.
func GetIdentity(r *http.Request) Identity {
	id, _ := r.Context().Value(identityKey).(Identity)
	return id
}
