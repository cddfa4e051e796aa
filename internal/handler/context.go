package handler

import (
	"net/http"
	"strings"

	"arbor/internal/httputil"
	"arbor/internal/service"
)

// requestScope builds the service scope from the authenticated identity and
// the optional Accept-Language header.
func requestScope(r *http.Request) service.Scope {
	id := httputil.GetIdentity(r)
	return service.Scope{
		UserID:    id.UserID,
		ContextID: id.ContextID,
		SessionID: id.SessionID,
		Locale:    preferredLanguage(r.Header.Get("Accept-Language")),
	}
}

// preferredLanguage extracts the first language tag from an Accept-Language
// header, without quality-factor negotiation.
func preferredLanguage(header string) string {
	if header == "" {
		return ""
	}
	first, _, _ := strings.Cut(header, ",")
	tag, _, _ := strings.Cut(strings.TrimSpace(first), ";")
	return tag
}
