package middleware

import (
	"net/http"
	"strings"

	"arbor/internal/auth"
	"arbor/internal/httputil"
)

// Auth validates the bearer token and stores the caller's identity in the
// request context. Unauthenticated requests never reach the handlers.
func Auth(verifier auth.JWTVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				httputil.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			r = httputil.WithIdentity(r, httputil.Identity{
				UserID:    claims.Subject,
				ContextID: claims.ContextID,
				SessionID: claims.SessionID,
			})
			next.ServeHTTP(w, r)
		})
	}
}
