package auth

import "github.com/golang-jwt/jwt/v5"

// Claims are the token claims the overlay cares about. Subject is the user
// id; ContextID scopes the user to a tenant context and SessionID identifies
// the client session holding the virtual-tree mirrors.
type Claims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	ContextID string `json:"cid"`
	SessionID string `json:"sid"`
}

// JWTVerifier validates bearer tokens and extracts the overlay claims.
type JWTVerifier interface {
	// VerifyToken validates a JWT token string and returns the parsed
	// claims. Returns an error if the token is invalid, expired, or has an
	// invalid signature.
	VerifyToken(tokenString string) (*Claims, error)

	// Close releases any resources held by the verifier.
	Close() error
}
