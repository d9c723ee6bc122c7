package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the payload of access tokens issued by the identity service.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Actor identifies who performs a checklist mutation.
type Actor struct {
	UserID string
	Role   UserRole
	// Public is set when the caller authenticated with a signed checklist link.
	Public    bool
	IP        string
	UserAgent string
	RequestID string
}

// ActorFromClaims converts token claims into an actor.
func ActorFromClaims(claims *JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{UserID: claims.UserID, Role: claims.Role}
}
