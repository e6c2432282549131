package auth

import "github.com/golang-jwt/jwt/v5"

// Claims are the only supported JWT claims shape for this service.
// Multi-tenant invariant: OrganizationID must be present for all activity.
// The dialer control API is called by other platform services on behalf of a
// user; ActorID identifies that user for audit attribution.
type Claims struct {
	jwt.RegisteredClaims

	ActorID        string `json:"actor_id"`
	OrganizationID string `json:"organization_id"`
	Role           string `json:"role"`
}
