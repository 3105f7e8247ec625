package models

import "github.com/golang-jwt/jwt/v5"

// Role names recognised by the enrollment endpoints.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
	RoleGrader  = "grader"
)

// IdentityClaims are the JWT claims this service reads. Token issuance is the
// responsibility of the identity provider; only subject and role matter here.
type IdentityClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Requester identifies the caller of an authorization-sensitive operation.
type Requester struct {
	ID   string
	Role string
}

// IsAdmin reports whether the requester carries the admin role.
func (r Requester) IsAdmin() bool {
	return r.Role == RoleAdmin
}
