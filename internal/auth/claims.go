package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// CaregiverID scopes every read to the caregiver's own recipients and
// notifications; admins carry their own user id there.
type Claims struct {
	jwt.RegisteredClaims

	UserID      string    `json:"user_id"`
	CaregiverID string    `json:"caregiver_id"`
	Role        string    `json:"role"`
	TokenType   TokenType `json:"token_type"`
}
