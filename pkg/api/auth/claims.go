// Package auth provides JWT authentication for the operator API.
package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenType indicates whether a token is an access token or refresh token.
type TokenType string

const (
	// TokenTypeAccess is a short-lived token used for API authorization.
	TokenTypeAccess TokenType = "access"
	// TokenTypeRefresh is a long-lived token used to obtain new access tokens.
	TokenTypeRefresh TokenType = "refresh"
)

// Operator roles. Viewers may read; operators may also write items and
// acknowledge conditions.
const (
	RoleViewer   = "viewer"
	RoleOperator = "operator"
)

// Claims represents JWT claims for an operator.
type Claims struct {
	jwt.RegisteredClaims

	// Operator is the name recorded with writes and acknowledgments.
	Operator string `json:"operator"`

	// Role is "operator" or "viewer".
	Role string `json:"role"`

	// TokenType indicates whether this is an access or refresh token.
	TokenType TokenType `json:"token_type"`
}

// IsAccessToken returns true if this is an access token.
func (c *Claims) IsAccessToken() bool {
	return c.TokenType == TokenTypeAccess
}

// IsRefreshToken returns true if this is a refresh token.
func (c *Claims) IsRefreshToken() bool {
	return c.TokenType == TokenTypeRefresh
}

// CanOperate returns true if the role allows writes and acknowledgments.
func (c *Claims) CanOperate() bool {
	return c.Role == RoleOperator
}

// ValidRole reports whether role is a known operator role.
func ValidRole(role string) bool {
	return role == RoleOperator || role == RoleViewer
}
