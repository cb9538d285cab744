package models

import "github.com/golang-jwt/jwt/v5"

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Role UserRole `json:"role"`
}

// AuthResponse is returned by signup and every login flow.
type AuthResponse struct {
	Token     string   `json:"token"`
	ExpiresIn int64    `json:"expiresIn"`
	User      UserInfo `json:"user"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the caller holds the admin role.
func (c *JWTClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}
