package dto

import "github.com/golang-jwt/jwt/v5"

// ==================== Auth DTOs ====================

// AuthRequest dev token request; only honoured when auth.allow_dev_tokens is set
type AuthRequest struct {
	Account string `json:"account" binding:"required"` // NEAR account id
}

// AuthResponse Authentication response structure
type AuthResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

// Principal roles carried in JWT claims
const (
	RoleUser    = "user"
	RoleRelayer = "relayer"
	RoleOwner   = "owner"
)

// JWTClaims JWT Claims structure. Subject is the ledger caller.
type JWTClaims struct {
	Account string `json:"account"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}
