package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"tip-ledger/internal/config"
	"tip-ledger/internal/dto"
	"tip-ledger/internal/ledger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "tip-ledger"

// ErrReservedAccount 保留的内部主体不能作为 token 账户
var ErrReservedAccount = errors.New("account name is reserved")

// TokenIssuer signs and verifies principal JWTs (HS256).
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(cfg config.AuthConfig) (*TokenIssuer, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is not configured")
	}
	ttl := time.Duration(cfg.TokenTTL) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(cfg.JWTSecret), ttl: ttl}, nil
}

// Issue signs a token whose subject is the ledger caller.
func (t *TokenIssuer) Issue(account, role string) (string, error) {
	if ledger.IsReservedPrincipal(account) {
		return "", fmt.Errorf("%w: %q", ErrReservedAccount, account)
	}
	now := time.Now()
	claims := dto.JWTClaims{
		Account: account,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   account,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Validate parses tokenString and checks signature, expiry and subject.
func (t *TokenIssuer) Validate(tokenString string) (*dto.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &dto.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*dto.JWTClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Account == "" || claims.Account != claims.Subject {
		return nil, errors.New("token subject does not match account")
	}
	if ledger.IsReservedPrincipal(claims.Account) {
		return nil, fmt.Errorf("%w: %q", ErrReservedAccount, claims.Account)
	}
	switch claims.Role {
	case dto.RoleUser, dto.RoleRelayer, dto.RoleOwner:
	default:
		return nil, fmt.Errorf("unknown role %q", claims.Role)
	}
	return claims, nil
}

// AuthHandler issues development tokens.
type AuthHandler struct {
	issuer  *TokenIssuer
	enabled bool
}

func NewAuthHandler(issuer *TokenIssuer, cfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{issuer: issuer, enabled: cfg.AllowDevTokens}
}

// AuthenticateHandler POST /api/v1/auth/token
// Only available with auth.allow_dev_tokens; production callers get tokens
// from the owner login or the generate-jwt tool.
func (h *AuthHandler) AuthenticateHandler(c *gin.Context) {
	if !h.enabled {
		c.JSON(http.StatusForbidden, dto.AuthResponse{
			Success: false,
			Message: "development tokens are disabled",
		})
		return
	}

	var req dto.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.AuthResponse{
			Success: false,
			Message: fmt.Sprintf("invalid request: %v", err),
		})
		return
	}

	token, err := h.issuer.Issue(req.Account, dto.RoleUser)
	if errors.Is(err, ErrReservedAccount) {
		c.JSON(http.StatusBadRequest, dto.AuthResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}
	if err != nil {
		log.Printf("❌ Issue dev token failed: %v", err)
		c.JSON(http.StatusInternalServerError, dto.AuthResponse{
			Success: false,
			Message: "failed to generate token",
		})
		return
	}

	log.Printf("🔐 Dev token issued for %s", req.Account)
	c.JSON(http.StatusOK, dto.AuthResponse{
		Success: true,
		Token:   token,
		Message: "success",
	})
}
