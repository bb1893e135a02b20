package middleware

import (
	"net/http"
	"strings"

	"tip-ledger/internal/dto"
	"tip-ledger/internal/handlers"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Context keys set by RequireAuth.
const (
	ContextAccount = "account"
	ContextRole    = "role"
)

// AuthMiddleware JWT principal authentication
type AuthMiddleware struct {
	logger *logrus.Logger
	issuer *handlers.TokenIssuer
}

func NewAuthMiddleware(logger *logrus.Logger, issuer *handlers.TokenIssuer) *AuthMiddleware {
	return &AuthMiddleware{logger: logger, issuer: issuer}
}

// RequireAuth verifies the bearer token and stores the caller account and role.
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			a.reject(c, http.StatusUnauthorized, "Authentication required", "MISSING_AUTH_HEADER", nil)
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			a.reject(c, http.StatusUnauthorized, "Authorization header must be in format: Bearer <token>", "INVALID_AUTH_FORMAT", nil)
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if tokenString == "" {
			a.reject(c, http.StatusUnauthorized, "Empty token", "EMPTY_TOKEN", nil)
			return
		}

		claims, err := a.issuer.Validate(tokenString)
		if err != nil {
			a.reject(c, http.StatusUnauthorized, "Invalid or expired token", "INVALID_TOKEN", err)
			return
		}

		c.Set(ContextAccount, claims.Account)
		c.Set(ContextRole, claims.Role)

		a.logger.WithFields(logrus.Fields{
			"path":    c.Request.URL.Path,
			"method":  c.Request.Method,
			"account": claims.Account,
			"role":    claims.Role,
		}).Debug("JWT auth success")

		c.Next()
	}
}

// RequireRole must run after RequireAuth.
func (a *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextRole)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		a.logger.WithFields(logrus.Fields{
			"path":    c.Request.URL.Path,
			"account": c.GetString(ContextAccount),
			"role":    role,
		}).Warn("Auth failed - insufficient permissions")
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "Insufficient permissions",
			"code":    "INSUFFICIENT_PERMISSIONS",
		})
	}
}

// RequireOwner 要求 owner 角色
func (a *AuthMiddleware) RequireOwner() gin.HandlerFunc {
	return a.RequireRole(dto.RoleOwner)
}

func (a *AuthMiddleware) reject(c *gin.Context, status int, msg, code string, err error) {
	fields := logrus.Fields{
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
		"code":   code,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	a.logger.WithFields(fields).Warn("JWT auth failed")

	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}
