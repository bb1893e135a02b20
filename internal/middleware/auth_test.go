package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tip-ledger/internal/config"
	"tip-ledger/internal/dto"
	"tip-ledger/internal/handlers"
	"tip-ledger/internal/ledger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newAuthEngine(t *testing.T) (*gin.Engine, *handlers.TokenIssuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	issuer, err := handlers.NewTokenIssuer(config.AuthConfig{JWTSecret: "test-secret", TokenTTL: 1})
	require.NoError(t, err)

	mw := NewAuthMiddleware(quietLogger(), issuer)
	r := gin.New()
	r.GET("/me", mw.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"account": c.GetString(ContextAccount), "role": c.GetString(ContextRole)})
	})
	r.GET("/owner", mw.RequireAuth(), mw.RequireOwner(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r, issuer
}

func get(r http.Handler, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// signClaims signs a token directly, skipping the issuer's own checks.
func signClaims(t *testing.T, secret, account, role string) string {
	t.Helper()
	now := time.Now()
	claims := dto.JWTClaims{
		Account: account,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "tip-ledger",
			Subject:   account,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestIssuerRejectsReservedAccount(t *testing.T) {
	_, issuer := newAuthEngine(t)

	for _, account := range []string{ledger.SelfPrincipal, "@SELF"} {
		_, err := issuer.Issue(account, dto.RoleRelayer)
		assert.ErrorIs(t, err, handlers.ErrReservedAccount, account)
	}

	_, err := issuer.Validate(signClaims(t, "test-secret", ledger.SelfPrincipal, dto.RoleRelayer))
	assert.ErrorIs(t, err, handlers.ErrReservedAccount)

	// "self" is an ordinary account name
	token, err := issuer.Issue("self", dto.RoleUser)
	require.NoError(t, err)
	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "self", claims.Account)
}

func TestRequireAuth(t *testing.T) {
	r, issuer := newAuthEngine(t)
	token, err := issuer.Issue("alice.near", dto.RoleUser)
	require.NoError(t, err)

	other, err := handlers.NewTokenIssuer(config.AuthConfig{JWTSecret: "other-secret"})
	require.NoError(t, err)
	forged, err := other.Issue("alice.near", dto.RoleOwner)
	require.NoError(t, err)
	reserved := signClaims(t, "test-secret", ledger.SelfPrincipal, dto.RoleUser)

	tests := []struct {
		name          string
		authorization string
		status        int
		code          string
	}{
		{"missing header", "", http.StatusUnauthorized, "MISSING_AUTH_HEADER"},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized, "INVALID_AUTH_FORMAT"},
		{"empty token", "Bearer  ", http.StatusUnauthorized, "EMPTY_TOKEN"},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"wrong secret", "Bearer " + forged, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"reserved account", "Bearer " + reserved, http.StatusUnauthorized, "INVALID_TOKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, "/me", tt.authorization)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
		})
	}

	w := get(r, "/me", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"account":"alice.near","role":"user"}`, w.Body.String())
}

func TestRequireOwner(t *testing.T) {
	r, issuer := newAuthEngine(t)

	user, err := issuer.Issue("alice.near", dto.RoleUser)
	require.NoError(t, err)
	w := get(r, "/owner", "Bearer "+user)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "INSUFFICIENT_PERMISSIONS")

	owner, err := issuer.Issue("owner.near", dto.RoleOwner)
	require.NoError(t, err)
	w = get(r, "/owner", "Bearer "+owner)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
