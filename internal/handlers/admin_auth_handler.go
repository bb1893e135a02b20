package handlers

import (
	"fmt"
	"net/http"

	"tip-ledger/internal/config"
	"tip-ledger/internal/dto"
	"tip-ledger/internal/ledger"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// OwnerSource returns the current ledger configuration.
type OwnerSource interface {
	Config() ledger.Config
}

// AdminLoginRequest 管理员登录请求
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	TOTPCode string `json:"totp_code" binding:"required"`
}

// AdminAuthHandler 管理员（账本 owner）认证处理器
type AdminAuthHandler struct {
	issuer *TokenIssuer
	cfg    config.AuthConfig
	owner  OwnerSource
}

func NewAdminAuthHandler(issuer *TokenIssuer, cfg config.AuthConfig, owner OwnerSource) *AdminAuthHandler {
	if cfg.TOTPSecret == "" || cfg.OwnerPasswordHash == "" {
		logrus.Warn("⚠️ auth.totp_secret or auth.owner_password_hash is not set, owner login is disabled")
	}
	return &AdminAuthHandler{issuer: issuer, cfg: cfg, owner: owner}
}

// AdminLoginHandler POST /api/v1/admin/login
// Password (bcrypt) plus TOTP; the token is issued for the current ledger owner.
func (h *AdminAuthHandler) AdminLoginHandler(c *gin.Context) {
	if h.cfg.TOTPSecret == "" || h.cfg.OwnerPasswordHash == "" {
		c.JSON(http.StatusServiceUnavailable, dto.AuthResponse{
			Success: false,
			Message: "owner login is not configured",
		})
		return
	}

	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.AuthResponse{
			Success: false,
			Message: fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	if req.Username != h.cfg.OwnerUsername ||
		bcrypt.CompareHashAndPassword([]byte(h.cfg.OwnerPasswordHash), []byte(req.Password)) != nil {
		logrus.WithFields(logrus.Fields{
			"username":  req.Username,
			"client_ip": c.ClientIP(),
		}).Warn("Owner login failed - invalid credentials")
		c.JSON(http.StatusUnauthorized, dto.AuthResponse{
			Success: false,
			Message: "Invalid credentials",
		})
		return
	}

	if !totp.Validate(req.TOTPCode, h.cfg.TOTPSecret) {
		logrus.WithField("client_ip", c.ClientIP()).Warn("Owner login failed - invalid TOTP code")
		c.JSON(http.StatusUnauthorized, dto.AuthResponse{
			Success: false,
			Message: "Invalid TOTP code",
		})
		return
	}

	owner := h.owner.Config().Owner
	token, err := h.issuer.Issue(owner, dto.RoleOwner)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.AuthResponse{
			Success: false,
			Message: "Failed to generate token",
		})
		return
	}

	logrus.WithField("owner", owner).Info("Owner login successful")
	c.JSON(http.StatusOK, dto.AuthResponse{
		Success: true,
		Token:   token,
		Message: "Login successful",
	})
}

// GenerateTOTPSecretHandler GET /api/v1/admin/totp-secret
// Only allowed while no secret is configured.
func (h *AdminAuthHandler) GenerateTOTPSecretHandler(c *gin.Context) {
	if h.cfg.TOTPSecret != "" {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "TOTP secret already configured",
			"code":    "TOTP_CONFIGURED",
		})
		return
	}

	key, err := GenerateTOTPKey(h.cfg.OwnerUsername)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to generate TOTP secret",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"secret":  key.Secret(),
		"url":     key.URL(),
		"message": "Save this secret to auth.totp_secret (or OWNER_TOTP_SECRET).",
	})
}

// GenerateTOTPKey creates a new owner TOTP key.
func GenerateTOTPKey(account string) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      "Tip Ledger",
		AccountName: account,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
}
