package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestLocalhostOnlyIsAllowedIP(t *testing.T) {
	l := NewLocalhostOnly(quietLogger(), []string{"10.1.2.3", "192.168.0.0/16", "bad/cidr", " "})

	tests := []struct {
		ip      string
		allowed bool
	}{
		{"127.0.0.1", true},
		{"::1", true},
		{"localhost", true},
		{"10.1.2.3", true},
		{"10.1.2.4", false},
		{"192.168.44.5", true},
		{"172.16.0.1", false},
		{"not-an-ip", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.allowed, l.isAllowedIP(tt.ip), tt.ip)
	}

	assert.True(t, NewLocalhostOnly(quietLogger(), []string{"*"}).isAllowedIP("8.8.8.8"))
}

func TestLocalhostOnlyRestrict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	_ = r.SetTrustedProxies(nil)
	r.GET("/admin", NewLocalhostOnly(quietLogger(), []string{"10.0.0.0/8"}).Restrict(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		remote string
		status int
	}{
		{"127.0.0.1:5000", http.StatusNoContent},
		{"10.9.8.7:5000", http.StatusNoContent},
		{"203.0.113.9:5000", http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.RemoteAddr = tt.remote
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tt.status, w.Code, tt.remote)
	}
}
