package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dr-electrique/rapport-server/api/common"
	"github.com/dr-electrique/rapport-server/internal/auth"
)

const (
	ContextDeviceIDKey   = "device_id"
	ContextDeviceNameKey = "device_name"
)

// DeviceAuth validates the Bearer token issued to a field device and puts
// its identity on the request context.
func DeviceAuth(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			common.RespondError(c, http.StatusUnauthorized, "No Authorization request header")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			common.RespondError(c, http.StatusBadRequest, "Authorization field format error")
			c.Abort()
			return
		}

		claims, err := jwtService.ExtractClaims(parts[1])
		if err != nil {
			common.RespondError(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextDeviceIDKey, claims.DeviceID)
		c.Set(ContextDeviceNameKey, claims.DeviceName)
		c.Next()
	}
}

// DeviceName returns the authenticated device name from the context.
func DeviceName(c *gin.Context) string {
	name, _ := c.Get(ContextDeviceNameKey)
	s, _ := name.(string)
	return s
}
