package auth

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dr-electrique/rapport-server/api/common"
	authSvc "github.com/dr-electrique/rapport-server/internal/auth"
	"github.com/dr-electrique/rapport-server/utils"
)

// Handler 设备认证处理器
type Handler struct {
	keys *authSvc.KeyService
}

// NewHandler 创建认证处理器
func NewHandler(keys *authSvc.KeyService) *Handler {
	return &Handler{keys: keys}
}

type tokenRequest struct {
	Device string `json:"device" binding:"required"`
	Key    string `json:"key" binding:"required"`
}

// Token issues an access token for a device key.
// POST /api/auth/token
func (h *Handler) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "device and key are required")
		return
	}

	token, expiry, err := h.keys.Authenticate(c.Request.Context(), req.Device, req.Key)
	if err != nil {
		if errors.Is(err, authSvc.ErrInvalidCredentials) {
			log.Printf("[Auth] Rejected token request for device %s from %s", utils.SanitizeDeviceName(req.Device), c.ClientIP())
			common.RespondError(c, http.StatusUnauthorized, "invalid device name or key")
			return
		}
		common.RespondError(c, http.StatusInternalServerError, "authentication failed")
		return
	}

	common.RespondSuccess(c, gin.H{
		"token":      token,
		"expires_at": expiry.Unix(),
	})
}
