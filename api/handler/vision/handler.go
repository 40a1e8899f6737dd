package vision

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dr-electrique/rapport-server/api/common"
	visionSvc "github.com/dr-electrique/rapport-server/internal/vision"
)

// Handler 视觉识别处理器
type Handler struct {
	service *visionSvc.Service
}

// NewHandler 创建视觉识别处理器
func NewHandler(service *visionSvc.Service) *Handler {
	return &Handler{service: service}
}

type detectRequest struct {
	ImageData string `json:"image_data" binding:"required"` // base64, no data-URL prefix
	MediaType string `json:"media_type"`
}

// Detect proxies one material-detection request to the vision API.
// POST /api/v1/vision/detect
func (h *Handler) Detect(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "image_data is required")
		return
	}

	detection, err := h.service.DetectMaterial(c.Request.Context(), req.ImageData, req.MediaType)
	if err != nil {
		if errors.Is(err, visionSvc.ErrNotConfigured) {
			common.RespondError(c, http.StatusServiceUnavailable, "vision API is not configured")
			return
		}
		common.RespondError(c, http.StatusBadGateway, "material detection failed")
		return
	}

	common.RespondSuccess(c, detection)
}
