package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dr-electrique/rapport-server/api/common"
	dashboardSvc "github.com/dr-electrique/rapport-server/internal/dashboard"
)

// Handler 仪表板处理器
type Handler struct {
	service *dashboardSvc.Service
}

// NewHandler 创建仪表板处理器
func NewHandler(service *dashboardSvc.Service) *Handler {
	return &Handler{service: service}
}

// Overview returns the aggregated dashboard payload.
// GET /api/v1/dashboard
func (h *Handler) Overview(c *gin.Context) {
	overview, err := h.service.Overview(c.Request.Context())
	if err != nil {
		common.RespondError(c, http.StatusInternalServerError, "failed to build dashboard")
		return
	}
	common.RespondSuccess(c, overview)
}
