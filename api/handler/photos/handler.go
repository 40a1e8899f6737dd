package photos

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dr-electrique/rapport-server/api/common"
	"github.com/dr-electrique/rapport-server/database/repo/photos"
	"github.com/dr-electrique/rapport-server/internal/photo"
	"github.com/dr-electrique/rapport-server/internal/settings"
	"github.com/dr-electrique/rapport-server/storage"
)

// Handler 照片处理器
type Handler struct {
	settings *settings.Manager
	store    storage.Provider
	repo     *photos.Repository
	maxBytes int64
}

// NewHandler 创建照片处理器
func NewHandler(settingsMgr *settings.Manager, store storage.Provider, repo *photos.Repository, maxUploadMB int) *Handler {
	if maxUploadMB <= 0 {
		maxUploadMB = 25
	}
	return &Handler{
		settings: settingsMgr,
		store:    store,
		repo:     repo,
		maxBytes: int64(maxUploadMB) << 20,
	}
}

// Process compresses and watermarks one uploaded image and eagerly pushes
// it to storage when a rapport hint is present.
// POST /api/v1/photos/process (multipart)
func (h *Handler) Process(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "file is required")
		return
	}
	if fileHeader.Size > h.maxBytes {
		common.RespondError(c, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "failed to open upload")
		return
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, h.maxBytes))
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "failed to read upload")
		return
	}

	category := c.DefaultPostForm("category", photo.CategoryGenerales)
	parentHint := c.PostForm("rapport_id")
	geo := parseGeo(c)

	processor := photo.NewProcessor(h.settings.ProcessorConfig(), storage.AsObjectStore(h.store))
	result, err := processor.Process(c.Request.Context(), photo.File{
		Name: fileHeader.Filename,
		Size: fileHeader.Size,
		Data: data,
	}, geo, category, parentHint)
	if err != nil {
		if errors.Is(err, photo.ErrDecode) {
			common.RespondError(c, http.StatusUnprocessableEntity, "unsupported or corrupt image")
			return
		}
		common.RespondError(c, http.StatusInternalServerError, "image processing failed")
		return
	}

	common.RespondSuccess(c, result)
}

// ListByRapport returns the persisted photo rows of one rapport.
// GET /api/v1/rapports/:id/photos
func (h *Handler) ListByRapport(c *gin.Context) {
	rows, err := h.repo.ListByRapport(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.RespondError(c, http.StatusInternalServerError, "failed to list photos")
		return
	}
	common.RespondSuccess(c, rows)
}

// parseGeo reads the optional geolocation form fields.
func parseGeo(c *gin.Context) *photo.GeoLocation {
	captured, _ := strconv.ParseBool(c.PostForm("geo_captured"))
	if !captured {
		return nil
	}

	lat, errLat := strconv.ParseFloat(c.PostForm("latitude"), 64)
	lng, errLng := strconv.ParseFloat(c.PostForm("longitude"), 64)
	if errLat != nil || errLng != nil {
		return nil
	}
	accuracy, _ := strconv.ParseFloat(c.PostForm("accuracy"), 64)

	return &photo.GeoLocation{
		Latitude:  lat,
		Longitude: lng,
		Accuracy:  accuracy,
		Captured:  true,
	}
}
