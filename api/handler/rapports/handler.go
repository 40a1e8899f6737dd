package rapports

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dr-electrique/rapport-server/api/common"
	"github.com/dr-electrique/rapport-server/api/middleware"
	"github.com/dr-electrique/rapport-server/database/models"
	"github.com/dr-electrique/rapport-server/internal/dashboard"
	"github.com/dr-electrique/rapport-server/internal/photo"
	rapportSvc "github.com/dr-electrique/rapport-server/internal/rapport"
)

// Handler 日报处理器
type Handler struct {
	service   *rapportSvc.Service
	dashboard *dashboard.Service
}

// NewHandler 创建日报处理器
func NewHandler(service *rapportSvc.Service, dashboardSvc *dashboard.Service) *Handler {
	return &Handler{service: service, dashboard: dashboardSvc}
}

// photosPayload carries the form's four photo buckets.
type photosPayload struct {
	Generales []*photo.Photo `json:"generales"`
	Avant     []*photo.Photo `json:"avant"`
	Apres     []*photo.Photo `json:"apres"`
	Problemes []*photo.Photo `json:"problemes"`
}

// rapportPayload is the submission body. Field names follow the column
// naming the client already uses.
type rapportPayload struct {
	ID          string `json:"id"`
	Projet      string `json:"projet"`
	ProjetNom   string `json:"projet_nom"`
	Date        string `json:"date"`
	Adresse     string `json:"adresse"`
	Meteo       string `json:"meteo"`
	Temperature string `json:"temperature"`
	Redacteur   string `json:"redacteur"`

	MainOeuvre    []models.WorkerEntry        `json:"main_oeuvre"`
	Materiaux     []models.MaterialEntry      `json:"materiaux"`
	Equipements   []models.EquipmentEntry     `json:"equipements"`
	Soustraitants []models.SubcontractorEntry `json:"sous_traitants"`
	OrdresTravail []models.WorkOrderEntry     `json:"ordres_travail"`
	Reunions      []models.MeetingEntry       `json:"reunions"`

	Evenements        string `json:"evenements"`
	ProblemesSecurite string `json:"problemes_securite"`
	NotesGenerales    string `json:"notes_generales"`

	Photos photosPayload `json:"photos"`
}

func (p *rapportPayload) toModel() *models.Rapport {
	return &models.Rapport{
		ID:                p.ID,
		Projet:            p.Projet,
		ProjetNom:         p.ProjetNom,
		Date:              p.Date,
		Adresse:           p.Adresse,
		Meteo:             p.Meteo,
		Temperature:       p.Temperature,
		Redacteur:         p.Redacteur,
		MainOeuvre:        p.MainOeuvre,
		Materiaux:         p.Materiaux,
		Equipements:       p.Equipements,
		Soustraitants:     p.Soustraitants,
		OrdresTravail:     p.OrdresTravail,
		Reunions:          p.Reunions,
		Evenements:        p.Evenements,
		ProblemesSecurite: p.ProblemesSecurite,
		NotesGenerales:    p.NotesGenerales,
	}
}

func (p *photosPayload) toGroups() []photo.Group {
	return []photo.Group{
		{Category: photo.CategoryGenerales, Items: p.Generales},
		{Category: photo.CategoryAvant, Items: p.Avant},
		{Category: photo.CategoryApres, Items: p.Apres},
		{Category: photo.CategoryProblemes, Items: p.Problemes},
	}
}

// Submit creates a rapport and persists its photos in one call.
// POST /api/v1/rapports
func (h *Handler) Submit(c *gin.Context) {
	var payload rapportPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		common.RespondError(c, http.StatusBadRequest, "invalid rapport payload")
		return
	}
	if payload.Redacteur == "" {
		payload.Redacteur = middleware.DeviceName(c)
	}

	result, err := h.service.Submit(c.Request.Context(), payload.toModel(), payload.Photos.toGroups())
	if err != nil {
		if result != nil && result.Status == rapportSvc.StatusRolledBack {
			common.Respond(c, http.StatusUnprocessableEntity, "error", "photo persistence failed, rapport rolled back", result)
			return
		}
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if h.dashboard != nil {
		h.dashboard.Invalidate(c.Request.Context())
	}

	if result.Status == rapportSvc.StatusPartial {
		common.Respond(c, http.StatusOK, "partial", "rapport saved, some photos failed", result)
		return
	}
	common.RespondSuccess(c, result)
}

// List returns the caller's recent rapport summaries.
// GET /api/v1/rapports?redacteur=...&limit=...
func (h *Handler) List(c *gin.Context) {
	redacteur := c.Query("redacteur")
	if redacteur == "" {
		common.RespondError(c, http.StatusBadRequest, "redacteur is required")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	summaries, err := h.service.List(c.Request.Context(), redacteur, limit)
	if err != nil {
		common.RespondError(c, http.StatusInternalServerError, "failed to list rapports")
		return
	}

	common.RespondSuccess(c, summaries)
}

// Get loads one full rapport.
// GET /api/v1/rapports/:id
func (h *Handler) Get(c *gin.Context) {
	rapport, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.RespondError(c, http.StatusNotFound, "rapport not found")
		return
	}
	common.RespondSuccess(c, rapport)
}

// Update saves edits to an existing rapport.
// PUT /api/v1/rapports/:id
func (h *Handler) Update(c *gin.Context) {
	var payload rapportPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		common.RespondError(c, http.StatusBadRequest, "invalid rapport payload")
		return
	}
	payload.ID = c.Param("id")

	updated, err := h.service.Update(c.Request.Context(), payload.toModel())
	if err != nil {
		common.RespondError(c, http.StatusNotFound, err.Error())
		return
	}

	if h.dashboard != nil {
		h.dashboard.Invalidate(c.Request.Context())
	}
	common.RespondSuccess(c, updated)
}
