package rapports

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/dr-electrique/rapport-server/database/models"
)

// Summary 报告摘要 the list view's projection of a rapport.
type Summary struct {
	ID             string  `json:"id"`
	Projet         string  `json:"projet"`
	ProjetNom      string  `json:"projet_nom,omitempty"`
	Date           string  `json:"date"`
	Redacteur      string  `json:"redacteur"`
	Adresse        string  `json:"adresse"`
	TotalHeuresMO  float64 `json:"total_heures_mo"`
	TotalPhotos    int     `json:"total_photos"`
	HasExtras      bool    `json:"has_extras"`
	NbExtras       int     `json:"nb_extras"`
	TotalExtras    float64 `json:"total_extras"`
	CurrentVersion int     `json:"current_version"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// Stats 聚合统计 aggregates over a date range, straight off the
// denormalized rapport columns.
type Stats struct {
	Count       int64   `json:"count"`
	TotalHours  float64 `json:"total_hours"`
	TotalPhotos int64   `json:"total_photos"`
	NbExtras    int64   `json:"nb_extras"`
	TotalExtras float64 `json:"total_extras"`
}

// ProjectRollup per-project aggregate line.
type ProjectRollup struct {
	Projet      string  `json:"projet"`
	ProjetNom   string  `json:"projet_nom"`
	Count       int64   `json:"count"`
	TotalHours  float64 `json:"total_hours"`
	TotalPhotos int64   `json:"total_photos"`
	LastDate    string  `json:"last_date"`
}

// Repository 日报仓库
type Repository struct {
	db *gorm.DB
}

// NewRepository creates the rapport repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new rapport row.
func (r *Repository) Create(ctx context.Context, rapport *models.Rapport) error {
	if err := r.db.WithContext(ctx).Create(rapport).Error; err != nil {
		return fmt.Errorf("failed to create rapport: %w", err)
	}
	return nil
}

// GetByID loads one rapport.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Rapport, error) {
	var rapport models.Rapport
	if err := r.db.WithContext(ctx).First(&rapport, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rapport, nil
}

// ListByRedacteur returns summaries for one redacteur, most recent first.
func (r *Repository) ListByRedacteur(ctx context.Context, redacteur string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	var rapports []models.Rapport
	err := r.db.WithContext(ctx).
		Where("redacteur = ?", redacteur).
		Order("date DESC").
		Limit(limit).
		Find(&rapports).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list rapports for %s: %w", redacteur, err)
	}

	summaries := make([]Summary, 0, len(rapports))
	for _, rap := range rapports {
		summaries = append(summaries, toSummary(&rap))
	}
	return summaries, nil
}

func toSummary(rap *models.Rapport) Summary {
	return Summary{
		ID:             rap.ID,
		Projet:         rap.Projet,
		ProjetNom:      rap.ProjetNom,
		Date:           rap.Date,
		Redacteur:      rap.Redacteur,
		Adresse:        rap.Adresse,
		TotalHeuresMO:  rap.TotalHeuresMO,
		TotalPhotos:    rap.TotalPhotos,
		HasExtras:      rap.HasExtras,
		NbExtras:       rap.NbExtras,
		TotalExtras:    rap.TotalExtras,
		CurrentVersion: rap.CurrentVersion,
		CreatedAt:      rap.CreatedAt.Format("2006-01-02 15:04:05"),
		UpdatedAt:      rap.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}

// Update saves the full rapport and bumps its version.
func (r *Repository) Update(ctx context.Context, rapport *models.Rapport) error {
	rapport.CurrentVersion++
	if err := r.db.WithContext(ctx).Save(rapport).Error; err != nil {
		return fmt.Errorf("failed to update rapport %s: %w", rapport.ID, err)
	}
	return nil
}

// SetTotals updates the denormalized aggregate columns after photo
// persistence settles.
func (r *Repository) SetTotals(ctx context.Context, id string, totalPhotos int) error {
	return r.db.WithContext(ctx).
		Model(&models.Rapport{}).
		Where("id = ?", id).
		Update("total_photos", totalPhotos).Error
}

// Delete removes one rapport (photos cascade).
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&models.Rapport{}, "id = ?", id).Error
}

// StatsSince aggregates rapports with date >= since (YYYY-MM-DD).
func (r *Repository) StatsSince(ctx context.Context, since string) (*Stats, error) {
	var stats Stats
	err := r.db.WithContext(ctx).
		Model(&models.Rapport{}).
		Select(`COUNT(*) AS count,
			COALESCE(SUM(total_heures_mo), 0) AS total_hours,
			COALESCE(SUM(total_photos), 0) AS total_photos,
			COALESCE(SUM(nb_extras), 0) AS nb_extras,
			COALESCE(SUM(total_extras), 0) AS total_extras`).
		Where("date >= ?", since).
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate rapports since %s: %w", since, err)
	}
	return &stats, nil
}

// ProjectRollups aggregates per project over all rapports.
func (r *Repository) ProjectRollups(ctx context.Context) ([]ProjectRollup, error) {
	var rollups []ProjectRollup
	err := r.db.WithContext(ctx).
		Model(&models.Rapport{}).
		Select(`projet,
			MAX(projet_nom) AS projet_nom,
			COUNT(*) AS count,
			COALESCE(SUM(total_heures_mo), 0) AS total_hours,
			COALESCE(SUM(total_photos), 0) AS total_photos,
			MAX(date) AS last_date`).
		Group("projet").
		Order("last_date DESC").
		Scan(&rollups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate projects: %w", err)
	}
	return rollups, nil
}
