package photos

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dr-electrique/rapport-server/database/models"
	"github.com/dr-electrique/rapport-server/internal/photo"
)

// Repository 照片元数据仓库
// Implements photo.MetadataStore: the batch insert and the compensating
// rapport delete are both part of the photo transaction contract.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates the photo metadata repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// InsertPhotoBatch inserts one transaction's metadata rows in a single
// batch call. ON CONFLICT (batch_id, storage_path) DO NOTHING keeps a
// retry after a partially committed attempt from duplicating rows.
func (r *Repository) InsertPhotoBatch(ctx context.Context, records []photo.Record) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]models.Photo, 0, len(records))
	for _, rec := range records {
		rows = append(rows, models.Photo{
			RapportID:   rec.RapportID,
			Category:    rec.Category,
			URL:         rec.URL,
			StoragePath: rec.StoragePath,
			Latitude:    rec.Latitude,
			Longitude:   rec.Longitude,
			GPSAccuracy: rec.GPSAccuracy,
			BatchID:     rec.BatchID,
		})
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "batch_id"}, {Name: "storage_path"}},
			DoNothing: true,
		}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to insert photo batch: %w", err)
	}
	return nil
}

// DeleteRapport removes the parent rapport; the schema cascades the
// delete to its photo rows.
func (r *Repository) DeleteRapport(ctx context.Context, rapportID string) error {
	result := r.db.WithContext(ctx).Delete(&models.Rapport{}, "id = ?", rapportID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete rapport %s: %w", rapportID, result.Error)
	}
	return nil
}

// ListByRapport returns a rapport's photos grouped-ready, ordered by
// category then insertion.
func (r *Repository) ListByRapport(ctx context.Context, rapportID string) ([]models.Photo, error) {
	var rows []models.Photo
	err := r.db.WithContext(ctx).
		Where("rapport_id = ?", rapportID).
		Order("category, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list photos for rapport %s: %w", rapportID, err)
	}
	return rows, nil
}

// CountByRapport counts a rapport's persisted photos.
func (r *Repository) CountByRapport(ctx context.Context, rapportID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Photo{}).
		Where("rapport_id = ?", rapportID).
		Count(&count).Error
	return count, err
}

// AllStoragePaths returns every referenced object key, for the storage
// cleanup command.
func (r *Repository) AllStoragePaths(ctx context.Context) ([]string, error) {
	var paths []string
	err := r.db.WithContext(ctx).
		Model(&models.Photo{}).
		Where("storage_path <> ''").
		Pluck("storage_path", &paths).Error
	if err != nil {
		return nil, fmt.Errorf("failed to collect storage paths: %w", err)
	}
	return paths, nil
}

// PendingThumbnails returns rows without a generated dashboard thumbnail.
func (r *Repository) PendingThumbnails(ctx context.Context, limit int) ([]models.Photo, error) {
	var rows []models.Photo
	err := r.db.WithContext(ctx).
		Where("thumb_path = ''").
		Order("id").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// SetThumbPath records a generated thumbnail's object key.
func (r *Repository) SetThumbPath(ctx context.Context, photoID uint, thumbPath string) error {
	return r.db.WithContext(ctx).
		Model(&models.Photo{}).
		Where("id = ?", photoID).
		Update("thumb_path", thumbPath).Error
}

// TotalCount counts all persisted photos.
func (r *Repository) TotalCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Photo{}).Count(&count).Error
	return count, err
}
