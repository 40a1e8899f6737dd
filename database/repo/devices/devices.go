package devices

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dr-electrique/rapport-server/database/models"
)

// Repository 设备仓库
type Repository struct {
	db *gorm.DB
}

// NewRepository creates the device repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetActiveByName loads one active device.
func (r *Repository) GetActiveByName(ctx context.Context, name string) (*models.Device, error) {
	var device models.Device
	err := r.db.WithContext(ctx).
		Where("name = ? AND active = ?", name, true).
		First(&device).Error
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// Create registers a new device.
func (r *Repository) Create(ctx context.Context, device *models.Device) error {
	if err := r.db.WithContext(ctx).Create(device).Error; err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

// Touch records a successful authentication.
func (r *Repository) Touch(ctx context.Context, deviceID uint) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.Device{}).
		Where("id = ?", deviceID).
		Update("last_seen_at", &now).Error
}
