package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/mitchellh/mapstructure"
	"gorm.io/gorm"

	"github.com/dr-electrique/rapport-server/config"
	"github.com/dr-electrique/rapport-server/database/models"
	"github.com/dr-electrique/rapport-server/internal/photo"
)

// PhotoSettings 照片处理运行时配置
// Runtime-tunable subset of the photo pipeline configuration. Values come
// from the environment config, optionally overridden by the enabled
// "photo" settings row.
type PhotoSettings struct {
	MaxWidth           int      `mapstructure:"max_width" json:"max_width"`
	MaxHeight          int      `mapstructure:"max_height" json:"max_height"`
	Quality            int      `mapstructure:"quality" json:"quality"`
	QualityFloor       int      `mapstructure:"quality_floor" json:"quality_floor"`
	QualityStep        int      `mapstructure:"quality_step" json:"quality_step"`
	MaxFileSize        int      `mapstructure:"max_file_size" json:"max_file_size"`
	Watermark          bool     `mapstructure:"watermark" json:"watermark"`
	RollbackOnFailure  bool     `mapstructure:"rollback_on_failure" json:"rollback_on_failure"`
	CriticalCategories []string `mapstructure:"critical_categories" json:"critical_categories"`
}

// Manager loads and caches the runtime settings.
type Manager struct {
	db   *gorm.DB
	base PhotoSettings

	mu      sync.RWMutex
	current PhotoSettings
}

// NewManager seeds the manager from the environment config and applies
// any persisted override.
func NewManager(db *gorm.DB, cfg *config.Config) *Manager {
	base := PhotoSettings{
		MaxWidth:           cfg.PhotoMaxWidth,
		MaxHeight:          cfg.PhotoMaxHeight,
		Quality:            cfg.PhotoQuality,
		QualityFloor:       cfg.PhotoQualityFloor,
		QualityStep:        cfg.PhotoQualityStep,
		MaxFileSize:        cfg.PhotoMaxFileSize,
		Watermark:          cfg.PhotoWatermark,
		RollbackOnFailure:  cfg.PhotoRollbackOnFailure,
		CriticalCategories: cfg.CriticalCategories(),
	}

	m := &Manager{
		db:      db,
		base:    base,
		current: base,
	}

	if db != nil {
		if err := m.Reload(context.Background()); err != nil {
			log.Printf("[Settings] Failed to load photo settings override: %v", err)
		}
	}

	return m
}

// Reload re-reads the enabled override row and merges it over the base
// configuration.
func (m *Manager) Reload(ctx context.Context) error {
	var row models.Setting
	err := m.db.WithContext(ctx).
		Where("key = ? AND is_enabled = ?", models.SettingKeyPhoto, true).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			m.mu.Lock()
			m.current = m.base
			m.mu.Unlock()
			return nil
		}
		return fmt.Errorf("failed to query photo settings: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(row.ConfigJSON), &raw); err != nil {
		return fmt.Errorf("failed to unmarshal photo settings: %w", err)
	}

	merged := m.base
	if err := mapstructure.Decode(raw, &merged); err != nil {
		return fmt.Errorf("failed to decode photo settings: %w", err)
	}

	m.mu.Lock()
	m.current = merged
	m.mu.Unlock()

	log.Println("[Settings] Photo settings override applied")
	return nil
}

// Save persists the given settings as the override row and makes them
// current.
func (m *Manager) Save(ctx context.Context, s PhotoSettings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal photo settings: %w", err)
	}

	var row models.Setting
	err = m.db.WithContext(ctx).Where("key = ?", models.SettingKeyPhoto).First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = models.Setting{Key: models.SettingKeyPhoto, ConfigJSON: string(data), IsEnabled: true}
		if err := m.db.WithContext(ctx).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create photo settings: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to query photo settings: %w", err)
	default:
		row.ConfigJSON = string(data)
		row.IsEnabled = true
		if err := m.db.WithContext(ctx).Save(&row).Error; err != nil {
			return fmt.Errorf("failed to update photo settings: %w", err)
		}
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	return nil
}

// Photo returns the effective photo settings.
func (m *Manager) Photo() PhotoSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.current
	s.CriticalCategories = append([]string(nil), m.current.CriticalCategories...)
	return s
}

// ProcessorConfig builds the image pipeline configuration.
func (m *Manager) ProcessorConfig() photo.ProcessorConfig {
	s := m.Photo()
	cfg := photo.DefaultProcessorConfig()
	cfg.MaxWidth = s.MaxWidth
	cfg.MaxHeight = s.MaxHeight
	cfg.Quality = s.Quality
	cfg.QualityFloor = s.QualityFloor
	cfg.QualityStep = s.QualityStep
	cfg.MaxFileSize = s.MaxFileSize
	cfg.Watermark = s.Watermark
	return cfg
}

// TxOptions builds the photo transaction options.
func (m *Manager) TxOptions() photo.TxOptions {
	s := m.Photo()
	return photo.TxOptions{
		RollbackOnFailure:  s.RollbackOnFailure,
		CriticalCategories: s.CriticalCategories,
	}
}
