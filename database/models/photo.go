package models

import "time"

// Photo is one persisted photo metadata row. Deleting the parent rapport
// cascades here, which is what the transaction manager's rollback relies
// on. The (batch_id, storage_path) unique pair makes a retried batch
// insert idempotent.
type Photo struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time

	RapportID string  `gorm:"size:36;index;not null"`
	Rapport   Rapport `gorm:"foreignKey:RapportID;constraint:OnDelete:CASCADE"`

	Category    string `gorm:"index;not null"`
	URL         string `gorm:"not null"`
	StoragePath string `gorm:"uniqueIndex:idx_photo_batch_object,priority:2;not null"`
	ThumbPath   string

	Latitude    *float64
	Longitude   *float64
	GPSAccuracy *float64 `gorm:"column:gps_accuracy"`

	BatchID string `gorm:"size:36;uniqueIndex:idx_photo_batch_object,priority:1;not null"`
}
