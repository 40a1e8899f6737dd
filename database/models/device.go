package models

import (
	"time"

	"gorm.io/gorm"
)

// Device is one chantier tablet/phone allowed to talk to the API. The
// access key is stored argon2id-hashed.
type Device struct {
	gorm.Model
	Name       string `gorm:"uniqueIndex;not null"`
	KeyHash    string `gorm:"not null"`
	Active     bool   `gorm:"default:true;not null"`
	LastSeenAt *time.Time
}
