package models

import "gorm.io/gorm"

// Setting keys
const (
	SettingKeyPhoto = "photo"
)

// Setting holds one runtime-tunable configuration blob as JSON, decoded
// by internal/settings.
type Setting struct {
	gorm.Model
	Key        string `gorm:"uniqueIndex;not null"`
	ConfigJSON string `gorm:"type:text;not null"`
	IsEnabled  bool   `gorm:"default:true;not null"`
}
