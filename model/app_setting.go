package model

import (
	"time"

	"gorm.io/gorm"
)

// AppSetting stores key/value application settings, including aggregated
// automation statistics written by the maintenance jobs.
type AppSetting struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Key         string         `gorm:"type:varchar(100);uniqueIndex;not null" json:"key"`
	Value       string         `gorm:"type:text" json:"value"`
	Type        string         `gorm:"type:varchar(20);default:'string'" json:"type"` // string, json, int, bool
	Description string         `gorm:"type:text" json:"description"`
	Category    string         `gorm:"type:varchar(50);index" json:"category"`
	IsPublic    bool           `gorm:"default:false" json:"is_public"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for AppSetting
func (AppSetting) TableName() string {
	return "app_settings"
}
