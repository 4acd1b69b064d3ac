package entities

import "time"

// Setting is one category-scoped configuration value. Value holds the JSON
// encoding of the typed value; for encrypted rows it holds a JSON string with
// the sealed payload instead.
type Setting struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Category    string    `gorm:"size:64;not null;uniqueIndex:idx_settings_category_key,priority:1" json:"category"`
	Key         string    `gorm:"size:128;not null;uniqueIndex:idx_settings_category_key,priority:2" json:"key"`
	Value       JSONText  `gorm:"not null" json:"value"`
	Encrypted   bool      `gorm:"not null;default:false" json:"encrypted"`
	Description string    `gorm:"size:500;default:''" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Setting) TableName() string {
	return "settings"
}
