package entities

import "time"

// AlertRule fires when a named operational metric crosses Threshold.
type AlertRule struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"size:1000;default:''" json:"description"`
	Metric      string    `gorm:"size:100;not null;index" json:"metric"`
	Operator    string    `gorm:"size:10;not null" json:"operator"`
	Threshold   float64   `gorm:"not null" json:"threshold"`
	Enabled     bool      `gorm:"not null;index" json:"enabled"`
	BuiltIn     bool      `gorm:"not null;default:false" json:"built_in"`
	CooldownSec int       `gorm:"not null" json:"cooldown_sec"`
	Recipients  []string  `gorm:"serializer:json;type:text" json:"recipients"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (AlertRule) TableName() string {
	return "alert_rules"
}
