package entities

import "time"

// AlertHistory records each time an alert rule fires.
type AlertHistory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RuleID      uint      `gorm:"not null;index:idx_alert_history_rule_fired,priority:1" json:"rule_id"`
	FiredAt     time.Time `gorm:"not null;index:idx_alert_history_rule_fired,priority:2" json:"fired_at"`
	MetricValue float64   `gorm:"not null" json:"metric_value"`
	Recipients  []string  `gorm:"serializer:json;type:text" json:"recipients"`
	Delivered   int       `gorm:"not null;default:0" json:"delivered"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	Rule        AlertRule `gorm:"foreignKey:RuleID;constraint:OnDelete:CASCADE" json:"rule"`
}

// TableName returns the table name for GORM.
func (AlertHistory) TableName() string {
	return "alert_history"
}
