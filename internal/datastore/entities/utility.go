package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// UtilityType is a classification bucket for utility expenses.
// Key is immutable after creation.
type UtilityType struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Key         string    `gorm:"size:64;not null;uniqueIndex" json:"key"`
	Label       string    `gorm:"size:100;not null" json:"label"`
	Icon        string    `gorm:"size:50;not null" json:"icon"`
	ColorScheme string    `gorm:"size:50;not null" json:"color_scheme"`
	IsSystem    bool      `gorm:"not null;default:false;index" json:"is_system"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (UtilityType) TableName() string {
	return "utility_types"
}

// UtilityAccount maps a GL account number to a utility type.
// Inactive mappings are kept for history but ignored by classification.
type UtilityAccount struct {
	ID              uint         `gorm:"primaryKey" json:"id"`
	GLAccountNumber string       `gorm:"column:gl_account_number;size:50;not null;uniqueIndex" json:"gl_account_number"`
	GLAccountName   string       `gorm:"column:gl_account_name;size:255;default:''" json:"gl_account_name"`
	UtilityTypeID   uint         `gorm:"not null;index" json:"utility_type_id"`
	IsActive        bool         `gorm:"not null;index" json:"is_active"`
	CreatedAt       time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
	UtilityType     *UtilityType `gorm:"foreignKey:UtilityTypeID;constraint:OnDelete:RESTRICT" json:"utility_type,omitempty"`
}

// TableName returns the table name for GORM.
func (UtilityAccount) TableName() string {
	return "utility_accounts"
}

// Formatting rule operators.
const (
	OperatorIncreaseOverAverage  = "increase_percent_over_average"
	OperatorDecreaseUnderAverage = "decrease_percent_under_average"
)

// FormattingRule colors a utility cost cell when the current value deviates
// from its trailing average by at least Threshold percent.
type FormattingRule struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UtilityTypeID   uint            `gorm:"not null;index:idx_formatting_rules_type_priority,priority:1" json:"utility_type_id"`
	Name            string          `gorm:"size:255;not null" json:"name"`
	Operator        string          `gorm:"size:40;not null" json:"operator"`
	Threshold       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"threshold"`
	Color           string          `gorm:"size:20;default:''" json:"color"`
	BackgroundColor string          `gorm:"size:20;default:''" json:"background_color"`
	Priority        int             `gorm:"not null;default:0;index:idx_formatting_rules_type_priority,priority:2" json:"priority"`
	Enabled         bool            `gorm:"not null" json:"enabled"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	UtilityType     *UtilityType    `gorm:"foreignKey:UtilityTypeID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for GORM.
func (FormattingRule) TableName() string {
	return "utility_formatting_rules"
}
