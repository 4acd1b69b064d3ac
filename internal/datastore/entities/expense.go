package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is a raw expense line synchronized from the property management
// system. UtilityTypeID is derived from the account mappings and is nil for
// expenses that are not utilities.
type Expense struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	SourceID        string          `gorm:"size:64;not null;uniqueIndex" json:"source_id"`
	PropertyID      string          `gorm:"size:64;not null;index" json:"property_id"`
	GLAccountNumber string          `gorm:"column:gl_account_number;size:50;not null;index" json:"gl_account_number"`
	GLAccountName   string          `gorm:"column:gl_account_name;size:255;default:''" json:"gl_account_name"`
	Amount          decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	PostedOn        time.Time       `gorm:"not null;index" json:"posted_on"`
	UtilityTypeID   *uint           `gorm:"index" json:"utility_type_id"`
	ClassifiedAt    *time.Time      `json:"classified_at"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	UtilityType     *UtilityType    `gorm:"foreignKey:UtilityTypeID;constraint:OnDelete:SET NULL" json:"-"`
}

// TableName returns the table name for GORM.
func (Expense) TableName() string {
	return "expenses"
}
