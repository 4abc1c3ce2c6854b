package domain

import (
	"errors"
	"time"
)

// Project groups claims under a contract hull or work package.
type Project struct {
	ID          int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	Code        string  `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Label       string  `gorm:"type:text;not null" json:"label"`
	TaxProvince *string `gorm:"column:tax_province;type:text" json:"taxProvince"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Project) TableName() string { return "projects" }

var (
	ErrInvalidID     = errors.New("invalid_id")
	ErrInvalidCode   = errors.New("invalid_code")
	ErrInvalidLabel  = errors.New("invalid_label")
	ErrDuplicateCode = errors.New("duplicate_code")
	ErrNotFound      = errors.New("not_found")
)
