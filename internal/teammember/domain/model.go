package domain

import (
	"errors"
	"time"
)

var (
	ErrInvalidID      = errors.New("invalid_id")
	ErrInvalidEmail   = errors.New("invalid_email")
	ErrInvalidRole    = errors.New("invalid_role")
	ErrDuplicateEmail = errors.New("duplicate_email")
	ErrNotFound       = errors.New("not_found")
)

// TeamMember grants a role to the holder of an email address. Callers
// with no active member row are read-only.
type TeamMember struct {
	ID     int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	Email  string  `gorm:"type:text;not null;uniqueIndex" json:"email"`
	Name   *string `gorm:"type:text" json:"name"`
	Role   string  `gorm:"type:text;not null;default:user" json:"role"`
	Active bool    `gorm:"not null;default:true" json:"active"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (TeamMember) TableName() string { return "team_members" }
