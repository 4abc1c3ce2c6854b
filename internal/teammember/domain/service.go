package domain

import (
	"context"

	"github.com/smallbiznis/rfacto/internal/authorization"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	List(ctx context.Context) ([]TeamMember, error)
	FindByID(ctx context.Context, id int64) (*TeamMember, error)
	FindByEmail(ctx context.Context, email string) (*TeamMember, error)
	Create(ctx context.Context, m *TeamMember) error
	Update(ctx context.Context, m *TeamMember) error
	Delete(ctx context.Context, id int64) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type Service interface {
	List(ctx context.Context) ([]TeamMember, error)
	Create(ctx context.Context, req CreateRequest) (*TeamMember, error)
	Update(ctx context.Context, req UpdateRequest) (*TeamMember, error)
	Delete(ctx context.Context, id string) error
	// RoleFor returns the role of an active member, or lecture.
	RoleFor(ctx context.Context, email string) (authorization.Role, error)
}

type CreateRequest struct {
	Email  string  `json:"email"`
	Name   *string `json:"name"`
	Role   string  `json:"role"`
	Active *bool   `json:"active"`
}

// UpdateRequest replaces name, role and active like a form submit; email
// is only changed when present.
type UpdateRequest struct {
	ID     string  `json:"-"`
	Email  string  `json:"email"`
	Name   *string `json:"name"`
	Role   string  `json:"role"`
	Active *bool   `json:"active"`
}
