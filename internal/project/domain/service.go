package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/rfacto/pkg/optional"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	List(ctx context.Context) ([]Project, error)
	FindByID(ctx context.Context, id int64) (*Project, error)
	FindByCode(ctx context.Context, code string) (*Project, error)
	Create(ctx context.Context, p *Project) error
	Update(ctx context.Context, p *Project) error
	Delete(ctx context.Context, id int64) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// ClaimDetacher clears project references before a project is removed.
type ClaimDetacher interface {
	DetachProject(ctx context.Context, tx *gorm.DB, projectID int64) (int64, error)
}

type Service interface {
	List(ctx context.Context) ([]Response, error)
	FindByCode(ctx context.Context, code string) (*Project, error)
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	// Delete nulls the project on every referencing claim, then removes it.
	Delete(ctx context.Context, id string) (DeleteResult, error)
}

type CreateRequest struct {
	Code        string `json:"code"`
	Label       string `json:"label"`
	TaxProvince string `json:"taxProvince"`
}

type UpdateRequest struct {
	ID          string                 `json:"-"`
	Code        optional.Value[string] `json:"code,omitzero"`
	Label       optional.Value[string] `json:"label,omitzero"`
	TaxProvince optional.Value[string] `json:"taxProvince,omitzero"`
}

type DeleteResult struct {
	Success        bool  `json:"success"`
	DetachedClaims int64 `json:"detachedClaims"`
}

type Response struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Label       string    `json:"label"`
	TaxProvince *string   `json:"taxProvince"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func ToResponse(p *Project) Response {
	return Response{
		ID:          p.ID,
		Code:        p.Code,
		Label:       p.Label,
		TaxProvince: p.TaxProvince,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
