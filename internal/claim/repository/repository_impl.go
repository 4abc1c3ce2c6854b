package repository

import (
	"context"
	"errors"

	claimdomain "github.com/smallbiznis/rfacto/internal/claim/domain"
	projectdomain "github.com/smallbiznis/rfacto/internal/project/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) claimdomain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) claimdomain.Repository {
	return &repository{db: tx}
}

func (r *repository) List(ctx context.Context) ([]claimdomain.Claim, error) {
	var items []claimdomain.Claim
	err := r.db.WithContext(ctx).
		Preload("Project").
		Order("invoice_date ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListByType(ctx context.Context, claimType string) ([]claimdomain.Claim, error) {
	var items []claimdomain.Claim
	err := r.db.WithContext(ctx).
		Preload("Project").
		Where("type = ?", claimType).
		Order("project_id ASC").
		Order("step ASC").
		Order("invoice_date ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FindByID(ctx context.Context, id int64) (*claimdomain.Claim, error) {
	var item claimdomain.Claim
	err := r.db.WithContext(ctx).Preload("Project").Where("id = ?", id).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) MilestoneExists(ctx context.Context, step string, projectID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&claimdomain.Claim{}).
		Where("type = ? AND step = ? AND project_id = ?", claimdomain.TypeMilestone, step, projectID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) Create(ctx context.Context, c *claimdomain.Claim) error {
	return r.db.WithContext(ctx).Omit("Project").Create(c).Error
}

func (r *repository) UpdateColumns(ctx context.Context, id int64, cols map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&claimdomain.Claim{}).
		Where("id = ?", id).
		Updates(cols)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) Delete(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&claimdomain.Claim{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&claimdomain.Claim{})
	return res.RowsAffected, res.Error
}

type detacher struct{}

// NewDetacher clears claim references to a project being deleted.
func NewDetacher() projectdomain.ClaimDetacher {
	return detacher{}
}

func (detacher) DetachProject(ctx context.Context, tx *gorm.DB, projectID int64) (int64, error) {
	res := tx.WithContext(ctx).
		Model(&claimdomain.Claim{}).
		Where("project_id = ?", projectID).
		Update("project_id", nil)
	return res.RowsAffected, res.Error
}
