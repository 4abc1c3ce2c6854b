package repository

import (
	"context"
	"errors"

	projectdomain "github.com/smallbiznis/rfacto/internal/project/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) projectdomain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) projectdomain.Repository {
	return &repository{db: tx}
}

func (r *repository) List(ctx context.Context) ([]projectdomain.Project, error) {
	var items []projectdomain.Project
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FindByID(ctx context.Context, id int64) (*projectdomain.Project, error) {
	return r.take(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) FindByCode(ctx context.Context, code string) (*projectdomain.Project, error) {
	return r.take(r.db.WithContext(ctx).Where("code = ?", code))
}

func (r *repository) take(stmt *gorm.DB) (*projectdomain.Project, error) {
	var item projectdomain.Project
	err := stmt.Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) Create(ctx context.Context, p *projectdomain.Project) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *repository) Update(ctx context.Context, p *projectdomain.Project) error {
	return r.db.WithContext(ctx).
		Model(&projectdomain.Project{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"code":         p.Code,
			"label":        p.Label,
			"tax_province": p.TaxProvince,
			"updated_at":   p.UpdatedAt,
		}).Error
}

func (r *repository) Delete(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&projectdomain.Project{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&projectdomain.Project{})
	return res.RowsAffected, res.Error
}
