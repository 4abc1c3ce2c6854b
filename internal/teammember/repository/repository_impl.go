package repository

import (
	"context"
	"errors"

	memberdomain "github.com/smallbiznis/rfacto/internal/teammember/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) memberdomain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) memberdomain.Repository {
	return &repository{db: tx}
}

func (r *repository) List(ctx context.Context) ([]memberdomain.TeamMember, error) {
	var items []memberdomain.TeamMember
	if err := r.db.WithContext(ctx).Order("email ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FindByID(ctx context.Context, id int64) (*memberdomain.TeamMember, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*memberdomain.TeamMember, error) {
	return r.first(r.db.WithContext(ctx).Where("email = ?", email))
}

func (r *repository) first(stmt *gorm.DB) (*memberdomain.TeamMember, error) {
	var item memberdomain.TeamMember
	err := stmt.Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Create writes Active explicitly so false is not replaced by the column default.
func (r *repository) Create(ctx context.Context, m *memberdomain.TeamMember) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	if !m.Active {
		return r.db.WithContext(ctx).Model(m).Update("active", false).Error
	}
	return nil
}

func (r *repository) Update(ctx context.Context, m *memberdomain.TeamMember) error {
	return r.db.WithContext(ctx).
		Model(&memberdomain.TeamMember{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{
			"email":      m.Email,
			"name":       m.Name,
			"role":       m.Role,
			"active":     m.Active,
			"updated_at": m.UpdatedAt,
		}).Error
}

func (r *repository) Delete(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&memberdomain.TeamMember{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&memberdomain.TeamMember{})
	return res.RowsAffected, res.Error
}
