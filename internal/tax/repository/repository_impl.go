package repository

import (
	"context"
	"errors"

	taxdomain "github.com/smallbiznis/rfacto/internal/tax/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) taxdomain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) taxdomain.Repository {
	return &repository{db: tx}
}

func (r *repository) List(ctx context.Context) ([]taxdomain.TaxRate, error) {
	var items []taxdomain.TaxRate
	if err := r.db.WithContext(ctx).Order("province ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FindByID(ctx context.Context, id int64) (*taxdomain.TaxRate, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) FindByProvince(ctx context.Context, province string) (*taxdomain.TaxRate, error) {
	return r.first(r.db.WithContext(ctx).Where("province = ?", province))
}

func (r *repository) First(ctx context.Context) (*taxdomain.TaxRate, error) {
	return r.first(r.db.WithContext(ctx).Order("id ASC"))
}

func (r *repository) first(stmt *gorm.DB) (*taxdomain.TaxRate, error) {
	var item taxdomain.TaxRate
	err := stmt.Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) Create(ctx context.Context, rate *taxdomain.TaxRate) error {
	return r.db.WithContext(ctx).Create(rate).Error
}

func (r *repository) Update(ctx context.Context, rate *taxdomain.TaxRate) error {
	return r.db.WithContext(ctx).
		Model(&taxdomain.TaxRate{}).
		Where("id = ?", rate.ID).
		Updates(map[string]any{
			"province":   rate.Province,
			"rate":       rate.Rate,
			"updated_at": rate.UpdatedAt,
		}).Error
}

func (r *repository) Upsert(ctx context.Context, rate *taxdomain.TaxRate) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "province"}},
		DoUpdates: clause.AssignmentColumns([]string{"rate", "updated_at"}),
	}).Create(rate).Error
}

func (r *repository) Delete(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&taxdomain.TaxRate{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&taxdomain.TaxRate{})
	return res.RowsAffected, res.Error
}
