package repository

import (
	"context"
	"errors"

	filedomain "github.com/smallbiznis/rfacto/internal/claimfile/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) filedomain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) filedomain.Repository {
	return &repository{db: tx}
}

func (r *repository) ListByClaim(ctx context.Context, claimID int64) ([]filedomain.ClaimFile, error) {
	var items []filedomain.ClaimFile
	err := r.db.WithContext(ctx).
		Where("claim_id = ?", claimID).
		Order("uploaded_at DESC").
		Order("id DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListAll(ctx context.Context) ([]filedomain.ClaimFile, error) {
	var items []filedomain.ClaimFile
	if err := r.db.WithContext(ctx).Order("claim_id ASC").Order("uploaded_at ASC").Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FindByID(ctx context.Context, id int64) (*filedomain.ClaimFile, error) {
	var item filedomain.ClaimFile
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) Create(ctx context.Context, f *filedomain.ClaimFile) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&filedomain.ClaimFile{}).Error
}

func (r *repository) DeleteByClaim(ctx context.Context, claimID int64) ([]filedomain.ClaimFile, error) {
	items, err := r.ListByClaim(ctx, claimID)
	if err != nil || len(items) == 0 {
		return items, err
	}
	if err := r.db.WithContext(ctx).Where("claim_id = ?", claimID).Delete(&filedomain.ClaimFile{}).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) DeleteAll(ctx context.Context) ([]filedomain.ClaimFile, error) {
	items, err := r.ListAll(ctx)
	if err != nil || len(items) == 0 {
		return items, err
	}
	if err := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&filedomain.ClaimFile{}).Error; err != nil {
		return nil, err
	}
	return items, nil
}
