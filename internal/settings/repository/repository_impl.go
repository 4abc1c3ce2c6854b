package repository

import (
	"context"
	"errors"

	settingsdomain "github.com/smallbiznis/rfacto/internal/settings/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) settingsdomain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) settingsdomain.Repository {
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context) (*settingsdomain.Settings, error) {
	var item settingsdomain.Settings
	err := r.db.WithContext(ctx).Where("id = ?", settingsdomain.SingletonID).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Create ignores a concurrent insert of the same row.
func (r *repository) Create(ctx context.Context, s *settingsdomain.Settings) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(s).Error
}

// Save writes every column, inserting the row when it does not exist.
func (r *repository) Save(ctx context.Context, s *settingsdomain.Settings) error {
	s.ID = settingsdomain.SingletonID
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *repository) Delete(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("id = ?", settingsdomain.SingletonID).Delete(&settingsdomain.Settings{}).Error
}
