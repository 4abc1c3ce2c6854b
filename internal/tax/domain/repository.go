package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	List(ctx context.Context) ([]TaxRate, error)
	FindByID(ctx context.Context, id int64) (*TaxRate, error)
	FindByProvince(ctx context.Context, province string) (*TaxRate, error)
	First(ctx context.Context) (*TaxRate, error)
	Create(ctx context.Context, rate *TaxRate) error
	Update(ctx context.Context, rate *TaxRate) error
	Upsert(ctx context.Context, rate *TaxRate) error
	Delete(ctx context.Context, id int64) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
}
