package domain

import (
	"strings"
	"time"
)

// TaxRate is the sales tax applicable in one jurisdiction.
type TaxRate struct {
	ID       int64   `gorm:"primaryKey;autoIncrement"`
	Province string  `gorm:"type:text;not null;uniqueIndex"`
	Rate     float64 `gorm:"not null;default:0"` // fraction, 0.14975 for 14.975%

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (TaxRate) TableName() string { return "taxes" }

func (t *TaxRate) Validate() error {
	if t.Province == "" {
		return ErrInvalidProvince
	}
	if t.Rate < 0 {
		return ErrInvalidTaxRate
	}
	return nil
}

// NormalizeProvince trims and upper-cases a jurisdiction code.
func NormalizeProvince(province string) string {
	return strings.ToUpper(strings.TrimSpace(province))
}

// DefaultRates are the Canadian jurisdictions loaded by Seed.
// NS1/NS2 are the two Nova Scotia HST rates in effect across the contract.
var DefaultRates = []TaxRate{
	{Province: "AB", Rate: 0.05},
	{Province: "BC", Rate: 0.12},
	{Province: "MB", Rate: 0.12},
	{Province: "NB", Rate: 0.15},
	{Province: "NL", Rate: 0.15},
	{Province: "NT", Rate: 0.05},
	{Province: "NS1", Rate: 0.15},
	{Province: "NS2", Rate: 0.14},
	{Province: "NU", Rate: 0.05},
	{Province: "ON", Rate: 0.13},
	{Province: "PE", Rate: 0.15},
	{Province: "QC", Rate: 0.14975},
	{Province: "SK", Rate: 0.11},
	{Province: "YT", Rate: 0.05},
}
