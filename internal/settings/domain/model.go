package domain

import (
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// SingletonID is the primary key of the only settings row.
const SingletonID int64 = 1

const (
	DelayUnitDays   = "days"
	DelayUnitWeeks  = "weeks"
	DelayUnitMonths = "months"

	DefaultDelay     = 1
	DefaultDelayUnit = DelayUnitMonths
)

var (
	ErrInvalidDelay     = errors.New("invalid_delay")
	ErrInvalidDelayUnit = errors.New("invalid_delay_unit")
	ErrInvalidRows      = errors.New("invalid_payment_claim_rows")
)

// Settings holds contract-wide values shared by every claim.
type Settings struct {
	ID                  int64             `gorm:"primaryKey" json:"id"`
	ContractHT          float64           `gorm:"column:contract_ht;not null;default:0" json:"contractHT"`
	ContractTTC         float64           `gorm:"column:contract_ttc;not null;default:0" json:"contractTTC"`
	ContractNumber      *string           `gorm:"type:text" json:"contractNumber"`
	DefaultProvMs       *string           `gorm:"column:default_prov_ms;type:text" json:"defaultProvMs"`
	DefaultProvDcr      *string           `gorm:"column:default_prov_dcr;type:text" json:"defaultProvDcr"`
	DefaultProvReserve  *string           `gorm:"column:default_prov_reserve;type:text" json:"defaultProvReserve"`
	ProcessingTaxProv1  *string           `gorm:"column:processing_tax_prov1;type:text" json:"processingTaxProv1"`
	ProcessingTaxProv2  *string           `gorm:"column:processing_tax_prov2;type:text" json:"processingTaxProv2"`
	ProcessingTaxProv3  *string           `gorm:"column:processing_tax_prov3;type:text" json:"processingTaxProv3"`
	PaymentClaimRowsRaw *string           `gorm:"column:payment_claim_rows_json;type:text" json:"paymentClaimRowsJson"`
	DelayAFacturer      int               `gorm:"column:delay_a_facturer;not null;default:1" json:"delayAFacturer"`
	DelayAFacturerUnit  string            `gorm:"column:delay_a_facturer_unit;type:text;not null;default:months" json:"delayAFacturerUnit"`
	DelayFacture        int               `gorm:"column:delay_facture;not null;default:1" json:"delayFacture"`
	DelayFactureUnit    string            `gorm:"column:delay_facture_unit;type:text;not null;default:months" json:"delayFactureUnit"`
	DelayPaye           int               `gorm:"column:delay_paye;not null;default:1" json:"delayPaye"`
	DelayPayeUnit       string            `gorm:"column:delay_paye_unit;type:text;not null;default:months" json:"delayPayeUnit"`
	ColumnNames         datatypes.JSONMap `gorm:"column:column_names" json:"columnNames"`

	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Settings) TableName() string { return "settings" }

// NewSettings returns the row created on first access.
func NewSettings(defaultProvince *string, now time.Time) *Settings {
	return &Settings{
		ID:                 SingletonID,
		DefaultProvMs:      defaultProvince,
		DefaultProvDcr:     defaultProvince,
		DefaultProvReserve: defaultProvince,
		DelayAFacturer:     DefaultDelay,
		DelayAFacturerUnit: DefaultDelayUnit,
		DelayFacture:       DefaultDelay,
		DelayFactureUnit:   DefaultDelayUnit,
		DelayPaye:          DefaultDelay,
		DelayPayeUnit:      DefaultDelayUnit,
		ColumnNames:        datatypes.JSONMap{},
		UpdatedAt:          now,
	}
}

// NormalizeDelayUnit accepts singular and plural forms in any case.
func NormalizeDelayUnit(unit string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "day", "days":
		return DelayUnitDays, nil
	case "week", "weeks":
		return DelayUnitWeeks, nil
	case "month", "months":
		return DelayUnitMonths, nil
	}
	return "", ErrInvalidDelayUnit
}
