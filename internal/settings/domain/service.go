package domain

import (
	"context"

	"github.com/smallbiznis/rfacto/pkg/optional"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context) (*Settings, error)
	Create(ctx context.Context, s *Settings) error
	Save(ctx context.Context, s *Settings) error
	Delete(ctx context.Context) error
}

type Service interface {
	// Ensure returns the settings row, creating it on first access.
	Ensure(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, req UpdateRequest) (*Settings, error)
	PaymentClaimRows(ctx context.Context) ([]PaymentClaimRow, error)
	AppendPaymentClaimRows(ctx context.Context, rows []PaymentClaimRow) (int, error)
}

// UpdateRequest is a partial update: absent fields keep their value.
type UpdateRequest struct {
	ContractHT         optional.Value[optional.Number]   `json:"contractHT,omitzero"`
	ContractTTC        optional.Value[optional.Number]   `json:"contractTTC,omitzero"`
	ContractNumber     optional.Value[string]            `json:"contractNumber,omitzero"`
	DefaultProvMs      optional.Value[string]            `json:"defaultProvMs,omitzero"`
	DefaultProvDcr     optional.Value[string]            `json:"defaultProvDcr,omitzero"`
	DefaultProvReserve optional.Value[string]            `json:"defaultProvReserve,omitzero"`
	ProcessingTaxProv1 optional.Value[string]            `json:"processingTaxProv1,omitzero"`
	ProcessingTaxProv2 optional.Value[string]            `json:"processingTaxProv2,omitzero"`
	ProcessingTaxProv3 optional.Value[string]            `json:"processingTaxProv3,omitzero"`
	PaymentClaimRows   optional.Value[[]PaymentClaimRow] `json:"paymentClaimRows,omitzero"`
	DelayAFacturer     optional.Value[int]               `json:"delayAFacturer,omitzero"`
	DelayAFacturerUnit optional.Value[string]            `json:"delayAFacturerUnit,omitzero"`
	DelayFacture       optional.Value[int]               `json:"delayFacture,omitzero"`
	DelayFactureUnit   optional.Value[string]            `json:"delayFactureUnit,omitzero"`
	DelayPaye          optional.Value[int]               `json:"delayPaye,omitzero"`
	DelayPayeUnit      optional.Value[string]            `json:"delayPayeUnit,omitzero"`
	ColumnNames        optional.Value[map[string]any]    `json:"columnNames,omitzero"`
}
