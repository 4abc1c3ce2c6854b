package domain

import (
	"errors"
	"strings"
	"time"

	projectdomain "github.com/smallbiznis/rfacto/internal/project/domain"
)

const (
	TypeMilestone = "milestone"
	TypeDCR       = "dcr"
)

const (
	StatusToInvoice = "À facturer"
	StatusInvoiced  = "Facturé"
	StatusApproved  = "Approuvé"
	StatusPaid      = "Payé"
	StatusCancelled = "Annulé"
)

// Statuses lists the invoicing stages in workflow order.
var Statuses = []string{StatusToInvoice, StatusInvoiced, StatusApproved, StatusPaid, StatusCancelled}

// HullCodes are the ships that carry a per-ship amount on each claim.
var HullCodes = []string{"C228", "C229", "C230", "C231", "NLT5", "NLT6"}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidType        = errors.New("invalid_type")
	ErrDuplicateMilestone = errors.New("duplicate_milestone")
	ErrNotFound           = errors.New("not_found")
)

// Claim is a billable milestone or DCR line.
type Claim struct {
	ID            int64                  `gorm:"primaryKey;autoIncrement" json:"id"`
	Type          string                 `gorm:"type:text;not null;default:milestone;index:idx_claims_type_project_step" json:"type"`
	Step          *string                `gorm:"type:text;index:idx_claims_type_project_step" json:"step"`
	ProjectID     *int64                 `gorm:"column:project_id;index:idx_claims_type_project_step" json:"projectId"`
	Project       *projectdomain.Project `gorm:"foreignKey:ProjectID;constraint:OnDelete:SET NULL" json:"project,omitempty"`
	Description   *string                `gorm:"type:text" json:"description"`
	Province      *string                `gorm:"type:text" json:"province"`
	TaxRate       float64                `gorm:"column:tax_rate;not null;default:0" json:"taxRate"`
	AmountHT      float64                `gorm:"column:amount_ht;not null;default:0" json:"amountHT"`
	AmountTTC     float64                `gorm:"column:amount_ttc;not null;default:0" json:"amountTTC"`
	InvoiceDate   *time.Time             `gorm:"column:invoice_date;index" json:"invoiceDate"`
	InvoiceNumber *string                `gorm:"column:invoice_number;type:text" json:"invoiceNumber"`
	Status        *string                `gorm:"type:text" json:"status"`
	InternalName  *string                `gorm:"column:internal_name;type:text" json:"internalName"`
	ClientName    *string                `gorm:"column:client_name;type:text" json:"clientName"`
	ReferenceCode *string                `gorm:"column:reference_code;type:text" json:"referenceCode"`
	ShipAmounts   ShipAmounts            `gorm:"embedded;embeddedPrefix:ship_" json:"shipAmounts"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Claim) TableName() string { return "claims" }

// ProjectCode returns the code of the embedded project, if loaded.
func (c *Claim) ProjectCode() string {
	if c.Project == nil {
		return ""
	}
	return c.Project.Code
}

// ShipAmounts holds the optional amount allotted to each hull.
type ShipAmounts struct {
	C228 *float64 `gorm:"column:c228" json:"C228"`
	C229 *float64 `gorm:"column:c229" json:"C229"`
	C230 *float64 `gorm:"column:c230" json:"C230"`
	C231 *float64 `gorm:"column:c231" json:"C231"`
	NLT5 *float64 `gorm:"column:nlt5" json:"NLT5"`
	NLT6 *float64 `gorm:"column:nlt6" json:"NLT6"`
}

func (s *ShipAmounts) slot(code string) **float64 {
	switch code {
	case "C228":
		return &s.C228
	case "C229":
		return &s.C229
	case "C230":
		return &s.C230
	case "C231":
		return &s.C231
	case "NLT5":
		return &s.NLT5
	case "NLT6":
		return &s.NLT6
	}
	return nil
}

// Get returns the amount for a hull code; unknown codes read as nil.
func (s ShipAmounts) Get(code string) *float64 {
	if p := s.slot(code); p != nil {
		return *p
	}
	return nil
}

// Set stores value under code and reports whether the code is known.
func (s *ShipAmounts) Set(code string, value *float64) bool {
	p := s.slot(code)
	if p == nil {
		return false
	}
	*p = value
	return true
}

// ShipColumn maps a hull code to its storage column, or "" when unknown.
func ShipColumn(code string) string {
	var empty ShipAmounts
	if empty.slot(code) == nil {
		return ""
	}
	return "ship_" + strings.ToLower(code)
}

// IsKnownType reports whether t is a claim type.
func IsKnownType(t string) bool {
	return t == TypeMilestone || t == TypeDCR
}
