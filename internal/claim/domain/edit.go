package domain

import (
	"strings"

	"github.com/smallbiznis/rfacto/pkg/optional"
)

// Edit is a partial set of claim fields as typed in the grid or sent over the
// API. Absent fields are left untouched.
type Edit struct {
	Type          optional.Value[string]          `json:"type,omitzero"`
	Step          optional.Value[string]          `json:"step,omitzero"`
	ProjectCode   optional.Value[string]          `json:"projectCode,omitzero"`
	Description   optional.Value[string]          `json:"description,omitzero"`
	Province      optional.Value[string]          `json:"province,omitzero"`
	TaxRate       optional.Value[optional.Number] `json:"taxRate,omitzero"`
	AmountHT      optional.Value[optional.Number] `json:"amountHT,omitzero"`
	AmountTTC     optional.Value[optional.Number] `json:"amountTTC,omitzero"`
	InvoiceDate   optional.Value[string]          `json:"invoiceDate,omitzero"`
	InvoiceNumber optional.Value[string]          `json:"invoiceNumber,omitzero"`
	Status        optional.Value[string]          `json:"status,omitzero"`
	InternalName  optional.Value[string]          `json:"internalName,omitzero"`
	ClientName    optional.Value[string]          `json:"clientName,omitzero"`
	ReferenceCode optional.Value[string]          `json:"referenceCode,omitzero"`
	ShipAmounts   map[string]*optional.Number     `json:"shipAmounts,omitempty"`
}

// Merge overlays newer on e. Fields present in newer win.
func (e Edit) Merge(newer Edit) Edit {
	out := e
	pick(&out.Type, newer.Type)
	pick(&out.Step, newer.Step)
	pick(&out.ProjectCode, newer.ProjectCode)
	pick(&out.Description, newer.Description)
	pick(&out.Province, newer.Province)
	pick(&out.TaxRate, newer.TaxRate)
	pick(&out.AmountHT, newer.AmountHT)
	pick(&out.AmountTTC, newer.AmountTTC)
	pick(&out.InvoiceDate, newer.InvoiceDate)
	pick(&out.InvoiceNumber, newer.InvoiceNumber)
	pick(&out.Status, newer.Status)
	pick(&out.InternalName, newer.InternalName)
	pick(&out.ClientName, newer.ClientName)
	pick(&out.ReferenceCode, newer.ReferenceCode)
	if len(newer.ShipAmounts) > 0 {
		merged := make(map[string]*optional.Number, len(e.ShipAmounts)+len(newer.ShipAmounts))
		for code, v := range e.ShipAmounts {
			merged[code] = v
		}
		for code, v := range newer.ShipAmounts {
			merged[code] = v
		}
		out.ShipAmounts = merged
	}
	return out
}

func pick[T any](dst *optional.Value[T], src optional.Value[T]) {
	if src.IsSet() {
		*dst = src
	}
}

// ClearEmptyProvince drops a blank province so that a project default can
// apply. Creation treats "" the same as an absent province.
func (e Edit) ClearEmptyProvince() Edit {
	if strings.TrimSpace(e.Province.Or("")) == "" {
		e.Province = optional.Value[string]{}
	}
	return e
}
