package domain

import (
	"time"

	"github.com/smallbiznis/rfacto/pkg/optional"
)

// Patch is the minimal update for one claim: only fields that the edit
// touched, with derived tax and amount fields already resolved.
type Patch struct {
	Type          optional.Value[string]             `json:"type,omitzero"`
	Step          optional.Value[string]             `json:"step,omitzero"`
	ProjectCode   optional.Value[string]             `json:"projectCode,omitzero"`
	ProjectID     optional.Value[int64]              `json:"projectId,omitzero"`
	Description   optional.Value[string]             `json:"description,omitzero"`
	Province      optional.Value[string]             `json:"province,omitzero"`
	TaxRate       optional.Value[float64]            `json:"taxRate,omitzero"`
	AmountHT      optional.Value[float64]            `json:"amountHT,omitzero"`
	AmountTTC     optional.Value[float64]            `json:"amountTTC,omitzero"`
	InvoiceDate   optional.Value[time.Time]          `json:"invoiceDate,omitzero"`
	InvoiceNumber optional.Value[string]             `json:"invoiceNumber,omitzero"`
	Status        optional.Value[string]             `json:"status,omitzero"`
	InternalName  optional.Value[string]             `json:"internalName,omitzero"`
	ClientName    optional.Value[string]             `json:"clientName,omitzero"`
	ReferenceCode optional.Value[string]             `json:"referenceCode,omitzero"`
	ShipAmounts   map[string]optional.Value[float64] `json:"shipAmounts,omitempty"`
}

type patchField struct {
	name   string
	column string
	set    func(p *Patch) bool
	value  func(p *Patch) any
}

var patchFields = []patchField{
	{"type", "type", func(p *Patch) bool { return p.Type.IsSet() }, func(p *Patch) any { return columnValue(p.Type) }},
	{"step", "step", func(p *Patch) bool { return p.Step.IsSet() }, func(p *Patch) any { return columnValue(p.Step) }},
	{"projectId", "project_id", func(p *Patch) bool { return p.ProjectID.IsSet() }, func(p *Patch) any { return columnValue(p.ProjectID) }},
	{"description", "description", func(p *Patch) bool { return p.Description.IsSet() }, func(p *Patch) any { return columnValue(p.Description) }},
	{"province", "province", func(p *Patch) bool { return p.Province.IsSet() }, func(p *Patch) any { return columnValue(p.Province) }},
	{"taxRate", "tax_rate", func(p *Patch) bool { return p.TaxRate.IsSet() }, func(p *Patch) any { return p.TaxRate.Or(0) }},
	{"amountHT", "amount_ht", func(p *Patch) bool { return p.AmountHT.IsSet() }, func(p *Patch) any { return p.AmountHT.Or(0) }},
	{"amountTTC", "amount_ttc", func(p *Patch) bool { return p.AmountTTC.IsSet() }, func(p *Patch) any { return p.AmountTTC.Or(0) }},
	{"invoiceDate", "invoice_date", func(p *Patch) bool { return p.InvoiceDate.IsSet() }, func(p *Patch) any { return columnValue(p.InvoiceDate) }},
	{"invoiceNumber", "invoice_number", func(p *Patch) bool { return p.InvoiceNumber.IsSet() }, func(p *Patch) any { return columnValue(p.InvoiceNumber) }},
	{"status", "status", func(p *Patch) bool { return p.Status.IsSet() }, func(p *Patch) any { return columnValue(p.Status) }},
	{"internalName", "internal_name", func(p *Patch) bool { return p.InternalName.IsSet() }, func(p *Patch) any { return columnValue(p.InternalName) }},
	{"clientName", "client_name", func(p *Patch) bool { return p.ClientName.IsSet() }, func(p *Patch) any { return columnValue(p.ClientName) }},
	{"referenceCode", "reference_code", func(p *Patch) bool { return p.ReferenceCode.IsSet() }, func(p *Patch) any { return columnValue(p.ReferenceCode) }},
}

func columnValue[T any](v optional.Value[T]) any {
	if value, ok := v.Get(); ok {
		return value
	}
	return nil
}

// Fields lists the touched fields by their API names, in a stable order.
func (p Patch) Fields() []string {
	out := make([]string, 0, len(patchFields))
	for _, f := range patchFields {
		if f.set(&p) {
			out = append(out, f.name)
		}
	}
	for _, code := range HullCodes {
		if _, ok := p.ShipAmounts[code]; ok {
			out = append(out, "shipAmounts."+code)
		}
	}
	return out
}

func (p Patch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Columns returns the storage columns to write. Null fields map to nil.
func (p Patch) Columns() map[string]any {
	cols := make(map[string]any)
	for _, f := range patchFields {
		if f.set(&p) {
			cols[f.column] = f.value(&p)
		}
	}
	for _, code := range HullCodes {
		if v, ok := p.ShipAmounts[code]; ok {
			cols[ShipColumn(code)] = columnValue(v)
		}
	}
	return cols
}

// Apply merges the patch into c. Only touched fields change; the embedded
// project is dropped when the reference moves so callers can relink it.
func (p Patch) Apply(c *Claim) {
	if v, ok := p.Type.Get(); ok {
		c.Type = v
	}
	applyPtr(&c.Step, p.Step)
	if p.ProjectID.IsSet() {
		next := p.ProjectID.Ptr()
		if c.Project != nil && (next == nil || *next != c.Project.ID) {
			c.Project = nil
		}
		c.ProjectID = next
	}
	applyPtr(&c.Description, p.Description)
	applyPtr(&c.Province, p.Province)
	if p.TaxRate.IsSet() {
		c.TaxRate = p.TaxRate.Or(0)
	}
	if p.AmountHT.IsSet() {
		c.AmountHT = p.AmountHT.Or(0)
	}
	if p.AmountTTC.IsSet() {
		c.AmountTTC = p.AmountTTC.Or(0)
	}
	applyPtr(&c.InvoiceDate, p.InvoiceDate)
	applyPtr(&c.InvoiceNumber, p.InvoiceNumber)
	applyPtr(&c.Status, p.Status)
	applyPtr(&c.InternalName, p.InternalName)
	applyPtr(&c.ClientName, p.ClientName)
	applyPtr(&c.ReferenceCode, p.ReferenceCode)
	for code, v := range p.ShipAmounts {
		c.ShipAmounts.Set(code, v.Ptr())
	}
}

func applyPtr[T any](dst **T, v optional.Value[T]) {
	if v.IsSet() {
		*dst = v.Ptr()
	}
}

// Edit converts the patch back to its wire form. Derived fields travel as
// explicit values so the server stores exactly what the client computed.
func (p Patch) Edit() Edit {
	toNumber := func(f float64) optional.Number { return optional.Number(f) }
	e := Edit{
		Type:          p.Type,
		Step:          p.Step,
		ProjectCode:   p.ProjectCode,
		Description:   p.Description,
		Province:      p.Province,
		TaxRate:       optional.Map(p.TaxRate, toNumber),
		AmountHT:      optional.Map(p.AmountHT, toNumber),
		AmountTTC:     optional.Map(p.AmountTTC, toNumber),
		InvoiceDate:   optional.Map(p.InvoiceDate, func(t time.Time) string { return t.UTC().Format(time.RFC3339) }),
		InvoiceNumber: p.InvoiceNumber,
		Status:        p.Status,
		InternalName:  p.InternalName,
		ClientName:    p.ClientName,
		ReferenceCode: p.ReferenceCode,
	}
	if len(p.ShipAmounts) > 0 {
		e.ShipAmounts = make(map[string]*optional.Number, len(p.ShipAmounts))
		for code, v := range p.ShipAmounts {
			e.ShipAmounts[code] = nil
			if f, ok := v.Get(); ok {
				n := optional.Number(f)
				e.ShipAmounts[code] = &n
			}
		}
	}
	return e
}
