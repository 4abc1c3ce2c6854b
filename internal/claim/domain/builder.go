package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	taxdomain "github.com/smallbiznis/rfacto/internal/tax/domain"
	"github.com/smallbiznis/rfacto/pkg/optional"
)

// ProjectRef is what the patch builder needs to know about a project.
type ProjectRef struct {
	ID          int64
	Code        string
	TaxProvince string
}

// Lookup resolves projects and tax rates while building a patch. A missing
// project is reported as (nil, nil).
type Lookup interface {
	ProjectByCode(ctx context.Context, code string) (*ProjectRef, error)
	ResolveRate(ctx context.Context, province string, fallback float64) float64
}

type BuildOptions struct {
	// NormalizeEmpty stores an empty step, description or invoice number as null.
	NormalizeEmpty bool
}

// BuildPatch turns an edit into the minimal patch against current.
//
// A project code resolves to a project id and, unless the edit names a
// province, to the project's default province. Any province in the patch
// re-runs the tax resolver; an explicit tax rate in the edit overrides the
// resolved one. When HT or the rate changes, TTC is recomputed from the
// patched values, falling back to current, unless the edit carries TTC.
func BuildPatch(ctx context.Context, current *Claim, edit Edit, lookup Lookup, opts BuildOptions) (Patch, error) {
	if current == nil {
		current = &Claim{}
	}
	var p Patch

	if edit.Type.IsSet() {
		t := strings.ToLower(strings.TrimSpace(edit.Type.Or("")))
		if !IsKnownType(t) {
			return Patch{}, ErrInvalidType
		}
		p.Type = optional.Set(t)
	}

	p.Step = text(edit.Step, opts.NormalizeEmpty)
	p.Description = text(edit.Description, opts.NormalizeEmpty)
	p.InvoiceNumber = text(edit.InvoiceNumber, opts.NormalizeEmpty)
	p.InternalName = text(edit.InternalName, true)
	p.ClientName = text(edit.ClientName, true)
	p.ReferenceCode = text(edit.ReferenceCode, true)
	p.Status = text(edit.Status, true)

	if edit.ProjectCode.IsSet() {
		code := strings.TrimSpace(edit.ProjectCode.Or(""))
		p.ProjectCode = optional.Null[string]()
		p.ProjectID = optional.Null[int64]()
		if code != "" {
			p.ProjectCode = optional.Set(code)
			ref, err := lookup.ProjectByCode(ctx, code)
			if err != nil {
				return Patch{}, fmt.Errorf("lookup project %q: %w", code, err)
			}
			if ref != nil {
				p.ProjectID = optional.Set(ref.ID)
				if !edit.Province.IsSet() && ref.TaxProvince != "" {
					p.Province = optional.Set(taxdomain.NormalizeProvince(ref.TaxProvince))
				}
			}
		}
	}

	if edit.Province.IsSet() {
		p.Province = optional.Null[string]()
		if province := taxdomain.NormalizeProvince(edit.Province.Or("")); province != "" {
			p.Province = optional.Set(province)
		}
	}

	if p.Province.IsSet() || edit.TaxRate.IsSet() {
		var rate float64
		if explicit, ok := edit.TaxRate.Get(); ok {
			rate = float64(explicit)
		} else {
			// taxRate: null with no province edit re-resolves the rate of the
			// claim's current province.
			province := p.Province.Or("")
			if !p.Province.IsSet() && current.Province != nil {
				province = *current.Province
			}
			rate = lookup.ResolveRate(ctx, province, 0)
		}
		p.TaxRate = optional.Set(rate)
	}

	if edit.AmountHT.IsSet() {
		p.AmountHT = optional.Set(float64(edit.AmountHT.Or(0)))
	}
	switch {
	case edit.AmountTTC.IsSet():
		p.AmountTTC = optional.Set(float64(edit.AmountTTC.Or(0)))
	case p.AmountHT.IsSet() || p.TaxRate.IsSet():
		p.AmountTTC = optional.Set(taxdomain.ComputeTTC(p.AmountHT.Or(current.AmountHT), p.TaxRate.Or(current.TaxRate)))
	}

	if edit.InvoiceDate.IsSet() {
		p.InvoiceDate = optional.Null[time.Time]()
		if t, ok := ParseDate(edit.InvoiceDate.Or("")); ok {
			p.InvoiceDate = optional.Set(t)
		}
	}

	for code, v := range edit.ShipAmounts {
		code = strings.ToUpper(strings.TrimSpace(code))
		if ShipColumn(code) == "" {
			continue
		}
		if p.ShipAmounts == nil {
			p.ShipAmounts = make(map[string]optional.Value[float64])
		}
		if v == nil {
			p.ShipAmounts[code] = optional.Null[float64]()
			continue
		}
		p.ShipAmounts[code] = optional.Set(float64(*v))
	}

	return p, nil
}

func text(v optional.Value[string], emptyAsNull bool) optional.Value[string] {
	if !v.IsSet() {
		return v
	}
	s, ok := v.Get()
	if !ok || (emptyAsNull && strings.TrimSpace(s) == "") {
		return optional.Null[string]()
	}
	return optional.Set(s)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
}

// ParseDate reads the date formats accepted from the grid and from imports.
// Unparseable input reports false rather than failing.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
