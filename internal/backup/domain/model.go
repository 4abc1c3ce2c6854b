// Package domain describes the portable JSON dump of the whole workspace.
package domain

import (
	"context"
	"errors"
	"time"

	claimdomain "github.com/smallbiznis/rfacto/internal/claim/domain"
	settingsdomain "github.com/smallbiznis/rfacto/internal/settings/domain"
)

const FormatVersion = "1.0"

var (
	ErrBusy          = errors.New("backup_in_progress")
	ErrInvalidBackup = errors.New("invalid_backup")
)

type Metadata struct {
	Version    string    `json:"version"`
	Timestamp  time.Time `json:"timestamp"`
	ExportedBy string    `json:"exportedBy"`
}

// Document is the export format. Import also reads the older layout, where
// taxes carried taxRate and claims carried extraC228..extraNLT6.
type Document struct {
	Metadata    Metadata                 `json:"metadata"`
	Projects    []ProjectRecord          `json:"projects"`
	Taxes       []TaxRecord              `json:"taxes"`
	Settings    *settingsdomain.Settings `json:"settings"`
	Claims      []ClaimRecord            `json:"claims"`
	TeamMembers []MemberRecord           `json:"teamMembers"`
}

type ProjectRecord struct {
	ID          int64   `json:"id"`
	Code        string  `json:"code"`
	Label       string  `json:"label"`
	TaxProvince *string `json:"taxProvince"`
}

type TaxRecord struct {
	ID         int64    `json:"id,omitempty"`
	Province   string   `json:"province"`
	Rate       *float64 `json:"rate,omitempty"`
	LegacyRate *float64 `json:"taxRate,omitempty"`
}

// EffectiveRate prefers rate over the legacy taxRate field.
func (t TaxRecord) EffectiveRate() float64 {
	if t.Rate != nil {
		return *t.Rate
	}
	if t.LegacyRate != nil {
		return *t.LegacyRate
	}
	return 0
}

type ClaimRecord struct {
	claimdomain.Claim

	ExtraC228 *float64 `json:"extraC228,omitempty"`
	ExtraC229 *float64 `json:"extraC229,omitempty"`
	ExtraC230 *float64 `json:"extraC230,omitempty"`
	ExtraC231 *float64 `json:"extraC231,omitempty"`
	ExtraNLT5 *float64 `json:"extraNLT5,omitempty"`
	ExtraNLT6 *float64 `json:"extraNLT6,omitempty"`
}

// Ships merges the legacy per-ship fields under the current ones.
func (c ClaimRecord) Ships() claimdomain.ShipAmounts {
	out := c.ShipAmounts
	legacy := map[string]*float64{
		"C228": c.ExtraC228, "C229": c.ExtraC229, "C230": c.ExtraC230,
		"C231": c.ExtraC231, "NLT5": c.ExtraNLT5, "NLT6": c.ExtraNLT6,
	}
	for code, v := range legacy {
		if v != nil && out.Get(code) == nil {
			out.Set(code, v)
		}
	}
	return out
}

type MemberRecord struct {
	Email       string  `json:"email"`
	Name        *string `json:"name"`
	DisplayName *string `json:"displayName,omitempty"`
	Role        string  `json:"role"`
	Active      *bool   `json:"active"`
}

type ImportResult struct {
	Projects       int  `json:"projects"`
	Taxes          int  `json:"taxes"`
	Settings       bool `json:"settings"`
	Claims         int  `json:"claims"`
	TeamMembers    int  `json:"teamMembers"`
	SkippedMembers int  `json:"skippedMembers"`
}

type ResetResult struct {
	ClaimsDeleted int64 `json:"claimsDeleted"`
}

type Service interface {
	Export(ctx context.Context) (*Document, error)
	// Import replaces every record with the content of doc.
	Import(ctx context.Context, doc Document) (ImportResult, error)
	// Reset deletes files, claims, team members, taxes and projects.
	Reset(ctx context.Context) (ResetResult, error)
	// Snapshot writes an export to the backup directory and returns its name.
	Snapshot(ctx context.Context) (string, error)
}
