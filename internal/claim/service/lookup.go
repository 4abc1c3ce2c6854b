package service

import (
	"context"

	claimdomain "github.com/smallbiznis/rfacto/internal/claim/domain"
	projectdomain "github.com/smallbiznis/rfacto/internal/project/domain"
	taxdomain "github.com/smallbiznis/rfacto/internal/tax/domain"
)

type storeLookup struct {
	projects projectdomain.Repository
	resolver taxdomain.Resolver
}

// NewLookup resolves patch references against the database.
func NewLookup(projects projectdomain.Repository, resolver taxdomain.Resolver) claimdomain.Lookup {
	return storeLookup{projects: projects, resolver: resolver}
}

func (l storeLookup) ProjectByCode(ctx context.Context, code string) (*claimdomain.ProjectRef, error) {
	p, err := l.projects.FindByCode(ctx, code)
	if err != nil || p == nil {
		return nil, err
	}
	ref := &claimdomain.ProjectRef{ID: p.ID, Code: p.Code}
	if p.TaxProvince != nil {
		ref.TaxProvince = *p.TaxProvince
	}
	return ref, nil
}

func (l storeLookup) ResolveRate(ctx context.Context, province string, fallback float64) float64 {
	return l.resolver.ResolveRate(ctx, province, fallback)
}
