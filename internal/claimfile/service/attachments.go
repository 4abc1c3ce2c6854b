package service

import (
	"context"

	claimdomain "github.com/smallbiznis/rfacto/internal/claim/domain"
	filedomain "github.com/smallbiznis/rfacto/internal/claimfile/domain"
	"gorm.io/gorm"
)

type attachments struct {
	svc *Service
}

// NewAttachments exposes the file rows of a claim to claim deletion.
func NewAttachments(p Params) claimdomain.Attachments {
	return &attachments{svc: newService(p)}
}

func (a *attachments) DeleteForClaim(ctx context.Context, tx *gorm.DB, claimID int64) (func(context.Context), error) {
	removed, err := a.svc.repo.WithTx(tx).DeleteByClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	return a.svc.cleanup(removed), nil
}

var _ filedomain.Service = (*Service)(nil)
