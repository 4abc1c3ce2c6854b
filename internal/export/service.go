// Package export builds the downloadable artifacts: the audit ZIP bundle and
// the payment-claim PDF.
package export

import (
	"context"
	"errors"
	"io"
	"time"

	activitydomain "github.com/smallbiznis/rfacto/internal/activity/domain"
	claimdomain "github.com/smallbiznis/rfacto/internal/claim/domain"
	filedomain "github.com/smallbiznis/rfacto/internal/claimfile/domain"
	"github.com/smallbiznis/rfacto/internal/clock"
	settingsdomain "github.com/smallbiznis/rfacto/internal/settings/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrNoClaims = errors.New("no_claims_selected")

// fetchConcurrency bounds the parallel reads of stored invoices.
const fetchConcurrency = 4

type Params struct {
	fx.In

	Log         *zap.Logger
	Clock       clock.Clock
	Claims      claimdomain.Service
	Files       filedomain.Repository
	FileService filedomain.Service
	Settings    settingsdomain.Service
	AuditSvc    activitydomain.Service `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	clock    clock.Clock
	claims   claimdomain.Service
	files    filedomain.Repository
	opener   filedomain.Service
	settings settingsdomain.Service
	auditSvc activitydomain.Service
}

func NewService(p Params) *Service {
	return &Service{
		log:      p.Log.Named("export.service"),
		clock:    p.Clock,
		claims:   p.Claims,
		files:    p.Files,
		opener:   p.FileService,
		settings: p.Settings,
		auditSvc: p.AuditSvc,
	}
}

// Exporter is what the HTTP layer and the CLI depend on.
type Exporter interface {
	AuditZip(ctx context.Context, w io.Writer, claimIDs []int64) (*AuditManifest, error)
	PaymentClaimPDF(ctx context.Context) (*Document, error)
}

// Document is a rendered file ready to be served.
type Document struct {
	Name        string
	ContentType string
	Body        []byte
	GeneratedAt time.Time
}

func (s *Service) audit(ctx context.Context, action string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.Record(ctx, action, "export", "", metadata); err != nil {
		s.log.Warn("failed to record export activity", zap.String("action", action), zap.Error(err))
	}
}
