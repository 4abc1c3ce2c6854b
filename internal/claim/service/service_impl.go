package service

import (
	"context"
	"strconv"
	"strings"

	activitydomain "github.com/smallbiznis/rfacto/internal/activity/domain"
	claimdomain "github.com/smallbiznis/rfacto/internal/claim/domain"
	"github.com/smallbiznis/rfacto/internal/clock"
	"github.com/smallbiznis/rfacto/internal/observability/metrics"
	"github.com/smallbiznis/rfacto/pkg/db"
	"github.com/smallbiznis/rfacto/pkg/optional"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Repo        claimdomain.Repository
	Lookup      claimdomain.Lookup
	Attachments claimdomain.Attachments `optional:"true"`
	AuditSvc    activitydomain.Service  `optional:"true"`
	Metrics     *metrics.Metrics        `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	repo        claimdomain.Repository
	lookup      claimdomain.Lookup
	attachments claimdomain.Attachments
	auditSvc    activitydomain.Service
	metrics     *metrics.Metrics
}

func NewService(p Params) claimdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("claim.service"),
		clock:       p.Clock,
		repo:        p.Repo,
		lookup:      p.Lookup,
		attachments: p.Attachments,
		auditSvc:    p.AuditSvc,
		metrics:     p.Metrics,
	}
}

func (s *Service) List(ctx context.Context) ([]claimdomain.Claim, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*claimdomain.Claim, error) {
	claimID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	record, err := s.repo.FindByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, claimdomain.ErrNotFound
	}
	return record, nil
}

// Create stores a new claim. Type defaults to milestone and status to
// "À facturer"; a milestone may not repeat the step of another milestone of
// the same project.
func (s *Service) Create(ctx context.Context, edit claimdomain.Edit) (*claimdomain.Claim, error) {
	edit = edit.ClearEmptyProvince()
	if strings.TrimSpace(edit.Type.Or("")) == "" {
		edit.Type = optional.Set(claimdomain.TypeMilestone)
	}

	patch, err := claimdomain.BuildPatch(ctx, nil, edit, s.lookup, claimdomain.BuildOptions{NormalizeEmpty: true})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	record := &claimdomain.Claim{CreatedAt: now, UpdatedAt: now}
	patch.Apply(record)
	if record.Status == nil {
		status := claimdomain.StatusToInvoice
		record.Status = &status
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if record.Type == claimdomain.TypeMilestone && record.Step != nil && record.ProjectID != nil {
			exists, err := repo.MilestoneExists(ctx, *record.Step, *record.ProjectID)
			if err != nil {
				return err
			}
			if exists {
				return claimdomain.ErrDuplicateMilestone
			}
		}
		return repo.Create(ctx, record)
	})
	if err != nil {
		// a concurrent create passed the same check first
		if db.IsDuplicateKeyErr(err) {
			return nil, claimdomain.ErrDuplicateMilestone
		}
		return nil, err
	}

	s.metrics.RecordClaimWrite(ctx, "create", record.Type)
	s.audit(ctx, activitydomain.ActionClaimCreate, record.ID, map[string]any{
		"type":     record.Type,
		"amountHT": record.AmountHT,
	})

	return s.reload(ctx, record.ID)
}

// Update applies the edit as a partial patch; absent fields are untouched.
func (s *Service) Update(ctx context.Context, id string, edit claimdomain.Edit) (*claimdomain.Claim, error) {
	claimID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	current, err := s.repo.FindByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, claimdomain.ErrNotFound
	}

	patch, err := claimdomain.BuildPatch(ctx, current, edit, s.lookup, claimdomain.BuildOptions{NormalizeEmpty: true})
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return current, nil
	}

	fields := patch.Fields()
	cols := patch.Columns()
	cols["updated_at"] = s.clock.Now().UTC()
	updated, err := s.repo.UpdateColumns(ctx, claimID, cols)
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, claimdomain.ErrDuplicateMilestone
		}
		return nil, err
	}
	if !updated {
		return nil, claimdomain.ErrNotFound
	}

	s.log.Info("claim updated",
		zap.Int64("claim_id", claimID),
		zap.Strings("fields_updated", fields),
	)
	s.metrics.RecordClaimWrite(ctx, "update", patch.Type.Or(current.Type))
	s.audit(ctx, activitydomain.ActionClaimUpdate, claimID, map[string]any{"fields": fields})

	return s.reload(ctx, claimID)
}

// Delete removes the claim together with its files.
func (s *Service) Delete(ctx context.Context, id string) error {
	claimID, err := parseID(id)
	if err != nil {
		return err
	}

	var cleanup func(context.Context)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.attachments != nil {
			fn, err := s.attachments.DeleteForClaim(ctx, tx, claimID)
			if err != nil {
				return err
			}
			cleanup = fn
		}
		deleted, err := s.repo.WithTx(tx).Delete(ctx, claimID)
		if err != nil {
			return err
		}
		if !deleted {
			return claimdomain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	if cleanup != nil {
		cleanup(ctx)
	}

	s.metrics.RecordClaimWrite(ctx, "delete", "")
	s.audit(ctx, activitydomain.ActionClaimDelete, claimID, nil)
	return nil
}

func (s *Service) DCRDuplicates(ctx context.Context) (claimdomain.DuplicateReport, error) {
	dcrs, err := s.repo.ListByType(ctx, claimdomain.TypeDCR)
	if err != nil {
		return claimdomain.DuplicateReport{}, err
	}

	seen := make(map[string]struct{}, len(dcrs))
	duplicates := make([]claimdomain.Claim, 0)
	for _, dcr := range dcrs {
		key := duplicateKey(dcr)
		if _, ok := seen[key]; ok {
			duplicates = append(duplicates, dcr)
			continue
		}
		seen[key] = struct{}{}
	}

	return claimdomain.DuplicateReport{Total: len(duplicates), Duplicates: duplicates}, nil
}

func duplicateKey(c claimdomain.Claim) string {
	var project, step string
	if c.ProjectID != nil {
		project = strconv.FormatInt(*c.ProjectID, 10)
	}
	if c.Step != nil {
		step = *c.Step
	}
	return project + "|" + step + "|" + strconv.FormatFloat(c.AmountHT, 'f', -1, 64)
}

func (s *Service) reload(ctx context.Context, id int64) (*claimdomain.Claim, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, claimdomain.ErrNotFound
	}
	return record, nil
}

func (s *Service) audit(ctx context.Context, action string, claimID int64, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.Record(ctx, action, "claim", strconv.FormatInt(claimID, 10), metadata); err != nil {
		s.log.Warn("failed to record claim activity", zap.String("action", action), zap.Error(err))
	}
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, claimdomain.ErrInvalidID
	}
	return id, nil
}
