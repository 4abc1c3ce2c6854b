package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/smallbiznis/rfacto/internal/clock"
	projectdomain "github.com/smallbiznis/rfacto/internal/project/domain"
	taxdomain "github.com/smallbiznis/rfacto/internal/tax/domain"
	"github.com/smallbiznis/rfacto/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type serviceParams struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     projectdomain.Repository
	Detacher projectdomain.ClaimDetacher
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     projectdomain.Repository
	detacher projectdomain.ClaimDetacher
}

func NewService(p serviceParams) projectdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("project.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		detacher: p.Detacher,
	}
}

func (s *Service) List(ctx context.Context) ([]projectdomain.Response, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	resp := make([]projectdomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, projectdomain.ToResponse(&items[i]))
	}
	return resp, nil
}

// FindByCode returns nil without error when no project has the code.
func (s *Service) FindByCode(ctx context.Context, code string) (*projectdomain.Project, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	return s.repo.FindByCode(ctx, code)
}

func (s *Service) Create(ctx context.Context, req projectdomain.CreateRequest) (*projectdomain.Response, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, projectdomain.ErrInvalidCode
	}
	label := strings.TrimSpace(req.Label)
	if label == "" {
		return nil, projectdomain.ErrInvalidLabel
	}

	now := s.clock.Now().UTC()
	record := &projectdomain.Project{
		Code:        code,
		Label:       label,
		TaxProvince: provincePtr(req.TaxProvince),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, projectdomain.ErrDuplicateCode
		}
		return nil, err
	}

	resp := projectdomain.ToResponse(record)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, req projectdomain.UpdateRequest) (*projectdomain.Response, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, projectdomain.ErrNotFound
	}

	if req.Code.IsSet() {
		code := strings.TrimSpace(req.Code.Or(""))
		if code == "" {
			return nil, projectdomain.ErrInvalidCode
		}
		record.Code = code
	}
	if req.Label.IsSet() {
		label := strings.TrimSpace(req.Label.Or(""))
		if label == "" {
			return nil, projectdomain.ErrInvalidLabel
		}
		record.Label = label
	}
	if req.TaxProvince.IsSet() {
		record.TaxProvince = provincePtr(req.TaxProvince.Or(""))
	}
	record.UpdatedAt = s.clock.Now().UTC()

	if err := s.repo.Update(ctx, record); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, projectdomain.ErrDuplicateCode
		}
		return nil, err
	}

	resp := projectdomain.ToResponse(record)
	return &resp, nil
}

func (s *Service) Delete(ctx context.Context, id string) (projectdomain.DeleteResult, error) {
	projectID, err := parseID(id)
	if err != nil {
		return projectdomain.DeleteResult{}, err
	}

	var result projectdomain.DeleteResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		detached, err := s.detacher.DetachProject(ctx, tx, projectID)
		if err != nil {
			return err
		}
		deleted, err := s.repo.WithTx(tx).Delete(ctx, projectID)
		if err != nil {
			return err
		}
		if !deleted {
			return projectdomain.ErrNotFound
		}
		result = projectdomain.DeleteResult{Success: true, DetachedClaims: detached}
		return nil
	})
	if err != nil {
		return projectdomain.DeleteResult{}, err
	}

	s.log.Info("project deleted",
		zap.Int64("project_id", projectID),
		zap.Int64("detached_claims", result.DetachedClaims),
	)
	return result, nil
}

func provincePtr(value string) *string {
	province := taxdomain.NormalizeProvince(value)
	if province == "" {
		return nil
	}
	return &province
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, projectdomain.ErrInvalidID
	}
	return id, nil
}
