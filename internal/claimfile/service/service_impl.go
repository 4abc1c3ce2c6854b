package service

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	activitydomain "github.com/smallbiznis/rfacto/internal/activity/domain"
	claimdomain "github.com/smallbiznis/rfacto/internal/claim/domain"
	filedomain "github.com/smallbiznis/rfacto/internal/claimfile/domain"
	"github.com/smallbiznis/rfacto/internal/clock"
	"github.com/smallbiznis/rfacto/internal/config"
	"github.com/smallbiznis/rfacto/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Cfg      config.Config
	Repo     filedomain.Repository
	Claims   claimdomain.Repository
	Store    storage.Store
	AuditSvc activitydomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	maxBytes int64
	repo     filedomain.Repository
	claims   claimdomain.Repository
	store    storage.Store
	auditSvc activitydomain.Service
}

func NewService(p Params) filedomain.Service {
	return newService(p)
}

func newService(p Params) *Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("claimfile.service"),
		clock:    p.Clock,
		maxBytes: p.Cfg.UploadMaxBytes,
		repo:     p.Repo,
		claims:   p.Claims,
		store:    p.Store,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Upload(ctx context.Context, req filedomain.UploadRequest) (*filedomain.ClaimFile, error) {
	claimID, err := parseID(req.ClaimID)
	if err != nil {
		return nil, err
	}
	if req.Body == nil || strings.TrimSpace(req.Name) == "" {
		return nil, filedomain.ErrFileRequired
	}
	if s.maxBytes > 0 && req.Size > s.maxBytes {
		return nil, filedomain.ErrFileTooLarge
	}

	claim, err := s.claims.FindByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, filedomain.ErrClaimMissing
	}

	now := s.clock.Now().UTC()
	key := storage.StoredName(now.UnixMilli(), req.Name)
	body := req.Body
	if s.maxBytes > 0 {
		body = &limitedReader{r: req.Body, remaining: s.maxBytes}
	}
	url, err := s.store.Put(ctx, key, body, req.Size, req.MimeType)
	if err != nil {
		return nil, err
	}

	record := &filedomain.ClaimFile{
		ClaimID:    claimID,
		Category:   filedomain.NormalizeCategory(req.Category),
		Name:       req.Name,
		StoredName: key,
		Size:       req.Size,
		MimeType:   req.MimeType,
		URL:        url,
		UploadedAt: now,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		s.removeArtifact(context.WithoutCancel(ctx), key)
		return nil, err
	}

	s.log.Info("claim file uploaded",
		zap.Int64("claim_id", claimID),
		zap.String("stored_name", key),
		zap.Int64("size", req.Size),
	)
	s.audit(ctx, activitydomain.ActionClaimFileUpload, claimID, map[string]any{
		"file_id":  record.ID,
		"name":     record.Name,
		"category": record.Category,
	})
	return record, nil
}

func (s *Service) List(ctx context.Context, claimID string) ([]filedomain.ClaimFile, error) {
	id, err := parseID(claimID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByClaim(ctx, id)
}

// Delete removes a file of the given claim. A file attached to another
// claim is reported as not found.
func (s *Service) Delete(ctx context.Context, claimID, fileID string) error {
	cid, err := parseID(claimID)
	if err != nil {
		return err
	}
	fid, err := parseID(fileID)
	if err != nil {
		return err
	}

	existing, err := s.repo.FindByID(ctx, fid)
	if err != nil {
		return err
	}
	if existing == nil || existing.ClaimID != cid {
		return filedomain.ErrNotFound
	}

	if err := s.repo.Delete(ctx, fid); err != nil {
		return err
	}
	s.removeArtifact(ctx, artifactKey(*existing))
	s.audit(ctx, activitydomain.ActionClaimFileDelete, cid, map[string]any{"file_id": fid, "name": existing.Name})
	return nil
}

func (s *Service) Open(ctx context.Context, f filedomain.ClaimFile) (io.ReadCloser, error) {
	return s.store.Open(ctx, artifactKey(f))
}

func (s *Service) Purge(ctx context.Context, tx *gorm.DB) (func(context.Context), error) {
	removed, err := s.repo.WithTx(tx).DeleteAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.cleanup(removed), nil
}

func (s *Service) cleanup(files []filedomain.ClaimFile) func(context.Context) {
	return func(ctx context.Context) {
		for _, f := range files {
			s.removeArtifact(ctx, artifactKey(f))
		}
	}
}

// removeArtifact never fails the caller: a missing or undeletable object
// only leaves an orphan behind.
func (s *Service) removeArtifact(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Warn("failed to remove stored claim file", zap.String("stored_name", key), zap.Error(err))
	}
}

func (s *Service) audit(ctx context.Context, action string, claimID int64, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.Record(ctx, action, "claim", strconv.FormatInt(claimID, 10), metadata); err != nil {
		s.log.Warn("failed to record claim file activity", zap.String("action", action), zap.Error(err))
	}
}

func artifactKey(f filedomain.ClaimFile) string {
	if f.StoredName != "" {
		return f.StoredName
	}
	return storage.KeyFromURL(f.URL)
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, filedomain.ErrInvalidID
	}
	return id, nil
}

// limitedReader fails with ErrFileTooLarge instead of truncating.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, filedomain.ErrFileTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, filedomain.ErrFileTooLarge
	}
	return n, err
}
