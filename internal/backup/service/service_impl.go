package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	activitydomain "github.com/smallbiznis/rfacto/internal/activity/domain"
	"github.com/smallbiznis/rfacto/internal/actorcontext"
	"github.com/smallbiznis/rfacto/internal/authorization"
	backupdomain "github.com/smallbiznis/rfacto/internal/backup/domain"
	claimdomain "github.com/smallbiznis/rfacto/internal/claim/domain"
	filedomain "github.com/smallbiznis/rfacto/internal/claimfile/domain"
	"github.com/smallbiznis/rfacto/internal/clock"
	"github.com/smallbiznis/rfacto/internal/config"
	projectdomain "github.com/smallbiznis/rfacto/internal/project/domain"
	"github.com/smallbiznis/rfacto/internal/ratelimit"
	settingsdomain "github.com/smallbiznis/rfacto/internal/settings/domain"
	"github.com/smallbiznis/rfacto/internal/storage"
	taxdomain "github.com/smallbiznis/rfacto/internal/tax/domain"
	memberdomain "github.com/smallbiznis/rfacto/internal/teammember/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	lockKey = "rfacto:lock:backup"
	lockTTL = 10 * time.Minute
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Cfg      config.Config
	Projects projectdomain.Repository
	Taxes    taxdomain.Repository
	Settings settingsdomain.Repository
	Claims   claimdomain.Repository
	Members  memberdomain.Repository
	Files    filedomain.Service
	Locker   *ratelimit.Locker      `optional:"true"`
	AuditSvc activitydomain.Service `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	backupDir string
	projects  projectdomain.Repository
	taxes     taxdomain.Repository
	settings  settingsdomain.Repository
	claims    claimdomain.Repository
	members   memberdomain.Repository
	files     filedomain.Service
	locker    *ratelimit.Locker
	auditSvc  activitydomain.Service
}

func NewService(p Params) backupdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("backup.service"),
		clock:     p.Clock,
		backupDir: p.Cfg.BackupDir,
		projects:  p.Projects,
		taxes:     p.Taxes,
		settings:  p.Settings,
		claims:    p.Claims,
		members:   p.Members,
		files:     p.Files,
		locker:    p.Locker,
		auditSvc:  p.AuditSvc,
	}
}

func (s *Service) Export(ctx context.Context) (*backupdomain.Document, error) {
	doc := &backupdomain.Document{
		Metadata: backupdomain.Metadata{
			Version:    backupdomain.FormatVersion,
			Timestamp:  s.clock.Now().UTC(),
			ExportedBy: actorcontext.ActorEmail(ctx),
		},
	}

	projects, err := s.projects.List(ctx)
	if err != nil {
		return nil, err
	}
	doc.Projects = make([]backupdomain.ProjectRecord, 0, len(projects))
	for _, p := range projects {
		doc.Projects = append(doc.Projects, backupdomain.ProjectRecord{
			ID: p.ID, Code: p.Code, Label: p.Label, TaxProvince: p.TaxProvince,
		})
	}

	taxes, err := s.taxes.List(ctx)
	if err != nil {
		return nil, err
	}
	doc.Taxes = make([]backupdomain.TaxRecord, 0, len(taxes))
	for _, t := range taxes {
		rate := t.Rate
		doc.Taxes = append(doc.Taxes, backupdomain.TaxRecord{ID: t.ID, Province: t.Province, Rate: &rate})
	}

	if doc.Settings, err = s.settings.Get(ctx); err != nil {
		return nil, err
	}

	claims, err := s.claims.List(ctx)
	if err != nil {
		return nil, err
	}
	doc.Claims = make([]backupdomain.ClaimRecord, 0, len(claims))
	for _, c := range claims {
		c.Project = nil
		doc.Claims = append(doc.Claims, backupdomain.ClaimRecord{Claim: c})
	}

	members, err := s.members.List(ctx)
	if err != nil {
		return nil, err
	}
	doc.TeamMembers = make([]backupdomain.MemberRecord, 0, len(members))
	for _, m := range members {
		active := m.Active
		doc.TeamMembers = append(doc.TeamMembers, backupdomain.MemberRecord{
			Email: m.Email, Name: m.Name, Role: m.Role, Active: &active,
		})
	}
	return doc, nil
}

func (s *Service) Import(ctx context.Context, doc backupdomain.Document) (backupdomain.ImportResult, error) {
	var result backupdomain.ImportResult
	err := s.exclusive(ctx, func(ctx context.Context) error {
		var cleanup func(context.Context)
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			fn, _, err := s.wipe(ctx, tx, true)
			if err != nil {
				return err
			}
			cleanup = fn
			result, err = s.restore(ctx, tx, doc)
			return err
		})
		if err != nil {
			return err
		}
		cleanup(ctx)
		return nil
	})
	if err != nil {
		return backupdomain.ImportResult{}, err
	}

	s.log.Info("backup imported",
		zap.Int("projects", result.Projects),
		zap.Int("taxes", result.Taxes),
		zap.Int("claims", result.Claims),
		zap.Int("team_members", result.TeamMembers),
		zap.Int("skipped_members", result.SkippedMembers),
	)
	s.audit(ctx, activitydomain.ActionBackupImport, map[string]any{
		"projects":     result.Projects,
		"taxes":        result.Taxes,
		"claims":       result.Claims,
		"team_members": result.TeamMembers,
		"exported_by":  doc.Metadata.ExportedBy,
	})
	return result, nil
}

func (s *Service) Reset(ctx context.Context) (backupdomain.ResetResult, error) {
	var result backupdomain.ResetResult
	err := s.exclusive(ctx, func(ctx context.Context) error {
		var cleanup func(context.Context)
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			fn, deleted, err := s.wipe(ctx, tx, false)
			cleanup, result.ClaimsDeleted = fn, deleted
			return err
		})
		if err != nil {
			return err
		}
		cleanup(ctx)
		return nil
	})
	if err != nil {
		return backupdomain.ResetResult{}, err
	}

	s.log.Warn("all data reset", zap.Int64("claims_deleted", result.ClaimsDeleted))
	s.audit(ctx, activitydomain.ActionResetAll, map[string]any{"claims_deleted": result.ClaimsDeleted})
	return result, nil
}

func (s *Service) Snapshot(ctx context.Context) (string, error) {
	doc, err := s.Export(actorcontext.System(ctx, string(authorization.RoleAdmin)))
	if err != nil {
		return "", err
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}

	store, err := storage.NewLocalStore(s.backupDir, "")
	if err != nil {
		return "", err
	}
	name := "rfacto-backup-" + doc.Metadata.Timestamp.Format("20060102-150405") + ".json"
	if _, err := store.Put(ctx, name, bytes.NewReader(payload), int64(len(payload)), "application/json"); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	s.audit(ctx, activitydomain.ActionBackupSnapshot, map[string]any{"name": name, "claims": len(doc.Claims)})
	return name, nil
}

// wipe deletes files, claims, team members, taxes and projects, children
// first. Settings are only dropped when withSettings is set.
func (s *Service) wipe(ctx context.Context, tx *gorm.DB, withSettings bool) (func(context.Context), int64, error) {
	cleanup, err := s.purgeFiles(ctx, tx)
	if err != nil {
		return nil, 0, err
	}
	claimsDeleted, err := s.claims.WithTx(tx).DeleteAll(ctx)
	if err != nil {
		return nil, 0, err
	}
	if _, err := s.members.WithTx(tx).DeleteAll(ctx); err != nil {
		return nil, 0, err
	}
	if withSettings {
		if err := s.settings.WithTx(tx).Delete(ctx); err != nil {
			return nil, 0, err
		}
	}
	if _, err := s.taxes.WithTx(tx).DeleteAll(ctx); err != nil {
		return nil, 0, err
	}
	if _, err := s.projects.WithTx(tx).DeleteAll(ctx); err != nil {
		return nil, 0, err
	}
	return cleanup, claimsDeleted, nil
}

func (s *Service) purgeFiles(ctx context.Context, tx *gorm.DB) (func(context.Context), error) {
	if s.files == nil {
		return func(context.Context) {}, nil
	}
	return s.files.Purge(ctx, tx)
}

func (s *Service) restore(ctx context.Context, tx *gorm.DB, doc backupdomain.Document) (backupdomain.ImportResult, error) {
	var result backupdomain.ImportResult
	now := s.clock.Now().UTC()

	projectIDs := make(map[int64]int64, len(doc.Projects))
	projects := s.projects.WithTx(tx)
	for _, rec := range doc.Projects {
		code := strings.TrimSpace(rec.Code)
		if code == "" {
			continue
		}
		record := &projectdomain.Project{
			Code:        code,
			Label:       rec.Label,
			TaxProvince: normalizedProvince(rec.TaxProvince),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := projects.Create(ctx, record); err != nil {
			return result, fmt.Errorf("project %s: %w", code, err)
		}
		projectIDs[rec.ID] = record.ID
		result.Projects++
	}

	taxes := s.taxes.WithTx(tx)
	for _, rec := range doc.Taxes {
		province := taxdomain.NormalizeProvince(rec.Province)
		if province == "" {
			continue
		}
		record := &taxdomain.TaxRate{Province: province, Rate: rec.EffectiveRate(), CreatedAt: now, UpdatedAt: now}
		if err := taxes.Upsert(ctx, record); err != nil {
			return result, fmt.Errorf("tax %s: %w", province, err)
		}
		result.Taxes++
	}

	if doc.Settings != nil {
		settings := *doc.Settings
		fillSettingsDefaults(&settings)
		settings.UpdatedAt = now
		if err := s.settings.WithTx(tx).Save(ctx, &settings); err != nil {
			return result, fmt.Errorf("settings: %w", err)
		}
		result.Settings = true
	}

	claims := s.claims.WithTx(tx)
	for _, rec := range doc.Claims {
		record := rec.Claim
		record.ID = 0
		record.Project = nil
		record.ShipAmounts = rec.Ships()
		if !claimdomain.IsKnownType(record.Type) {
			record.Type = claimdomain.TypeMilestone
		}
		if record.ProjectID != nil {
			if mapped, ok := projectIDs[*record.ProjectID]; ok {
				record.ProjectID = &mapped
			} else {
				record.ProjectID = nil
			}
		}
		record.Province = normalizedProvince(record.Province)
		record.AmountTTC = taxdomain.ComputeTTC(record.AmountHT, record.TaxRate)
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}
		record.UpdatedAt = now
		if err := claims.Create(ctx, &record); err != nil {
			return result, fmt.Errorf("claim %d: %w", rec.ID, err)
		}
		result.Claims++
	}

	members := s.members.WithTx(tx)
	for _, rec := range doc.TeamMembers {
		email := strings.ToLower(strings.TrimSpace(rec.Email))
		if email == "" {
			result.SkippedMembers++
			continue
		}
		name := rec.Name
		if name == nil {
			name = rec.DisplayName
		}
		role, ok := authorization.ParseRole(rec.Role)
		if !ok {
			role = authorization.RoleUser
		}
		record := &memberdomain.TeamMember{
			Email:     email,
			Name:      name,
			Role:      string(role),
			Active:    rec.Active == nil || *rec.Active,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := members.Create(ctx, record); err != nil {
			return result, fmt.Errorf("team member %s: %w", email, err)
		}
		result.TeamMembers++
	}
	return result, nil
}

// exclusive serializes imports and resets across instances when Redis is
// configured. A nil locker always grants the lock.
func (s *Service) exclusive(ctx context.Context, fn func(context.Context) error) error {
	err := s.locker.WithLock(ctx, lockKey, lockTTL, fn)
	if errors.Is(err, ratelimit.ErrLockHeld) {
		return backupdomain.ErrBusy
	}
	return err
}

func (s *Service) audit(ctx context.Context, action string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.Record(ctx, action, "workspace", "", metadata); err != nil {
		s.log.Warn("failed to record backup activity", zap.String("action", action), zap.Error(err))
	}
}

func normalizedProvince(p *string) *string {
	if p == nil {
		return nil
	}
	v := taxdomain.NormalizeProvince(*p)
	if v == "" {
		return nil
	}
	return &v
}

func fillSettingsDefaults(s *settingsdomain.Settings) {
	s.ID = settingsdomain.SingletonID
	delays := []struct {
		n    *int
		unit *string
	}{
		{&s.DelayAFacturer, &s.DelayAFacturerUnit},
		{&s.DelayFacture, &s.DelayFactureUnit},
		{&s.DelayPaye, &s.DelayPayeUnit},
	}
	for _, d := range delays {
		if *d.unit == "" {
			*d.unit = settingsdomain.DefaultDelayUnit
			if *d.n == 0 {
				*d.n = settingsdomain.DefaultDelay
			}
			continue
		}
		if unit, err := settingsdomain.NormalizeDelayUnit(*d.unit); err == nil {
			*d.unit = unit
		} else {
			*d.unit = settingsdomain.DefaultDelayUnit
		}
	}
}
