package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	backupdomain "github.com/smallbiznis/rfacto/internal/backup/domain"
	claimdomain "github.com/smallbiznis/rfacto/internal/claim/domain"
	claimrepo "github.com/smallbiznis/rfacto/internal/claim/repository"
	filedomain "github.com/smallbiznis/rfacto/internal/claimfile/domain"
	filerepo "github.com/smallbiznis/rfacto/internal/claimfile/repository"
	fileservice "github.com/smallbiznis/rfacto/internal/claimfile/service"
	"github.com/smallbiznis/rfacto/internal/clock"
	"github.com/smallbiznis/rfacto/internal/config"
	projectdomain "github.com/smallbiznis/rfacto/internal/project/domain"
	projectrepo "github.com/smallbiznis/rfacto/internal/project/repository"
	settingsdomain "github.com/smallbiznis/rfacto/internal/settings/domain"
	settingsrepo "github.com/smallbiznis/rfacto/internal/settings/repository"
	"github.com/smallbiznis/rfacto/internal/storage"
	taxdomain "github.com/smallbiznis/rfacto/internal/tax/domain"
	taxrepo "github.com/smallbiznis/rfacto/internal/tax/repository"
	memberdomain "github.com/smallbiznis/rfacto/internal/teammember/domain"
	memberrepo "github.com/smallbiznis/rfacto/internal/teammember/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type backupFixture struct {
	svc       *Service
	db        *gorm.DB
	uploadDir string
	backupDir string
}

func setupBackupTest(t *testing.T) backupFixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, _ := conn.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(
		&projectdomain.Project{},
		&taxdomain.TaxRate{},
		&settingsdomain.Settings{},
		&claimdomain.Claim{},
		&filedomain.ClaimFile{},
		&memberdomain.TeamMember{},
	))

	uploadDir, backupDir := t.TempDir(), t.TempDir()
	store, err := storage.NewLocalStore(uploadDir, "/uploads")
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 2, 8, 30, 0, 0, time.UTC))
	cfg := config.Config{BackupDir: backupDir}

	files := fileservice.NewService(fileservice.Params{
		DB:     conn,
		Log:    zap.NewNop(),
		Clock:  clk,
		Cfg:    cfg,
		Repo:   filerepo.NewRepository(conn),
		Claims: claimrepo.NewRepository(conn),
		Store:  store,
	})
	svc := NewService(Params{
		DB:       conn,
		Log:      zap.NewNop(),
		Clock:    clk,
		Cfg:      cfg,
		Projects: projectrepo.NewRepository(conn),
		Taxes:    taxrepo.NewRepository(conn),
		Settings: settingsrepo.NewRepository(conn),
		Claims:   claimrepo.NewRepository(conn),
		Members:  memberrepo.NewRepository(conn),
		Files:    files,
	}).(*Service)
	return backupFixture{svc: svc, db: conn, uploadDir: uploadDir, backupDir: backupDir}
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

const legacyBackup = `{
  "metadata": {"version": "1.0", "timestamp": "2024-11-02T10:00:00Z", "exportedBy": "ops@rfacto.test"},
  "projects": [{"id": 50, "code": "C228", "label": "Hull 228", "taxProvince": "qc"}],
  "taxes": [{"id": 3, "province": "QC", "taxRate": 0.14975}, {"id": 4, "province": "on", "rate": 0.13}],
  "settings": {"contractHT": 1000000, "contractTTC": 1149750, "defaultProvMs": "QC"},
  "claims": [
    {"id": 900, "type": "milestone", "step": "1.1", "projectId": 50, "taxRate": 0.14975, "amountHT": 200, "amountTTC": 1, "extraC228": 50},
    {"id": 901, "type": "weird", "projectId": 77, "taxRate": 0.13, "amountHT": 100}
  ],
  "teamMembers": [
    {"email": " Boss@RFACTO.test ", "displayName": "Boss", "role": "admin"},
    {"email": "", "role": "user"},
    {"email": "off@rfacto.test", "active": false}
  ]
}`

func TestImportLegacyBackup(t *testing.T) {
	f := setupBackupTest(t)
	ctx := context.Background()

	var doc backupdomain.Document
	require.NoError(t, json.Unmarshal([]byte(legacyBackup), &doc))

	result, err := f.svc.Import(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, backupdomain.ImportResult{Projects: 1, Taxes: 2, Settings: true, Claims: 2, TeamMembers: 2, SkippedMembers: 1}, result)

	var project projectdomain.Project
	require.NoError(t, f.db.Where("code = ?", "C228").Take(&project).Error)
	require.NotNil(t, project.TaxProvince)
	assert.Equal(t, "QC", *project.TaxProvince)

	var claims []claimdomain.Claim
	require.NoError(t, f.db.Order("id").Find(&claims).Error)
	require.Len(t, claims, 2)
	require.NotNil(t, claims[0].ProjectID)
	assert.Equal(t, project.ID, *claims[0].ProjectID)
	assert.Equal(t, 229.95, claims[0].AmountTTC)
	require.NotNil(t, claims[0].ShipAmounts.C228)
	assert.Equal(t, 50.0, *claims[0].ShipAmounts.C228)
	assert.Nil(t, claims[1].ProjectID)
	assert.Equal(t, claimdomain.TypeMilestone, claims[1].Type)

	var settings settingsdomain.Settings
	require.NoError(t, f.db.Take(&settings).Error)
	assert.Equal(t, 1000000.0, settings.ContractHT)
	assert.Equal(t, settingsdomain.DelayUnitMonths, settings.DelayPayeUnit)
	assert.Equal(t, 1, settings.DelayPaye)

	var off memberdomain.TeamMember
	require.NoError(t, f.db.Where("email = ?", "off@rfacto.test").Take(&off).Error)
	assert.False(t, off.Active)
	assert.Equal(t, "user", off.Role)
}

func TestExportImportRoundTrip(t *testing.T) {
	f := setupBackupTest(t)
	ctx := context.Background()

	var doc backupdomain.Document
	require.NoError(t, json.Unmarshal([]byte(legacyBackup), &doc))
	_, err := f.svc.Import(ctx, doc)
	require.NoError(t, err)

	exported, err := f.svc.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, backupdomain.FormatVersion, exported.Metadata.Version)
	require.Len(t, exported.Claims, 2)
	assert.Nil(t, exported.Claims[0].Project)

	raw, err := json.Marshal(exported)
	require.NoError(t, err)
	var again backupdomain.Document
	require.NoError(t, json.Unmarshal(raw, &again))

	result, err := f.svc.Import(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Claims)
	assert.Equal(t, 2, result.TeamMembers)
	assert.EqualValues(t, 1, count(t, f.db, &projectdomain.Project{}))
	assert.EqualValues(t, 2, count(t, f.db, &claimdomain.Claim{}))
}

func TestResetRemovesFilesAndKeepsSettings(t *testing.T) {
	f := setupBackupTest(t)
	ctx := context.Background()

	var doc backupdomain.Document
	require.NoError(t, json.Unmarshal([]byte(legacyBackup), &doc))
	_, err := f.svc.Import(ctx, doc)
	require.NoError(t, err)

	var claim claimdomain.Claim
	require.NoError(t, f.db.Order("id").Take(&claim).Error)
	uploaded, err := f.svc.files.Upload(ctx, filedomain.UploadRequest{
		ClaimID: strconv.FormatInt(claim.ID, 10),
		Name:    "facture.pdf",
		Body:    strings.NewReader("%PDF"),
	})
	require.NoError(t, err)

	result, err := f.svc.Reset(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.ClaimsDeleted)
	assert.EqualValues(t, 0, count(t, f.db, &claimdomain.Claim{}))
	assert.EqualValues(t, 0, count(t, f.db, &filedomain.ClaimFile{}))
	assert.EqualValues(t, 0, count(t, f.db, &projectdomain.Project{}))
	assert.EqualValues(t, 0, count(t, f.db, &taxdomain.TaxRate{}))
	assert.EqualValues(t, 0, count(t, f.db, &memberdomain.TeamMember{}))
	assert.EqualValues(t, 1, count(t, f.db, &settingsdomain.Settings{}))

	_, statErr := os.Stat(filepath.Join(f.uploadDir, uploaded.StoredName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSnapshotWritesExport(t *testing.T) {
	f := setupBackupTest(t)
	name, err := f.svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rfacto-backup-20250602-083000.json", name)

	raw, err := os.ReadFile(filepath.Join(f.backupDir, name))
	require.NoError(t, err)
	var doc backupdomain.Document
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "system@rfacto.local", doc.Metadata.ExportedBy)
}
