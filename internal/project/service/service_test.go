package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/rfacto/internal/clock"
	projectdomain "github.com/smallbiznis/rfacto/internal/project/domain"
	"github.com/smallbiznis/rfacto/internal/project/repository"
	"github.com/smallbiznis/rfacto/pkg/optional"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubDetacher struct {
	calls    []int64
	detached int64
	err      error
}

func (d *stubDetacher) DetachProject(_ context.Context, _ *gorm.DB, projectID int64) (int64, error) {
	d.calls = append(d.calls, projectID)
	return d.detached, d.err
}

func setupProjectTest(t *testing.T, detacher *stubDetacher) *Service {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, _ := conn.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := conn.AutoMigrate(&projectdomain.Project{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return NewService(serviceParams{
		DB:       conn,
		Log:      zap.NewNop(),
		Clock:    clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
		Repo:     repository.NewRepository(conn),
		Detacher: detacher,
	}).(*Service)
}

func TestCreateRequiresCodeAndLabel(t *testing.T) {
	svc := setupProjectTest(t, &stubDetacher{})
	ctx := context.Background()

	if _, err := svc.Create(ctx, projectdomain.CreateRequest{Label: "Hull 228"}); !errors.Is(err, projectdomain.ErrInvalidCode) {
		t.Fatalf("expected invalid code, got %v", err)
	}
	if _, err := svc.Create(ctx, projectdomain.CreateRequest{Code: "C228", Label: "  "}); !errors.Is(err, projectdomain.ErrInvalidLabel) {
		t.Fatalf("expected invalid label, got %v", err)
	}

	resp, err := svc.Create(ctx, projectdomain.CreateRequest{Code: " C228 ", Label: "Hull 228", TaxProvince: "qc"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if resp.Code != "C228" || resp.TaxProvince == nil || *resp.TaxProvince != "QC" {
		t.Fatalf("unexpected project: %+v", resp)
	}

	if _, err := svc.Create(ctx, projectdomain.CreateRequest{Code: "C228", Label: "Other"}); !errors.Is(err, projectdomain.ErrDuplicateCode) {
		t.Fatalf("expected duplicate code, got %v", err)
	}
}

func TestListOrdersByCode(t *testing.T) {
	svc := setupProjectTest(t, &stubDetacher{})
	ctx := context.Background()
	for _, code := range []string{"NLT6", "C229", "C228"} {
		if _, err := svc.Create(ctx, projectdomain.CreateRequest{Code: code, Label: code}); err != nil {
			t.Fatalf("create %s: %v", code, err)
		}
	}

	items, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 || items[0].Code != "C228" || items[2].Code != "NLT6" {
		t.Fatalf("unexpected order: %+v", items)
	}
}

func TestUpdateIsPartialAndClearsEmptyProvince(t *testing.T) {
	svc := setupProjectTest(t, &stubDetacher{})
	ctx := context.Background()
	created, err := svc.Create(ctx, projectdomain.CreateRequest{Code: "C230", Label: "Hull 230", TaxProvince: "NS1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.Update(ctx, projectdomain.UpdateRequest{
		ID:    "1",
		Label: optional.Set("Hull 230 refit"),
	})
	if err != nil {
		t.Fatalf("update label: %v", err)
	}
	if updated.Code != created.Code || updated.TaxProvince == nil || *updated.TaxProvince != "NS1" {
		t.Fatalf("untouched fields changed: %+v", updated)
	}

	updated, err = svc.Update(ctx, projectdomain.UpdateRequest{ID: "1", TaxProvince: optional.Set("")})
	if err != nil {
		t.Fatalf("update province: %v", err)
	}
	if updated.TaxProvince != nil {
		t.Fatalf("expected province cleared, got %q", *updated.TaxProvince)
	}

	if _, err := svc.Update(ctx, projectdomain.UpdateRequest{ID: "99", Label: optional.Set("x")}); !errors.Is(err, projectdomain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteDetachesClaimsFirst(t *testing.T) {
	detacher := &stubDetacher{detached: 3}
	svc := setupProjectTest(t, detacher)
	ctx := context.Background()
	if _, err := svc.Create(ctx, projectdomain.CreateRequest{Code: "C231", Label: "Hull 231"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	res, err := svc.Delete(ctx, "1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !res.Success || res.DetachedClaims != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(detacher.calls) != 1 || detacher.calls[0] != 1 {
		t.Fatalf("expected detach for project 1, got %v", detacher.calls)
	}

	if _, err := svc.Delete(ctx, "1"); !errors.Is(err, projectdomain.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestDeleteKeepsProjectWhenDetachFails(t *testing.T) {
	detacher := &stubDetacher{err: errors.New("boom")}
	svc := setupProjectTest(t, detacher)
	ctx := context.Background()
	if _, err := svc.Create(ctx, projectdomain.CreateRequest{Code: "NLT5", Label: "NLT 5"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Delete(ctx, "1"); err == nil {
		t.Fatalf("expected detach error")
	}
	items, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("project should survive failed delete, got %d", len(items))
	}
}
