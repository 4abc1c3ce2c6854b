package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/rfacto/internal/cache"
	"github.com/smallbiznis/rfacto/internal/clock"
	"github.com/smallbiznis/rfacto/internal/config"
	taxdomain "github.com/smallbiznis/rfacto/internal/tax/domain"
	"github.com/smallbiznis/rfacto/internal/tax/repository"
	"github.com/smallbiznis/rfacto/pkg/optional"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTaxTest(t *testing.T) (*Service, taxdomain.Resolver, taxdomain.Repository) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, _ := conn.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := conn.AutoMigrate(&taxdomain.TaxRate{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	repo := repository.NewRepository(conn)
	taxCache := cache.NewTaxRateCache(config.NewStaticRuntimeConfigHolder(config.DefaultRuntimeConfig()))
	svc := NewService(serviceParams{
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)),
		Repo:  repo,
		Cache: taxCache,
	}).(*Service)
	res := NewResolver(resolverParam{Log: zap.NewNop(), Repository: repo, Cache: taxCache})
	return svc, res, repo
}

func TestResolveRateFallsBackForUnknownProvince(t *testing.T) {
	svc, res, _ := setupTaxTest(t)
	ctx := context.Background()
	if _, err := svc.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}

	for _, fallback := range []float64{0, 0.05, 0.2} {
		if got := res.ResolveRate(ctx, "ZZ", fallback); got != fallback {
			t.Fatalf("unknown province: expected %v, got %v", fallback, got)
		}
		if got := res.ResolveRate(ctx, "", fallback); got != fallback {
			t.Fatalf("empty province: expected %v, got %v", fallback, got)
		}
	}
	if got := res.ResolveRate(ctx, "qc", 0); got != 0.14975 {
		t.Fatalf("expected QC rate, got %v", got)
	}
}

func TestResolverSeesTaxWritesThroughCache(t *testing.T) {
	svc, res, _ := setupTaxTest(t)
	ctx := context.Background()

	if got := res.ResolveRate(ctx, "ON", 0.01); got != 0.01 {
		t.Fatalf("expected fallback before create, got %v", got)
	}
	created, err := svc.Create(ctx, taxdomain.CreateRequest{Province: "on", Rate: 0.13})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Province != "ON" {
		t.Fatalf("expected normalized province, got %q", created.Province)
	}
	if got := res.ResolveRate(ctx, "ON", 0.01); got != 0.13 {
		t.Fatalf("expected cached miss to be invalidated, got %v", got)
	}

	_, err = svc.Update(ctx, taxdomain.UpdateRequest{
		ID:   "1",
		Rate: optional.Set(optional.Number(0.135)),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := res.ResolveRate(ctx, "ON", 0); got != 0.135 {
		t.Fatalf("expected updated rate, got %v", got)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := setupTaxTest(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, taxdomain.CreateRequest{Province: "  "}); !errors.Is(err, taxdomain.ErrInvalidProvince) {
		t.Fatalf("expected invalid province, got %v", err)
	}

	resp, err := svc.Create(ctx, taxdomain.CreateRequest{Province: "AB"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if resp.Rate != 0 {
		t.Fatalf("expected rate to default to 0, got %v", resp.Rate)
	}

	if _, err := svc.Create(ctx, taxdomain.CreateRequest{Province: "ab", Rate: 0.05}); !errors.Is(err, taxdomain.ErrDuplicateProvince) {
		t.Fatalf("expected duplicate province, got %v", err)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	svc, _, repo := setupTaxTest(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		n, err := svc.Seed(ctx)
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		if n != 14 {
			t.Fatalf("expected 14 rates, got %d", n)
		}
	}
	items, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 14 {
		t.Fatalf("expected 14 rows after reseed, got %d", len(items))
	}
	if items[0].Province != "AB" {
		t.Fatalf("expected province order, got %q first", items[0].Province)
	}
}

func TestDeleteUnknownReturnsNotFound(t *testing.T) {
	svc, _, _ := setupTaxTest(t)
	if err := svc.Delete(context.Background(), "99"); !errors.Is(err, taxdomain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.Delete(context.Background(), "abc"); !errors.Is(err, taxdomain.ErrInvalidID) {
		t.Fatalf("expected invalid id, got %v", err)
	}
}
