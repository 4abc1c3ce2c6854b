package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/rfacto/internal/clock"
	"github.com/smallbiznis/rfacto/internal/config"
	"github.com/smallbiznis/rfacto/internal/migration"
	"github.com/smallbiznis/rfacto/internal/observability"
	"github.com/smallbiznis/rfacto/internal/seed"
	"github.com/smallbiznis/rfacto/internal/server"
	"github.com/smallbiznis/rfacto/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const (
	jwtSecret  = "e2e-secret"
	adminEmail = "admin@example.com"
)

type testEnv struct {
	app     *fx.App
	db      *gorm.DB
	baseURL string
	httpSrv *httptest.Server
	workDir string
}

var env *testEnv

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	workDir, err := os.MkdirTemp("", "rfacto-e2e-")
	if err != nil {
		fmt.Fprintln(os.Stderr, "create work dir:", err)
		os.Exit(1)
	}
	setDefaultEnv(workDir)

	env, err = startEnv(workDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start test environment:", err)
		_ = os.RemoveAll(workDir)
		os.Exit(1)
	}

	code := m.Run()
	env.shutdown()
	os.Exit(code)
}

func TestE2E_Ping(t *testing.T) {
	resp, body := doJSON(t, http.MethodGet, "/api/ping", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.StatusCode, body)
	}
}

func TestE2E_MissingTokenIsRejected(t *testing.T) {
	resp, body := doJSON(t, http.MethodGet, "/api/claims", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d: %s", resp.StatusCode, body)
	}
}

func TestE2E_BootstrapSeedsTaxesAndAdmin(t *testing.T) {
	var taxes struct {
		Data []struct {
			Province string  `json:"province"`
			Rate     float64 `json:"rate"`
		} `json:"data"`
	}
	getData(t, "/api/taxes", token(t, "someone@example.com"), &taxes)
	if len(taxes.Data) == 0 {
		t.Fatalf("expected default tax rates to be seeded")
	}

	var health struct {
		User struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	getData(t, "/api/health", token(t, adminEmail), &health)
	if health.User.Role != "admin" {
		t.Fatalf("expected bootstrap admin role, got %q", health.User.Role)
	}
}

func TestE2E_ClaimLifecycle(t *testing.T) {
	resetDatabase(t)
	admin := token(t, adminEmail)

	resp, body := doJSON(t, http.MethodPost, "/api/projects", admin, map[string]any{
		"code": "C228", "label": "Hull 228", "taxProvince": "QC",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create project: %d %s", resp.StatusCode, body)
	}

	var created struct {
		Data struct {
			ID        int64   `json:"id"`
			TaxRate   float64 `json:"taxRate"`
			AmountTTC float64 `json:"amountTTC"`
			Status    *string `json:"status"`
		} `json:"data"`
	}
	milestone := map[string]any{"type": "milestone", "step": "5.1", "projectCode": "C228", "amountHT": 200}
	resp, body = doJSON(t, http.MethodPost, "/api/claims", admin, milestone)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create claim: %d %s", resp.StatusCode, body)
	}
	mustDecode(t, body, &created)
	if created.Data.TaxRate != 0.14975 {
		t.Fatalf("expected the project province rate, got %v", created.Data.TaxRate)
	}
	if created.Data.AmountTTC != 229.95 {
		t.Fatalf("expected TTC 229.95, got %v", created.Data.AmountTTC)
	}
	if created.Data.Status == nil || *created.Data.Status != "À facturer" {
		t.Fatalf("expected default status, got %v", created.Data.Status)
	}

	resp, body = doJSON(t, http.MethodPost, "/api/claims", admin, milestone)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected duplicate milestone conflict, got %d %s", resp.StatusCode, body)
	}

	path := fmt.Sprintf("/api/claims/%d", created.Data.ID)
	resp, body = doJSON(t, http.MethodPut, path, admin, map[string]any{"description": "coque"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update claim: %d %s", resp.StatusCode, body)
	}
	var updated struct {
		Data struct {
			Description *string `json:"description"`
			AmountTTC   float64 `json:"amountTTC"`
		} `json:"data"`
	}
	mustDecode(t, body, &updated)
	if updated.Data.Description == nil || *updated.Data.Description != "coque" {
		t.Fatalf("description not updated: %s", body)
	}
	if updated.Data.AmountTTC != 229.95 {
		t.Fatalf("partial update must keep TTC, got %v", updated.Data.AmountTTC)
	}

	resp, body = doJSON(t, http.MethodDelete, path, admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete claim: %d %s", resp.StatusCode, body)
	}
	resp, _ = doJSON(t, http.MethodGet, path, admin, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestE2E_ReaderCannotWrite(t *testing.T) {
	resetDatabase(t)

	resp, body := doJSON(t, http.MethodPost, "/api/claims", token(t, "reader@example.com"), map[string]any{"type": "dcr"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", resp.StatusCode, body)
	}
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	mustDecode(t, body, &payload)
	if payload.Error.Message != "Droits insuffisants pour cette opération." {
		t.Fatalf("unexpected message %q", payload.Error.Message)
	}
}

func TestE2E_BackupRoundTripAndActivity(t *testing.T) {
	resetDatabase(t)
	admin := token(t, adminEmail)

	for _, step := range []string{"1", "2"} {
		resp, body := doJSON(t, http.MethodPost, "/api/claims", admin, map[string]any{
			"type": "dcr", "step": step, "province": "AB", "amountHT": 100,
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("create claim: %d %s", resp.StatusCode, body)
		}
	}

	resp, backup := doJSON(t, http.MethodGet, "/api/export", admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export: %d %s", resp.StatusCode, backup)
	}

	resp, body := doRaw(t, http.MethodPost, "/api/import", admin, backup)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import: %d %s", resp.StatusCode, body)
	}
	var imported struct {
		Imported struct {
			Claims int `json:"claims"`
		} `json:"imported"`
	}
	mustDecode(t, body, &imported)
	if imported.Imported.Claims != 2 {
		t.Fatalf("expected 2 claims imported, got %d", imported.Imported.Claims)
	}

	if n := countRows(t, "claims"); n != 2 {
		t.Fatalf("expected 2 claims after import, got %d", n)
	}

	var activity struct {
		Entries []struct {
			Action     string `json:"action"`
			ActorEmail string `json:"actorEmail"`
		} `json:"entries"`
	}
	getData(t, "/api/activity?action=backup.import", admin, &activity)
	if len(activity.Entries) == 0 {
		t.Fatalf("expected a backup.import activity entry")
	}
	if activity.Entries[0].ActorEmail != adminEmail {
		t.Fatalf("unexpected actor %q", activity.Entries[0].ActorEmail)
	}
}

func startEnv(workDir string) (*testEnv, error) {
	var (
		engine *gin.Engine
		dbConn *gorm.DB
	)

	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
		seed.Module,
		fx.Populate(&engine, &dbConn),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return nil, err
	}

	httpSrv := httptest.NewServer(engine)

	return &testEnv{
		app:     app,
		db:      dbConn,
		baseURL: httpSrv.URL,
		httpSrv: httpSrv,
		workDir: workDir,
	}, nil
}

func (e *testEnv) shutdown() {
	if e == nil {
		return
	}
	if e.httpSrv != nil {
		e.httpSrv.Close()
	}
	if e.app != nil {
		_ = e.app.Stop(context.Background())
	}
	_ = os.RemoveAll(e.workDir)
}

func setDefaultEnv(workDir string) {
	setEnvIfEmpty("ENVIRONMENT", "test")
	setEnvIfEmpty("LOG_LEVEL", "error")
	setEnvIfEmpty("OTEL_ENABLED", "false")
	setEnvIfEmpty("HTTP_ADDR", "127.0.0.1:0")
	setEnvIfEmpty("DATABASE_TYPE", "sqlite")
	setEnvIfEmpty("DATABASE_PATH", filepath.Join(workDir, "rfacto.db"))
	setEnvIfEmpty("STORAGE_DRIVER", "local")
	setEnvIfEmpty("STORAGE_LOCAL_DIR", filepath.Join(workDir, "uploads"))
	setEnvIfEmpty("BACKUP_DIR", filepath.Join(workDir, "backups"))
	setEnvIfEmpty("AUTH_JWT_SECRET", jwtSecret)
	setEnvIfEmpty("BOOTSTRAP_ADMIN_EMAIL", adminEmail)
}

func setEnvIfEmpty(key, value string) {
	if os.Getenv(key) == "" {
		_ = os.Setenv(key, value)
	}
}

// resetDatabase clears claims and projects. The activity log, the tax rates
// and the bootstrap admin survive.
func resetDatabase(t *testing.T) {
	t.Helper()
	if err := env.db.Exec("DELETE FROM claim_files").Error; err != nil {
		t.Fatalf("clear claim files: %v", err)
	}
	if err := env.db.Exec("DELETE FROM claims").Error; err != nil {
		t.Fatalf("clear claims: %v", err)
	}
	if err := env.db.Exec("DELETE FROM projects").Error; err != nil {
		t.Fatalf("clear projects: %v", err)
	}
}

func token(t *testing.T, email string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":                email,
		"preferred_username": email,
		"exp":                time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func countRows(t *testing.T, table string) int64 {
	t.Helper()
	var count int64
	if err := env.db.Table(table).Count(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}

func getData(t *testing.T, path, bearer string, out any) {
	t.Helper()
	resp, body := doJSON(t, http.MethodGet, path, bearer, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: %d %s", path, resp.StatusCode, body)
	}
	mustDecode(t, body, out)
}

func mustDecode(t *testing.T, body []byte, out any) {
	t.Helper()
	if err := json.Unmarshal(body, out); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
}

func doJSON(t *testing.T, method, path, bearer string, payload any) (*http.Response, []byte) {
	t.Helper()
	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	return doRaw(t, method, path, bearer, raw)
}

func doRaw(t *testing.T, method, path, bearer string, raw []byte) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if raw != nil {
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, env.baseURL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if raw != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}
