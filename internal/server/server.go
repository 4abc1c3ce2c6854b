package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/rfacto/internal/activity"
	activitydomain "github.com/smallbiznis/rfacto/internal/activity/domain"
	"github.com/smallbiznis/rfacto/internal/auth"
	authdomain "github.com/smallbiznis/rfacto/internal/auth/domain"
	"github.com/smallbiznis/rfacto/internal/authorization"
	"github.com/smallbiznis/rfacto/internal/backup"
	backupdomain "github.com/smallbiznis/rfacto/internal/backup/domain"
	"github.com/smallbiznis/rfacto/internal/claim"
	claimdomain "github.com/smallbiznis/rfacto/internal/claim/domain"
	"github.com/smallbiznis/rfacto/internal/claimfile"
	filedomain "github.com/smallbiznis/rfacto/internal/claimfile/domain"
	"github.com/smallbiznis/rfacto/internal/config"
	"github.com/smallbiznis/rfacto/internal/export"
	"github.com/smallbiznis/rfacto/internal/importer"
	"github.com/smallbiznis/rfacto/internal/observability"
	obsmiddleware "github.com/smallbiznis/rfacto/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/rfacto/internal/observability/metrics"
	obstracing "github.com/smallbiznis/rfacto/internal/observability/tracing"
	"github.com/smallbiznis/rfacto/internal/project"
	projectdomain "github.com/smallbiznis/rfacto/internal/project/domain"
	"github.com/smallbiznis/rfacto/internal/ratelimit"
	"github.com/smallbiznis/rfacto/internal/settings"
	settingsdomain "github.com/smallbiznis/rfacto/internal/settings/domain"
	"github.com/smallbiznis/rfacto/internal/storage"
	"github.com/smallbiznis/rfacto/internal/tax"
	taxdomain "github.com/smallbiznis/rfacto/internal/tax/domain"
	"github.com/smallbiznis/rfacto/internal/teammember"
	memberdomain "github.com/smallbiznis/rfacto/internal/teammember/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	activity.Module,
	auth.Module,
	ratelimit.Module,
	storage.Module,
	project.Module,
	tax.Module,
	settings.Module,
	claim.Module,
	claimfile.Module,
	teammember.Module,
	backup.Module,
	export.Module,
	importer.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, runtime *config.RuntimeConfigHolder) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(CORS(runtime))
	r.Use(RequestMeta())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, runtime *config.RuntimeConfigHolder) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics, runtime)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// paymentClaimsImporter loads payment-claim CSV rows into the settings.
type paymentClaimsImporter interface {
	Import(ctx context.Context, r io.Reader, replace bool) (importer.Result, error)
}

type Server struct {
	engine  *gin.Engine
	cfg     config.Config
	runtime *config.RuntimeConfigHolder

	authSvc       authdomain.Service
	authzSvc      authorization.Service
	activitySvc   activitydomain.Service
	claimSvc      claimdomain.Service
	fileSvc       filedomain.Service
	projectSvc    projectdomain.Service
	taxSvc        taxdomain.Service
	settingsSvc   settingsdomain.Service
	memberSvc     memberdomain.Service
	backupSvc     backupdomain.Service
	exporter      export.Exporter
	paymentClaims paymentClaimsImporter
	uploadLimiter *ratelimit.UploadLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Runtime       *config.RuntimeConfigHolder `optional:"true"`
	AuthSvc       authdomain.Service
	AuthzSvc      authorization.Service
	ActivitySvc   activitydomain.Service
	ClaimSvc      claimdomain.Service
	FileSvc       filedomain.Service
	ProjectSvc    projectdomain.Service
	TaxSvc        taxdomain.Service
	SettingsSvc   settingsdomain.Service
	MemberSvc     memberdomain.Service
	BackupSvc     backupdomain.Service
	Exporter      export.Exporter
	PaymentClaims *importer.PaymentClaims
	UploadLimiter *ratelimit.UploadLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		runtime:       p.Runtime,
		authSvc:       p.AuthSvc,
		authzSvc:      p.AuthzSvc,
		activitySvc:   p.ActivitySvc,
		claimSvc:      p.ClaimSvc,
		fileSvc:       p.FileSvc,
		projectSvc:    p.ProjectSvc,
		taxSvc:        p.TaxSvc,
		settingsSvc:   p.SettingsSvc,
		memberSvc:     p.MemberSvc,
		backupSvc:     p.BackupSvc,
		exporter:      p.Exporter,
		uploadLimiter: p.UploadLimiter,
		obsMetrics:    p.ObsMetrics,
	}
	if p.PaymentClaims != nil {
		svc.paymentClaims = p.PaymentClaims
	}

	svc.registerUploadRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerUploadRoutes serves files kept by the local store. S3 objects are
// fetched from the bucket URL directly.
func (s *Server) registerUploadRoutes() {
	if s.cfg.Storage.Driver != config.StorageDriverLocal {
		return
	}
	prefix := s.cfg.Storage.PublicBaseURL
	if !strings.HasPrefix(prefix, "/") {
		return
	}
	s.engine.Static(prefix, s.cfg.Storage.LocalDir)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.Authenticate())

	api.GET("/ping", s.Ping)
	api.GET("/health", s.Health)

	lecture := s.RequireMinRole(authorization.RoleLecture)
	user := s.RequireMinRole(authorization.RoleUser)
	admin := s.RequireMinRole(authorization.RoleAdmin)

	api.GET("/settings", lecture, s.GetSettings)
	api.PUT("/settings", user, s.UpdateSettings)
	api.GET("/settings/payment-claims", lecture, s.ListPaymentClaimRows)
	api.POST("/settings/payment-claims/import", user, s.ImportPaymentClaims)

	api.GET("/projects", lecture, s.ListProjects)
	api.POST("/projects", admin, s.CreateProject)
	api.PUT("/projects/:id", user, s.UpdateProject)
	api.DELETE("/projects/:id", admin, s.DeleteProject)

	api.GET("/taxes", lecture, s.ListTaxes)
	api.POST("/taxes", admin, s.CreateTax)
	api.POST("/taxes/seed", admin, s.SeedTaxes)
	api.PUT("/taxes/:id", user, s.UpdateTax)
	api.DELETE("/taxes/:id", admin, s.DeleteTax)

	api.GET("/team-members", admin, s.ListTeamMembers)
	api.POST("/team-members", admin, s.CreateTeamMember)
	api.PUT("/team-members/:id", admin, s.UpdateTeamMember)
	api.DELETE("/team-members/:id", admin, s.DeleteTeamMember)

	api.GET("/claims", lecture, s.ListClaims)
	api.GET("/claims/dcr-duplicates", lecture, s.ListDCRDuplicates)
	api.GET("/claims/:id", lecture, s.GetClaim)
	api.POST("/claims", user, s.CreateClaim)
	api.PUT("/claims/:id", user, s.UpdateClaim)
	api.DELETE("/claims/:id", user, s.DeleteClaim)

	api.GET("/claims/:id/files", lecture, s.ListClaimFiles)
	api.POST("/claims/:id/files", user, s.UploadClaimFile)
	api.DELETE("/claims/:id/files/:fileId", user, s.DeleteClaimFile)

	api.POST("/exports/audit", lecture, s.ExportAudit)
	api.GET("/exports/payment-claim.pdf", lecture, s.ExportPaymentClaimPDF)

	api.GET("/export", admin, s.ExportBackup)
	api.POST("/import", admin, s.ImportBackup)
	api.POST("/admin/reset-all", admin, s.ResetAll)
	api.POST("/admin/snapshot", admin, s.Snapshot)
	api.GET("/activity", admin, s.ListActivity)
}
