package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/umworks/aurora-sync/internal/middleware"
	"github.com/umworks/aurora-sync/internal/service"
	"github.com/umworks/aurora-sync/pkg/config"
	"github.com/umworks/aurora-sync/pkg/logger"
	corsmiddleware "github.com/umworks/aurora-sync/pkg/middleware/cors"
	reqidmiddleware "github.com/umworks/aurora-sync/pkg/middleware/requestid"
)

// Dependencies carries everything the router wires together.
type Dependencies struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *sqlx.DB
	Auth    *service.AuthService
	Imports *service.ImportService
	Find    *service.FindService
	Exports *service.ExportService
	Metrics *service.MetricsService
	// Cache may be nil; rosters are then rendered on every request.
	Cache rosterCache
}

// NewRouter assembles the gin engine with all routes and middleware.
func NewRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if deps.DB != nil {
			if err := deps.DB.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := NewAuthHandler(deps.Auth)
	importHandler := NewImportHandler(deps.Imports, cfg.Imports.MaxFileSizeBytes)
	studentHandler := NewStudentHandler(deps.Find)
	sectionHandler := NewSectionHandler(deps.Exports, deps.Cache, cfg.Imports.CacheTTL, deps.Metrics)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(middleware.JWT(deps.Auth))
	protected.GET("/auth/me", authHandler.Me)

	protected.POST("/imports", importHandler.Create)
	protected.GET("/imports/:id", importHandler.Get)

	protected.GET("/students", studentHandler.List)
	protected.GET("/students/:id", studentHandler.Get)

	protected.GET("/sections", sectionHandler.List)
	protected.GET("/sections/:id/roster", sectionHandler.Roster)

	return r
}
