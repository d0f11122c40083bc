// Package router wires handlers and middleware into the HTTP API.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/kliiq/kliiq/internal/catalog"
	"github.com/kliiq/kliiq/internal/config"
	"github.com/kliiq/kliiq/internal/database"
	"github.com/kliiq/kliiq/internal/handlers"
	"github.com/kliiq/kliiq/internal/middleware"
	"github.com/kliiq/kliiq/internal/services"
	"github.com/kliiq/kliiq/internal/upgrade"
)

// Deps are the collaborators the API is built from. RateLimiter and Checker
// may be nil.
type Deps struct {
	Config        *config.Config
	DB            *database.DB
	Catalog       *catalog.Catalog
	Verifier      middleware.TokenVerifier
	PackService   *services.PackService
	DeviceService *services.DeviceService
	AuditService  *services.AuditService
	EventService  *services.EventService
	RateLimiter   *middleware.RateLimiter
	Checker       *upgrade.Checker
	Logger        hclog.Logger
}

// New builds the gin engine serving the API.
func New(d Deps) *gin.Engine {
	cfg := d.Config
	logger := d.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	checker := d.Checker
	if checker == nil {
		checker = upgrade.NewChecker("")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger.Named("http")))
	r.Use(middleware.SecurityHeaders())
	if cfg.IsProduction() {
		r.Use(middleware.StrictTransportSecurity(31536000))
	}
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	if d.RateLimiter != nil {
		r.Use(d.RateLimiter.Middleware())
	}
	r.Use(middleware.BodySizeLimit(cfg.Server.MaxBodyBytes))

	healthHandler := handlers.NewHealthHandler(d.DB, d.Catalog, cfg.Database.Path, logger)
	versionHandler := handlers.NewVersionHandler(checker)
	catalogHandler := handlers.NewCatalogHandler(d.Catalog)
	installerHandler := handlers.NewInstallerHandler(d.Catalog, logger)
	packHandler := handlers.NewPackHandler(d.PackService, d.AuditService, logger)
	deviceHandler := handlers.NewDeviceHandler(d.DeviceService, d.AuditService, logger)
	meHandler := handlers.NewMeHandler(d.PackService, d.EventService, logger)
	auditHandler := handlers.NewAuditHandler(d.AuditService, logger)
	eventsHandler := handlers.NewEventsHandler(d.EventService, cfg.Server.CORSOrigins, logger)

	api := r.Group("/api")
	{
		api.GET("/health", healthHandler.Get)
		api.GET("/version", versionHandler.Get)
		api.GET("/version/check", versionHandler.CheckUpdate)

		api.GET("/catalog", catalogHandler.List)
		api.GET("/catalog/categories", catalogHandler.Categories)
		api.GET("/catalog/:id", catalogHandler.Get)

		api.POST("/installer", installerHandler.Generate)

		// WebSocket clients cannot set headers, so the token may come in the query
		api.GET("/events", middleware.AuthRequired(d.Verifier, logger, true), eventsHandler.Stream)

		protected := api.Group("")
		protected.Use(middleware.AuthRequired(d.Verifier, logger, false))
		{
			protected.GET("/me", meHandler.Get)
			protected.GET("/audit-logs", auditHandler.List)

			protected.GET("/devices", deviceHandler.List)
			protected.POST("/devices", deviceHandler.Register)
			protected.GET("/devices/:id", deviceHandler.Get)
			protected.PATCH("/devices/:id", deviceHandler.Update)
			protected.DELETE("/devices/:id", deviceHandler.Delete)

			protected.GET("/packs", packHandler.List)
			protected.POST("/packs", packHandler.Create)
			protected.GET("/packs/:id", packHandler.Get)
			protected.PATCH("/packs/:id", packHandler.Update)
			protected.DELETE("/packs/:id", packHandler.Delete)
			protected.POST("/packs/:id/apps", packHandler.AddApp)
			protected.DELETE("/packs/:id/apps/:app_id", packHandler.RemoveApp)
			protected.GET("/packs/:id/installer", packHandler.Installer)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return r
}
