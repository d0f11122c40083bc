package handlers

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/kliiq/kliiq/internal/catalog"
	"github.com/kliiq/kliiq/internal/database"
	"github.com/kliiq/kliiq/internal/metrics"
	"github.com/kliiq/kliiq/internal/version"
)

// HealthHandler reports service liveness.
type HealthHandler struct {
	db        *database.DB
	catalog   *catalog.Catalog
	logger    hclog.Logger
	startedAt time.Time
	dbPath    string
}

// NewHealthHandler creates a new HealthHandler instance. dbPath selects the
// filesystem reported in the host stats; ":memory:" skips it.
func NewHealthHandler(db *database.DB, cat *catalog.Catalog, dbPath string, logger hclog.Logger) *HealthHandler {
	if dbPath == ":memory:" {
		dbPath = ""
	} else if dbPath != "" {
		dbPath = filepath.Dir(dbPath)
	}
	return &HealthHandler{
		db:        db,
		catalog:   cat,
		logger:    logger,
		startedAt: time.Now(),
		dbPath:    dbPath,
	}
}

// Get returns status, version, uptime and host stats. A database that does
// not answer turns the status into 503.
// GET /api/health
func (h *HealthHandler) Get(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Error("health check: database unreachable", "error", err)
		status, code = "degraded", http.StatusServiceUnavailable
	}

	body := gin.H{
		"status":       status,
		"version":      version.Version,
		"uptime":       int64(time.Since(h.startedAt).Seconds()),
		"catalog_size": h.catalog.Len(),
	}

	if stats, err := metrics.Collect(ctx, h.dbPath); err == nil {
		body["host"] = stats
	}

	c.JSON(code, body)
}
