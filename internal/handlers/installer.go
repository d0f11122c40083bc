package handlers

import (
	"fmt"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/kliiq/kliiq/internal/catalog"
	"github.com/kliiq/kliiq/internal/installer"
	"github.com/kliiq/kliiq/internal/models"
)

// MaxInstallerApps bounds the selection of a single installer request.
const MaxInstallerApps = 100

// InstallerHandler generates installers for ad hoc selections.
type InstallerHandler struct {
	catalog *catalog.Catalog
	logger  hclog.Logger
}

// NewInstallerHandler creates a new InstallerHandler instance.
func NewInstallerHandler(cat *catalog.Catalog, logger hclog.Logger) *InstallerHandler {
	return &InstallerHandler{catalog: cat, logger: logger}
}

// Generate renders an installer from a list of apps or catalog ids.
// POST /api/installer
func (h *InstallerHandler) Generate(c *gin.Context) {
	var req models.GenerateInstallerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	apps := req.Apps
	if len(apps) == 0 {
		apps = h.catalog.Resolve(req.AppIDs)
	}
	if len(apps) > MaxInstallerApps {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("at most %d apps per installer", MaxInstallerApps)})
		return
	}

	script, err := installer.Generate(apps)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Debug("installer generated", "apps", len(script.Apps), "filename", script.Filename)
	deliverScript(c, script, req.Format)
}

// deliverScript sends script as a file download, or as JSON when format is
// "json".
func deliverScript(c *gin.Context, script *installer.Script, format string) {
	if format == "json" {
		c.JSON(http.StatusOK, script)
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": script.Filename,
	}))
	c.Data(http.StatusOK, installer.ContentType, []byte(script.Content))
}
