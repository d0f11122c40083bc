package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kliiq/kliiq/internal/upgrade"
	"github.com/kliiq/kliiq/internal/version"
)

// VersionHandler reports the running build and available updates.
type VersionHandler struct {
	checker *upgrade.Checker
}

// NewVersionHandler creates a new VersionHandler instance.
func NewVersionHandler(checker *upgrade.Checker) *VersionHandler {
	return &VersionHandler{checker: checker}
}

// Get returns build information.
// GET /api/version
func (h *VersionHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, version.Info())
}

// CheckUpdate checks if a new version is available
// GET /api/version/check
func (h *VersionHandler) CheckUpdate(c *gin.Context) {
	release, err := h.checker.Latest(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"current":          version.Version,
			"latest":           "",
			"update_available": false,
			"error":            "update check failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"current":          version.Version,
		"latest":           release.TagName,
		"update_available": upgrade.NeedsUpgrade(version.Version, release.TagName),
		"release_name":     release.Name,
		"release_url":      release.HTMLURL,
	})
}
