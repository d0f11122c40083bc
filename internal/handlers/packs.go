package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/kliiq/kliiq/internal/models"
	"github.com/kliiq/kliiq/internal/services"
)

// PackHandler serves /api/packs.
type PackHandler struct {
	packService  *services.PackService
	auditService *services.AuditService
	logger       hclog.Logger
}

// NewPackHandler creates a new PackHandler instance.
func NewPackHandler(packService *services.PackService, auditService *services.AuditService, logger hclog.Logger) *PackHandler {
	return &PackHandler{
		packService:  packService,
		auditService: auditService,
		logger:       logger,
	}
}

// List returns the account's packs, newest first.
// GET /api/packs
func (h *PackHandler) List(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}

	packs, err := h.packService.ListPacks(account)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, packs)
}

// Get returns one pack.
// GET /api/packs/:id
func (h *PackHandler) Get(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}
	id, ok := resourceID(c, services.ErrPackNotFound)
	if !ok {
		return
	}

	pack, err := h.packService.GetPack(account, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, pack)
}

// Create creates a pack, optionally seeded with one app.
// POST /api/packs
func (h *PackHandler) Create(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}

	var req models.CreatePackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pack, err := h.packService.CreatePack(account, req.Name, req.AppID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	recordAudit(c, h.auditService, h.logger, "create", "pack", pack.ID, map[string]interface{}{
		"name": pack.Name,
	})
	c.JSON(http.StatusCreated, pack)
}

// Update renames a pack and/or replaces its app list.
// PATCH /api/packs/:id
func (h *PackHandler) Update(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}
	id, ok := resourceID(c, services.ErrPackNotFound)
	if !ok {
		return
	}

	var req models.UpdatePackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pack, err := h.packService.UpdatePack(account, id, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	recordAudit(c, h.auditService, h.logger, "update", "pack", pack.ID, map[string]interface{}{
		"name":    pack.Name,
		"app_ids": pack.AppIDs,
	})
	c.JSON(http.StatusOK, pack)
}

// AddApp appends an app to a pack.
// POST /api/packs/:id/apps
func (h *PackHandler) AddApp(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}
	id, ok := resourceID(c, services.ErrPackNotFound)
	if !ok {
		return
	}

	var req models.AddAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pack, err := h.packService.AddApp(account, id, req.AppID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	recordAudit(c, h.auditService, h.logger, "add_app", "pack", pack.ID, map[string]interface{}{
		"app_id": req.AppID,
	})
	c.JSON(http.StatusOK, pack)
}

// RemoveApp drops an app from a pack.
// DELETE /api/packs/:id/apps/:app_id
func (h *PackHandler) RemoveApp(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}
	id, ok := resourceID(c, services.ErrPackNotFound)
	if !ok {
		return
	}
	appID := c.Param("app_id")

	pack, err := h.packService.RemoveApp(account, id, appID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	recordAudit(c, h.auditService, h.logger, "remove_app", "pack", pack.ID, map[string]interface{}{
		"app_id": appID,
	})
	c.JSON(http.StatusOK, pack)
}

// Delete deletes a pack, consuming the plan's deletion quota.
// DELETE /api/packs/:id
func (h *PackHandler) Delete(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}
	id, ok := resourceID(c, services.ErrPackNotFound)
	if !ok {
		return
	}

	if err := h.packService.DeletePack(account, id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	recordAudit(c, h.auditService, h.logger, "delete", "pack", id, nil)
	c.JSON(http.StatusOK, gin.H{"message": "pack deleted"})
}

// Installer renders the pack as a downloadable installer.
// GET /api/packs/:id/installer[?format=json]
func (h *PackHandler) Installer(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}
	id, ok := resourceID(c, services.ErrPackNotFound)
	if !ok {
		return
	}

	script, err := h.packService.Installer(account, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	recordAudit(c, h.auditService, h.logger, "download", "pack", id, map[string]interface{}{
		"apps": len(script.Apps),
	})
	deliverScript(c, script, c.Query("format"))
}
