package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/kliiq/kliiq/internal/models"
	"github.com/kliiq/kliiq/internal/services"
)

// DeviceHandler serves /api/devices.
type DeviceHandler struct {
	deviceService *services.DeviceService
	auditService  *services.AuditService
	logger        hclog.Logger
}

// NewDeviceHandler creates a new DeviceHandler instance.
func NewDeviceHandler(deviceService *services.DeviceService, auditService *services.AuditService, logger hclog.Logger) *DeviceHandler {
	return &DeviceHandler{
		deviceService: deviceService,
		auditService:  auditService,
		logger:        logger,
	}
}

// List returns the account's devices, host first.
// GET /api/devices
func (h *DeviceHandler) List(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}

	devices, err := h.deviceService.ListDevices(account)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, devices)
}

// Register upserts the calling device.
// POST /api/devices
func (h *DeviceHandler) Register(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}

	var req models.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device, err := h.deviceService.Register(account, &req, c.Request.UserAgent())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	recordAudit(c, h.auditService, h.logger, "register", "device", device.ID, map[string]interface{}{
		"name":    device.Name,
		"is_host": device.IsHost,
	})
	c.JSON(http.StatusOK, device)
}

// Get returns one device.
// GET /api/devices/:id
func (h *DeviceHandler) Get(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}
	id, ok := resourceID(c, services.ErrDeviceNotFound)
	if !ok {
		return
	}

	device, err := h.deviceService.GetDevice(account, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

// Update renames a device and/or makes it the host.
// PATCH /api/devices/:id
func (h *DeviceHandler) Update(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}
	id, ok := resourceID(c, services.ErrDeviceNotFound)
	if !ok {
		return
	}

	var req models.UpdateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device, err := h.deviceService.UpdateDevice(account, id, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	recordAudit(c, h.auditService, h.logger, "update", "device", device.ID, map[string]interface{}{
		"name":    device.Name,
		"is_host": device.IsHost,
	})
	c.JSON(http.StatusOK, device)
}

// Delete removes a device.
// DELETE /api/devices/:id
func (h *DeviceHandler) Delete(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}
	id, ok := resourceID(c, services.ErrDeviceNotFound)
	if !ok {
		return
	}

	if err := h.deviceService.DeleteDevice(account, id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	recordAudit(c, h.auditService, h.logger, "delete", "device", id, nil)
	c.JSON(http.StatusOK, gin.H{"message": "device deleted"})
}
