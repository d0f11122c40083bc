// Package handlers implements the HTTP API.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/kliiq/kliiq/internal/installer"
	"github.com/kliiq/kliiq/internal/middleware"
	"github.com/kliiq/kliiq/internal/models"
	"github.com/kliiq/kliiq/internal/services"
	"github.com/kliiq/kliiq/internal/validation"
)

// statusFor maps service errors to HTTP status codes. Unknown errors map to
// 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrPackNotFound),
		errors.Is(err, services.ErrDeviceNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrPackLimit),
		errors.Is(err, services.ErrDeleteQuota):
		return http.StatusForbidden
	case errors.Is(err, services.ErrTooManyApps):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrDeviceNameTaken),
		errors.Is(err, services.ErrHostRequired):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidPackName),
		errors.Is(err, services.ErrInvalidDeviceName),
		errors.Is(err, services.ErrUnknownApp),
		errors.Is(err, installer.ErrEmptySelection),
		errors.Is(err, installer.ErrInvalidAppID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON error body. Internal errors are logged
// and answered with a generic message.
func respondError(c *gin.Context, logger hclog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// recordAudit writes an audit entry for the authenticated account. Failures
// are logged, never returned to the client.
func recordAudit(c *gin.Context, audit *services.AuditService, logger hclog.Logger, action, resourceType, resourceID string, details map[string]interface{}) {
	if audit == nil {
		return
	}
	account := middleware.GetAccount(c)
	if account == nil {
		return
	}
	if err := audit.LogAction(account, action, resourceType, resourceID, c.ClientIP(), c.Request.UserAgent(), details); err != nil {
		logger.Warn("audit log write failed", "action", action, "resource", resourceType, "error", err)
	}
}

// requireAccount returns the authenticated account or answers 401.
func requireAccount(c *gin.Context) (*models.Account, bool) {
	account := middleware.GetAccount(c)
	if account == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	return account, true
}

// resourceID returns the :id path parameter, answering notFound when it is
// not a server-issued id.
func resourceID(c *gin.Context, notFound error) (string, bool) {
	id := c.Param("id")
	if !validation.IsID(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
		return "", false
	}
	return id, true
}
