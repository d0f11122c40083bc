package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/kliiq/kliiq/internal/services"
)

// AuditHandler lists the account's audit trail.
type AuditHandler struct {
	auditService *services.AuditService
	logger       hclog.Logger
}

// NewAuditHandler creates a new AuditHandler instance.
func NewAuditHandler(auditService *services.AuditService, logger hclog.Logger) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
		logger:       logger,
	}
}

// List returns the account's audit logs, newest first.
// GET /api/audit-logs?limit=&offset=
func (h *AuditHandler) List(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	logs, err := h.auditService.GetLogs(account.ID, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, logs)
}
