package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/kliiq/kliiq/internal/services"
)

// MeHandler describes the authenticated account.
type MeHandler struct {
	packService  *services.PackService
	eventService *services.EventService
	logger       hclog.Logger
}

// NewMeHandler creates a new MeHandler instance. eventService may be nil.
func NewMeHandler(packService *services.PackService, eventService *services.EventService, logger hclog.Logger) *MeHandler {
	return &MeHandler{packService: packService, eventService: eventService, logger: logger}
}

// Get returns the account with its plan usage and the number of open event
// streams.
// GET /api/me
func (h *MeHandler) Get(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}

	usage, err := h.packService.Usage(account)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	streams := 0
	if h.eventService != nil {
		streams = h.eventService.Subscribers(account.ID)
	}

	c.JSON(http.StatusOK, gin.H{
		"account":       account,
		"usage":         usage,
		"event_streams": streams,
	})
}
