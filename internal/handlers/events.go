package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"

	"github.com/kliiq/kliiq/internal/services"
)

const (
	eventWriteWait  = 10 * time.Second
	eventPongWait   = 60 * time.Second
	eventPingPeriod = (eventPongWait * 9) / 10
)

// EventsHandler streams the account's change events over WebSocket so other
// sessions can re-fetch what changed.
type EventsHandler struct {
	eventService *services.EventService
	logger       hclog.Logger
	upgrader     websocket.Upgrader
}

// NewEventsHandler creates a new EventsHandler instance. Browser origins must
// be listed in allowedOrigins ("*" allows any); clients that send no Origin
// are accepted.
func NewEventsHandler(eventService *services.EventService, allowedOrigins []string, logger hclog.Logger) *EventsHandler {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		allowAll = allowAll || o == "*"
		allowed[o] = true
	}

	return &EventsHandler{
		eventService: eventService,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowAll || allowed[origin] {
					return true
				}
				u, err := url.Parse(origin)
				return err == nil && u.Host == r.Host
			},
		},
	}
}

// Stream upgrades the connection and forwards events until either side
// closes it.
// GET /api/events
func (h *EventsHandler) Stream(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}

	// subscribe first so nothing published after the handshake is missed
	events := h.eventService.Subscribe(account.ID)
	defer h.eventService.Unsubscribe(account.ID, events)

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = ws.Close() }()

	h.logger.Debug("event stream opened", "user_id", account.ID)

	// The read loop only services control frames and notices the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		ws.SetReadLimit(512)
		_ = ws.SetReadDeadline(time.Now().Add(eventPongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(eventPongWait))
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(eventPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := ws.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
