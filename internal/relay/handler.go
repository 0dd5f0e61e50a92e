package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"chat-relay/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const maxFrameSize = 16 << 20 // inline-encoded attachments are bulky

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, implement proper origin checking
		return true
	},
}

// Handler upgrades HTTP requests into relay connections.
type Handler struct {
	registry *Registry
	router   *Router
	binder   *Binder
	hbCfg    HeartbeatConfig
	logger   *slog.Logger
}

func NewHandler(registry *Registry, router *Router, binder *Binder, hbCfg HeartbeatConfig, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		router:   router,
		binder:   binder,
		hbCfg:    hbCfg,
		logger:   logger,
	}
}

// ServeWS accepts a websocket connection, binds its identity from the
// handshake cookie when possible, and runs its read loop. A rejected or
// absent credential leaves the connection registered but unbound.
func (h *Handler) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", "error", err)
		return
	}

	handle := h.registry.Register(conn)

	identity, err := h.binder.Extract(c.Request)
	switch {
	case err == nil:
		h.registry.Bind(handle, identity)
	case errors.Is(err, ErrNoCredential):
		h.logger.Debug("unauthenticated connection", "handle", handle)
	default:
		h.logger.Warn("handshake credential rejected", "handle", handle, "error", err)
	}

	monitor := NewMonitor(conn, h.hbCfg, func() {
		h.registry.Unregister(handle)
	}, h.logger)
	conn.SetPongHandler(func(string) error {
		monitor.Pong()
		return nil
	})
	go monitor.Run()

	h.readLoop(handle, conn, monitor)
}

// readLoop consumes inbound frames until the transport errors out, then
// tears the connection down. Routing runs inline so envelopes from this
// connection are persisted and forwarded in arrival order.
func (h *Handler) readLoop(handle Handle, conn *websocket.Conn, monitor *Monitor) {
	defer func() {
		monitor.Stop()
		h.registry.Unregister(handle)
		conn.Close()
	}()

	conn.SetReadLimit(maxFrameSize)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket error", "handle", handle, "error", err)
			}
			return
		}

		var frame models.InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.logger.Debug("unparseable frame", "handle", handle, "error", err)
			continue
		}

		h.router.Route(context.Background(), handle, frame)
	}
}
