package api

import (
	"chat-relay/internal/auth"
	"chat-relay/internal/relay"

	"github.com/gin-gonic/gin"
)

// Router wires every HTTP surface of the service.
type Router struct {
	engine      *gin.Engine
	auth        *auth.Handler
	history     *HistoryHandler
	ws          *relay.Handler
	attachments *AttachmentHandler
}

func NewRouter(authHandler *auth.Handler, history *HistoryHandler, ws *relay.Handler, attachments *AttachmentHandler) *Router {
	return &Router{
		engine:      gin.New(),
		auth:        authHandler,
		history:     history,
		ws:          ws,
		attachments: attachments,
	}
}

func (r *Router) SetupRoutes() {
	r.engine.Use(gin.Recovery())

	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.engine.POST("/register", r.auth.Register)
	r.engine.POST("/login", r.auth.Login)
	r.engine.POST("/logout", r.auth.Logout)
	r.engine.GET("/profile", r.auth.Profile)

	r.engine.GET("/people", r.history.People)
	r.engine.GET("/messages/:userId", r.history.Messages)

	r.engine.GET("/ws", r.ws.ServeWS)

	r.engine.GET("/uploads/:name", r.attachments.Serve)
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
