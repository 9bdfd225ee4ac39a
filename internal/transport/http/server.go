// Package http exposes the admin API and the websocket bridge to the line protocol.
package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/auth"
	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/store"
)

// NewServer builds the HTTP server with the admin API and the websocket bridge.
func NewServer(hub *core.Hub, authService *auth.Service, messages store.MessageStore, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(hub, authService, messages, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter wires routes and middleware onto a gin engine.
func NewRouter(hub *core.Hub, authService *auth.Service, messages store.MessageStore, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, cfg.Session, logger)))

	apiHandlers := NewAPIHandlers(authService, logger)
	chatHandlers := NewChatHandlers(hub, messages, logger)

	api := router.Group("/api")
	{
		api.POST("/register", apiHandlers.Register)
		api.POST("/login", apiHandlers.Login)

		protected := api.Group("")
		protected.Use(AuthMiddleware(authService, logger))
		{
			protected.GET("/online", chatHandlers.Online)
			protected.GET("/stats", chatHandlers.Stats)
			protected.GET("/messages", chatHandlers.Messages)
			protected.POST("/announce", chatHandlers.Announce)
		}
	}

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
