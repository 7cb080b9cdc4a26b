package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/avencel/studyhub/internal/adapters/ws"
	"github.com/avencel/studyhub/internal/config"
	"github.com/avencel/studyhub/internal/hub"
)

func SetupRouter(ctx context.Context, cfg *config.Config, h *hub.Hub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"connections": h.Registry.Count(),
		})
	})

	ctrl := ws.NewController(h, cfg.ReadLimit, cfg.PingPeriod)
	api := r.Group("/api")
	api.GET("/ws", func(c *gin.Context) {
		ctrl.HandleSocket(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
