package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/healme/healme-chat/internal/common"
	"github.com/healme/healme-chat/internal/httpapi/handlers"
	"github.com/healme/healme-chat/internal/httpapi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the view API. gatherer may be nil to skip /metrics.
func NewRouter(h *handlers.Handler, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(h.Log))
	r.Use(middleware.Recovery(h.Log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(h.Cfg.JWTSecret))
	authGroup.GET("/me", h.Me)
	authGroup.GET("/peers", h.ListPeers)

	// Chat view lifecycle (JWT required)
	authGroup.POST("/chat/:peer_id/enter", h.EnterChat)
	authGroup.POST("/chat/:peer_id/leave", h.LeaveChat)
	authGroup.GET("/chat/:peer_id/messages", h.ListMessages)
	authGroup.POST("/chat/:peer_id/messages", h.SendMessage)
	authGroup.POST("/chat/:peer_id/refresh", h.RefreshChat)
	authGroup.PUT("/chat/:peer_id/draft", h.SetDraft)
	authGroup.GET("/chat/:peer_id/echoes", h.ListEchoes)
	return r
}
