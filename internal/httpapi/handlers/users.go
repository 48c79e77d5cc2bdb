package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/healme/healme-chat/internal/common"
	"github.com/healme/healme-chat/internal/httpapi/middleware"
)

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func (h *Handler) Me(c *gin.Context) {
	id, ok := middleware.Identity(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	common.OK(c, gin.H{
		"id":        id.ID,
		"user_type": id.Role,
	})
}
