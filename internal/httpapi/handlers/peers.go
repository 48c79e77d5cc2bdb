package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/healme/healme-chat/internal/chat"
	"github.com/healme/healme-chat/internal/common"
	"github.com/healme/healme-chat/internal/httpapi/middleware"
	"go.uber.org/zap"
)

// ListPeers lists who the viewer can open a chat with. Patients get the
// therapist directory. Therapists get their inbox, or every patient with ?scope=all.
func (h *Handler) ListPeers(c *gin.Context) {
	if h.Peers == nil {
		common.Fail(c, http.StatusNotImplemented, 50102, "peer directory disabled")
		return
	}
	id, ok := middleware.Identity(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var (
		peers []chat.Peer
		err   error
		scope = "therapists"
	)
	ctx := c.Request.Context()
	switch {
	case id.Role != chat.RoleTherapist:
		peers, err = h.Peers.ListTherapists(ctx)
	case c.Query("scope") == "all":
		scope = "patients"
		peers, err = h.Peers.ListPatients(ctx)
	default:
		scope = "inbox"
		peers, err = h.Peers.TherapistInbox(ctx, id.ID)
	}
	if err != nil {
		h.Log.Warn("list peers failed", zap.String("scope", scope), zap.Uint64("user_id", id.ID), zap.Error(err))
		common.Fail(c, http.StatusBadGateway, 50201, "backend unavailable")
		return
	}
	if peers == nil {
		peers = []chat.Peer{}
	}
	common.OK(c, gin.H{"scope": scope, "peers": peers})
}
