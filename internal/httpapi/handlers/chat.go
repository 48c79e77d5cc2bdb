package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/healme/healme-chat/internal/auth"
	"github.com/healme/healme-chat/internal/chat"
	"github.com/healme/healme-chat/internal/common"
	"github.com/healme/healme-chat/internal/httpapi/middleware"
	"go.uber.org/zap"
)

// conversation resolves the viewer and the :peer_id route param to a conversation.
func conversation(c *gin.Context) (chat.ConversationKey, chat.Role, bool) {
	id, ok := middleware.Identity(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return chat.ConversationKey{}, "", false
	}
	peer, err := strconv.ParseUint(c.Param("peer_id"), 10, 64)
	if err != nil || peer == 0 {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid peer id")
		return chat.ConversationKey{}, "", false
	}
	return auth.ConversationFor(*id, peer), id.Role, true
}

// engine returns the running engine of the view, or writes 404.
func (h *Handler) engine(c *gin.Context) (*chat.Engine, bool) {
	key, role, ok := conversation(c)
	if !ok {
		return nil, false
	}
	e, ok := h.Registry.Get(key, role)
	if !ok {
		common.Fail(c, http.StatusNotFound, 40401, "chat not open")
		return nil, false
	}
	return e, true
}

func (h *Handler) EnterChat(c *gin.Context) {
	key, role, ok := conversation(c)
	if !ok {
		return
	}
	e, err := h.Registry.Enter(c.Request.Context(), key, role)
	if err != nil {
		if errors.Is(err, chat.ErrMissingIdentifiers) {
			common.Fail(c, http.StatusBadRequest, 10005, "missing patient or therapist id")
			return
		}
		h.Log.Error("enter chat failed", zap.Stringer("conversation", key), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, e.Snapshot())
}

func (h *Handler) LeaveChat(c *gin.Context) {
	key, role, ok := conversation(c)
	if !ok {
		return
	}
	left := h.Registry.Leave(key, role)
	common.OK(c, gin.H{"left": left})
}

func (h *Handler) ListMessages(c *gin.Context) {
	e, ok := h.engine(c)
	if !ok {
		return
	}
	common.OK(c, e.Snapshot())
}

// RefreshChat forces a fetch. Fetch errors end up in the snapshot, not the status code.
func (h *Handler) RefreshChat(c *gin.Context) {
	e, ok := h.engine(c)
	if !ok {
		return
	}
	if err := e.Refresh(c.Request.Context()); err != nil && !errors.Is(err, chat.ErrEngineStopped) {
		h.Log.Debug("refresh from view failed", zap.Stringer("conversation", e.Key()), zap.Error(err))
	}
	common.OK(c, e.Snapshot())
}

type draftReq struct {
	Text string `json:"text"`
}

func (h *Handler) SetDraft(c *gin.Context) {
	e, ok := h.engine(c)
	if !ok {
		return
	}
	var req draftReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	e.SetDraft(req.Text)
	common.OK(c, gin.H{"draft": e.Draft()})
}

type sendReq struct {
	// Text falls back to the stored draft when nil.
	Text *string `json:"text"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	e, ok := h.engine(c)
	if !ok {
		return
	}
	var req sendReq
	_ = c.ShouldBindJSON(&req) // allow empty body

	var err error
	if req.Text == nil {
		err = e.SendDraft(c.Request.Context())
	} else {
		err = e.SendMessage(c.Request.Context(), *req.Text)
	}
	if err != nil && !errors.Is(err, chat.ErrEngineStopped) {
		h.Log.Debug("send from view failed", zap.Stringer("conversation", e.Key()), zap.Error(err))
	}
	common.OK(c, e.Snapshot())
}

func (h *Handler) ListEchoes(c *gin.Context) {
	if h.Ledger == nil {
		common.Fail(c, http.StatusNotImplemented, 50101, "echo ledger disabled")
		return
	}
	key, _, ok := conversation(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	recs, err := h.Ledger.ListEchoes(c.Request.Context(), key, limit)
	if err != nil {
		h.Log.Error("list echoes failed", zap.Stringer("conversation", key), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list echoes")
		return
	}
	common.OK(c, gin.H{"echoes": recs})
}
