package handlers

import (
	"github.com/healme/healme-chat/internal/chat"
	"github.com/healme/healme-chat/internal/config"
	"go.uber.org/zap"
)

type Handler struct {
	Cfg      config.Config
	Registry *chat.Registry
	// Peers is nil when no counterpart directory is wired.
	Peers chat.Directory
	// Ledger is nil when no database is configured.
	Ledger *chat.Repo
	Log    *zap.Logger
}

func NewHandler(cfg config.Config, registry *chat.Registry, peers chat.Directory, ledger *chat.Repo, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Cfg: cfg, Registry: registry, Peers: peers, Ledger: ledger, Log: log}
}
