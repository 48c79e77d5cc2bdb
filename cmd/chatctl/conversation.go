package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/healme/healme-chat/internal/auth"
	"github.com/healme/healme-chat/internal/chat"
	"github.com/spf13/cobra"
)

// conversationFlags identify the viewer and the peer of the conversation.
type conversationFlags struct {
	userID uint64
	peerID uint64
	role   string
}

func (f *conversationFlags) bind(cmd *cobra.Command) {
	cmd.Flags().Uint64Var(&f.userID, "user", 0, "id of the signed-in user")
	cmd.Flags().Uint64Var(&f.peerID, "peer", 0, "id of the other side of the conversation")
	cmd.Flags().StringVar(&f.role, "role", "patient", "role of the signed-in user (patient|therapist)")
}

func (f *conversationFlags) resolve() (chat.ConversationKey, chat.Role, error) {
	role, err := chat.ParseRole(f.role)
	if err != nil {
		return chat.ConversationKey{}, "", err
	}
	idp := auth.Static{}
	if f.userID != 0 {
		idp.User = &auth.Identity{ID: f.userID, Role: role}
	}
	key, _ := auth.ConversationOf(idp, f.peerID)
	return key, role, nil
}

// printer writes every message it has not printed yet each time the engine
// asks the view to scroll.
type printer struct {
	out    io.Writer
	engine *chat.Engine

	mu       sync.Mutex
	seen     map[string]bool
	degraded bool
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out, seen: make(map[string]bool)}
}

func (p *printer) ScrollToLatest(_ context.Context, _ chat.ConversationKey) {
	if p.engine == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if d := p.engine.Degraded(); d != p.degraded {
		p.degraded = d
		if d {
			fmt.Fprintln(p.out, "-- backend unreachable, showing offline conversation --")
		} else {
			fmt.Fprintln(p.out, "-- back online --")
		}
	}
	for _, m := range p.engine.Messages() {
		k := messageKey(m)
		if p.seen[k] {
			continue
		}
		p.seen[k] = true
		fmt.Fprintln(p.out, formatMessage(m))
	}
}

func messageKey(m chat.Message) string {
	return fmt.Sprintf("%d/%t/%s", m.ID, m.Pending, m.Content)
}

func formatMessage(m chat.Message) string {
	flag := ""
	if m.Pending {
		flag = " (not sent)"
	}
	return fmt.Sprintf("[%s] %s: %s%s", m.Date.Local().Format(time.Kitchen), m.SenderRole, m.Content, flag)
}
