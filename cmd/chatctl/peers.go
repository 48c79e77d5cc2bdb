package main

import (
	"context"
	"fmt"
	"io"

	"github.com/healme/healme-chat/internal/backend"
	"github.com/healme/healme-chat/internal/chat"
	"github.com/spf13/cobra"
)

func newPeersCmd() *cobra.Command {
	var (
		userID uint64
		roleIn string
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "peers",
		Short: "List who the user can chat with",
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := chat.ParseRole(roleIn)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
			defer cancel()

			dir := backend.NewFromConfig(cfg)
			var peers []chat.Peer
			switch {
			case role != chat.RoleTherapist:
				peers, err = dir.ListTherapists(ctx)
			case all:
				peers, err = dir.ListPatients(ctx)
			default:
				if userID == 0 {
					return fmt.Errorf("--user is required for a therapist inbox")
				}
				peers, err = dir.TherapistInbox(ctx, userID)
			}
			if err != nil {
				return err
			}
			printPeers(cmd.OutOrStdout(), peers)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&userID, "user", 0, "id of the signed-in user")
	cmd.Flags().StringVar(&roleIn, "role", "patient", "role of the signed-in user (patient|therapist)")
	cmd.Flags().BoolVar(&all, "all", false, "therapists only: list every patient instead of the inbox")
	return cmd
}

func printPeers(out io.Writer, peers []chat.Peer) {
	if len(peers) == 0 {
		fmt.Fprintln(out, "no one to chat with yet")
		return
	}
	for _, p := range peers {
		line := fmt.Sprintf("%6d  %s", p.ID, p.Name)
		if p.Specialty != "" {
			line += " (" + p.Specialty + ")"
		}
		if p.UnreadCount > 0 {
			line += fmt.Sprintf("  [%d unread]", p.UnreadCount)
		}
		if p.LastMessage != nil {
			line += fmt.Sprintf("  %s: %s", p.LastMessage.Date.Local().Format("Jan 2 15:04"), p.LastMessage.Content)
		}
		fmt.Fprintln(out, line)
	}
}
