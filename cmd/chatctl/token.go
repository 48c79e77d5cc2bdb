package main

import (
	"fmt"
	"time"

	"github.com/healme/healme-chat/internal/auth"
	"github.com/healme/healme-chat/internal/chat"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		userID uint64
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed token for the chatd view API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return fmt.Errorf("--user is required")
			}
			r, err := chat.ParseRole(role)
			if err != nil {
				return err
			}
			tok, err := auth.SignJWT(userID, r, cfg.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&userID, "user", 0, "user id")
	cmd.Flags().StringVar(&role, "role", "patient", "patient|therapist")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
