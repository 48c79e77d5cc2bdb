package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/healme/healme-chat/internal/store/redisstore"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var flags conversationFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print view events published by chatd for a conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.RedisAddr == "" {
				return errors.New("watch needs REDIS_ADDR")
			}
			key, _, err := flags.resolve()
			if err != nil {
				return err
			}
			if !key.Valid() {
				return errors.New("watch needs --user and --peer")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rs := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisChannelPrefix, logger)
			defer rs.Close()
			if err := rs.Ping(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "watching %s\n", rs.Channel(key))
			for ev := range rs.Subscribe(ctx, key) {
				fmt.Fprintf(out, "%s %s %d/%d\n", time.Unix(ev.TS, 0).Format(time.TimeOnly), ev.Type, ev.PatientID, ev.TherapistID)
			}
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}
