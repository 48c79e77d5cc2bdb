package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/healme/healme-chat/internal/backend"
	"github.com/healme/healme-chat/internal/chat"
	"github.com/spf13/cobra"
)

func newTailCmd() *cobra.Command {
	var flags conversationFlags
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Poll a conversation and print new messages until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, role, err := flags.resolve()
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout())
			e := chat.NewEngine(chat.Options{
				Key:            key,
				Role:           role,
				Backend:        backend.NewFromConfig(cfg),
				PollInterval:   cfg.PollInterval,
				RequestTimeout: cfg.RequestTimeout,
				Viewport:       p,
				Logger:         logger,
			})
			p.engine = e

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := e.Start(ctx); err != nil {
				return err
			}
			defer e.Teardown()

			<-ctx.Done()
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}
