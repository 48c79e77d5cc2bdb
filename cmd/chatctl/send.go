package main

import (
	"fmt"
	"strings"

	"github.com/healme/healme-chat/internal/backend"
	"github.com/healme/healme-chat/internal/chat"
	"github.com/spf13/cobra"
)

func newSendCmd() *cobra.Command {
	var flags conversationFlags
	cmd := &cobra.Command{
		Use:   "send [text]",
		Short: "Send one message and print the conversation tail",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, role, err := flags.resolve()
			if err != nil {
				return err
			}
			if !key.Valid() {
				return chat.ErrMissingIdentifiers
			}

			e := chat.NewEngine(chat.Options{
				Key:            key,
				Role:           role,
				Backend:        backend.NewFromConfig(cfg),
				RequestTimeout: cfg.RequestTimeout,
				Logger:         logger,
			})
			defer e.Teardown()

			if err := e.SendMessage(cmd.Context(), strings.Join(args, " ")); err != nil {
				return err
			}
			msgs := e.Messages()
			if len(msgs) == 0 {
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatMessage(msgs[len(msgs)-1]))
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}
