package commands

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"chatcore/internal/domain"
)

// recv <conversation>: fetch, decrypt and verify a conversation's messages.
func recvCmd() *cobra.Command {
	var (
		limit  int
		follow bool
	)
	cmd := &cobra.Command{
		Use:   "recv <conversation-id>",
		Short: "Fetch and decrypt a conversation's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if err := wire.Sync(ctx); err != nil {
				return err
			}
			conv := domain.ConversationID(args[0])

			msgs, err := wire.Messages.Receive(ctx, conv, limit)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				printReceived(cmd, m)
			}
			if !follow {
				return nil
			}

			live, err := wire.Messages.Follow(ctx, wire.Relay, conv)
			if err != nil {
				return err
			}
			for m := range live {
				printReceived(cmd, m)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of messages to fetch")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep streaming new messages")
	return cmd
}
