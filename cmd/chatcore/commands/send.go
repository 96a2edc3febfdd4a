package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"chatcore/internal/domain"
	"chatcore/internal/services/message"
)

// send <conversation> <text>: encrypt, sign and post a message.
func sendCmd() *cobra.Command {
	var (
		parent   int64
		reaction bool
	)
	cmd := &cobra.Command{
		Use:   "send <conversation-id> <text>",
		Short: "Encrypt and send a message to a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := wire.Sync(ctx); err != nil {
				return err
			}
			conv := domain.ConversationID(args[0])

			var (
				sent domain.IncomingMessage
				err  error
			)
			if reaction {
				sent, err = wire.Messages.SendReaction(ctx, conv, domain.MessageID(parent), args[1])
			} else {
				sent, err = wire.Messages.SendText(ctx, conv, domain.MessageID(parent), args[1])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d\n", sent.ID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&parent, "parent", 0, "id of the message being replied or reacted to")
	cmd.Flags().BoolVar(&reaction, "reaction", false, "send the text as a reaction to --parent")
	return cmd
}

func printReceived(cmd *cobra.Command, m message.Received) {
	prefix := ""
	if m.ParentID != 0 {
		prefix = fmt.Sprintf("(re %d) ", m.ParentID)
	}
	body := m.Message.Content
	if m.Message.Type == domain.MessageTypeReaction {
		body = "reacted " + body
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s user %d: %s%s\n",
		m.ID, m.TimeSent.Format("15:04:05"), m.SenderID, prefix, body)
	for _, a := range m.Message.Attachments {
		fmt.Fprintf(cmd.OutOrStdout(), "    attachment %s (%s, %s)\n", a.Name, a.MimeType, a.ID)
	}
}
