package commands

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"chatcore/internal/domain"
)

func conversationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversation",
		Aliases: []string{"conv"},
		Short:   "Create and manage group conversations",
	}
	cmd.AddCommand(conversationCreateCmd(), conversationListCmd(), conversationRotateKeyCmd())
	return cmd
}

func conversationCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <title> <user-id>...",
		Short: "Start a conversation with the given users",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			participants, err := parseUserIDs(args[1:])
			if err != nil {
				return err
			}
			conv, err := wire.Conversations.Create(cmd.Context(), domain.ConversationID(uuid.NewString()), args[0], participants)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created conversation %s\n", conv.ID)
			return nil
		},
	}
}

func conversationListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			convs, err := wire.Conversations.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range convs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%v\n", c.ID, c.Title, c.ParticipantIDs)
			}
			return nil
		},
	}
}

func conversationRotateKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-key <conversation-id>",
		Short: "Issue a fresh key for a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wire.Sync(cmd.Context()); err != nil {
				return err
			}
			keyID, err := wire.Conversations.RotateKey(cmd.Context(), domain.ConversationID(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "New key %s\n", keyID)
			return nil
		},
	}
}

func parseUserIDs(args []string) ([]domain.UserID, error) {
	ids := make([]domain.UserID, 0, len(args))
	for _, a := range args {
		n, err := strconv.ParseInt(a, 10, 64)
		if err != nil || n <= 0 {
			return nil, domain.Malformed("invalid user id %q", a)
		}
		ids = append(ids, domain.UserID(n))
	}
	return ids, nil
}
