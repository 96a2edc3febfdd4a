package interfaces

import (
	"context"

	domaintypes "chatcore/internal/domain/types"
)

// PasswordHardener turns a password into a master key.
type PasswordHardener interface {
	Harden(ctx context.Context, password string) (domaintypes.MasterKey, error)
}

// CurrentAccount exposes the signed-in device and the user's current
// encryption keypair.
type CurrentAccount interface {
	Device() (domaintypes.LocalDevice, error)
	EncryptionKeypair() (domaintypes.EncryptionKeypair, error)
}

// DeviceResolver returns devices whose fingerprint and id/owner signature
// have been verified.
type DeviceResolver interface {
	Get(ctx context.Context, id domaintypes.DeviceID) (domaintypes.ServerDevice, error)
}

// KeyCache resolves conversation keys and the latest key per conversation.
type KeyCache interface {
	FillCaches(ctx context.Context, perms []domaintypes.ServerPermission) error
	LatestKeyID(conversationID domaintypes.ConversationID) (domaintypes.ConversationKeyID, error)
	Key(ctx context.Context, id domaintypes.ConversationKeyID) (domaintypes.ConversationKeyBundle, error)
	ConversationID(ctx context.Context, id domaintypes.ConversationKeyID) (domaintypes.ConversationID, error)
	Clear()
}
