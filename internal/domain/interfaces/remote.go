package interfaces

import (
	"context"

	domaintypes "chatcore/internal/domain/types"
)

// PermissionStore reads and publishes server permissions.
type PermissionStore interface {
	// FetchPermission returns owner's permission for keyID or an
	// ErrNotFound error.
	FetchPermission(
		ctx context.Context,
		owner domaintypes.UserID,
		keyID domaintypes.ConversationKeyID,
	) (domaintypes.ServerPermission, error)
	ListPermissions(ctx context.Context, owner domaintypes.UserID) ([]domaintypes.ServerPermission, error)
	PublishPermissions(ctx context.Context, perms []domaintypes.ServerPermission) error
}

// DeviceDirectory looks up devices by id. Results are unverified.
type DeviceDirectory interface {
	FetchDevice(ctx context.Context, id domaintypes.DeviceID) (domaintypes.ServerDevice, error)
}

// UserDirectory looks up users by id.
type UserDirectory interface {
	FetchUser(ctx context.Context, id domaintypes.UserID) (domaintypes.User, error)
}

// AccountPublisher publishes account-level changes.
type AccountPublisher interface {
	RegisterUser(ctx context.Context, reg domaintypes.Registration) (domaintypes.User, error)
	PublishDevice(ctx context.Context, device domaintypes.ServerDevice) error
	// PublishRotation replaces the user's encryption keypair and all of the
	// given permissions in one atomic step.
	PublishRotation(ctx context.Context, batch domaintypes.RotationBatch) error
}

// ConversationStore creates and lists conversations.
type ConversationStore interface {
	CreateConversation(
		ctx context.Context,
		conversation domaintypes.Conversation,
		perms []domaintypes.ServerPermission,
	) error
	ListConversations(ctx context.Context, member domaintypes.UserID) ([]domaintypes.Conversation, error)
}

// MessageTransport posts and fetches encrypted messages.
type MessageTransport interface {
	SendMessage(
		ctx context.Context,
		conversationID domaintypes.ConversationID,
		msg domaintypes.OutgoingMessage,
	) (domaintypes.IncomingMessage, error)
	FetchMessages(
		ctx context.Context,
		conversationID domaintypes.ConversationID,
		limit int,
	) ([]domaintypes.IncomingMessage, error)
}

// Backend is everything a relay server persists.
type Backend interface {
	PermissionStore
	DeviceDirectory
	UserDirectory
	AccountPublisher
	ConversationStore
	MessageTransport
}
