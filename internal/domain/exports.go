package domain

import (
	interfaces "chatcore/internal/domain/interfaces"
	types "chatcore/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	UserID                = types.UserID
	DeviceID              = types.DeviceID
	ConversationID        = types.ConversationID
	ConversationKeyID     = types.ConversationKeyID
	MessageID             = types.MessageID
	X25519Public          = types.X25519Public
	X25519Private         = types.X25519Private
	Ed25519Public         = types.Ed25519Public
	Ed25519Private        = types.Ed25519Private
	Ed25519Signature      = types.Ed25519Signature
	SymmetricKey          = types.SymmetricKey
	MasterKey             = types.MasterKey
	EncryptionKeypair     = types.EncryptionKeypair
	SigningKeypair        = types.SigningKeypair
	SignatureBundle       = types.SignatureBundle
	DeviceState           = types.DeviceState
	LocalDevice           = types.LocalDevice
	ServerDevice          = types.ServerDevice
	ConversationKeyBundle = types.ConversationKeyBundle
	PlainPermission       = types.PlainPermission
	ServerPermission      = types.ServerPermission
	Context               = types.Context
	OutgoingMessage       = types.OutgoingMessage
	IncomingMessage       = types.IncomingMessage
	PlainMessage          = types.PlainMessage
	Encryption            = types.Encryption
	Attachment            = types.Attachment
	Thumbnail             = types.Thumbnail
	UserState             = types.UserState
	User                  = types.User
	Registration          = types.Registration
	RotationBatch         = types.RotationBatch
	Conversation          = types.Conversation
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	LocalStorage      = interfaces.LocalStorage
	PermissionStore   = interfaces.PermissionStore
	DeviceDirectory   = interfaces.DeviceDirectory
	UserDirectory     = interfaces.UserDirectory
	AccountPublisher  = interfaces.AccountPublisher
	ConversationStore = interfaces.ConversationStore
	MessageTransport  = interfaces.MessageTransport
	Backend           = interfaces.Backend
	PasswordHardener  = interfaces.PasswordHardener
	CurrentAccount    = interfaces.CurrentAccount
	DeviceResolver    = interfaces.DeviceResolver
	KeyCache          = interfaces.KeyCache
)

// Constants re-exported from the types subpackage.
const (
	DeviceActive  = types.DeviceActive
	DeviceBlocked = types.DeviceBlocked

	UserPending = types.UserPending
	UserActive  = types.UserActive
	UserBlocked = types.UserBlocked

	MessageTypeText     = types.MessageTypeText
	MessageTypeReaction = types.MessageTypeReaction

	AlgorithmChaCha20Poly1305Nonce12Prefixed = types.AlgorithmChaCha20Poly1305Nonce12Prefixed
)

// Error kinds re-exported from the types subpackage.
var (
	ErrMalformedInput     = types.ErrMalformedInput
	ErrVerificationFailed = types.ErrVerificationFailed
	ErrNotFound           = types.ErrNotFound
	ErrConfiguration      = types.ErrConfiguration
)

// Helpers re-exported from the types subpackage.
var (
	Malformed            = types.Malformed
	VerificationFailed   = types.VerificationFailed
	NotFound             = types.NotFound
	Misconfigured        = types.Misconfigured
	IsKnownKind          = types.IsKnownKind
	DecodeJSON           = types.DecodeJSON
	ParseSignatureBundle = types.ParseSignatureBundle
	FormatValidFrom      = types.FormatValidFrom
	ParseValidFrom       = types.ParseValidFrom
	TextMessage          = types.TextMessage
	ReactionMessage      = types.ReactionMessage
)
