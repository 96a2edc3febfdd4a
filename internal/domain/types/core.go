package types

import "strconv"

// UserID is the numeric identifier the server assigns to a user.
type UserID int64

// String returns the base-10 form used in signed serializations.
func (id UserID) String() string { return strconv.FormatInt(int64(id), 10) }

// DeviceID identifies a device. It equals the fingerprint of the device's
// Ed25519 public key.
type DeviceID string

// String returns the string form of the device identifier.
func (id DeviceID) String() string { return string(id) }

// ConversationID identifies a conversation.
type ConversationID string

// String returns the string form of the conversation identifier.
func (id ConversationID) String() string { return string(id) }

// ConversationKeyID identifies a conversation key. It is derived from the
// key bytes, so equal ids imply equal keys.
type ConversationKeyID string

// String returns the string form of the key identifier.
func (id ConversationKeyID) String() string { return string(id) }

// MessageID is the server-assigned message identifier. Zero means "none".
type MessageID int64
