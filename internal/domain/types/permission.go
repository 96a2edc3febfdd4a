package types

import (
	"encoding/json"
	"strings"
	"time"
)

// ConversationKeyBundle is a conversation key together with its id.
type ConversationKeyBundle struct {
	ID  ConversationKeyID
	Key SymmetricKey
}

// PlainPermission grants OwnerID access to a conversation key. It exists
// only on the client and is what gets signed.
type PlainPermission struct {
	ConversationID    ConversationID
	ConversationKeyID ConversationKeyID
	ConversationKey   SymmetricKey
	OwnerID           UserID
	CreatorID         UserID
	ValidFrom         string
}

// Serialized returns the canonical byte form covered by the creator's
// signature:
//
//	conversationId|conversationKeyId|base64(key)|ownerId|creatorId|validFrom
func (p PlainPermission) Serialized() []byte {
	return []byte(strings.Join([]string{
		p.ConversationID.String(),
		p.ConversationKeyID.String(),
		string(marshalB64(p.ConversationKey[:])),
		p.OwnerID.String(),
		p.CreatorID.String(),
		p.ValidFrom,
	}, "|"))
}

// Bundle returns the key bundle granted by the permission.
func (p PlainPermission) Bundle() ConversationKeyBundle {
	return ConversationKeyBundle{ID: p.ConversationKeyID, Key: p.ConversationKey}
}

// ServerPermission is the wire form of a permission: the conversation key is
// sealed to the owner and the plain form is signed by the creator's device.
type ServerPermission struct {
	ConversationID    ConversationID    `json:"conversationId"`
	ConversationKeyID ConversationKeyID `json:"conversationKeyId"`
	ConversationKey   []byte            `json:"conversationKey"`
	OwnerID           UserID            `json:"ownerId"`
	CreatorID         UserID            `json:"creatorId"`
	ValidFrom         string            `json:"validFrom"`
	Signature         SignatureBundle   `json:"signature"`
}

// ValidFromTime parses ValidFrom.
func (p ServerPermission) ValidFromTime() (time.Time, error) { return ParseValidFrom(p.ValidFrom) }

// UnmarshalJSON decodes a server permission and rejects missing fields.
func (p *ServerPermission) UnmarshalJSON(b []byte) error {
	type raw ServerPermission
	var r raw
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	switch {
	case r.ConversationID == "":
		return Malformed("permission: missing conversationId")
	case r.ConversationKeyID == "":
		return Malformed("permission: missing conversationKeyId")
	case len(r.ConversationKey) == 0:
		return Malformed("permission: missing conversationKey")
	case r.OwnerID == 0:
		return Malformed("permission: missing ownerId")
	case r.CreatorID == 0:
		return Malformed("permission: missing creatorId")
	case r.Signature.DeviceID == "":
		return Malformed("permission: missing signature")
	}
	if _, err := ParseValidFrom(r.ValidFrom); err != nil {
		return err
	}
	*p = ServerPermission(r)
	return nil
}

// FormatValidFrom renders t the way permissions carry it: RFC 3339, UTC,
// second precision.
func FormatValidFrom(t time.Time) string { return t.UTC().Truncate(time.Second).Format(time.RFC3339) }

// ParseValidFrom parses an RFC 3339 timestamp.
func ParseValidFrom(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, Malformed("validFrom: empty")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, Malformed("validFrom: %v", err)
	}
	return t, nil
}
