package types

import (
	"encoding/json"
	"time"
)

// Context is the metadata that travels in the clear next to an encrypted
// message. A copy is also embedded in the signed payload.
type Context struct {
	Version           int               `json:"version"`
	ParentMessageID   MessageID         `json:"parentMessageId"`
	PreviousMessageID MessageID         `json:"previousMessageId"`
	ConversationKeyID ConversationKeyID `json:"conversationKeyId"`
	DeviceKeyID       DeviceID          `json:"deviceKeyId"`
}

// Equal reports whether all five fields match.
func (c Context) Equal(o Context) bool { return c == o }

// UnmarshalJSON decodes a context and rejects missing identifiers.
func (c *Context) UnmarshalJSON(b []byte) error {
	type raw Context
	var r raw
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	switch {
	case r.Version == 0:
		return Malformed("context: missing version")
	case r.ConversationKeyID == "":
		return Malformed("context: missing conversationKeyId")
	case r.DeviceKeyID == "":
		return Malformed("context: missing deviceKeyId")
	}
	*c = Context(r)
	return nil
}

// OutgoingMessage is a message before the server assigns an id and time.
type OutgoingMessage struct {
	Context          Context `json:"context"`
	EncryptedMessage *string `json:"encryptedMessage"`
}

// IncomingMessage is a message as delivered by the server.
type IncomingMessage struct {
	Context          Context   `json:"context"`
	EncryptedMessage string    `json:"encryptedMessage"`
	ID               MessageID `json:"id"`
	TimeSent         time.Time `json:"timeSent"`
}

// Message types.
const (
	MessageTypeText     = "text"
	MessageTypeReaction = "reaction"
)

// PlainMessage is the decrypted message body.
type PlainMessage struct {
	Type        string       `json:"type"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
}

// TextMessage returns a text message with the given attachments.
func TextMessage(content string, attachments ...Attachment) PlainMessage {
	if attachments == nil {
		attachments = []Attachment{}
	}
	return PlainMessage{Type: MessageTypeText, Content: content, Attachments: attachments}
}

// ReactionMessage returns a reaction message.
func ReactionMessage(content string) PlainMessage {
	return PlainMessage{Type: MessageTypeReaction, Content: content, Attachments: []Attachment{}}
}

// UnmarshalJSON decodes a plain message and rejects unknown types.
func (m *PlainMessage) UnmarshalJSON(b []byte) error {
	type raw PlainMessage
	var r raw
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	if r.Type != MessageTypeText && r.Type != MessageTypeReaction {
		return Malformed("plain message: unknown type %q", r.Type)
	}
	if r.Attachments == nil {
		r.Attachments = []Attachment{}
	}
	*m = PlainMessage(r)
	return nil
}

// AlgorithmChaCha20Poly1305Nonce12Prefixed names the nonce-prefixed
// ChaCha20-Poly1305 IETF envelope. It is the only supported blob algorithm.
const AlgorithmChaCha20Poly1305Nonce12Prefixed = "chacha20poly1305-ietf-nonce12prefixed"

// Encryption describes how an attachment blob is encrypted.
type Encryption struct {
	Algorithm string       `json:"algorithm"`
	Key       SymmetricKey `json:"key"`
}

// UnmarshalJSON decodes the parameters and rejects unsupported algorithms.
func (e *Encryption) UnmarshalJSON(b []byte) error {
	type raw Encryption
	var r raw
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	if r.Algorithm != AlgorithmChaCha20Poly1305Nonce12Prefixed {
		return Misconfigured("unsupported encryption algorithm %q", r.Algorithm)
	}
	*e = Encryption(r)
	return nil
}

// Attachment references an encrypted blob stored out of band.
type Attachment struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	MimeType   string     `json:"mimeType"`
	Encryption Encryption `json:"encryption"`
	Thumbnail  *Thumbnail `json:"thumbnail"`
}

// Thumbnail is a preview image for an attachment.
type Thumbnail struct {
	ID         string     `json:"id"`
	MimeType   string     `json:"mimeType"`
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	Encryption Encryption `json:"encryption"`
}
