package codec

import (
	"encoding/json"

	"chatcore/internal/crypto"
	"chatcore/internal/domain"
)

// ContextVersion is the context version this package emits.
const ContextVersion = 1

type payload struct {
	Context      domain.Context      `json:"context"`
	PlainMessage domain.PlainMessage `json:"plainMessage"`
}

type rawPayload struct {
	Context      *domain.Context      `json:"context"`
	PlainMessage *domain.PlainMessage `json:"plainMessage"`
}

// NewContext returns a context at the current version.
func NewContext(
	parent, previous domain.MessageID,
	keyID domain.ConversationKeyID,
	deviceID domain.DeviceID,
) domain.Context {
	return domain.Context{
		Version:           ContextVersion,
		ParentMessageID:   parent,
		PreviousMessageID: previous,
		ConversationKeyID: keyID,
		DeviceKeyID:       deviceID,
	}
}

// Encode signs and encrypts msg for the conversation key in bundle.
func Encode(
	ctx domain.Context,
	msg domain.PlainMessage,
	senderPriv domain.Ed25519Private,
	bundle domain.ConversationKeyBundle,
) (domain.OutgoingMessage, error) {
	if ctx.ConversationKeyID != bundle.ID {
		return domain.OutgoingMessage{}, domain.Malformed("encode: context key %s does not match bundle %s",
			ctx.ConversationKeyID, bundle.ID)
	}
	if msg.Attachments == nil {
		msg.Attachments = []domain.Attachment{}
	}
	body, err := json.Marshal(payload{Context: ctx, PlainMessage: msg})
	if err != nil {
		return domain.OutgoingMessage{}, domain.Malformed("encode: %v", err)
	}
	env, err := crypto.EncryptWithSymmetricKey(crypto.SignAttached(senderPriv, body), bundle.Key)
	if err != nil {
		return domain.OutgoingMessage{}, err
	}
	encoded := crypto.B64(env)
	return domain.OutgoingMessage{Context: ctx, EncryptedMessage: &encoded}, nil
}

// Decode decrypts in, verifies the sender's signature and checks that the
// signed context matches the delivered one.
func Decode(
	in domain.IncomingMessage,
	senderPub domain.Ed25519Public,
	bundle domain.ConversationKeyBundle,
) (domain.PlainMessage, error) {
	env, err := crypto.DecodeB64(in.EncryptedMessage)
	if err != nil {
		return domain.PlainMessage{}, err
	}
	signed, err := crypto.DecryptWithSymmetricKey(env, bundle.Key)
	if err != nil {
		return domain.PlainMessage{}, err
	}
	body, err := crypto.OpenAttached(senderPub, signed)
	if err != nil {
		return domain.PlainMessage{}, err
	}

	var p rawPayload
	if err := domain.DecodeJSON(body, &p); err != nil {
		return domain.PlainMessage{}, err
	}
	if p.Context == nil || p.PlainMessage == nil {
		return domain.PlainMessage{}, domain.Malformed("decode: payload missing context or plainMessage")
	}
	if !p.Context.Equal(in.Context) {
		return domain.PlainMessage{}, domain.VerificationFailed("decode: message %d context does not match signed context",
			in.ID)
	}
	return *p.PlainMessage, nil
}
