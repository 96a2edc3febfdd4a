package message_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatcore/internal/domain"
	"chatcore/internal/protocol/codec"
	"chatcore/internal/services/conversation"
	"chatcore/internal/services/message"
	"chatcore/internal/services/servicetest"
)

// tamperTransport rewrites fetched messages before they are decoded.
type tamperTransport struct {
	domain.MessageTransport
	mutate func(*domain.IncomingMessage)
}

func (t tamperTransport) FetchMessages(
	ctx context.Context,
	id domain.ConversationID,
	limit int,
) ([]domain.IncomingMessage, error) {
	msgs, err := t.MessageTransport.FetchMessages(ctx, id, limit)
	for i := range msgs {
		t.mutate(&msgs[i])
	}
	return msgs, err
}

func setup(t *testing.T) (*servicetest.World, *servicetest.Member, *servicetest.Member) {
	t.Helper()
	w := servicetest.NewWorld()
	alice, bob := w.Register(t, "alice"), w.Register(t, "bob")
	_, err := conversation.New(alice.Account, w.Backend, alice.Keys, w.Log).
		Create(context.Background(), "conv-1", "", []domain.UserID{bob.User.ID})
	require.NoError(t, err)
	return w, alice, bob
}

func newService(w *servicetest.World, m *servicetest.Member, transport domain.MessageTransport) *message.Service {
	return message.New(m.Account, m.Devices, m.Keys, transport, w.Log)
}

func TestSendReceive_TextAndReaction(t *testing.T) {
	w, alice, bob := setup(t)
	ctx := context.Background()
	aliceMsgs := newService(w, alice, w.Backend)

	first, err := aliceMsgs.SendText(ctx, "conv-1", 0, "hello bob")
	require.NoError(t, err)
	assert.Zero(t, first.Context.PreviousMessageID)

	bobMsgs := newService(w, bob, w.Backend)
	got, err := bobMsgs.Receive(ctx, "conv-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, alice.User.ID, got[0].SenderID)
	assert.Equal(t, alice.Device.ID, got[0].DeviceID)
	assert.Equal(t, domain.TextMessage("hello bob"), got[0].Message)

	reaction, err := bobMsgs.SendReaction(ctx, "conv-1", first.ID, "+1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, reaction.Context.PreviousMessageID)
	assert.Equal(t, first.ID, reaction.Context.ParentMessageID)

	got, err = aliceMsgs.Receive(ctx, "conv-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.MessageTypeReaction, got[1].Message.Type)
	assert.Equal(t, first.ID, got[1].ParentID)
	assert.Equal(t, bob.User.ID, got[1].SenderID)
}

func TestSend_FreshServiceChainsToNewestMessage(t *testing.T) {
	w, alice, bob := setup(t)
	ctx := context.Background()

	_, err := newService(w, alice, w.Backend).SendText(ctx, "conv-1", 0, "one")
	require.NoError(t, err)
	second, err := newService(w, alice, w.Backend).SendText(ctx, "conv-1", 0, "two")
	require.NoError(t, err)

	// bob's service has never received anything in conv-1.
	reply, err := newService(w, bob, w.Backend).SendText(ctx, "conv-1", 0, "three")
	require.NoError(t, err)
	assert.Equal(t, second.ID, reply.Context.PreviousMessageID)
}

func TestSendReaction_RequiresParent(t *testing.T) {
	w, alice, _ := setup(t)
	_, err := newService(w, alice, w.Backend).SendReaction(context.Background(), "conv-1", 0, "+1")
	require.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestSend_NoKeyForConversation(t *testing.T) {
	w, alice, _ := setup(t)
	_, err := newService(w, alice, w.Backend).SendText(context.Background(), "conv-unknown", 0, "hi")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReceive_DropsTamperedContext(t *testing.T) {
	w, alice, bob := setup(t)
	ctx := context.Background()
	aliceMsgs := newService(w, alice, w.Backend)
	first, err := aliceMsgs.SendText(ctx, "conv-1", 0, "one")
	require.NoError(t, err)
	_, err = aliceMsgs.SendText(ctx, "conv-1", 0, "two")
	require.NoError(t, err)

	transport := tamperTransport{MessageTransport: w.Backend, mutate: func(m *domain.IncomingMessage) {
		if m.ID == first.ID {
			m.Context.ParentMessageID = 42
		}
	}}
	got, err := newService(w, bob, transport).Receive(ctx, "conv-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "two", got[0].Message.Content)
}

func TestReceive_DropsCorruptCiphertext(t *testing.T) {
	w, alice, bob := setup(t)
	ctx := context.Background()
	_, err := newService(w, alice, w.Backend).SendText(ctx, "conv-1", 0, "one")
	require.NoError(t, err)

	transport := tamperTransport{MessageTransport: w.Backend, mutate: func(m *domain.IncomingMessage) {
		m.EncryptedMessage = "AAAA" + m.EncryptedMessage[4:]
	}}
	got, err := newService(w, bob, transport).Receive(ctx, "conv-1", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReceive_DropsImpersonatedDevice(t *testing.T) {
	w, alice, bob := setup(t)
	ctx := context.Background()

	// Bob signs a message but labels it as coming from alice's device.
	keyID, err := bob.Keys.LatestKeyID("conv-1")
	require.NoError(t, err)
	bundle, err := bob.Keys.Key(ctx, keyID)
	require.NoError(t, err)
	forged, err := codec.Encode(codec.NewContext(0, 0, keyID, alice.Device.ID),
		domain.TextMessage("from alice, honest"), bob.Device.Privkey, bundle)
	require.NoError(t, err)
	_, err = w.Backend.SendMessage(ctx, "conv-1", forged)
	require.NoError(t, err)

	got, err := newService(w, alice, w.Backend).Receive(ctx, "conv-1", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReceive_RejectsKeyFromOtherConversation(t *testing.T) {
	w, alice, bob := setup(t)
	ctx := context.Background()
	_, err := conversation.New(alice.Account, w.Backend, alice.Keys, w.Log).
		Create(ctx, "conv-2", "", []domain.UserID{bob.User.ID})
	require.NoError(t, err)
	_, err = newService(w, alice, w.Backend).SendText(ctx, "conv-2", 0, "elsewhere")
	require.NoError(t, err)

	msgs, err := w.Backend.FetchMessages(ctx, "conv-2", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	// Replay conv-2's message into conv-1's stream.
	replayed := newService(w, bob, replayTransport{MessageTransport: w.Backend, msgs: msgs})
	got, err := replayed.Receive(ctx, "conv-1", 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = newService(w, bob, w.Backend).Receive(ctx, "conv-2", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "elsewhere", got[0].Message.Content)
}

// replayTransport always returns msgs.
type replayTransport struct {
	domain.MessageTransport
	msgs []domain.IncomingMessage
}

func (r replayTransport) FetchMessages(context.Context, domain.ConversationID, int) ([]domain.IncomingMessage, error) {
	return r.msgs, nil
}

// chanStreamer serves a fixed channel.
type chanStreamer chan domain.IncomingMessage

func (c chanStreamer) Stream(context.Context, domain.ConversationID) (<-chan domain.IncomingMessage, error) {
	return c, nil
}

func TestFollow_DecodesAndDropsBadMessages(t *testing.T) {
	w, alice, bob := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	good, err := newService(w, alice, w.Backend).SendText(ctx, "conv-1", 0, "live")
	require.NoError(t, err)
	bad := good
	bad.Context.PreviousMessageID = 7

	stream := make(chanStreamer, 2)
	stream <- bad
	stream <- good
	close(stream)

	out, err := newService(w, bob, w.Backend).Follow(ctx, stream, "conv-1")
	require.NoError(t, err)
	var got []message.Received
	for rm := range out {
		got = append(got, rm)
	}
	require.Len(t, got, 1)
	assert.Equal(t, "live", got[0].Message.Content)
	assert.Equal(t, good.ID, got[0].ID)
}
