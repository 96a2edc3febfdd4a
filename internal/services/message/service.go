package message

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"chatcore/internal/domain"
	"chatcore/internal/metrics"
	"chatcore/internal/protocol/codec"
)

// Received is a decrypted and verified message.
type Received struct {
	ID             domain.MessageID
	ConversationID domain.ConversationID
	SenderID       domain.UserID
	DeviceID       domain.DeviceID
	ParentID       domain.MessageID
	TimeSent       time.Time
	Message        domain.PlainMessage
}

// Service sends and receives messages.
//
// High-level flow:
//   - Send: look up the conversation's latest key, build the context,
//     sign and encrypt, then post via the transport.
//   - Receive: fetch messages, resolve each one's key and sending device,
//     then decrypt and verify. Messages that fail verification or do not
//     parse are dropped and counted.
type Service struct {
	account   domain.CurrentAccount
	devices   domain.DeviceResolver
	keys      domain.KeyCache
	transport domain.MessageTransport
	log       logrus.FieldLogger

	mu sync.Mutex
	// latest is the newest message id seen per conversation.
	latest map[domain.ConversationID]domain.MessageID
}

// New constructs a message Service.
func New(
	acct domain.CurrentAccount,
	devices domain.DeviceResolver,
	keys domain.KeyCache,
	transport domain.MessageTransport,
	log logrus.FieldLogger,
) *Service {
	return &Service{
		account:   acct,
		devices:   devices,
		keys:      keys,
		transport: transport,
		log:       log.WithField("component", "message"),
		latest:    make(map[domain.ConversationID]domain.MessageID),
	}
}

// SendText posts a text message. parent is zero for a top-level message.
func (s *Service) SendText(
	ctx context.Context,
	conversationID domain.ConversationID,
	parent domain.MessageID,
	text string,
	attachments ...domain.Attachment,
) (domain.IncomingMessage, error) {
	return s.send(ctx, conversationID, parent, domain.TextMessage(text, attachments...))
}

// SendReaction posts a reaction to parent.
func (s *Service) SendReaction(
	ctx context.Context,
	conversationID domain.ConversationID,
	parent domain.MessageID,
	reaction string,
) (domain.IncomingMessage, error) {
	if parent == 0 {
		return domain.IncomingMessage{}, domain.Malformed("reaction: missing parent message")
	}
	return s.send(ctx, conversationID, parent, domain.ReactionMessage(reaction))
}

func (s *Service) send(
	ctx context.Context,
	conversationID domain.ConversationID,
	parent domain.MessageID,
	msg domain.PlainMessage,
) (domain.IncomingMessage, error) {
	dev, err := s.account.Device()
	if err != nil {
		return domain.IncomingMessage{}, err
	}
	keyID, err := s.keys.LatestKeyID(conversationID)
	if err != nil {
		return domain.IncomingMessage{}, err
	}
	bundle, err := s.keys.Key(ctx, keyID)
	if err != nil {
		return domain.IncomingMessage{}, err
	}

	previous, err := s.previous(ctx, conversationID)
	if err != nil {
		return domain.IncomingMessage{}, err
	}
	mctx := codec.NewContext(parent, previous, keyID, dev.ID)
	out, err := codec.Encode(mctx, msg, dev.Privkey, bundle)
	if err != nil {
		return domain.IncomingMessage{}, err
	}
	in, err := s.transport.SendMessage(ctx, conversationID, out)
	if err != nil {
		return domain.IncomingMessage{}, err
	}
	s.observe(conversationID, in.ID)
	return in, nil
}

// Receive fetches up to limit of the latest messages in conversationID and
// returns those that decrypt and verify, oldest first.
//
// Messages that fail verification or are malformed are skipped. Any other
// error, such as a missing key or an unreachable server, aborts the call.
func (s *Service) Receive(
	ctx context.Context,
	conversationID domain.ConversationID,
	limit int,
) ([]Received, error) {
	msgs, err := s.transport.FetchMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Received, 0, len(msgs))
	for _, in := range msgs {
		rm, err := s.decode(ctx, conversationID, in)
		if err != nil {
			if !errors.Is(err, domain.ErrVerificationFailed) && !errors.Is(err, domain.ErrMalformedInput) {
				return out, err
			}
			s.dropped(conversationID, in.ID, err)
			continue
		}
		out = append(out, rm)
	}
	if len(msgs) > 0 {
		s.observe(conversationID, msgs[len(msgs)-1].ID)
	}
	return out, nil
}

// Streamer delivers the messages of a conversation as they are posted.
type Streamer interface {
	Stream(ctx context.Context, conversationID domain.ConversationID) (<-chan domain.IncomingMessage, error)
}

// Follow decodes messages from streamer as they arrive. Messages that
// cannot be decoded for any reason are dropped. The returned channel is
// closed when the stream ends.
func (s *Service) Follow(
	ctx context.Context,
	streamer Streamer,
	conversationID domain.ConversationID,
) (<-chan Received, error) {
	in, err := streamer.Stream(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	out := make(chan Received)
	go func() {
		defer close(out)
		for msg := range in {
			rm, err := s.decode(ctx, conversationID, msg)
			if err != nil {
				s.dropped(conversationID, msg.ID, err)
				continue
			}
			s.observe(conversationID, msg.ID)
			select {
			case out <- rm:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *Service) dropped(conversationID domain.ConversationID, id domain.MessageID, err error) {
	metrics.DecodeFailures.WithLabelValues(metrics.Kind(err)).Inc()
	s.log.WithFields(logrus.Fields{
		"conversation": conversationID,
		"message":      id,
	}).WithError(err).Warn("dropping message")
}

func (s *Service) decode(
	ctx context.Context,
	conversationID domain.ConversationID,
	in domain.IncomingMessage,
) (Received, error) {
	keyID := in.Context.ConversationKeyID
	owner, err := s.keys.ConversationID(ctx, keyID)
	if err != nil {
		return Received{}, err
	}
	if owner != conversationID {
		return Received{}, domain.VerificationFailed("message %d: key %s belongs to conversation %s",
			in.ID, keyID, owner)
	}
	bundle, err := s.keys.Key(ctx, keyID)
	if err != nil {
		return Received{}, err
	}
	sender, err := s.devices.Get(ctx, in.Context.DeviceKeyID)
	if err != nil {
		return Received{}, err
	}
	if sender.State == domain.DeviceBlocked && sender.BlockTime != nil && !in.TimeSent.Before(*sender.BlockTime) {
		return Received{}, domain.VerificationFailed("message %d: device %s was blocked at %s",
			in.ID, sender.ID, sender.BlockTime.Format(time.RFC3339))
	}
	msg, err := codec.Decode(in, sender.Pubkey, bundle)
	if err != nil {
		return Received{}, err
	}
	return Received{
		ID:             in.ID,
		ConversationID: conversationID,
		SenderID:       sender.OwnerID,
		DeviceID:       sender.ID,
		ParentID:       in.Context.ParentMessageID,
		TimeSent:       in.TimeSent,
		Message:        msg,
	}, nil
}

// previous returns the newest message id seen in conversationID. A
// conversation not seen yet is looked up on the server.
func (s *Service) previous(ctx context.Context, conversationID domain.ConversationID) (domain.MessageID, error) {
	s.mu.Lock()
	id, ok := s.latest[conversationID]
	s.mu.Unlock()
	if ok {
		return id, nil
	}
	msgs, err := s.transport.FetchMessages(ctx, conversationID, 1)
	if err != nil {
		return 0, err
	}
	if len(msgs) > 0 {
		id = msgs[len(msgs)-1].ID
	}
	s.observe(conversationID, id)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest[conversationID], nil
}

func (s *Service) observe(conversationID domain.ConversationID, id domain.MessageID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.latest[conversationID]; !ok || id > cur {
		s.latest[conversationID] = id
	}
}
