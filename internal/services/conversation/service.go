package conversation

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"chatcore/internal/domain"
	"chatcore/internal/protocol/permission"
)

// TypeGroup is the conversation type this service creates.
const TypeGroup = "group"

// Remote is the server side of conversation management.
type Remote interface {
	domain.UserDirectory
	domain.ConversationStore
	domain.PermissionStore
}

// Service creates conversations and rotates their keys.
type Service struct {
	account domain.CurrentAccount
	remote  Remote
	keys    domain.KeyCache
	log     logrus.FieldLogger
	now     func() time.Time
}

// New constructs a conversation Service.
func New(acct domain.CurrentAccount, remote Remote, keys domain.KeyCache, log logrus.FieldLogger) *Service {
	return &Service{
		account: acct,
		remote:  remote,
		keys:    keys,
		log:     log.WithField("component", "conversation"),
		now:     time.Now,
	}
}

// Create starts a conversation with participantIDs.
//
// Steps:
//  1. Add the current user to the participants and drop duplicates.
//  2. Fetch every participant; all must be active.
//  3. Make a fresh key and one permission per participant.
//  4. Store the conversation and permissions on the server.
//  5. Add the new key to the local cache.
func (s *Service) Create(
	ctx context.Context,
	id domain.ConversationID,
	title string,
	participantIDs []domain.UserID,
) (domain.Conversation, error) {
	if id == "" {
		return domain.Conversation{}, domain.Malformed("conversation: empty id")
	}
	dev, err := s.account.Device()
	if err != nil {
		return domain.Conversation{}, err
	}
	ids := dedupe(append([]domain.UserID{dev.OwnerID}, participantIDs...))
	owners, err := s.activeUsers(ctx, ids)
	if err != nil {
		return domain.Conversation{}, err
	}

	perms, bundle, err := permission.Make(id, owners, dev, s.now())
	if err != nil {
		return domain.Conversation{}, err
	}
	conv := domain.Conversation{ID: id, Type: TypeGroup, Title: title, ParticipantIDs: ids}
	if err := s.remote.CreateConversation(ctx, conv, perms); err != nil {
		return domain.Conversation{}, err
	}
	if err := s.keys.FillCaches(ctx, perms); err != nil {
		return domain.Conversation{}, err
	}

	s.log.WithFields(logrus.Fields{
		"conversation": id,
		"key":          bundle.ID,
		"participants": len(ids),
	}).Info("created conversation")
	return conv, nil
}

// List returns the current user's conversations.
func (s *Service) List(ctx context.Context) ([]domain.Conversation, error) {
	dev, err := s.account.Device()
	if err != nil {
		return nil, err
	}
	return s.remote.ListConversations(ctx, dev.OwnerID)
}

// RotateKey issues a new key for a conversation the current user takes
// part in. Messages sent afterwards use the new key. Earlier keys stay
// valid for reading.
func (s *Service) RotateKey(ctx context.Context, id domain.ConversationID) (domain.ConversationKeyID, error) {
	conv, err := s.find(ctx, id)
	if err != nil {
		return "", err
	}
	dev, err := s.account.Device()
	if err != nil {
		return "", err
	}
	owners, err := s.activeUsers(ctx, conv.ParticipantIDs)
	if err != nil {
		return "", err
	}
	perms, bundle, err := permission.Make(id, owners, dev, s.now())
	if err != nil {
		return "", err
	}
	if err := s.remote.PublishPermissions(ctx, perms); err != nil {
		return "", err
	}
	if err := s.keys.FillCaches(ctx, perms); err != nil {
		return "", err
	}
	s.log.WithFields(logrus.Fields{"conversation": id, "key": bundle.ID}).Info("rotated conversation key")
	return bundle.ID, nil
}

func (s *Service) find(ctx context.Context, id domain.ConversationID) (domain.Conversation, error) {
	convs, err := s.List(ctx)
	if err != nil {
		return domain.Conversation{}, err
	}
	for _, c := range convs {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Conversation{}, domain.NotFound("conversation %s", id)
}

func (s *Service) activeUsers(ctx context.Context, ids []domain.UserID) ([]domain.User, error) {
	users := make([]domain.User, 0, len(ids))
	for _, uid := range ids {
		u, err := s.remote.FetchUser(ctx, uid)
		if err != nil {
			return nil, err
		}
		if u.State != domain.UserActive {
			return nil, domain.Malformed("conversation: user %d is %s", uid, u.State)
		}
		users = append(users, u)
	}
	return users, nil
}

func dedupe(ids []domain.UserID) []domain.UserID {
	seen := make(map[domain.UserID]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
