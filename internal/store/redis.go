package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"chatcore/internal/domain"
)

const (
	redisUserSeq    = "chatcore:user:seq"
	redisMessageSeq = "chatcore:message:seq"
)

func redisUserKey(id domain.UserID) string { return fmt.Sprintf("chatcore:user:%d", id) }
func redisDeviceKey(id domain.DeviceID) string { return "chatcore:device:" + id.String() }
func redisPermSetKey(owner domain.UserID) string { return fmt.Sprintf("chatcore:perms:%d", owner) }
func redisMemberKey(id domain.UserID) string { return fmt.Sprintf("chatcore:member:%d", id) }

func redisPermKey(owner domain.UserID, keyID domain.ConversationKeyID) string {
	return fmt.Sprintf("chatcore:perm:%d:%s", owner, keyID)
}

func redisKeyConvKey(keyID domain.ConversationKeyID) string {
	return "chatcore:keyconv:" + keyID.String()
}

func redisConvKey(id domain.ConversationID) string { return "chatcore:conv:" + id.String() }
func redisMessagesKey(id domain.ConversationID) string { return "chatcore:msgs:" + id.String() }

// Redis is a Backend stored in Redis.
type Redis struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedis returns a Redis backend using client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, now: time.Now}
}

// Close closes the underlying client.
func (r *Redis) Close() error { return r.client.Close() }

// FetchPermission returns owner's permission for keyID.
func (r *Redis) FetchPermission(
	ctx context.Context,
	owner domain.UserID,
	keyID domain.ConversationKeyID,
) (domain.ServerPermission, error) {
	var p domain.ServerPermission
	if err := r.getJSON(ctx, redisPermKey(owner, keyID), &p); err != nil {
		return domain.ServerPermission{}, notFoundAs(err, "permission %s for user %d", keyID, owner)
	}
	return p, nil
}

// ListPermissions returns all of owner's permissions ordered by validFrom.
func (r *Redis) ListPermissions(ctx context.Context, owner domain.UserID) ([]domain.ServerPermission, error) {
	keyIDs, err := r.client.SMembers(ctx, redisPermSetKey(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list permissions: %w", err)
	}
	keys := make([]string, len(keyIDs))
	for i, id := range keyIDs {
		keys[i] = redisPermKey(owner, domain.ConversationKeyID(id))
	}
	out := make([]domain.ServerPermission, 0, len(keys))
	if err := r.mgetJSON(ctx, keys, func(b []byte) error {
		var p domain.ServerPermission
		if err := domain.DecodeJSON(b, &p); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	}); err != nil {
		return nil, err
	}
	sortPermissions(out)
	return out, nil
}

// PublishPermissions stores perms in one transaction.
func (r *Redis) PublishPermissions(ctx context.Context, perms []domain.ServerPermission) error {
	if err := r.checkKeyConversations(ctx, perms); err != nil {
		return err
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return putPermissions(ctx, pipe, perms)
	})
	if err != nil {
		return fmt.Errorf("redis publish permissions: %w", err)
	}
	return nil
}

// FetchDevice returns the device with id.
func (r *Redis) FetchDevice(ctx context.Context, id domain.DeviceID) (domain.ServerDevice, error) {
	var d domain.ServerDevice
	if err := r.getJSON(ctx, redisDeviceKey(id), &d); err != nil {
		return domain.ServerDevice{}, notFoundAs(err, "device %s", id)
	}
	return d, nil
}

// FetchUser returns the user with id.
func (r *Redis) FetchUser(ctx context.Context, id domain.UserID) (domain.User, error) {
	rec, err := r.userRecord(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	return rec.User, nil
}

// LoginKey returns the login key the user registered with.
func (r *Redis) LoginKey(ctx context.Context, id domain.UserID) (domain.SymmetricKey, error) {
	rec, err := r.userRecord(ctx, id)
	if err != nil {
		return domain.SymmetricKey{}, err
	}
	return rec.LoginKey, nil
}

// RegisterUser creates an active user and assigns its id.
func (r *Redis) RegisterUser(ctx context.Context, reg domain.Registration) (domain.User, error) {
	if err := checkRegistration(reg); err != nil {
		return domain.User{}, err
	}
	id, err := r.client.Incr(ctx, redisUserSeq).Result()
	if err != nil {
		return domain.User{}, fmt.Errorf("redis register: %w", err)
	}
	rec := userRecord{
		User: domain.User{
			ID:               domain.UserID(id),
			State:            domain.UserActive,
			Name:             reg.Name,
			EncryptionPubkey: reg.EncryptionPubkey,
		},
		Email:                    reg.Email,
		LoginKey:                 reg.LoginKey,
		PasswordVerificationKey:  reg.PasswordVerificationKey,
		EncryptionPrivkeyWrapped: reg.EncryptionPrivkeyWrapped,
	}
	if err := r.setJSON(ctx, r.client, redisUserKey(rec.User.ID), rec); err != nil {
		return domain.User{}, err
	}
	return rec.User, nil
}

// PublishDevice stores device. Its owner must exist.
func (r *Redis) PublishDevice(ctx context.Context, device domain.ServerDevice) error {
	n, err := r.client.Exists(ctx, redisUserKey(device.OwnerID)).Result()
	if err != nil {
		return fmt.Errorf("redis publish device: %w", err)
	}
	if n == 0 {
		return domain.NotFound("user %d", device.OwnerID)
	}
	return r.setJSON(ctx, r.client, redisDeviceKey(device.ID), device)
}

// PublishRotation replaces the user's keypair and permissions in one
// MULTI/EXEC transaction guarded by WATCH on the user record and the user's
// permission set. A permission added concurrently aborts the transaction.
func (r *Redis) PublishRotation(ctx context.Context, batch domain.RotationBatch) error {
	if err := checkRotation(batch); err != nil {
		return err
	}
	if err := r.checkKeyConversations(ctx, batch.Permissions); err != nil {
		return err
	}
	userKey := redisUserKey(batch.UserID)
	permSetKey := redisPermSetKey(batch.UserID)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, userKey).Bytes()
		if err != nil {
			return notFoundAs(err, "user %d", batch.UserID)
		}
		keyIDs, err := tx.SMembers(ctx, permSetKey).Result()
		if err != nil {
			return fmt.Errorf("redis list permissions: %w", err)
		}
		stored := make(map[domain.ConversationKeyID]struct{}, len(keyIDs))
		for _, id := range keyIDs {
			stored[domain.ConversationKeyID(id)] = struct{}{}
		}
		if err := checkRotationCoverage(batch, stored); err != nil {
			return err
		}
		var rec userRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return domain.Malformed("user record %d: %v", batch.UserID, err)
		}
		rec.User.EncryptionPubkey = batch.EncryptionPubkey
		rec.EncryptionPrivkeyWrapped = batch.EncryptionPrivkeyWrapped

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if err := r.setJSON(ctx, pipe, userKey, rec); err != nil {
				return err
			}
			return putPermissions(ctx, pipe, batch.Permissions)
		})
		return err
	}, userKey, permSetKey)
	if errors.Is(err, redis.TxFailedErr) {
		return domain.VerificationFailed("rotation: user %d changed during publish", batch.UserID)
	}
	return err
}

// CreateConversation stores conversation and its initial permissions.
func (r *Redis) CreateConversation(
	ctx context.Context,
	conversation domain.Conversation,
	perms []domain.ServerPermission,
) error {
	for _, p := range perms {
		if p.ConversationID != conversation.ID {
			return domain.Malformed("permission %s belongs to conversation %s", p.ConversationKeyID, p.ConversationID)
		}
	}
	if err := r.checkKeyConversations(ctx, perms); err != nil {
		return err
	}
	convKey := redisConvKey(conversation.ID)
	return r.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, convKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.Malformed("conversation %s already exists", conversation.ID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if err := r.setJSON(ctx, pipe, convKey, conversation); err != nil {
				return err
			}
			for _, id := range conversation.ParticipantIDs {
				pipe.SAdd(ctx, redisMemberKey(id), conversation.ID.String())
			}
			return putPermissions(ctx, pipe, perms)
		})
		return err
	}, convKey)
}

// ListConversations returns the conversations member participates in.
func (r *Redis) ListConversations(ctx context.Context, member domain.UserID) ([]domain.Conversation, error) {
	ids, err := r.client.SMembers(ctx, redisMemberKey(member)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list conversations: %w", err)
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisConvKey(domain.ConversationID(id))
	}
	var out []domain.Conversation
	if err := r.mgetJSON(ctx, keys, func(b []byte) error {
		var c domain.Conversation
		if err := domain.DecodeJSON(b, &c); err != nil {
			return err
		}
		out = append(out, c)
		return nil
	}); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SendMessage appends msg to the conversation and assigns its id and time.
func (r *Redis) SendMessage(
	ctx context.Context,
	conversationID domain.ConversationID,
	msg domain.OutgoingMessage,
) (domain.IncomingMessage, error) {
	if msg.EncryptedMessage == nil {
		return domain.IncomingMessage{}, domain.Malformed("message: missing encryptedMessage")
	}
	if err := r.requireConversation(ctx, conversationID); err != nil {
		return domain.IncomingMessage{}, err
	}
	conv, err := r.client.Get(ctx, redisKeyConvKey(msg.Context.ConversationKeyID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.IncomingMessage{}, fmt.Errorf("redis send message: %w", err)
	}
	if domain.ConversationID(conv) != conversationID {
		return domain.IncomingMessage{}, domain.Malformed("message: key %s is not a key of conversation %s",
			msg.Context.ConversationKeyID, conversationID)
	}
	id, err := r.client.Incr(ctx, redisMessageSeq).Result()
	if err != nil {
		return domain.IncomingMessage{}, fmt.Errorf("redis send message: %w", err)
	}
	in := domain.IncomingMessage{
		Context:          msg.Context,
		EncryptedMessage: *msg.EncryptedMessage,
		ID:               domain.MessageID(id),
		TimeSent:         r.now().UTC().Truncate(time.Second),
	}
	b, err := json.Marshal(in)
	if err != nil {
		return domain.IncomingMessage{}, err
	}
	if err := r.client.RPush(ctx, redisMessagesKey(conversationID), b).Err(); err != nil {
		return domain.IncomingMessage{}, fmt.Errorf("redis send message: %w", err)
	}
	return in, nil
}

// FetchMessages returns the latest limit messages, oldest first. A
// non-positive limit returns all of them.
func (r *Redis) FetchMessages(
	ctx context.Context,
	conversationID domain.ConversationID,
	limit int,
) ([]domain.IncomingMessage, error) {
	if err := r.requireConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raw, err := r.client.LRange(ctx, redisMessagesKey(conversationID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis fetch messages: %w", err)
	}
	out := make([]domain.IncomingMessage, 0, len(raw))
	for _, s := range raw {
		var m domain.IncomingMessage
		if err := domain.DecodeJSON([]byte(s), &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *Redis) requireConversation(ctx context.Context, id domain.ConversationID) error {
	n, err := r.client.Exists(ctx, redisConvKey(id)).Result()
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if n == 0 {
		return domain.NotFound("conversation %s", id)
	}
	return nil
}

func (r *Redis) checkKeyConversations(ctx context.Context, perms []domain.ServerPermission) error {
	for _, p := range perms {
		conv, err := r.client.Get(ctx, redisKeyConvKey(p.ConversationKeyID)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		if domain.ConversationID(conv) != p.ConversationID {
			return domain.Malformed("permission: key %s already belongs to conversation %s",
				p.ConversationKeyID, conv)
		}
	}
	return nil
}

func (r *Redis) userRecord(ctx context.Context, id domain.UserID) (userRecord, error) {
	var rec userRecord
	if err := r.getJSON(ctx, redisUserKey(id), &rec); err != nil {
		return userRecord{}, notFoundAs(err, "user %d", id)
	}
	return rec, nil
}

func (r *Redis) getJSON(ctx context.Context, key string, out any) error {
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return domain.DecodeJSON(b, out)
}

func (r *Redis) setJSON(ctx context.Context, c redis.Cmdable, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := c.Set(ctx, key, b, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) mgetJSON(ctx context.Context, keys []string, each func([]byte) error) error {
	if len(keys) == 0 {
		return nil
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("redis mget: %w", err)
	}
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if err := each([]byte(s)); err != nil {
			return err
		}
	}
	return nil
}

func putPermissions(ctx context.Context, pipe redis.Pipeliner, perms []domain.ServerPermission) error {
	for _, p := range perms {
		b, err := json.Marshal(p)
		if err != nil {
			return err
		}
		pipe.Set(ctx, redisPermKey(p.OwnerID, p.ConversationKeyID), b, 0)
		pipe.SAdd(ctx, redisPermSetKey(p.OwnerID), p.ConversationKeyID.String())
		pipe.Set(ctx, redisKeyConvKey(p.ConversationKeyID), p.ConversationID.String(), 0)
	}
	return nil
}

// notFoundAs maps redis.Nil to an ErrNotFound error and passes others through.
func notFoundAs(err error, format string, args ...any) error {
	if errors.Is(err, redis.Nil) {
		return domain.NotFound(format, args...)
	}
	if domain.IsKnownKind(err) {
		return err
	}
	return fmt.Errorf("redis: %w", err)
}

// Compile-time assertion that Redis implements domain.Backend.
var _ domain.Backend = (*Redis)(nil)
