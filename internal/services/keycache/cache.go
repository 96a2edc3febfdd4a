package keycache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"chatcore/internal/domain"
	"chatcore/internal/metrics"
	"chatcore/internal/protocol/permission"
)

type latest struct {
	id        domain.ConversationKeyID
	validFrom time.Time
}

// Cache implements domain.KeyCache.
type Cache struct {
	account domain.CurrentAccount
	devices domain.DeviceResolver
	remote  domain.PermissionStore
	log     logrus.FieldLogger

	mu              sync.RWMutex
	keys            map[domain.ConversationKeyID]domain.SymmetricKey
	conversationIDs map[domain.ConversationKeyID]domain.ConversationID
	latest          map[domain.ConversationID]latest
	// generation is bumped by Clear; fills started earlier are discarded.
	generation uint64
}

// New returns an empty Cache.
func New(
	account domain.CurrentAccount,
	devices domain.DeviceResolver,
	remote domain.PermissionStore,
	log logrus.FieldLogger,
) *Cache {
	c := &Cache{
		account: account,
		devices: devices,
		remote:  remote,
		log:     log.WithField("component", "keycache"),
	}
	c.reset()
	return c
}

func (c *Cache) reset() {
	c.keys = make(map[domain.ConversationKeyID]domain.SymmetricKey)
	c.conversationIDs = make(map[domain.ConversationKeyID]domain.ConversationID)
	c.latest = make(map[domain.ConversationID]latest)
}

// unpacked is a verified permission waiting to be committed.
type unpacked struct {
	plain     domain.PlainPermission
	validFrom time.Time
}

// FillCaches unpacks perms and adds their keys. Permissions owned by other
// users are skipped. If any remaining permission fails to unpack nothing is
// committed.
func (c *Cache) FillCaches(ctx context.Context, perms []domain.ServerPermission) error {
	c.mu.RLock()
	gen := c.generation
	c.mu.RUnlock()

	dev, err := c.account.Device()
	if err != nil {
		return err
	}
	kp, err := c.account.EncryptionKeypair()
	if err != nil {
		return err
	}

	batch := make([]unpacked, 0, len(perms))
	for _, sp := range perms {
		if sp.OwnerID != dev.OwnerID {
			continue
		}
		u, err := c.unpack(ctx, sp, kp)
		if err != nil {
			c.log.WithError(err).WithField("key", sp.ConversationKeyID).Warn("permission rejected")
			return err
		}
		batch = append(batch, u)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return domain.NotFound("keycache: cleared while filling")
	}
	for _, u := range batch {
		p := u.plain
		c.keys[p.ConversationKeyID] = p.ConversationKey
		c.conversationIDs[p.ConversationKeyID] = p.ConversationID
		if cur, ok := c.latest[p.ConversationID]; !ok || u.validFrom.After(cur.validFrom) {
			c.latest[p.ConversationID] = latest{id: p.ConversationKeyID, validFrom: u.validFrom}
		}
	}
	return nil
}

func (c *Cache) unpack(
	ctx context.Context,
	sp domain.ServerPermission,
	kp domain.EncryptionKeypair,
) (unpacked, error) {
	validFrom, err := sp.ValidFromTime()
	if err != nil {
		return unpacked{}, err
	}
	creator, err := c.devices.Get(ctx, sp.Signature.DeviceID)
	if err != nil {
		return unpacked{}, err
	}
	if creator.OwnerID != sp.CreatorID {
		return unpacked{}, domain.VerificationFailed("permission %s: device %s is not owned by creator %d",
			sp.ConversationKeyID, creator.ID, sp.CreatorID)
	}
	plain, err := permission.Unpack(sp, kp, creator.Pubkey)
	if err != nil {
		return unpacked{}, err
	}
	return unpacked{plain: plain, validFrom: validFrom}, nil
}

// LatestKeyID returns the id of the newest key known for conversationID.
func (c *Cache) LatestKeyID(conversationID domain.ConversationID) (domain.ConversationKeyID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.latest[conversationID]
	if !ok {
		return "", domain.NotFound("no key for conversation %s", conversationID)
	}
	return l.id, nil
}

// Key returns the key with id, fetching its permission on a miss.
func (c *Cache) Key(ctx context.Context, id domain.ConversationKeyID) (domain.ConversationKeyBundle, error) {
	if key, ok := c.lookupKey(id); ok {
		return domain.ConversationKeyBundle{ID: id, Key: key}, nil
	}
	if err := c.fetch(ctx, id); err != nil {
		return domain.ConversationKeyBundle{}, err
	}
	key, ok := c.lookupKey(id)
	if !ok {
		return domain.ConversationKeyBundle{}, domain.NotFound("conversation key %s", id)
	}
	return domain.ConversationKeyBundle{ID: id, Key: key}, nil
}

// ConversationID returns the conversation key id belongs to, fetching its
// permission on a miss.
func (c *Cache) ConversationID(ctx context.Context, id domain.ConversationKeyID) (domain.ConversationID, error) {
	if conv, ok := c.lookupConversation(id); ok {
		return conv, nil
	}
	if err := c.fetch(ctx, id); err != nil {
		return "", err
	}
	conv, ok := c.lookupConversation(id)
	if !ok {
		return "", domain.NotFound("conversation for key %s", id)
	}
	return conv, nil
}

// Clear forgets every key. Fills still in flight commit nothing.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.reset()
}

func (c *Cache) lookupKey(id domain.ConversationKeyID) (domain.SymmetricKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	k, ok := c.keys[id]
	return k, ok
}

func (c *Cache) lookupConversation(id domain.ConversationKeyID) (domain.ConversationID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	conv, ok := c.conversationIDs[id]
	return conv, ok
}

func (c *Cache) fetch(ctx context.Context, id domain.ConversationKeyID) error {
	dev, err := c.account.Device()
	if err != nil {
		return err
	}
	sp, err := c.remote.FetchPermission(ctx, dev.OwnerID, id)
	metrics.PermissionFetches.WithLabelValues(metrics.Kind(err)).Inc()
	if err != nil {
		return err
	}
	c.log.WithField("key", id).Debug("fetched permission")
	return c.FillCaches(ctx, []domain.ServerPermission{sp})
}

// Compile-time assertion that Cache implements domain.KeyCache.
var _ domain.KeyCache = (*Cache)(nil)
