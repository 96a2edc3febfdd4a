package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"chatcore/internal/domain"
)

// Memory is an in-process Backend.
type Memory struct {
	mu sync.RWMutex

	nextUserID    domain.UserID
	nextMessageID domain.MessageID

	users         map[domain.UserID]userRecord
	devices       map[domain.DeviceID]domain.ServerDevice
	permissions   map[domain.UserID]map[domain.ConversationKeyID]domain.ServerPermission
	keyToConv     map[domain.ConversationKeyID]domain.ConversationID
	conversations map[domain.ConversationID]domain.Conversation
	messages      map[domain.ConversationID][]domain.IncomingMessage

	now func() time.Time
}

// NewMemory returns an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{
		users:         make(map[domain.UserID]userRecord),
		devices:       make(map[domain.DeviceID]domain.ServerDevice),
		permissions:   make(map[domain.UserID]map[domain.ConversationKeyID]domain.ServerPermission),
		keyToConv:     make(map[domain.ConversationKeyID]domain.ConversationID),
		conversations: make(map[domain.ConversationID]domain.Conversation),
		messages:      make(map[domain.ConversationID][]domain.IncomingMessage),
		now:           time.Now,
	}
}

// FetchPermission returns owner's permission for keyID.
func (m *Memory) FetchPermission(
	ctx context.Context,
	owner domain.UserID,
	keyID domain.ConversationKeyID,
) (domain.ServerPermission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.permissions[owner][keyID]
	if !ok {
		return domain.ServerPermission{}, domain.NotFound("permission %s for user %d", keyID, owner)
	}
	return p, nil
}

// ListPermissions returns all of owner's permissions ordered by validFrom.
func (m *Memory) ListPermissions(ctx context.Context, owner domain.UserID) ([]domain.ServerPermission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ServerPermission, 0, len(m.permissions[owner]))
	for _, p := range m.permissions[owner] {
		out = append(out, p)
	}
	sortPermissions(out)
	return out, nil
}

// PublishPermissions stores perms.
func (m *Memory) PublishPermissions(ctx context.Context, perms []domain.ServerPermission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkKeyConversationsLocked(perms); err != nil {
		return err
	}
	m.putPermissionsLocked(perms)
	return nil
}

// FetchDevice returns the device with id.
func (m *Memory) FetchDevice(ctx context.Context, id domain.DeviceID) (domain.ServerDevice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[id]
	if !ok {
		return domain.ServerDevice{}, domain.NotFound("device %s", id)
	}
	return d, nil
}

// FetchUser returns the user with id.
func (m *Memory) FetchUser(ctx context.Context, id domain.UserID) (domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.NotFound("user %d", id)
	}
	return rec.User, nil
}

// LoginKey returns the login key the user registered with.
func (m *Memory) LoginKey(ctx context.Context, id domain.UserID) (domain.SymmetricKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.users[id]
	if !ok {
		return domain.SymmetricKey{}, domain.NotFound("user %d", id)
	}
	return rec.LoginKey, nil
}

// RegisterUser creates an active user and assigns its id.
func (m *Memory) RegisterUser(ctx context.Context, reg domain.Registration) (domain.User, error) {
	if err := checkRegistration(reg); err != nil {
		return domain.User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextUserID++
	u := domain.User{
		ID:               m.nextUserID,
		State:            domain.UserActive,
		Name:             reg.Name,
		EncryptionPubkey: reg.EncryptionPubkey,
	}
	m.users[u.ID] = userRecord{
		User:                     u,
		Email:                    reg.Email,
		LoginKey:                 reg.LoginKey,
		PasswordVerificationKey:  reg.PasswordVerificationKey,
		EncryptionPrivkeyWrapped: append([]byte(nil), reg.EncryptionPrivkeyWrapped...),
	}
	return u, nil
}

// PublishDevice stores device. Its owner must exist.
func (m *Memory) PublishDevice(ctx context.Context, device domain.ServerDevice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[device.OwnerID]; !ok {
		return domain.NotFound("user %d", device.OwnerID)
	}
	m.devices[device.ID] = device
	return nil
}

// PublishRotation replaces the user's keypair and permissions in one step.
func (m *Memory) PublishRotation(ctx context.Context, batch domain.RotationBatch) error {
	if err := checkRotation(batch); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.users[batch.UserID]
	if !ok {
		return domain.NotFound("user %d", batch.UserID)
	}
	stored := make(map[domain.ConversationKeyID]struct{}, len(m.permissions[batch.UserID]))
	for id := range m.permissions[batch.UserID] {
		stored[id] = struct{}{}
	}
	if err := checkRotationCoverage(batch, stored); err != nil {
		return err
	}
	if err := m.checkKeyConversationsLocked(batch.Permissions); err != nil {
		return err
	}
	rec.User.EncryptionPubkey = batch.EncryptionPubkey
	rec.EncryptionPrivkeyWrapped = append([]byte(nil), batch.EncryptionPrivkeyWrapped...)
	m.users[batch.UserID] = rec
	m.putPermissionsLocked(batch.Permissions)
	return nil
}

// CreateConversation stores conversation and its initial permissions.
func (m *Memory) CreateConversation(
	ctx context.Context,
	conversation domain.Conversation,
	perms []domain.ServerPermission,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.conversations[conversation.ID]; exists {
		return domain.Malformed("conversation %s already exists", conversation.ID)
	}
	for _, p := range perms {
		if p.ConversationID != conversation.ID {
			return domain.Malformed("permission %s belongs to conversation %s", p.ConversationKeyID, p.ConversationID)
		}
	}
	if err := m.checkKeyConversationsLocked(perms); err != nil {
		return err
	}
	m.conversations[conversation.ID] = conversation
	m.putPermissionsLocked(perms)
	return nil
}

// ListConversations returns the conversations member participates in.
func (m *Memory) ListConversations(ctx context.Context, member domain.UserID) ([]domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Conversation
	for _, c := range m.conversations {
		for _, id := range c.ParticipantIDs {
			if id == member {
				out = append(out, c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SendMessage appends msg to the conversation and assigns its id and time.
func (m *Memory) SendMessage(
	ctx context.Context,
	conversationID domain.ConversationID,
	msg domain.OutgoingMessage,
) (domain.IncomingMessage, error) {
	if msg.EncryptedMessage == nil {
		return domain.IncomingMessage{}, domain.Malformed("message: missing encryptedMessage")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conversations[conversationID]; !ok {
		return domain.IncomingMessage{}, domain.NotFound("conversation %s", conversationID)
	}
	if conv, ok := m.keyToConv[msg.Context.ConversationKeyID]; !ok || conv != conversationID {
		return domain.IncomingMessage{}, domain.Malformed("message: key %s is not a key of conversation %s",
			msg.Context.ConversationKeyID, conversationID)
	}
	m.nextMessageID++
	in := domain.IncomingMessage{
		Context:          msg.Context,
		EncryptedMessage: *msg.EncryptedMessage,
		ID:               m.nextMessageID,
		TimeSent:         m.now().UTC().Truncate(time.Second),
	}
	m.messages[conversationID] = append(m.messages[conversationID], in)
	return in, nil
}

// FetchMessages returns the latest limit messages, oldest first. A
// non-positive limit returns all of them.
func (m *Memory) FetchMessages(
	ctx context.Context,
	conversationID domain.ConversationID,
	limit int,
) ([]domain.IncomingMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.conversations[conversationID]; !ok {
		return nil, domain.NotFound("conversation %s", conversationID)
	}
	return lastN(m.messages[conversationID], limit), nil
}

func (m *Memory) checkKeyConversationsLocked(perms []domain.ServerPermission) error {
	for _, p := range perms {
		if conv, ok := m.keyToConv[p.ConversationKeyID]; ok && conv != p.ConversationID {
			return domain.Malformed("permission: key %s already belongs to conversation %s",
				p.ConversationKeyID, conv)
		}
	}
	return nil
}

func (m *Memory) putPermissionsLocked(perms []domain.ServerPermission) {
	for _, p := range perms {
		if m.permissions[p.OwnerID] == nil {
			m.permissions[p.OwnerID] = make(map[domain.ConversationKeyID]domain.ServerPermission)
		}
		m.permissions[p.OwnerID][p.ConversationKeyID] = p
		m.keyToConv[p.ConversationKeyID] = p.ConversationID
	}
}

// Compile-time assertion that Memory implements domain.Backend.
var _ domain.Backend = (*Memory)(nil)
