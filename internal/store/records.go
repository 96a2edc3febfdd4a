package store

import (
	"sort"

	"chatcore/internal/domain"
)

// userRecord is the server-side state kept per user.
type userRecord struct {
	User                     domain.User         `json:"user"`
	Email                    string              `json:"email"`
	LoginKey                 domain.SymmetricKey `json:"loginKey"`
	PasswordVerificationKey  domain.SymmetricKey `json:"passwordVerificationKey"`
	EncryptionPrivkeyWrapped []byte              `json:"encryptionPrivkey"`
}

// checkRotation validates a rotation batch before any record is touched.
func checkRotation(batch domain.RotationBatch) error {
	if batch.EncryptionPubkey == (domain.X25519Public{}) {
		return domain.Malformed("rotation: missing encryption pubkey")
	}
	if len(batch.EncryptionPrivkeyWrapped) == 0 {
		return domain.Malformed("rotation: missing wrapped encryption privkey")
	}
	for _, p := range batch.Permissions {
		if p.OwnerID != batch.UserID {
			return domain.Malformed("rotation: permission %s is owned by %d, not %d",
				p.ConversationKeyID, p.OwnerID, batch.UserID)
		}
	}
	return nil
}

// checkRotationCoverage requires batch to re-seal exactly the permissions
// stored for its user. A permission published after the client listed them
// would otherwise stay sealed to the replaced pubkey.
func checkRotationCoverage(batch domain.RotationBatch, stored map[domain.ConversationKeyID]struct{}) error {
	seen := make(map[domain.ConversationKeyID]struct{}, len(batch.Permissions))
	for _, p := range batch.Permissions {
		if _, dup := seen[p.ConversationKeyID]; dup {
			return domain.Malformed("rotation: permission %s appears twice", p.ConversationKeyID)
		}
		seen[p.ConversationKeyID] = struct{}{}
		if _, ok := stored[p.ConversationKeyID]; !ok {
			return domain.NotFound("rotation: user %d has no permission %s", batch.UserID, p.ConversationKeyID)
		}
	}
	if len(seen) != len(stored) {
		return domain.VerificationFailed("rotation: batch covers %d of user %d's %d permissions",
			len(seen), batch.UserID, len(stored))
	}
	return nil
}

func checkRegistration(reg domain.Registration) error {
	switch {
	case reg.Name == "":
		return domain.Malformed("registration: missing name")
	case reg.EncryptionPubkey == domain.X25519Public{}:
		return domain.Malformed("registration: missing encryption pubkey")
	case len(reg.EncryptionPrivkeyWrapped) == 0:
		return domain.Malformed("registration: missing wrapped encryption privkey")
	}
	return nil
}

func sortPermissions(perms []domain.ServerPermission) {
	sort.Slice(perms, func(i, j int) bool {
		if perms[i].ValidFrom != perms[j].ValidFrom {
			return perms[i].ValidFrom < perms[j].ValidFrom
		}
		return perms[i].ConversationKeyID < perms[j].ConversationKeyID
	})
}

func lastN[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}
