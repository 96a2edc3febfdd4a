package permission

import (
	"time"

	"chatcore/internal/crypto"
	"chatcore/internal/domain"
)

// NewKeyBundle generates a random conversation key and its id.
func NewKeyBundle() (domain.ConversationKeyBundle, error) {
	key, err := crypto.GenerateSymmetricKey()
	if err != nil {
		return domain.ConversationKeyBundle{}, err
	}
	return domain.ConversationKeyBundle{ID: crypto.ConversationKeyID(key), Key: key}, nil
}

// Sign signs plain with the creator device.
func Sign(plain domain.PlainPermission, creator domain.LocalDevice) domain.SignatureBundle {
	return domain.SignatureBundle{
		DeviceID:  creator.ID,
		Signature: crypto.SignEd25519(creator.Privkey, plain.Serialized()),
	}
}

// VerifySignature checks sig over plain with the creator's public key.
func VerifySignature(sig domain.SignatureBundle, plain domain.PlainPermission, creatorPub domain.Ed25519Public) error {
	if crypto.DeviceID(creatorPub) != sig.DeviceID {
		return domain.VerificationFailed("permission %s: signer key does not belong to device %s",
			plain.ConversationKeyID, sig.DeviceID)
	}
	if !crypto.VerifyEd25519(creatorPub, plain.Serialized(), sig.Signature) {
		return domain.VerificationFailed("permission %s: bad signature", plain.ConversationKeyID)
	}
	return nil
}

// EncryptKey seals a conversation key to the owner's encryption public key.
func EncryptKey(key domain.SymmetricKey, ownerPub domain.X25519Public) ([]byte, error) {
	return crypto.SealAnonymous(key[:], ownerPub)
}

// DecryptKey opens a sealed conversation key.
func DecryptKey(sealed []byte, kp domain.EncryptionKeypair) (domain.SymmetricKey, error) {
	var key domain.SymmetricKey
	raw, err := crypto.OpenAnonymous(sealed, kp)
	if err != nil {
		return key, err
	}
	defer crypto.Wipe(raw)
	if len(raw) != len(key) {
		return key, domain.Malformed("conversation key: want %d bytes, got %d", len(key), len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

// Pack signs plain with creator and seals its key to owner.
func Pack(plain domain.PlainPermission, owner domain.User, creator domain.LocalDevice) (domain.ServerPermission, error) {
	switch {
	case plain.OwnerID != owner.ID:
		return domain.ServerPermission{}, domain.Malformed("permission: owner %d does not match user %d",
			plain.OwnerID, owner.ID)
	case plain.CreatorID != creator.OwnerID:
		return domain.ServerPermission{}, domain.Malformed("permission: creator %d does not own device %s",
			plain.CreatorID, creator.ID)
	case plain.ConversationKeyID != crypto.ConversationKeyID(plain.ConversationKey):
		return domain.ServerPermission{}, domain.Malformed("permission: key id %s does not match key",
			plain.ConversationKeyID)
	}
	if _, err := domain.ParseValidFrom(plain.ValidFrom); err != nil {
		return domain.ServerPermission{}, err
	}

	sealed, err := EncryptKey(plain.ConversationKey, owner.EncryptionPubkey)
	if err != nil {
		return domain.ServerPermission{}, err
	}
	return domain.ServerPermission{
		ConversationID:    plain.ConversationID,
		ConversationKeyID: plain.ConversationKeyID,
		ConversationKey:   sealed,
		OwnerID:           plain.OwnerID,
		CreatorID:         plain.CreatorID,
		ValidFrom:         plain.ValidFrom,
		Signature:         Sign(plain, creator),
	}, nil
}

// Unpack opens sp with the owner's keypair and verifies the creator's
// signature. The returned PlainPermission round-trips with Pack.
func Unpack(
	sp domain.ServerPermission,
	ownerKP domain.EncryptionKeypair,
	creatorPub domain.Ed25519Public,
) (domain.PlainPermission, error) {
	key, err := DecryptKey(sp.ConversationKey, ownerKP)
	if err != nil {
		return domain.PlainPermission{}, err
	}
	if crypto.ConversationKeyID(key) != sp.ConversationKeyID {
		return domain.PlainPermission{}, domain.VerificationFailed("permission %s: key id does not match key",
			sp.ConversationKeyID)
	}
	plain := domain.PlainPermission{
		ConversationID:    sp.ConversationID,
		ConversationKeyID: sp.ConversationKeyID,
		ConversationKey:   key,
		OwnerID:           sp.OwnerID,
		CreatorID:         sp.CreatorID,
		ValidFrom:         sp.ValidFrom,
	}
	if err := VerifySignature(sp.Signature, plain, creatorPub); err != nil {
		return domain.PlainPermission{}, err
	}
	return plain, nil
}

// Rotate re-seals old's key from oldKP to newKP. All other fields, including
// the signature, are carried over unchanged.
func Rotate(old domain.ServerPermission, oldKP, newKP domain.EncryptionKeypair) (domain.ServerPermission, error) {
	key, err := DecryptKey(old.ConversationKey, oldKP)
	if err != nil {
		return domain.ServerPermission{}, err
	}
	if crypto.ConversationKeyID(key) != old.ConversationKeyID {
		return domain.ServerPermission{}, domain.VerificationFailed("permission %s: key id does not match key",
			old.ConversationKeyID)
	}
	sealed, err := EncryptKey(key, newKP.Public)
	if err != nil {
		return domain.ServerPermission{}, err
	}
	rotated := old
	rotated.ConversationKey = sealed
	return rotated, nil
}

// Make creates a fresh conversation key and one permission per owner, all
// created by creator and valid from now.
func Make(
	conversationID domain.ConversationID,
	owners []domain.User,
	creator domain.LocalDevice,
	now time.Time,
) ([]domain.ServerPermission, domain.ConversationKeyBundle, error) {
	if conversationID == "" {
		return nil, domain.ConversationKeyBundle{}, domain.Malformed("permission: empty conversation id")
	}
	if len(owners) == 0 {
		return nil, domain.ConversationKeyBundle{}, domain.Malformed("permission: no owners")
	}
	bundle, err := NewKeyBundle()
	if err != nil {
		return nil, domain.ConversationKeyBundle{}, err
	}

	validFrom := domain.FormatValidFrom(now)
	seen := make(map[domain.UserID]bool, len(owners))
	out := make([]domain.ServerPermission, 0, len(owners))
	for _, owner := range owners {
		if seen[owner.ID] {
			continue
		}
		seen[owner.ID] = true
		sp, err := Pack(domain.PlainPermission{
			ConversationID:    conversationID,
			ConversationKeyID: bundle.ID,
			ConversationKey:   bundle.Key,
			OwnerID:           owner.ID,
			CreatorID:         creator.OwnerID,
			ValidFrom:         validFrom,
		}, owner, creator)
		if err != nil {
			return nil, domain.ConversationKeyBundle{}, err
		}
		out = append(out, sp)
	}
	return out, bundle, nil
}
