package crypto

import (
	"crypto/rand"

	"chatcore/internal/domain"
)

// Fingerprint returns hex(BLAKE2b-128(data)).
func Fingerprint(data []byte) string {
	sum, _ := Blake2b(Blake2b128, data)
	return Hex(sum)
}

// DeviceID returns the device id for an Ed25519 public key.
func DeviceID(pub domain.Ed25519Public) domain.DeviceID {
	return domain.DeviceID(Fingerprint(pub[:]))
}

// ConversationKeyID returns the first 32 hex characters of
// hex(BLAKE2b-224(key)).
func ConversationKeyID(key domain.SymmetricKey) domain.ConversationKeyID {
	sum, _ := Blake2b(Blake2b224, key[:])
	return domain.ConversationKeyID(Hex(sum)[:32])
}

// RandomID returns 128 random bits as lowercase hex.
func RandomID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return Hex(b[:]), nil
}
