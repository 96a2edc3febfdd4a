package crypto

import (
	"crypto/rand"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"

	"chatcore/internal/domain"
)

// SealOverhead is the number of bytes SealAnonymous adds to a message.
const SealOverhead = box.AnonymousOverhead

// GenerateEncryptionKeypair returns a fresh X25519 keypair.
// The private key is clamped per RFC 7748.
func GenerateEncryptionKeypair() (kp domain.EncryptionKeypair, err error) {
	if _, err = rand.Read(kp.Private[:]); err != nil {
		return kp, err
	}
	clamp(&kp.Private)
	pb, err := curve25519.X25519(kp.Private.Slice(), curve25519.Basepoint)
	if err != nil {
		return kp, err
	}
	copy(kp.Public[:], pb)
	return kp, nil
}

// SealAnonymous encrypts msg to recipient so that only the holder of the
// matching private key can open it. The sender stays anonymous.
func SealAnonymous(msg []byte, recipient domain.X25519Public) ([]byte, error) {
	pub := [32]byte(recipient)
	return box.SealAnonymous(nil, msg, &pub, rand.Reader)
}

// OpenAnonymous opens a sealed box with kp.
func OpenAnonymous(sealed []byte, kp domain.EncryptionKeypair) ([]byte, error) {
	if len(sealed) < SealOverhead {
		return nil, domain.Malformed("sealed box: %d bytes is shorter than the overhead", len(sealed))
	}
	pub, priv := [32]byte(kp.Public), [32]byte(kp.Private)
	defer Wipe(priv[:])
	out, ok := box.OpenAnonymous(nil, sealed, &pub, &priv)
	if !ok {
		return nil, domain.VerificationFailed("sealed box: cannot open")
	}
	return out, nil
}

func clamp(k *domain.X25519Private) {
	kb := k[:]
	kb[0] &= 248
	kb[31] &= 127
	kb[31] |= 64
}
