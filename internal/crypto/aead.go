package crypto

import (
	"crypto/cipher"
	"crypto/rand"

	"golang.org/x/crypto/chacha20poly1305"

	"chatcore/internal/domain"
)

const (
	SymmetricKeyBytes = chacha20poly1305.KeySize
	NonceBytes        = chacha20poly1305.NonceSize
	TagBytes          = chacha20poly1305.Overhead
)

// GenerateSymmetricKey returns a random 256-bit key.
func GenerateSymmetricKey() (k domain.SymmetricKey, err error) {
	_, err = rand.Read(k[:])
	return k, err
}

// ChaCha20Poly1305Encrypt seals msg with key and nonce and no associated
// data. The output is ciphertext || tag.
func ChaCha20Poly1305Encrypt(msg, key, nonce []byte) ([]byte, error) {
	aead, err := newAEAD(key, nonce)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, msg, nil), nil
}

// ChaCha20Poly1305Decrypt opens ciphertext || tag with key and nonce.
func ChaCha20Poly1305Decrypt(ct, key, nonce []byte) ([]byte, error) {
	aead, err := newAEAD(key, nonce)
	if err != nil {
		return nil, err
	}
	if len(ct) < TagBytes {
		return nil, domain.Malformed("aead: %d bytes is shorter than the tag", len(ct))
	}
	out, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, domain.VerificationFailed("aead: %v", err)
	}
	return out, nil
}

// EncryptWithSymmetricKey encrypts msg under a fresh random nonce and returns
// nonce || ciphertext || tag.
func EncryptWithSymmetricKey(msg []byte, key domain.SymmetricKey) ([]byte, error) {
	nonce := make([]byte, NonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct, err := ChaCha20Poly1305Encrypt(msg, key[:], nonce)
	if err != nil {
		return nil, err
	}
	return append(nonce, ct...), nil
}

// DecryptWithSymmetricKey opens an envelope produced by
// EncryptWithSymmetricKey.
func DecryptWithSymmetricKey(envelope []byte, key domain.SymmetricKey) ([]byte, error) {
	if len(envelope) < NonceBytes+TagBytes {
		return nil, domain.Malformed("envelope: %d bytes is shorter than nonce and tag", len(envelope))
	}
	return ChaCha20Poly1305Decrypt(envelope[NonceBytes:], key[:], envelope[:NonceBytes])
}

func newAEAD(key, nonce []byte) (cipher.AEAD, error) {
	if len(key) != SymmetricKeyBytes {
		return nil, domain.Malformed("aead: key must be %d bytes, got %d", SymmetricKeyBytes, len(key))
	}
	if len(nonce) != NonceBytes {
		return nil, domain.Malformed("aead: nonce must be %d bytes, got %d", NonceBytes, len(nonce))
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, domain.Misconfigured("aead: %v", err)
	}
	return aead, nil
}
