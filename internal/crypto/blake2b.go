package crypto

import (
	"encoding/binary"

	dblake2b "github.com/dchest/blake2b"
	"golang.org/x/crypto/blake2b"

	"chatcore/internal/domain"
)

// Blake2bSize is a supported BLAKE2b output length in bytes.
type Blake2bSize int

const (
	Blake2b128 Blake2bSize = 16
	Blake2b224 Blake2bSize = 28
	Blake2b256 Blake2bSize = 32
	Blake2b384 Blake2bSize = 48
	Blake2b512 Blake2bSize = 64
)

const (
	// KDFContextBytes is the required length of a Blake2bKDF context.
	KDFContextBytes = 8
	// KDFKeyBytes is the required length of the Blake2bKDF input key and the
	// length of every derived subkey.
	KDFKeyBytes = 32
	// MaxSubkeyID is the largest accepted Blake2bKDF subkey id.
	MaxSubkeyID = 0x7FFFFFFF
)

// Blake2b returns the unkeyed BLAKE2b digest of data at the given length.
func Blake2b(size Blake2bSize, data []byte) ([]byte, error) {
	switch size {
	case Blake2b128, Blake2b224, Blake2b256, Blake2b384, Blake2b512:
	default:
		return nil, domain.Misconfigured("blake2b: unsupported output length %d", size)
	}
	h, err := blake2b.New(int(size), nil)
	if err != nil {
		return nil, domain.Misconfigured("blake2b: %v", err)
	}
	h.Write(data)
	return h.Sum(nil), nil
}

// Blake2bKDF derives a 32-byte subkey from key. The construction is BLAKE2b
// keyed with key, salted with the little-endian subkey id and personalized
// with context, which makes it byte-compatible with libsodium's
// crypto_kdf_derive_from_key.
func Blake2bKDF(subkeyID int64, context string, key []byte) ([]byte, error) {
	if subkeyID < 0 || subkeyID > MaxSubkeyID {
		return nil, domain.Misconfigured("kdf: subkey id %d out of range", subkeyID)
	}
	if len(context) != KDFContextBytes {
		return nil, domain.Misconfigured("kdf: context must be %d bytes, got %d", KDFContextBytes, len(context))
	}
	if len(key) != KDFKeyBytes {
		return nil, domain.Malformed("kdf: key must be %d bytes, got %d", KDFKeyBytes, len(key))
	}

	salt := make([]byte, dblake2b.SaltSize)
	binary.LittleEndian.PutUint64(salt, uint64(subkeyID))
	person := make([]byte, dblake2b.PersonSize)
	copy(person, context)

	h, err := dblake2b.New(&dblake2b.Config{
		Size:   KDFKeyBytes,
		Key:    key,
		Salt:   salt,
		Person: person,
	})
	if err != nil {
		return nil, domain.Misconfigured("kdf: %v", err)
	}
	return h.Sum(nil), nil
}
