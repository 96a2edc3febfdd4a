package types

import "encoding/base64"

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// MarshalText encodes the key as standard base64.
func (p X25519Public) MarshalText() ([]byte, error) { return marshalB64(p[:]), nil }

// UnmarshalText decodes a standard base64 key of exactly 32 bytes.
func (p *X25519Public) UnmarshalText(b []byte) error {
	return unmarshalB64("x25519 public key", p[:], b)
}

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// MarshalText encodes the key as standard base64.
func (k X25519Private) MarshalText() ([]byte, error) { return marshalB64(k[:]), nil }

// UnmarshalText decodes a standard base64 key of exactly 32 bytes.
func (k *X25519Private) UnmarshalText(b []byte) error {
	return unmarshalB64("x25519 private key", k[:], b)
}

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// MarshalText encodes the key as standard base64.
func (p Ed25519Public) MarshalText() ([]byte, error) { return marshalB64(p[:]), nil }

// UnmarshalText decodes a standard base64 key of exactly 32 bytes.
func (p *Ed25519Public) UnmarshalText(b []byte) error {
	return unmarshalB64("ed25519 public key", p[:], b)
}

// Ed25519Private is an Ed25519 signing private key (seed || public key).
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

// Public returns the public half embedded in the private key.
func (k Ed25519Private) Public() (pub Ed25519Public) {
	copy(pub[:], k[32:])
	return pub
}

// MarshalText encodes the key as standard base64.
func (k Ed25519Private) MarshalText() ([]byte, error) { return marshalB64(k[:]), nil }

// UnmarshalText decodes a standard base64 key of exactly 64 bytes.
func (k *Ed25519Private) UnmarshalText(b []byte) error {
	return unmarshalB64("ed25519 private key", k[:], b)
}

// Ed25519Signature is a detached Ed25519 signature.
type Ed25519Signature [64]byte

// Slice returns the signature as a []byte.
func (s Ed25519Signature) Slice() []byte { return s[:] }

// MarshalText encodes the signature as standard base64.
func (s Ed25519Signature) MarshalText() ([]byte, error) { return marshalB64(s[:]), nil }

// UnmarshalText decodes a standard base64 signature of exactly 64 bytes.
func (s *Ed25519Signature) UnmarshalText(b []byte) error {
	return unmarshalB64("ed25519 signature", s[:], b)
}

// SymmetricKey is a 256-bit key for the AEAD and for conversation keys.
type SymmetricKey [32]byte

// Slice returns the key as a []byte.
func (k SymmetricKey) Slice() []byte { return k[:] }

// MarshalText encodes the key as standard base64.
func (k SymmetricKey) MarshalText() ([]byte, error) { return marshalB64(k[:]), nil }

// UnmarshalText decodes a standard base64 key of exactly 32 bytes.
func (k *SymmetricKey) UnmarshalText(b []byte) error {
	return unmarshalB64("symmetric key", k[:], b)
}

// MasterKey is the hardened password output. It never leaves the process.
type MasterKey [32]byte

// Slice returns the key as a []byte.
func (k MasterKey) Slice() []byte { return k[:] }

// EncryptionKeypair is a user's X25519 keypair used to receive sealed
// conversation keys.
type EncryptionKeypair struct {
	Public  X25519Public
	Private X25519Private
}

// SigningKeypair is a device's Ed25519 keypair.
type SigningKeypair struct {
	Public  Ed25519Public
	Private Ed25519Private
}

func marshalB64(b []byte) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(b)))
	base64.StdEncoding.Encode(out, b)
	return out
}

func unmarshalB64(what string, dst, text []byte) error {
	buf := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
	n, err := base64.StdEncoding.Strict().Decode(buf, text)
	if err != nil {
		return Malformed("%s: %v", what, err)
	}
	if n != len(dst) {
		return Malformed("%s: want %d bytes, got %d", what, len(dst), n)
	}
	copy(dst, buf[:n])
	return nil
}
