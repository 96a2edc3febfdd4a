package crypto

import (
	"crypto/ed25519"
	"crypto/rand"

	"chatcore/internal/domain"
)

// GenerateEd25519 returns a new Ed25519 signing key pair.
func GenerateEd25519() (priv domain.Ed25519Private, pub domain.Ed25519Public, err error) {
	pk, sk, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return priv, pub, err
	}
	copy(priv[:], sk)
	copy(pub[:], pk)
	return priv, pub, nil
}

// SignEd25519 signs msg with priv and returns the detached signature.
func SignEd25519(priv domain.Ed25519Private, msg []byte) (sig domain.Ed25519Signature) {
	copy(sig[:], ed25519.Sign(ed25519.PrivateKey(priv[:]), msg))
	return sig
}

// VerifyEd25519 verifies sig over msg with pub.
func VerifyEd25519(pub domain.Ed25519Public, msg []byte, sig domain.Ed25519Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig[:])
}

// SignAttached returns signature || msg.
func SignAttached(priv domain.Ed25519Private, msg []byte) []byte {
	sig := SignEd25519(priv, msg)
	out := make([]byte, 0, ed25519.SignatureSize+len(msg))
	out = append(out, sig[:]...)
	return append(out, msg...)
}

// OpenAttached verifies a signature || message blob and returns the message.
func OpenAttached(pub domain.Ed25519Public, signed []byte) ([]byte, error) {
	if len(signed) < ed25519.SignatureSize {
		return nil, domain.Malformed("signed message: %d bytes is shorter than a signature", len(signed))
	}
	msg := signed[ed25519.SignatureSize:]
	if !ed25519.Verify(ed25519.PublicKey(pub[:]), msg, signed[:ed25519.SignatureSize]) {
		return nil, domain.VerificationFailed("signed message: bad signature")
	}
	out := make([]byte, len(msg))
	copy(out, msg)
	return out, nil
}
