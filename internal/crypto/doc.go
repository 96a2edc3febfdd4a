// Package crypto exposes the primitives the rest of chatcore builds on.
//
// Contents
//
//   - BLAKE2b unkeyed hashing at the supported output lengths, and the
//     salted, personalized BLAKE2b subkey derivation (Blake2b, Blake2bKDF)
//   - Ed25519 key generation, detached and attached signatures
//     (GenerateEd25519, SignEd25519, VerifyEd25519, SignAttached, OpenAttached)
//   - X25519 keypairs and anonymous sealed boxes (GenerateEncryptionKeypair,
//     SealAnonymous, OpenAnonymous)
//   - ChaCha20-Poly1305 IETF, bare and as a nonce-prefixed envelope
//     (ChaCha20Poly1305Encrypt, EncryptWithSymmetricKey, ...)
//   - Strict base64 and hex codecs, fingerprints, random ids and best-effort
//     memory wiping
//
// # Errors
//
// Decoding failures wrap domain.ErrMalformedInput. Failed signature checks,
// AEAD authentication and sealed-box opening wrap domain.ErrVerificationFailed.
// Unsupported parameters wrap domain.ErrConfiguration. Nothing here logs.
package crypto
