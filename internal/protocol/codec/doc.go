// Package codec encodes plain messages into signed, encrypted wire messages
// and decodes them again.
//
// # Encoding
//
// The payload {"context": ..., "plainMessage": ...} is serialized as JSON,
// signed with the sender device's Ed25519 key in attached form, encrypted
// under the conversation key with the nonce-prefixed ChaCha20-Poly1305
// envelope and base64-encoded.
//
// # Decoding
//
// Decoding reverses every step and then requires that the context embedded
// in the signed payload equals the context the server delivered next to the
// ciphertext. A server that rewrites ordering metadata therefore causes the
// message to be rejected rather than silently reordered.
//
// Attachments are stored out of band; SealAttachment and OpenBlob handle
// their encryption.
package codec
