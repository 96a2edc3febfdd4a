// Package device generates and verifies device identities.
//
// A device is identified by the fingerprint of its Ed25519 public key and
// binds itself to its owning user by signing "id|ownerId". Anyone holding
// the public key can check both facts without trusting the server.
package device
