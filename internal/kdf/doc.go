// Package kdf derives the account's purpose-bound subkeys from the master
// key, and turns passwords into master keys.
//
// Subkeys are derived with crypto.Blake2bKDF under the fixed application
// context "CHATv001". Different subkey ids yield independent keys; the
// derivation is deterministic.
//
// # Password hardening
//
// Argon2id is the production hardener. Insecure is a deterministic fast
// stand-in for tests and local development.
package kdf
