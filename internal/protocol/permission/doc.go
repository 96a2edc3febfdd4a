// Package permission turns plain conversation-key grants into signed,
// sealed server permissions and back.
//
// A PlainPermission is signed by the creator's device over its canonical
// serialization and its key is sealed to the owner's encryption public key.
// Unpacking reverses both steps and fails closed: a permission whose key
// cannot be opened, whose key id does not match the key, or whose signature
// does not verify is rejected with domain.ErrVerificationFailed.
//
// Rotate re-seals a permission to a new owner keypair without touching the
// signed fields, so the original signature stays valid.
package permission
