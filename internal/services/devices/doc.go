// Package devices resolves device ids to verified server devices.
//
// A device fetched from the directory is accepted only if its id is the
// fingerprint of its public key and its "id|ownerId" signature verifies.
// Verified devices are cached for the lifetime of the Directory.
package devices
