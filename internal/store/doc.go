// Package store provides persistence for chatcore.
//
// Local device state:
//   - LocalFileStore keeps the per-device key-value store as a JSON file,
//     written atomically via temp file and rename
//   - MemoryLocalStorage is its in-process counterpart
//
// Server-side records (users, devices, permissions, conversations, messages):
//   - Memory keeps them in process; it is the relay's default backend and
//     the test double for every remote collaborator
//   - Redis keeps them in Redis and applies multi-record updates in a
//     MULTI/EXEC transaction
//
// All types are safe for concurrent use. Lookups of missing records return
// errors wrapping domain.ErrNotFound.
package store
