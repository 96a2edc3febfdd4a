// Package relay is the HTTP face of a chatcore server.
//
// Client implements the domain's remote contracts (permission store,
// device and user directories, account publisher, conversation store and
// message transport) against a relay over JSON/HTTP. Server exposes a
// Backend through the same routes, and Stream delivers new messages of a
// conversation over a WebSocket.
//
// Requests other than user registration carry a CHATCORE_V1 Authorization
// header: the device's login key and the device's Ed25519 signature over
// it. The server checks both against its stored device and user records.
//
// Non-2xx statuses map back to the domain error kinds: 400 is malformed
// input, 401 and 403 are verification failures and 404 is not found. Other
// statuses and transport failures are returned as plain errors.
package relay
