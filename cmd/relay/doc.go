// Package main runs the chatcore relay.
//
// The relay authenticates devices, stores users, devices, permissions,
// conversations and encrypted messages, and streams new messages to
// subscribers over websockets. It never sees plaintext, conversation keys
// or private keys.
//
// HTTP API
//
//	POST /users                          register a user (unauthenticated)
//	GET|PATCH /users/{id}                fetch a user, or publish a key rotation
//	POST /devices                        publish a device, signed by the device itself
//	GET /devices/{id}                    fetch a device
//	GET|POST /permissions                list or publish the caller's permissions
//	GET /permissions/{keyId}             fetch one permission
//	GET|POST /conversations              list or create conversations
//	GET|POST /conversations/{id}/messages?limit=N
//	GET /conversations/{id}/stream       websocket of new messages
//	GET /metrics                         Prometheus metrics
//
// Authenticated requests carry
//
//	Authorization: CHATCORE_V1 loginKey="<b64>", signature="<deviceId>,<b64 sig>"
//
// State lives in memory or in Redis, chosen by server.backend.
package main
