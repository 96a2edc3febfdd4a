// Package message sends and receives encrypted conversation messages.
//
// Outgoing messages are signed by the current device and encrypted under the
// conversation's latest key. Incoming messages are decrypted with the key
// named in their context, and their signature is checked against the
// verified sending device.
package message
