// Package rotation replaces a user's encryption keypair.
//
// Every permission the user owns is re-sealed to the new public key and
// published together with the new keypair in a single batch. The new
// keypair is staged locally before publishing so that an interrupted
// rotation can be resumed once the server's state is known.
package rotation
