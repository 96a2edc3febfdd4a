// Package commands defines the chatcore CLI and wires dependencies for subcommands.
//
// Commands
//
//   - register                  Create a user and device on the relay
//   - fingerprint               Print the device id and key fingerprint
//   - kdf                       Print fingerprints of the password's subkeys
//   - conversation create       Start a group conversation
//   - conversation list         List your conversations
//   - conversation rotate-key   Issue a fresh conversation key
//   - send                      Encrypt and send a text or reaction
//   - recv                      Fetch, decrypt and verify messages
//   - rotate                    Rotate your encryption keypair
//   - logout                    Remove local account state
//
// # Implementation
//
// The root command loads the configuration and builds the dependency graph
// (local storage, relay client, key cache, services) before any subcommand
// runs. Commands that use conversation keys sync the key cache from the
// relay first.
package commands
