// Package account holds the signed-in user's local state.
//
// A password is hardened into a master key, from which the login,
// password-verification and wrapping subkeys are derived. The master key
// itself is never stored. The local device and the user's encryption
// keypair are kept in LocalStorage, with the private half wrapped under
// the wrapping subkey.
//
// A second "pending" keypair slot supports key rotation: the new keypair is
// staged before it is published and promoted only once the server has
// accepted it.
package account
