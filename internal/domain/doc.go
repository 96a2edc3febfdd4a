// Package domain defines the core data model, error kinds and collaborator
// contracts shared across chatcore.
//
// It contains plain types (wire/state) and contracts (interfaces) only. The
// definitions live in the types and interfaces subpackages; this package
// re-exports them so callers can import a single path.
//
// # Error kinds
//
// Every failure produced by the cryptographic core wraps exactly one of
// ErrMalformedInput, ErrVerificationFailed, ErrNotFound or ErrConfiguration.
// Callers classify failures with errors.Is.
package domain
