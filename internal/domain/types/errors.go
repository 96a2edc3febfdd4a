package types

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure surfaced by the core wraps exactly one of these.
var (
	// ErrMalformedInput: bad encoding, wrong length, missing field, parse failure.
	ErrMalformedInput = errors.New("malformed input")
	// ErrVerificationFailed: signature mismatch, AEAD authentication failure,
	// sealed-box open failure, fingerprint mismatch, or context mismatch.
	ErrVerificationFailed = errors.New("verification failed")
	// ErrNotFound: a collaborator could not find a referenced record.
	ErrNotFound = errors.New("not found")
	// ErrConfiguration: a programming or setup error such as an unsupported
	// algorithm tag or an out-of-range KDF subkey id.
	ErrConfiguration = errors.New("configuration error")
)

// Malformed returns an error of kind ErrMalformedInput.
func Malformed(format string, args ...any) error { return kind(ErrMalformedInput, format, args) }

// VerificationFailed returns an error of kind ErrVerificationFailed.
func VerificationFailed(format string, args ...any) error {
	return kind(ErrVerificationFailed, format, args)
}

// NotFound returns an error of kind ErrNotFound.
func NotFound(format string, args ...any) error { return kind(ErrNotFound, format, args) }

// Misconfigured returns an error of kind ErrConfiguration.
func Misconfigured(format string, args ...any) error { return kind(ErrConfiguration, format, args) }

func kind(k error, format string, args []any) error {
	return fmt.Errorf("%w: %s", k, fmt.Sprintf(format, args...))
}

// IsKnownKind reports whether err already carries one of the error kinds.
func IsKnownKind(err error) bool {
	return errors.Is(err, ErrMalformedInput) ||
		errors.Is(err, ErrVerificationFailed) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConfiguration)
}
