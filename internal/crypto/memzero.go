package crypto

import "chatcore/internal/util/memzero"

// Wipe zeroes the provided buffer. This is best-effort.
func Wipe(b []byte) { memzero.Zero(b) }
