package kdf

import (
	"context"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/blake2b"

	"chatcore/internal/domain"
)

// Argon2id parameters used by the production hardener.
const (
	DefaultArgon2Time      = 20
	DefaultArgon2MemoryKiB = 64 * 1024
	DefaultArgon2Threads   = 1
	SaltBytes              = 16
)

// Argon2id hardens passwords with Argon2id. The salt is fixed per account.
type Argon2id struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
	Salt      [SaltBytes]byte
}

// DefaultArgon2id returns the production parameters with an all-zero salt.
func DefaultArgon2id() Argon2id {
	return Argon2id{
		Time:      DefaultArgon2Time,
		MemoryKiB: DefaultArgon2MemoryKiB,
		Threads:   DefaultArgon2Threads,
	}
}

// Harden derives the master key from password.
func (a Argon2id) Harden(ctx context.Context, password string) (domain.MasterKey, error) {
	var mk domain.MasterKey
	if a.Time == 0 || a.MemoryKiB == 0 || a.Threads == 0 {
		return mk, domain.Misconfigured("argon2id: time, memory and threads must be non-zero")
	}
	if err := ctx.Err(); err != nil {
		return mk, err
	}
	copy(mk[:], argon2.IDKey([]byte(password), a.Salt[:], a.Time, a.MemoryKiB, a.Threads, uint32(len(mk))))
	return mk, nil
}

// Insecure derives the master key as BLAKE2b-256(password). It is fast and
// deterministic and must not protect real accounts.
type Insecure struct{}

// Harden derives the master key from password.
func (Insecure) Harden(ctx context.Context, password string) (domain.MasterKey, error) {
	if err := ctx.Err(); err != nil {
		return domain.MasterKey{}, err
	}
	return domain.MasterKey(blake2b.Sum256([]byte(password))), nil
}

var (
	_ domain.PasswordHardener = Argon2id{}
	_ domain.PasswordHardener = Insecure{}
)
