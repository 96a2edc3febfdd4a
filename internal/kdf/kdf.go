package kdf

import (
	"chatcore/internal/crypto"
	"chatcore/internal/domain"
)

// Context is the application's KDF personalization.
const Context = "CHATv001"

// Subkey names a purpose-bound key derived from the master key.
type Subkey int64

const (
	LoginKey                     Subkey = 1
	PasswordVerificationKey      Subkey = 2
	EncryptionPrivkeyWrappingKey Subkey = 3
)

// String returns the subkey's name.
func (s Subkey) String() string {
	switch s {
	case LoginKey:
		return "login key"
	case PasswordVerificationKey:
		return "password verification key"
	case EncryptionPrivkeyWrappingKey:
		return "encryption privkey wrapping key"
	default:
		return "unknown subkey"
	}
}

// Derive returns the 32-byte subkey for id.
func Derive(id Subkey, master domain.MasterKey) (domain.SymmetricKey, error) {
	var out domain.SymmetricKey
	sub, err := crypto.Blake2bKDF(int64(id), Context, master[:])
	if err != nil {
		return out, err
	}
	copy(out[:], sub)
	crypto.Wipe(sub)
	return out, nil
}

// Subkeys holds the three account subkeys.
type Subkeys struct {
	Login                domain.SymmetricKey
	PasswordVerification domain.SymmetricKey
	Wrapping             domain.SymmetricKey
}

// DeriveAll derives every account subkey from master.
func DeriveAll(master domain.MasterKey) (Subkeys, error) {
	var out Subkeys
	var err error
	if out.Login, err = Derive(LoginKey, master); err != nil {
		return Subkeys{}, err
	}
	if out.PasswordVerification, err = Derive(PasswordVerificationKey, master); err != nil {
		return Subkeys{}, err
	}
	if out.Wrapping, err = Derive(EncryptionPrivkeyWrappingKey, master); err != nil {
		return Subkeys{}, err
	}
	return out, nil
}
