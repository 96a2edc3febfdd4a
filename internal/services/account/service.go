package account

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"

	"chatcore/internal/crypto"
	"chatcore/internal/domain"
	"chatcore/internal/kdf"
	"chatcore/internal/protocol/device"
)

// LocalStorage keys.
const (
	keyDevice                   = "device"
	keyLoginKey                 = "login_key"
	keyWrappingKey              = "wrapping_key"
	keyEncryptionPubkey         = "encryption_pubkey"
	keyEncryptionPrivkey        = "encryption_privkey"
	keyPendingEncryptionPubkey  = "pending_encryption_pubkey"
	keyPendingEncryptionPrivkey = "pending_encryption_privkey"
)

var allKeys = []string{
	keyDevice,
	keyLoginKey,
	keyWrappingKey,
	keyEncryptionPubkey,
	keyEncryptionPrivkey,
	keyPendingEncryptionPubkey,
	keyPendingEncryptionPrivkey,
}

// Service manages the current account.
type Service struct {
	storage  domain.LocalStorage
	hardener domain.PasswordHardener
	log      logrus.FieldLogger

	// mu serialises multi-key updates.
	mu sync.Mutex
}

// New returns an account service.
func New(storage domain.LocalStorage, hardener domain.PasswordHardener, log logrus.FieldLogger) *Service {
	return &Service{
		storage:  storage,
		hardener: hardener,
		log:      log.WithField("component", "account"),
	}
}

// Credentials hardens password and derives the account subkeys.
func (s *Service) Credentials(ctx context.Context, password string) (kdf.Subkeys, error) {
	if err := CheckPassword(password); err != nil {
		return kdf.Subkeys{}, err
	}
	mk, err := s.hardener.Harden(ctx, password)
	if err != nil {
		return kdf.Subkeys{}, err
	}
	defer crypto.Wipe(mk[:])
	return kdf.DeriveAll(mk)
}

// Register creates a user and a device on the server and sets up the
// local account for them.
func (s *Service) Register(
	ctx context.Context,
	publisher domain.AccountPublisher,
	name, email, password string,
) (domain.User, domain.LocalDevice, error) {
	keys, err := s.Credentials(ctx, password)
	if err != nil {
		return domain.User{}, domain.LocalDevice{}, err
	}
	kp, err := crypto.GenerateEncryptionKeypair()
	if err != nil {
		return domain.User{}, domain.LocalDevice{}, err
	}
	wrapped, err := WrapEncryptionPrivkey(kp.Private, keys.Wrapping)
	if err != nil {
		return domain.User{}, domain.LocalDevice{}, err
	}

	user, err := publisher.RegisterUser(ctx, domain.Registration{
		Name:                     name,
		Email:                    email,
		LoginKey:                 keys.Login,
		PasswordVerificationKey:  keys.PasswordVerification,
		EncryptionPubkey:         kp.Public,
		EncryptionPrivkeyWrapped: wrapped,
	})
	if err != nil {
		return domain.User{}, domain.LocalDevice{}, err
	}
	dev, err := device.Generate(user.ID)
	if err != nil {
		return domain.User{}, domain.LocalDevice{}, err
	}
	// The device publish is authenticated with the stored login key.
	if err := s.Setup(dev, keys, kp); err != nil {
		return domain.User{}, domain.LocalDevice{}, err
	}
	if err := publisher.PublishDevice(ctx, dev.ToServerDevice(domain.DeviceActive)); err != nil {
		if cerr := s.Clear(); cerr != nil {
			s.log.WithError(cerr).Error("clearing account after failed device publish")
		}
		return domain.User{}, domain.LocalDevice{}, err
	}
	s.log.WithFields(logrus.Fields{"user": user.ID, "device": dev.ID}).Info("registered")
	return user, dev, nil
}

// Setup stores dev, the login and wrapping subkeys, and kp.
func (s *Service) Setup(dev domain.LocalDevice, keys kdf.Subkeys, kp domain.EncryptionKeypair) error {
	if err := device.VerifyLocalDevice(dev); err != nil {
		return err
	}
	if err := checkKeypair(kp); err != nil {
		return err
	}
	devJSON, err := json.Marshal(dev)
	if err != nil {
		return err
	}
	wrapped, err := WrapEncryptionPrivkey(kp.Private, keys.Wrapping)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.storage.SetString(keyDevice, string(devJSON)); err != nil {
		return err
	}
	if err := s.storage.SetBinary(keyLoginKey, keys.Login[:]); err != nil {
		return err
	}
	if err := s.storage.SetBinary(keyWrappingKey, keys.Wrapping[:]); err != nil {
		return err
	}
	return s.putKeypairLocked(keyEncryptionPubkey, keyEncryptionPrivkey, kp.Public, wrapped)
}

// Device returns the local device.
func (s *Service) Device() (domain.LocalDevice, error) {
	v, ok, err := s.storage.GetString(keyDevice)
	if err != nil {
		return domain.LocalDevice{}, err
	}
	if !ok {
		return domain.LocalDevice{}, domain.NotFound("account: no local device")
	}
	var dev domain.LocalDevice
	if err := domain.DecodeJSON([]byte(v), &dev); err != nil {
		return domain.LocalDevice{}, err
	}
	return dev, nil
}

// LoginKey returns the stored login subkey.
func (s *Service) LoginKey() (domain.SymmetricKey, error) {
	var k domain.SymmetricKey
	if err := s.readFixed(keyLoginKey, k[:]); err != nil {
		return domain.SymmetricKey{}, err
	}
	return k, nil
}

// WrappingKey returns the stored wrapping subkey.
func (s *Service) WrappingKey() (domain.SymmetricKey, error) {
	var k domain.SymmetricKey
	if err := s.readFixed(keyWrappingKey, k[:]); err != nil {
		return domain.SymmetricKey{}, err
	}
	return k, nil
}

// EncryptionKeypair returns the user's current encryption keypair.
func (s *Service) EncryptionKeypair() (domain.EncryptionKeypair, error) {
	kp, ok, err := s.keypair(keyEncryptionPubkey, keyEncryptionPrivkey)
	if err != nil {
		return domain.EncryptionKeypair{}, err
	}
	if !ok {
		return domain.EncryptionKeypair{}, domain.NotFound("account: no encryption keypair")
	}
	return kp, nil
}

// StagePending stores kp in the pending slot, replacing any earlier one.
func (s *Service) StagePending(kp domain.EncryptionKeypair) error {
	if err := checkKeypair(kp); err != nil {
		return err
	}
	wk, err := s.WrappingKey()
	if err != nil {
		return err
	}
	wrapped, err := WrapEncryptionPrivkey(kp.Private, wk)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putKeypairLocked(keyPendingEncryptionPubkey, keyPendingEncryptionPrivkey, kp.Public, wrapped)
}

// Pending returns the staged keypair, if any.
func (s *Service) Pending() (domain.EncryptionKeypair, bool, error) {
	return s.keypair(keyPendingEncryptionPubkey, keyPendingEncryptionPrivkey)
}

// CommitPending makes the staged keypair current.
func (s *Service) CommitPending() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pub, okPub, err := s.storage.GetBinary(keyPendingEncryptionPubkey)
	if err != nil {
		return err
	}
	wrapped, okPriv, err := s.storage.GetBinary(keyPendingEncryptionPrivkey)
	if err != nil {
		return err
	}
	if !okPub || !okPriv {
		return domain.NotFound("account: no pending encryption keypair")
	}
	if err := s.storage.SetBinary(keyEncryptionPrivkey, wrapped); err != nil {
		return err
	}
	if err := s.storage.SetBinary(keyEncryptionPubkey, pub); err != nil {
		return err
	}
	return s.storage.Delete(keyPendingEncryptionPubkey, keyPendingEncryptionPrivkey)
}

// DiscardPending drops the staged keypair.
func (s *Service) DiscardPending() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storage.Delete(keyPendingEncryptionPubkey, keyPendingEncryptionPrivkey)
}

// Clear removes all account state.
func (s *Service) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storage.Delete(allKeys...)
}

// WrapEncryptionPrivkey encrypts priv under the wrapping subkey.
func WrapEncryptionPrivkey(priv domain.X25519Private, wrappingKey domain.SymmetricKey) ([]byte, error) {
	return crypto.EncryptWithSymmetricKey(priv[:], wrappingKey)
}

// UnwrapEncryptionPrivkey reverses WrapEncryptionPrivkey. A wrong wrapping
// key, which usually means a wrong password, fails verification.
func UnwrapEncryptionPrivkey(wrapped []byte, wrappingKey domain.SymmetricKey) (domain.X25519Private, error) {
	var priv domain.X25519Private
	raw, err := crypto.DecryptWithSymmetricKey(wrapped, wrappingKey)
	if err != nil {
		return priv, err
	}
	defer crypto.Wipe(raw)
	if len(raw) != len(priv) {
		return priv, domain.Malformed("wrapped privkey: want %d bytes, got %d", len(priv), len(raw))
	}
	copy(priv[:], raw)
	return priv, nil
}

func (s *Service) putKeypairLocked(pubKey, privKey string, pub domain.X25519Public, wrapped []byte) error {
	if err := s.storage.SetBinary(privKey, wrapped); err != nil {
		return err
	}
	return s.storage.SetBinary(pubKey, pub[:])
}

func (s *Service) keypair(pubKey, privKey string) (domain.EncryptionKeypair, bool, error) {
	var kp domain.EncryptionKeypair
	pub, ok, err := s.storage.GetBinary(pubKey)
	if err != nil || !ok {
		return kp, false, err
	}
	if len(pub) != len(kp.Public) {
		return kp, false, domain.Malformed("account: %s has %d bytes", pubKey, len(pub))
	}
	copy(kp.Public[:], pub)

	wrapped, ok, err := s.storage.GetBinary(privKey)
	if err != nil {
		return kp, false, err
	}
	if !ok {
		return kp, false, domain.Malformed("account: %s is missing", privKey)
	}
	wk, err := s.WrappingKey()
	if err != nil {
		return kp, false, err
	}
	if kp.Private, err = UnwrapEncryptionPrivkey(wrapped, wk); err != nil {
		return domain.EncryptionKeypair{}, false, err
	}
	if err := checkKeypair(kp); err != nil {
		return domain.EncryptionKeypair{}, false, err
	}
	return kp, true, nil
}

func (s *Service) readFixed(name string, dst []byte) error {
	b, ok, err := s.storage.GetBinary(name)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound("account: %s not set", name)
	}
	defer crypto.Wipe(b)
	if len(b) != len(dst) {
		return domain.Malformed("account: %s has %d bytes", name, len(b))
	}
	copy(dst, b)
	return nil
}

// checkKeypair verifies that kp.Public belongs to kp.Private.
func checkKeypair(kp domain.EncryptionKeypair) error {
	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		return domain.Malformed("encryption keypair: %v", err)
	}
	if [32]byte(pub) != [32]byte(kp.Public) {
		return domain.VerificationFailed("encryption keypair: public key does not match private key")
	}
	return nil
}

// Compile-time assertion that Service implements domain.CurrentAccount.
var _ domain.CurrentAccount = (*Service)(nil)
