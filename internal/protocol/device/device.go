package device

import (
	"chatcore/internal/crypto"
	"chatcore/internal/domain"
)

// IDOwnerIDMessage returns the bytes covered by a device's self-signature.
func IDOwnerIDMessage(id domain.DeviceID, ownerID domain.UserID) []byte {
	return []byte(id.String() + "|" + ownerID.String())
}

// Generate creates a new device for ownerID.
func Generate(ownerID domain.UserID) (domain.LocalDevice, error) {
	if ownerID <= 0 {
		return domain.LocalDevice{}, domain.Malformed("device: invalid owner id %d", ownerID)
	}
	priv, pub, err := crypto.GenerateEd25519()
	if err != nil {
		return domain.LocalDevice{}, err
	}
	id := crypto.DeviceID(pub)
	return domain.LocalDevice{
		ID:                 id,
		OwnerID:            ownerID,
		IDOwnerIDSignature: crypto.SignEd25519(priv, IDOwnerIDMessage(id, ownerID)),
		Pubkey:             pub,
		Privkey:            priv,
	}, nil
}

// Verify checks that id is the fingerprint of pub and that sig is pub's
// signature over "id|ownerId".
func Verify(
	id domain.DeviceID,
	ownerID domain.UserID,
	pub domain.Ed25519Public,
	sig domain.Ed25519Signature,
) error {
	if want := crypto.DeviceID(pub); want != id {
		return domain.VerificationFailed("device %s: fingerprint mismatch", id)
	}
	if !crypto.VerifyEd25519(pub, IDOwnerIDMessage(id, ownerID), sig) {
		return domain.VerificationFailed("device %s: bad id/owner signature", id)
	}
	return nil
}

// VerifyServerDevice runs Verify on a server-provided device.
func VerifyServerDevice(d domain.ServerDevice) error {
	if d.IDOwnerIDSignature.DeviceID != d.ID {
		return domain.Malformed("device %s: signature made by %s", d.ID, d.IDOwnerIDSignature.DeviceID)
	}
	return Verify(d.ID, d.OwnerID, d.Pubkey, d.IDOwnerIDSignature.Signature)
}

// VerifyLocalDevice checks a locally stored device, including that the
// private key matches the public key.
func VerifyLocalDevice(d domain.LocalDevice) error {
	if d.Privkey.Public() != d.Pubkey {
		return domain.VerificationFailed("device %s: private key does not match public key", d.ID)
	}
	return Verify(d.ID, d.OwnerID, d.Pubkey, d.IDOwnerIDSignature)
}
