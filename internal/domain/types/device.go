package types

import (
	"encoding/json"
	"strings"
	"time"
)

// DeviceState is the server-side lifecycle state of a device.
type DeviceState string

const (
	DeviceActive  DeviceState = "active"
	DeviceBlocked DeviceState = "blocked"
)

// SignatureBundle pairs a signature with the device that made it.
// Its wire form is "<deviceId>,<base64 signature>".
type SignatureBundle struct {
	DeviceID  DeviceID
	Signature Ed25519Signature
}

// String returns the wire form of the bundle.
func (s SignatureBundle) String() string {
	return s.DeviceID.String() + "," + string(marshalB64(s.Signature[:]))
}

// ParseSignatureBundle parses the "<deviceId>,<base64 signature>" wire form.
func ParseSignatureBundle(s string) (SignatureBundle, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return SignatureBundle{}, Malformed("signature bundle: want 2 parts, got %d", len(parts))
	}
	if parts[0] == "" {
		return SignatureBundle{}, Malformed("signature bundle: empty device id")
	}
	out := SignatureBundle{DeviceID: DeviceID(parts[0])}
	if err := out.Signature.UnmarshalText([]byte(parts[1])); err != nil {
		return SignatureBundle{}, err
	}
	return out, nil
}

// MarshalText encodes the bundle in its wire form.
func (s SignatureBundle) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes the bundle from its wire form.
func (s *SignatureBundle) UnmarshalText(b []byte) error {
	parsed, err := ParseSignatureBundle(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// LocalDevice is the current device including its private signing key.
// It is persisted locally and never sent to the server.
type LocalDevice struct {
	ID                 DeviceID         `json:"id"`
	OwnerID            UserID           `json:"ownerId"`
	IDOwnerIDSignature Ed25519Signature `json:"idOwnerIdSignature"`
	Pubkey             Ed25519Public    `json:"pubkey"`
	Privkey            Ed25519Private   `json:"privkey"`
}

// ToServerDevice returns the public view of the device in the given state.
func (d LocalDevice) ToServerDevice(state DeviceState) ServerDevice {
	return ServerDevice{
		ID:      d.ID,
		OwnerID: d.OwnerID,
		Pubkey:  d.Pubkey,
		State:   state,
		IDOwnerIDSignature: SignatureBundle{
			DeviceID:  d.ID,
			Signature: d.IDOwnerIDSignature,
		},
	}
}

// UnmarshalJSON decodes a local device and rejects missing fields.
func (d *LocalDevice) UnmarshalJSON(b []byte) error {
	type raw LocalDevice
	var r raw
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	switch {
	case r.ID == "":
		return Malformed("local device: missing id")
	case r.OwnerID == 0:
		return Malformed("local device: missing ownerId")
	case r.Pubkey == Ed25519Public{}:
		return Malformed("local device: missing pubkey")
	case r.Privkey == Ed25519Private{}:
		return Malformed("local device: missing privkey")
	case r.IDOwnerIDSignature == Ed25519Signature{}:
		return Malformed("local device: missing idOwnerIdSignature")
	}
	*d = LocalDevice(r)
	return nil
}

// ServerDevice is the server's public view of a device.
//
// ID must equal IDOwnerIDSignature.DeviceID.
type ServerDevice struct {
	ID                 DeviceID        `json:"id"`
	OwnerID            UserID          `json:"ownerId"`
	Pubkey             Ed25519Public   `json:"pubkey"`
	State              DeviceState     `json:"state"`
	BlockTime          *time.Time      `json:"blockTime"`
	IDOwnerIDSignature SignatureBundle `json:"idOwnerIdSignature"`
}

// UnmarshalJSON decodes a server device and enforces its invariants.
func (d *ServerDevice) UnmarshalJSON(b []byte) error {
	type raw ServerDevice
	var r raw
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	switch {
	case r.ID == "":
		return Malformed("server device: missing id")
	case r.OwnerID == 0:
		return Malformed("server device: missing ownerId")
	case r.Pubkey == Ed25519Public{}:
		return Malformed("server device: missing pubkey")
	case r.State == "":
		return Malformed("server device: missing state")
	case r.IDOwnerIDSignature.DeviceID != r.ID:
		return Malformed("server device: signature device %q does not match id %q",
			r.IDOwnerIDSignature.DeviceID, r.ID)
	}
	*d = ServerDevice(r)
	return nil
}
