package device_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatcore/internal/crypto"
	"chatcore/internal/domain"
	"chatcore/internal/protocol/device"
)

func TestGenerate_ProducesVerifiableDevice(t *testing.T) {
	d, err := device.Generate(42)
	require.NoError(t, err)

	assert.Equal(t, crypto.DeviceID(d.Pubkey), d.ID)
	assert.Equal(t, domain.UserID(42), d.OwnerID)
	require.NoError(t, device.VerifyLocalDevice(d))
	require.NoError(t, device.VerifyServerDevice(d.ToServerDevice(domain.DeviceActive)))
}

func TestGenerate_RejectsInvalidOwner(t *testing.T) {
	_, err := device.Generate(0)
	require.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestVerify_SignatureOverIDAndOwner(t *testing.T) {
	d, err := device.Generate(7)
	require.NoError(t, err)

	want := crypto.SignEd25519(d.Privkey, []byte(d.ID.String()+"|7"))
	assert.Equal(t, want, d.IDOwnerIDSignature)
}

func TestVerify_WrongOwnerFails(t *testing.T) {
	d, err := device.Generate(7)
	require.NoError(t, err)

	sd := d.ToServerDevice(domain.DeviceActive)
	sd.OwnerID = 8
	require.ErrorIs(t, device.VerifyServerDevice(sd), domain.ErrVerificationFailed)
}

func TestVerify_FingerprintMismatchFails(t *testing.T) {
	d, err := device.Generate(7)
	require.NoError(t, err)
	other, err := device.Generate(7)
	require.NoError(t, err)

	err = device.Verify(other.ID, d.OwnerID, d.Pubkey, d.IDOwnerIDSignature)
	require.ErrorIs(t, err, domain.ErrVerificationFailed)
}

func TestVerify_FlippedBitsFail(t *testing.T) {
	d, err := device.Generate(7)
	require.NoError(t, err)
	require.NoError(t, device.Verify(d.ID, d.OwnerID, d.Pubkey, d.IDOwnerIDSignature))

	for i := range d.IDOwnerIDSignature {
		sig := d.IDOwnerIDSignature
		sig[i] ^= 0x01
		require.ErrorIs(t, device.Verify(d.ID, d.OwnerID, d.Pubkey, sig), domain.ErrVerificationFailed, "signature byte %d", i)
	}
	for i := range d.Pubkey {
		pub := d.Pubkey
		pub[i] ^= 0x01
		require.ErrorIs(t, device.Verify(d.ID, d.OwnerID, pub, d.IDOwnerIDSignature), domain.ErrVerificationFailed, "pubkey byte %d", i)
	}

	id := []byte(d.ID)
	id[0] ^= 0x01
	require.ErrorIs(t, device.Verify(domain.DeviceID(id), d.OwnerID, d.Pubkey, d.IDOwnerIDSignature), domain.ErrVerificationFailed)
	require.ErrorIs(t, device.Verify(d.ID, d.OwnerID^1, d.Pubkey, d.IDOwnerIDSignature), domain.ErrVerificationFailed)
}

func TestVerifyLocalDevice_MismatchedPrivateKey(t *testing.T) {
	d, err := device.Generate(7)
	require.NoError(t, err)
	other, err := device.Generate(7)
	require.NoError(t, err)

	d.Privkey = other.Privkey
	require.ErrorIs(t, device.VerifyLocalDevice(d), domain.ErrVerificationFailed)
}

func TestServerDevice_JSONRoundTrip(t *testing.T) {
	d, err := device.Generate(3)
	require.NoError(t, err)
	sd := d.ToServerDevice(domain.DeviceActive)

	b, err := json.Marshal(sd)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, d.ID.String()+","+crypto.B64(d.IDOwnerIDSignature[:]), raw["idOwnerIdSignature"])
	assert.Nil(t, raw["blockTime"])

	var back domain.ServerDevice
	require.NoError(t, domain.DecodeJSON(b, &back))
	assert.Equal(t, sd, back)
	require.NoError(t, device.VerifyServerDevice(back))
}

func TestServerDevice_SignatureDeviceMismatchRejected(t *testing.T) {
	d, err := device.Generate(3)
	require.NoError(t, err)
	other, err := device.Generate(3)
	require.NoError(t, err)

	sd := d.ToServerDevice(domain.DeviceActive)
	sd.IDOwnerIDSignature.DeviceID = other.ID
	b, err := json.Marshal(sd)
	require.NoError(t, err)

	var back domain.ServerDevice
	require.ErrorIs(t, domain.DecodeJSON(b, &back), domain.ErrMalformedInput)
	require.ErrorIs(t, device.VerifyServerDevice(sd), domain.ErrMalformedInput)
}

func TestLocalDevice_JSONRoundTrip(t *testing.T) {
	d, err := device.Generate(3)
	require.NoError(t, err)

	b, err := json.Marshal(d)
	require.NoError(t, err)
	var back domain.LocalDevice
	require.NoError(t, domain.DecodeJSON(b, &back))
	assert.Equal(t, d, back)

	var missing domain.LocalDevice
	require.ErrorIs(t, domain.DecodeJSON([]byte(`{"id":"x","ownerId":1}`), &missing), domain.ErrMalformedInput)
}
