package kdf_test

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatcore/internal/domain"
	"chatcore/internal/kdf"
)

func masterKey(t *testing.T) domain.MasterKey {
	t.Helper()
	b, err := hex.DecodeString("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	return domain.MasterKey(b)
}

func TestDerive_KnownSubkeys(t *testing.T) {
	mk := masterKey(t)
	cases := map[kdf.Subkey]string{
		kdf.LoginKey:                     "8694ed3dd35635bef850edc16cd8ba2033cf6e57ba9c04e612f852ebb90d73f9",
		kdf.PasswordVerificationKey:      "2bd9f5205e8e09ec7c79975daa23d6e0a72afb1c1ca886e1f5bd17b7dd390ffd",
		kdf.EncryptionPrivkeyWrappingKey: "5e388a104845d0d18ee739ca074cdd1ce03558c2f0addb8e5a353823a18d0fad",
	}
	for id, want := range cases {
		got, err := kdf.Derive(id, mk)
		require.NoError(t, err)
		assert.Equal(t, want, hex.EncodeToString(got[:]), id.String())
	}
}

func TestDerive_Deterministic(t *testing.T) {
	mk := masterKey(t)
	a, err := kdf.Derive(kdf.LoginKey, mk)
	require.NoError(t, err)
	b, err := kdf.Derive(kdf.LoginKey, mk)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDerive_OutOfRange(t *testing.T) {
	_, err := kdf.Derive(kdf.Subkey(-5), masterKey(t))
	require.ErrorIs(t, err, domain.ErrConfiguration)
	_, err = kdf.Derive(kdf.Subkey(1<<31), masterKey(t))
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestDeriveAll_IndependentKeys(t *testing.T) {
	keys, err := kdf.DeriveAll(masterKey(t))
	require.NoError(t, err)
	assert.NotEqual(t, keys.Login, keys.PasswordVerification)
	assert.NotEqual(t, keys.Login, keys.Wrapping)
	assert.NotEqual(t, keys.PasswordVerification, keys.Wrapping)
}

func TestArgon2id_LightParameters(t *testing.T) {
	h := kdf.Argon2id{Time: 1, MemoryKiB: 64, Threads: 1}
	a, err := h.Harden(context.Background(), "correct horse")
	require.NoError(t, err)
	b, err := h.Harden(context.Background(), "correct horse")
	require.NoError(t, err)
	c, err := h.Harden(context.Background(), "wrong horse")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	h.Salt[0] = 1
	d, err := h.Harden(context.Background(), "correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, a, d)
}

func TestArgon2id_ZeroParameters(t *testing.T) {
	_, err := kdf.Argon2id{}.Harden(context.Background(), "pw")
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestDefaultArgon2id_MatchesProductionParameters(t *testing.T) {
	h := kdf.DefaultArgon2id()
	assert.EqualValues(t, 20, h.Time)
	assert.EqualValues(t, 65536, h.MemoryKiB)
	assert.EqualValues(t, 1, h.Threads)
	assert.Equal(t, [16]byte{}, h.Salt)
}

func TestInsecure_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := kdf.Insecure{}.Harden(ctx, "pw")
	require.ErrorIs(t, err, context.Canceled)
}
