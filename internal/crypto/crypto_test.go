package crypto_test

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatcore/internal/crypto"
	"chatcore/internal/domain"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func kdfMasterKey(t *testing.T) []byte {
	t.Helper()
	return mustHex(t, "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
}

func TestBlake2b_KnownVectors(t *testing.T) {
	cases := []struct {
		size crypto.Blake2bSize
		in   string
		want string
	}{
		{crypto.Blake2b128, "", "cae66941d9efbd404e4d88758ea67670"},
		{crypto.Blake2b128, "abc", "cf4ab791c62b8d2b2109c90275287816"},
		{crypto.Blake2b512, "abc", "ba80a53f981c4d0d6a2797b69f12f6e94c212f14685ac4b74b12bb6fdbffa2d1" +
			"7d87c5392aab792dc252d5de4533cc9518d38aa8dbf1925ab92386edd4009923"},
	}
	for _, c := range cases {
		got, err := crypto.Blake2b(c.size, []byte(c.in))
		require.NoError(t, err)
		assert.Equal(t, c.want, hex.EncodeToString(got))
	}
}

func TestBlake2b_UnsupportedSize(t *testing.T) {
	_, err := crypto.Blake2b(20, []byte("abc"))
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestBlake2bKDF_KnownVectors(t *testing.T) {
	mk := kdfMasterKey(t)
	want := map[int64]string{
		1: "8694ed3dd35635bef850edc16cd8ba2033cf6e57ba9c04e612f852ebb90d73f9",
		2: "2bd9f5205e8e09ec7c79975daa23d6e0a72afb1c1ca886e1f5bd17b7dd390ffd",
		3: "5e388a104845d0d18ee739ca074cdd1ce03558c2f0addb8e5a353823a18d0fad",
	}
	for id, hexWant := range want {
		got, err := crypto.Blake2bKDF(id, "CHATv001", mk)
		require.NoError(t, err)
		assert.Equal(t, hexWant, hex.EncodeToString(got), "subkey %d", id)
	}
}

func TestBlake2bKDF_RejectsBadParameters(t *testing.T) {
	mk := kdfMasterKey(t)

	_, err := crypto.Blake2bKDF(-1, "CHATv001", mk)
	require.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = crypto.Blake2bKDF(crypto.MaxSubkeyID+1, "CHATv001", mk)
	require.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = crypto.Blake2bKDF(1, "short", mk)
	require.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = crypto.Blake2bKDF(1, "CHATv001", mk[:31])
	require.ErrorIs(t, err, domain.ErrMalformedInput)

	_, err = crypto.Blake2bKDF(crypto.MaxSubkeyID, "CHATv001", mk)
	require.NoError(t, err)
}

func TestEd25519_DetachedRoundTrip(t *testing.T) {
	priv, pub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	assert.Equal(t, pub, priv.Public())

	sig := crypto.SignEd25519(priv, []byte("hello"))
	assert.True(t, crypto.VerifyEd25519(pub, []byte("hello"), sig))
	assert.False(t, crypto.VerifyEd25519(pub, []byte("hellO"), sig))
}

func TestEd25519_AttachedRoundTripAndTamper(t *testing.T) {
	priv, pub, err := crypto.GenerateEd25519()
	require.NoError(t, err)

	signed := crypto.SignAttached(priv, []byte("payload"))
	require.Len(t, signed, 64+len("payload"))

	msg, err := crypto.OpenAttached(pub, signed)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), msg)

	signed[len(signed)-1] ^= 1
	_, err = crypto.OpenAttached(pub, signed)
	require.ErrorIs(t, err, domain.ErrVerificationFailed)

	_, err = crypto.OpenAttached(pub, signed[:10])
	require.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestEd25519_AttachedWrongKey(t *testing.T) {
	priv, _, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	_, other, err := crypto.GenerateEd25519()
	require.NoError(t, err)

	_, err = crypto.OpenAttached(other, crypto.SignAttached(priv, []byte("x")))
	require.True(t, errors.Is(err, domain.ErrVerificationFailed))
}

func TestSealedBox_RoundTrip(t *testing.T) {
	kp, err := crypto.GenerateEncryptionKeypair()
	require.NoError(t, err)

	sealed, err := crypto.SealAnonymous([]byte("secret"), kp.Public)
	require.NoError(t, err)
	assert.Len(t, sealed, len("secret")+crypto.SealOverhead)

	out, err := crypto.OpenAnonymous(sealed, kp)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), out)
}

func TestSealedBox_WrongRecipientAndShortInput(t *testing.T) {
	kp, err := crypto.GenerateEncryptionKeypair()
	require.NoError(t, err)
	other, err := crypto.GenerateEncryptionKeypair()
	require.NoError(t, err)

	sealed, err := crypto.SealAnonymous([]byte("secret"), kp.Public)
	require.NoError(t, err)

	_, err = crypto.OpenAnonymous(sealed, other)
	require.ErrorIs(t, err, domain.ErrVerificationFailed)

	_, err = crypto.OpenAnonymous(sealed[:crypto.SealOverhead-1], kp)
	require.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestChaCha20Poly1305_EmptyPlaintextVector(t *testing.T) {
	key := make([]byte, 32)
	nonce := make([]byte, 12)

	ct, err := crypto.ChaCha20Poly1305Encrypt(nil, key, nonce)
	require.NoError(t, err)
	assert.Equal(t, "4eb972c9a8fb3a1b382bb4d36f5ffad1", hex.EncodeToString(ct))

	pt, err := crypto.ChaCha20Poly1305Decrypt(ct, key, nonce)
	require.NoError(t, err)
	assert.Empty(t, pt)
}

func TestChaCha20Poly1305_BadSizes(t *testing.T) {
	_, err := crypto.ChaCha20Poly1305Encrypt([]byte("x"), make([]byte, 31), make([]byte, 12))
	require.ErrorIs(t, err, domain.ErrMalformedInput)
	_, err = crypto.ChaCha20Poly1305Encrypt([]byte("x"), make([]byte, 32), make([]byte, 24))
	require.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestEnvelope_RoundTripLayoutAndTamper(t *testing.T) {
	key, err := crypto.GenerateSymmetricKey()
	require.NoError(t, err)

	env, err := crypto.EncryptWithSymmetricKey([]byte("attack at dawn"), key)
	require.NoError(t, err)
	require.Len(t, env, crypto.NonceBytes+len("attack at dawn")+crypto.TagBytes)

	manual, err := crypto.ChaCha20Poly1305Decrypt(env[crypto.NonceBytes:], key[:], env[:crypto.NonceBytes])
	require.NoError(t, err)
	assert.Equal(t, []byte("attack at dawn"), manual)

	out, err := crypto.DecryptWithSymmetricKey(env, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("attack at dawn"), out)

	env[crypto.NonceBytes] ^= 0x80
	_, err = crypto.DecryptWithSymmetricKey(env, key)
	require.ErrorIs(t, err, domain.ErrVerificationFailed)
}

func TestEnvelope_FreshNonces(t *testing.T) {
	key, err := crypto.GenerateSymmetricKey()
	require.NoError(t, err)
	a, err := crypto.EncryptWithSymmetricKey([]byte("same"), key)
	require.NoError(t, err)
	b, err := crypto.EncryptWithSymmetricKey([]byte("same"), key)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(a[:crypto.NonceBytes], b[:crypto.NonceBytes]))
}

func TestEnvelope_TooShort(t *testing.T) {
	var key domain.SymmetricKey
	_, err := crypto.DecryptWithSymmetricKey(make([]byte, crypto.NonceBytes+crypto.TagBytes-1), key)
	require.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestConversationKeyID_KnownKeys(t *testing.T) {
	var seq domain.SymmetricKey
	for i := range seq {
		seq[i] = byte(i)
	}
	assert.Equal(t, domain.ConversationKeyID("491112dd01155c07dab485f71b572e0c"), crypto.ConversationKeyID(seq))

	raw, err := crypto.DecodeB64("99a47eCaRcfC0/0WiiiexgP0C8QwgGDSYWSA2vO380g=")
	require.NoError(t, err)
	var key domain.SymmetricKey
	copy(key[:], raw)
	assert.Equal(t, domain.ConversationKeyID("961e57c49ac08a897349d862ccc3f2f2"), crypto.ConversationKeyID(key))
}

func TestFingerprint_DeviceIDIs32Hex(t *testing.T) {
	_, pub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	id := crypto.DeviceID(pub)
	assert.Len(t, id, 32)
	assert.Equal(t, crypto.Fingerprint(pub[:]), id.String())
}

func TestDecoders_RejectGarbage(t *testing.T) {
	_, err := crypto.DecodeB64("not base64!")
	require.ErrorIs(t, err, domain.ErrMalformedInput)
	_, err = crypto.DecodeB64("YQ")
	require.ErrorIs(t, err, domain.ErrMalformedInput)
	_, err = crypto.DecodeHex("abc")
	require.ErrorIs(t, err, domain.ErrMalformedInput)
	_, err = crypto.DecodeHex("zz")
	require.ErrorIs(t, err, domain.ErrMalformedInput)

	b, err := crypto.DecodeB64(crypto.B64([]byte{0, 1, 2}))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2}, b)
}

func TestRandomID_Unique(t *testing.T) {
	a, err := crypto.RandomID()
	require.NoError(t, err)
	b, err := crypto.RandomID()
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
