package ratls

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anoma/kassandra-service/internal/wire"
)

func TestHandshakeAndEncryptDecryptRoundTrip(t *testing.T) {
	client, err := New()
	require.NoError(t, err)
	enclave, err := New()
	require.NoError(t, err)

	require.NoError(t, client.Initialize(enclave.EphemeralPublicKey()))
	require.NoError(t, enclave.Initialize(client.EphemeralPublicKey()))

	plaintext := []byte("a registration payload")
	ct, err := client.EncryptMsg(plaintext)
	require.NoError(t, err)

	got, err := enclave.DecryptMsg(ct)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestInitializeRejectsNonContributorySecret(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	var zeroPub [32]byte // the identity point: always produces an all-zero shared secret
	err = c.Initialize(zeroPub)
	require.ErrorIs(t, err, ErrNonContributory)
}

func TestInitializeTwiceFails(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	other, err := New()
	require.NoError(t, err)

	require.NoError(t, c.Initialize(other.EphemeralPublicKey()))
	require.ErrorIs(t, c.Initialize(other.EphemeralPublicKey()), ErrAlreadyInitialized)
}

func TestEncryptBeforeInitializeFails(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	_, err = c.EncryptMsg([]byte("x"))
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	client, err := New()
	require.NoError(t, err)
	enclave, err := New()
	require.NoError(t, err)
	require.NoError(t, client.Initialize(enclave.EphemeralPublicKey()))
	require.NoError(t, enclave.Initialize(client.EphemeralPublicKey()))

	ct, err := client.EncryptMsg([]byte("hello"))
	require.NoError(t, err)
	ct.Payload[0] ^= 0xFF

	_, err = enclave.DecryptMsg(ct)
	require.Error(t, err)
}

func TestReportDataRoundTrip(t *testing.T) {
	var pub [32]byte
	copy(pub[:], []byte("enclave-ephemeral-public-key-32"))
	const nonce uint64 = 0xdeadbeefcafef00d

	rd := BuildReportData(pub, nonce)
	require.Equal(t, pub, ExtractEphemeralPub(rd))
	require.Equal(t, nonce, ExtractNonce(rd))
	for _, b := range rd[40:64] {
		require.Zero(t, b)
	}
}

func TestEncryptMsgOutputDecryptsAsTlsCiphertext(t *testing.T) {
	client, err := New()
	require.NoError(t, err)
	enclave, err := New()
	require.NoError(t, err)
	require.NoError(t, client.Initialize(enclave.EphemeralPublicKey()))
	require.NoError(t, enclave.Initialize(client.EphemeralPublicKey()))

	var ct wire.TlsCiphertext
	payload, err := client.EncryptMsg([]byte("payload"))
	require.NoError(t, err)
	ct = payload

	_, err = enclave.DecryptMsg(ct)
	require.NoError(t, err)
}
