package record

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildApplicationEngine wires up an Engine directly at the application
// stage with fixed, known keys — mirroring the teacher's practice
// (session.go) of exercising the AEAD primitives independent of the full
// handshake state machine.
func buildApplicationEngine(t *testing.T, suite CipherSuite, key, iv []byte) *Engine {
	t.Helper()
	e := NewEngine(nil)
	require.NoError(t, e.SetProtocolVersion(TLS13))
	require.NoError(t, e.SetCipherSuite(suite))
	clientCipher, err := newAeadCipher(suite, key, iv)
	require.NoError(t, err)
	e.clientCipher = clientCipher
	e.serverCipher = clientCipher
	e.ks.stage = StageApplication
	return e
}

func TestAEADRoundTripChaCha20(t *testing.T) {
	key := make([]byte, 32)
	iv := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	e := buildApplicationEngine(t, SuiteChacha20Poly1305Sha256, key, iv)

	plaintext := make([]byte, 100)
	for i := range plaintext {
		plaintext[i] = byte(i)
	}

	ciphertext, err := e.Encrypt(DirectionClient, plaintext, ContentTypeApplicationData, 7)
	require.NoError(t, err)

	got, contentType, err := e.Decrypt(DirectionClient, ciphertext, 7)
	require.NoError(t, err)
	require.Equal(t, ContentTypeApplicationData, contentType)
	require.Equal(t, plaintext, got)
}

func TestAEADRoundTripAes128Gcm(t *testing.T) {
	key := make([]byte, 16)
	iv := make([]byte, 12)
	e := buildApplicationEngine(t, SuiteAes128GcmSha256, key, iv)

	plaintext := []byte("hello notarized world")
	ciphertext, err := e.Encrypt(DirectionServer, plaintext, ContentTypeApplicationData, 0)
	require.NoError(t, err)

	got, contentType, err := e.Decrypt(DirectionServer, ciphertext, 0)
	require.NoError(t, err)
	require.Equal(t, ContentTypeApplicationData, contentType)
	require.Equal(t, plaintext, got)
}

func TestNonceSequencing(t *testing.T) {
	key := make([]byte, 32)
	iv := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	e := buildApplicationEngine(t, SuiteChacha20Poly1305Sha256, key, iv)

	var nonces [][]byte
	for seq := uint64(0); seq < 5; seq++ {
		_, err := e.Encrypt(DirectionClient, []byte("x"), ContentTypeApplicationData, seq)
		require.NoError(t, err)
		nonces = append(nonces, e.clientCipher.nonce(seq))
	}

	seen := map[string]bool{}
	for i, n := range nonces {
		expected := e.clientCipher.nonce(uint64(i))
		require.Equal(t, expected, n)
		require.False(t, seen[string(n)], "nonce must be pairwise distinct")
		seen[string(n)] = true
	}

	require.NoError(t, e.Witness.CheckSequencing())
}

func TestSetProtocolVersionRejectsNonTLS13(t *testing.T) {
	e := NewEngine(nil)
	err := e.SetProtocolVersion(0x0303)
	require.Error(t, err)
}

func TestSetCipherSuiteRejectsUnknown(t *testing.T) {
	e := NewEngine(nil)
	err := e.SetCipherSuite(CipherSuite(99))
	require.Error(t, err)
}

func TestPostHandshakeDecryptMissIsTolerated(t *testing.T) {
	key := make([]byte, 32)
	iv := make([]byte, 12)
	e := buildApplicationEngine(t, SuiteChacha20Poly1305Sha256, key, iv)

	garbage := make([]byte, 32)
	_, _, err := e.Decrypt(DirectionClient, garbage, 0)
	require.Error(t, err)
	var missErr *ErrPostHandshakeDecryptMiss
	require.ErrorAs(t, err, &missErr)

	entries := e.Witness.ForDirection(DirectionClient)
	require.Len(t, entries, 1)
	require.True(t, entries[0].DecryptMiss)
	require.Nil(t, entries[0].Plaintext)
	require.NotNil(t, entries[0].Ciphertext)
}

func TestHandshakeDecryptFailureIsFatal(t *testing.T) {
	key := make([]byte, 32)
	iv := make([]byte, 12)
	e := buildApplicationEngine(t, SuiteChacha20Poly1305Sha256, key, iv)
	e.ks.stage = StageHandshake

	garbage := make([]byte, 32)
	_, _, err := e.Decrypt(DirectionClient, garbage, 0)
	require.Error(t, err)
	_, isMiss := err.(*ErrPostHandshakeDecryptMiss)
	require.False(t, isMiss, "handshake-stage decrypt failure must not be the tolerated post-handshake miss")
}
