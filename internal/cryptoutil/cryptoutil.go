// Package cryptoutil collects small crypto helpers shared across the
// notary's components: the session-signing digest and ECDSA signature used
// by the relay's /sign endpoint, AES-GCM helpers, and Keccak-256 used to bind extraction results
// into the proof. It is adapted from the teacher's utils/utils.go, trimmed
// to the primitives this domain still needs — see DESIGN.md for what was
// dropped and why.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"

	"golang.org/x/crypto/sha3"
)

// Sha256 returns the SHA-256 digest of data.
func Sha256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// Keccak256 returns the Keccak-256 digest of data, used by the manifest
// package to bind an ExtractionResult into the proof (spec.md §4.3's
// "Result digest").
func Keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// Concat concatenates byte slices into a new slice.
func Concat(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	out := make([]byte, 0, total)
	for _, s := range slices {
		out = append(out, s...)
	}
	return out
}

// GetRandom returns n cryptographically random bytes.
func GetRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("cryptoutil: reading random bytes: %w", err)
	}
	return b, nil
}

// AESGCMEncrypt encrypts plaintext under key with a fresh random 12-byte
// nonce and returns nonce||ciphertext, the same wire format the teacher's
// Session used between client and notary.
func AESGCMEncrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)
	return Concat(nonce, ciphertext), nil
}

// AESGCMDecrypt is the inverse of AESGCMEncrypt.
func AESGCMDecrypt(key, nonceAndCiphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(nonceAndCiphertext) < aead.NonceSize() {
		return nil, fmt.Errorf("cryptoutil: ciphertext too short")
	}
	nonce := nonceAndCiphertext[:aead.NonceSize()]
	ct := nonceAndCiphertext[aead.NonceSize():]
	return aead.Open(nil, nonce, ct, nil)
}

// ECDSASign concatenates items, hashes them with SHA-256, and returns an
// ASN.1 DER-encoded ECDSA signature over the digest. It is the same
// "concat-then-sign" pattern the teacher uses in aes_tag.TagSigningManager.Sign
// to produce the notary's session signature, generalized from a fixed
// 11-item decimal-string ciphertext list to a variadic byte-slice one.
func ECDSASign(key *ecdsa.PrivateKey, items ...[]byte) ([]byte, error) {
	digest := Sha256(Concat(items...))
	der, err := ecdsa.SignASN1(rand.Reader, key, digest)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: ecdsa sign: %w", err)
	}
	return der, nil
}

// ECDSAPubkeyToPEM PEM-encodes a public key, used to serve the notary's
// signing key at GET /signing-key.pem (adapted from the teacher's
// aes_tag.TagSigningManager.ServePublicKey).
func ECDSAPubkeyToPEM(key *ecdsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// GenerateSigningKey creates a fresh P-256 ECDSA signing key, mirroring the
// teacher's ephemeral per-deployment signing key in
// aes_tag.NewTagSigningManager.
func GenerateSigningKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}
