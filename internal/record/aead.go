package record

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// aeadCipher is the tagged union `AeadCipher { Aes128Gcm, ChaCha20Poly1305 }`
// described in spec.md §3, paired with its 12-byte IV. It owns the stdlib or
// x/crypto AEAD instance and computes the per-record nonce.
type aeadCipher struct {
	suite CipherSuite
	aead  cipher.AEAD
	iv    [12]byte
}

func newAeadCipher(suite CipherSuite, key, iv []byte) (*aeadCipher, error) {
	if len(iv) != 12 {
		return nil, fmt.Errorf("record: IV must be 12 bytes, got %d", len(iv))
	}
	var aead cipher.AEAD
	var err error
	switch suite {
	case SuiteAes128GcmSha256:
		if len(key) != 16 {
			return nil, fmt.Errorf("record: AES-128-GCM key must be 16 bytes, got %d", len(key))
		}
		var block cipher.Block
		block, err = aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		aead, err = cipher.NewGCM(block)
	case SuiteChacha20Poly1305Sha256:
		if len(key) != 32 {
			return nil, fmt.Errorf("record: ChaCha20-Poly1305 key must be 32 bytes, got %d", len(key))
		}
		aead, err = chacha20poly1305.New(key)
	default:
		return nil, &ErrUnsupportedSuite{Got: suite}
	}
	if err != nil {
		return nil, err
	}
	c := &aeadCipher{suite: suite, aead: aead}
	copy(c.iv[:], iv)
	return c, nil
}

// nonce computes IV XOR be64(seq) right-aligned, per spec.md §3's AeadCipher
// invariant.
func (c *aeadCipher) nonce(seq uint64) []byte {
	var seqBytes [12]byte
	binary.BigEndian.PutUint64(seqBytes[4:], seq)
	n := make([]byte, 12)
	for i := range n {
		n[i] = c.iv[i] ^ seqBytes[i]
	}
	return n
}

func (c *aeadCipher) seal(seq uint64, aad, plaintext []byte) []byte {
	return c.aead.Seal(nil, c.nonce(seq), plaintext, aad)
}

func (c *aeadCipher) open(seq uint64, aad, ciphertext []byte) ([]byte, error) {
	return c.aead.Open(nil, c.nonce(seq), ciphertext, aad)
}
