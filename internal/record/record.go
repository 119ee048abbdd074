package record

import (
	"encoding/binary"
	"fmt"
)

// Record is an opaque TLS 1.3 record as seen on the wire: content-type
// marker (always application_data after the handshake completes, per
// spec.md §3), protocol version marker, and opaque payload.
type Record struct {
	ContentType ContentType
	Version     ProtocolVersion
	Payload     []byte
}

// recordAAD builds the TLS 1.3 record AAD: {0x17, 0x03, 0x03, be16(len+1+16)}
// as specified in spec.md §4.1, where len is the plaintext length. innerLen
// is the length of the inner plaintext, which already includes the 1-byte
// content type, so the length field is innerLen+16.
func recordAAD(innerLen int) []byte {
	out := make([]byte, 5)
	out[0] = byte(ContentTypeApplicationData)
	out[1] = 0x03
	out[2] = 0x03
	binary.BigEndian.PutUint16(out[3:], uint16(innerLen+16))
	return out
}

func cipherFor(e *Engine, dir Direction) (*aeadCipher, error) {
	switch dir {
	case DirectionClient:
		if e.clientCipher == nil {
			return nil, fmt.Errorf("record: no client cipher installed for current stage")
		}
		return e.clientCipher, nil
	case DirectionServer:
		if e.serverCipher == nil {
			return nil, fmt.Errorf("record: no server cipher installed for current stage")
		}
		return e.serverCipher, nil
	default:
		return nil, fmt.Errorf("record: invalid direction %v", dir)
	}
}

// Encrypt appends the inner content-type byte to plaintext, computes the
// record AAD, derives the nonce from seq, runs the AEAD, and emits the
// opaque record. Every call appends an entry to the engine's witness log.
func (e *Engine) Encrypt(dir Direction, plaintext []byte, contentType ContentType, seq uint64) ([]byte, error) {
	e.mu.Lock()
	c, err := cipherFor(e, dir)
	stage := e.ks.stage
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	inner := make([]byte, len(plaintext)+1)
	copy(inner, plaintext)
	inner[len(plaintext)] = byte(contentType)

	aad := recordAAD(len(inner))
	ciphertext := c.seal(seq, aad, inner)

	e.Witness.Append(WitnessEntry{
		Direction:   dir,
		Sequence:    seq,
		ContentType: contentType,
		FirstByte:   firstByteOf(plaintext),
		Nonce:       c.nonce(seq),
		AAD:         aad,
		Plaintext:   plaintext,
		Ciphertext:  ciphertext,
		Stage:       stage,
	})
	return ciphertext, nil
}

// Decrypt is the inverse of Encrypt: it strips trailing zero padding (none
// is produced by this engine, but defensive per RFC 8446 §5.2), recovers the
// true inner content type from the last nonzero byte, and emits
// (plaintext, content_type).
//
// Per spec.md §4.1's failure model: AEAD failure on a handshake record is
// fatal. AEAD failure on an application record occurring after the last
// handshake record is tolerated — the ciphertext is archived with no
// plaintext, because the notary will not possess application keys in the
// MPC variant. This is signaled via ErrPostHandshakeDecryptMiss rather than
// a bare error, so callers can distinguish recoverable misses from fatal
// handshake failures.
func (e *Engine) Decrypt(dir Direction, ciphertext []byte, seq uint64) ([]byte, ContentType, error) {
	e.mu.Lock()
	c, err := cipherFor(e, dir)
	stage := e.ks.stage
	e.mu.Unlock()
	if err != nil {
		return nil, ContentTypeInvalid, err
	}

	innerLen := len(ciphertext) - 16
	if innerLen < 0 {
		innerLen = 0
	}
	aad := recordAAD(innerLen)
	inner, openErr := c.open(seq, aad, ciphertext)
	if openErr != nil {
		if stage == StageHandshake {
			return nil, ContentTypeInvalid, fmt.Errorf("record: handshake AEAD failure (fatal): %w", openErr)
		}
		// Tolerated: archive ciphertext only, no plaintext.
		e.Witness.Append(WitnessEntry{
			Direction:  dir,
			Sequence:   seq,
			Nonce:      c.nonce(seq),
			AAD:        aad,
			Ciphertext: ciphertext,
			Stage:      stage,
			DecryptMiss: true,
		})
		return nil, ContentTypeInvalid, &ErrPostHandshakeDecryptMiss{Cause: openErr}
	}

	contentType, plaintext := stripContentType(inner)

	e.Witness.Append(WitnessEntry{
		Direction:   dir,
		Sequence:    seq,
		ContentType: contentType,
		FirstByte:   firstByteOf(plaintext),
		Nonce:       c.nonce(seq),
		AAD:         aad,
		Plaintext:   plaintext,
		Ciphertext:  ciphertext,
		Stage:       stage,
	})
	return plaintext, contentType, nil
}

// ErrPostHandshakeDecryptMiss is the recoverable failure category from
// spec.md §7 item 5.
type ErrPostHandshakeDecryptMiss struct{ Cause error }

func (e *ErrPostHandshakeDecryptMiss) Error() string {
	return fmt.Sprintf("record: post-handshake decrypt miss (ciphertext archived, no plaintext): %v", e.Cause)
}

func (e *ErrPostHandshakeDecryptMiss) Unwrap() error { return e.Cause }

// stripContentType strips trailing zero padding and recovers the true
// content type from the last nonzero byte of the AEAD-decrypted inner
// plaintext, per RFC 8446 §5.2.
func stripContentType(inner []byte) (ContentType, []byte) {
	i := len(inner) - 1
	for i >= 0 && inner[i] == 0 {
		i--
	}
	if i < 0 {
		return ContentTypeInvalid, nil
	}
	return ContentType(inner[i]), inner[:i]
}

func firstByteOf(b []byte) byte {
	if len(b) == 0 {
		return 0
	}
	return b[0]
}
