// Package record implements the TLS 1.3 record and key-schedule engine: the
// HKDF-based key derivation described in RFc 8446 §7.1, and the AEAD record
// layer (AES-128-GCM and ChaCha20-Poly1305) used to encrypt and decrypt
// application and handshake records while tapping the derived secrets and
// plaintext for later notarization.
package record

import "fmt"

// ProtocolVersion identifies the negotiated TLS version. Only TLS 1.3 is
// supported; the handshake parser for TLS 1.2 is an external collaborator.
type ProtocolVersion uint16

// TLS13 is the only protocol version this engine accepts.
const TLS13 ProtocolVersion = 0x0304

// CipherSuite identifies one of the two implemented AEAD/HKDF-hash pairs.
type CipherSuite int

const (
	// SuiteUnset marks an engine that has not yet negotiated a suite.
	SuiteUnset CipherSuite = iota
	// SuiteAes128GcmSha256 is TLS_AES_128_GCM_SHA256.
	SuiteAes128GcmSha256
	// SuiteChacha20Poly1305Sha256 is TLS_CHACHA20_POLY1305_SHA256.
	SuiteChacha20Poly1305Sha256
)

func (s CipherSuite) String() string {
	switch s {
	case SuiteAes128GcmSha256:
		return "TLS_AES_128_GCM_SHA256"
	case SuiteChacha20Poly1305Sha256:
		return "TLS_CHACHA20_POLY1305_SHA256"
	default:
		return "unset"
	}
}

// keyLen returns the AEAD key size in bytes for the suite.
func (s CipherSuite) keyLen() int {
	switch s {
	case SuiteAes128GcmSha256:
		return 16
	case SuiteChacha20Poly1305Sha256:
		return 32
	default:
		return 0
	}
}

// hashLen returns the HKDF hash output size in bytes. Both supported suites
// use SHA-256.
func (s CipherSuite) hashLen() int { return 32 }

// Direction identifies which side of the connection produced a record.
type Direction int

const (
	// DirectionClient marks records sent by the client (the prover).
	DirectionClient Direction = iota
	// DirectionServer marks records sent by the target server.
	DirectionServer
)

func (d Direction) String() string {
	if d == DirectionClient {
		return "client"
	}
	return "server"
}

// ContentType is the inner TLS 1.3 content type, recovered from the last
// nonzero byte of a decrypted record.
type ContentType byte

const (
	ContentTypeInvalid           ContentType = 0
	ContentTypeChangeCipherSpec  ContentType = 20
	ContentTypeAlert             ContentType = 21
	ContentTypeHandshake         ContentType = 22
	ContentTypeApplicationData   ContentType = 23
)

// Stage is one of the three key-schedule phases described in spec.md §3's
// KeySchedule invariant.
type Stage int

const (
	StageEarly Stage = iota
	StageHandshake
	StageApplication
)

func (s Stage) String() string {
	switch s {
	case StageEarly:
		return "early"
	case StageHandshake:
		return "handshake"
	case StageApplication:
		return "application"
	default:
		return "unknown"
	}
}

// ErrUnsupportedVersion is returned by SetProtocolVersion for anything but
// TLS 1.3.
type ErrUnsupportedVersion struct{ Got ProtocolVersion }

func (e *ErrUnsupportedVersion) Error() string {
	return fmt.Sprintf("record: unsupported protocol version 0x%04x, only TLS 1.3 is implemented", uint16(e.Got))
}

// ErrUnsupportedSuite is returned by SetCipherSuite for anything outside the
// two implemented suites.
type ErrUnsupportedSuite struct{ Got CipherSuite }

func (e *ErrUnsupportedSuite) Error() string {
	return fmt.Sprintf("record: unsupported cipher suite %d", int(e.Got))
}
