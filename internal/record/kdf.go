package record

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"
)

// hkdfExtract implements HKDF-Extract(salt, ikm) for SHA-256, per RFC 5869.
// A nil/empty salt or ikm is treated as a zero string of hash-length bytes,
// matching RFC 8446's use of Extract(0, ...) for the early/master secrets.
func hkdfExtract(salt, ikm []byte) []byte {
	h := hmac.New(sha256.New, zeroPad(salt))
	h.Write(zeroPad(ikm))
	return h.Sum(nil)
}

func zeroPad(b []byte) []byte {
	if len(b) == 0 {
		return make([]byte, sha256.Size)
	}
	return b
}

// hkdfExpandLabel implements HKDF-Expand-Label(secret, label, context, L) as
// specified in spec.md §4.1:
//
//	info = be16(L) || len(prefix||label) || "tls13 "||label || len(context) || context
func hkdfExpandLabel(secret []byte, label string, context []byte, length int) []byte {
	fullLabel := "tls13 " + label
	info := make([]byte, 0, 2+1+len(fullLabel)+1+len(context))
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(length))
	info = append(info, lenBuf[:]...)
	info = append(info, byte(len(fullLabel)))
	info = append(info, fullLabel...)
	info = append(info, byte(len(context)))
	info = append(info, context...)

	reader := hkdf.Expand(sha256.New, secret, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(reader, out); err != nil {
		// HKDF-Expand only fails when the requested length exceeds
		// 255*hash_len, which never happens for the fixed lengths this
		// package requests.
		panic(err)
	}
	return out
}

var emptyHash = func() []byte {
	h := sha256.Sum256(nil)
	return h[:]
}()

// deriveHandshakeSecrets implements the early-handshake leg of the TLS 1.3
// key schedule described in spec.md §4.1's "Key-derivation protocol (exact)":
//
//	ES  = HKDF-Extract(0, 0)
//	dES = Expand-Label(ES, "derived", empty_hash, hash_len)
//	HS  = HKDF-Extract(dES, ECDHE)
//	CHTS = Expand-Label(HS, "c hs traffic", H2, hash_len)
//	SHTS = Expand-Label(HS, "s hs traffic", H2, hash_len)
//	dHS  = Expand-Label(HS, "derived", empty_hash, hash_len)
func deriveHandshakeSecrets(sharedSecret, transcriptHashH2 []byte) (chts, shts, dhs []byte) {
	es := hkdfExtract(nil, nil)
	des := hkdfExpandLabel(es, "derived", emptyHash, sha256.Size)
	hs := hkdfExtract(des, sharedSecret)
	chts = hkdfExpandLabel(hs, "c hs traffic", transcriptHashH2, sha256.Size)
	shts = hkdfExpandLabel(hs, "s hs traffic", transcriptHashH2, sha256.Size)
	dhs = hkdfExpandLabel(hs, "derived", emptyHash, sha256.Size)
	return
}

// deriveApplicationSecrets implements the application leg:
//
//	MS   = HKDF-Extract(dHS, 0)
//	CATS = Expand-Label(MS, "c ap traffic", H3)
//	SATS = Expand-Label(MS, "s ap traffic", H3)
func deriveApplicationSecrets(dhs, transcriptHashH3 []byte, hashLen int) (cats, sats []byte) {
	ms := hkdfExtract(dhs, nil)
	cats = hkdfExpandLabel(ms, "c ap traffic", transcriptHashH3, hashLen)
	sats = hkdfExpandLabel(ms, "s ap traffic", transcriptHashH3, hashLen)
	return
}

// deriveTrafficKeys derives the per-direction AEAD key and IV from a traffic
// secret, sized for the given cipher suite.
func deriveTrafficKeys(trafficSecret []byte, suite CipherSuite) (key, iv []byte) {
	key = hkdfExpandLabel(trafficSecret, "key", nil, suite.keyLen())
	iv = hkdfExpandLabel(trafficSecret, "iv", nil, 12)
	return
}

// deriveFinishedKey implements FK = Expand-Label(traffic_secret, "finished", "", hash_len).
func deriveFinishedKey(trafficSecret []byte, hashLen int) []byte {
	return hkdfExpandLabel(trafficSecret, "finished", nil, hashLen)
}

// finishedVerifyData computes verify_data = HMAC(FK, transcript_hash).
func finishedVerifyData(finishedKey, transcriptHash []byte) []byte {
	h := hmac.New(sha256.New, finishedKey)
	h.Write(transcriptHash)
	return h.Sum(nil)
}
