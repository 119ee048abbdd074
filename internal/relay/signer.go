package relay

import (
	"bytes"
	"crypto/ecdsa"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/webproof/notary/internal/cryptoutil"
)

// Signer serves the notary's public signing key and signs session digests,
// adapted from the teacher's aes_tag.TagSigningManager (signing_manager.go):
// same load-once-key/serve-public-key shape, generalized from a
// string-encoded ciphertext byte list to a plain byte digest, and with the
// standard library's pem/x509 ECDSA signature format kept as-is.
type Signer struct {
	key          *ecdsa.PrivateKey
	lastModified time.Time
	log          *zap.Logger
}

// NewSigner wraps an already-loaded signing key. Use
// cryptoutil.GenerateSigningKey for an ephemeral per-deployment key, or load
// one from disk with crypto/x509's ParseECPrivateKey the way the teacher
// does in NewTagSigningManager.
func NewSigner(key *ecdsa.PrivateKey, log *zap.Logger) *Signer {
	return &Signer{key: key, lastModified: time.Now(), log: log}
}

// Sign returns an ASN.1 DER-encoded ECDSA signature over the SHA-256 digest
// of sessionBytes, per spec.md §6's "POST /sign" operation.
func (s *Signer) Sign(sessionBytes ...[]byte) ([]byte, error) {
	return cryptoutil.ECDSASign(s.key, sessionBytes...)
}

// ServePublicKey writes the notary's PEM-encoded public key, mirroring the
// teacher's TagSigningManager.ServePublicKey (http.ServeContent with a
// fixed mod-time so clients can cache it).
func (s *Signer) ServePublicKey(w http.ResponseWriter, req *http.Request) {
	pemBytes, err := cryptoutil.ECDSAPubkeyToPEM(&s.key.PublicKey)
	if err != nil {
		if s.log != nil {
			s.log.Error("encoding signing public key", zap.Error(err))
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-pem-file")
	http.ServeContent(w, req, "signing-key.pem", s.lastModified, bytes.NewReader(pemBytes))
}
