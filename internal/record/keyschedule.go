package record

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
	"sync"
)

// KeySchedule tracks the current stage and holds the current per-direction
// traffic secrets, per spec.md §3's KeySchedule type.
type KeySchedule struct {
	stage         Stage
	suite         CipherSuite
	clientSecret  []byte
	serverSecret  []byte
	handshakeKept bool // skip zeroizing handshake secrets at the application transition
}

// Engine drives the TLS 1.3 key schedule and AEAD record layer for a single
// connection (spec.md §4.1). It is not safe for concurrent use: per
// spec.md §5, encrypt/decrypt calls on one engine must be serialized by the
// caller (the task that owns the connection).
type Engine struct {
	mu sync.Mutex

	version ProtocolVersion
	suite   CipherSuite

	ecdhKey *ecdh.PrivateKey

	sharedSecret []byte

	// dhsForApplication and applicationTranscriptHash stash dHS and H3
	// between SetServerKeyShare (handshake stage) and the
	// SetEncryptDecrypt(application) transition.
	dhsForApplication         []byte
	applicationTranscriptHash []byte

	ks KeySchedule

	clientCipher *aeadCipher
	serverCipher *aeadCipher

	// Witness is the notarization tap: every successful or tolerated
	// encrypt/decrypt call appends an entry here, keyed by
	// (direction, sequence, content_type, first_plaintext_byte).
	Witness *WitnessLog
}

// NewEngine constructs an Engine with an attached (possibly shared) witness
// log. Passing nil creates a private log.
func NewEngine(witness *WitnessLog) *Engine {
	if witness == nil {
		witness = NewWitnessLog()
	}
	return &Engine{Witness: witness}
}

// SetProtocolVersion fails unless v == TLS_1_3.
func (e *Engine) SetProtocolVersion(v ProtocolVersion) error {
	if v != TLS13 {
		return &ErrUnsupportedVersion{Got: v}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.version = v
	return nil
}

// SetCipherSuite must be one of the two implemented suites.
func (e *Engine) SetCipherSuite(s CipherSuite) error {
	if s != SuiteAes128GcmSha256 && s != SuiteChacha20Poly1305Sha256 {
		return &ErrUnsupportedSuite{Got: s}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.suite = s
	e.ks.suite = s
	return nil
}

// GetClientKeyShare generates an ephemeral P-256 secret and returns the
// encoded (uncompressed) public point.
func (e *Engine) GetClientKeyShare() ([]byte, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("record: generating client key share: %w", err)
	}
	e.mu.Lock()
	e.ecdhKey = priv
	e.mu.Unlock()
	return priv.PublicKey().Bytes(), nil
}

// SetServerKeyShare performs ECDH against the server's encoded public point,
// stores the shared secret as the pre-master secret, derives handshake
// traffic secrets from transcriptHashH2, and installs handshake keys.
func (e *Engine) SetServerKeyShare(serverPub []byte, transcriptHashH2 []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ecdhKey == nil {
		return fmt.Errorf("record: GetClientKeyShare must be called before SetServerKeyShare")
	}
	if e.version != TLS13 {
		return &ErrUnsupportedVersion{Got: e.version}
	}
	pub, err := ecdh.P256().NewPublicKey(serverPub)
	if err != nil {
		return fmt.Errorf("record: invalid server key share: %w", err)
	}
	secret, err := e.ecdhKey.ECDH(pub)
	if err != nil {
		return fmt.Errorf("record: ECDH failed: %w", err)
	}
	e.sharedSecret = secret

	chts, shts, dhs := deriveHandshakeSecrets(secret, transcriptHashH2)
	e.ks.clientSecret = chts
	e.ks.serverSecret = shts
	e.ks.stage = StageHandshake
	e.dhsForApplication = dhs

	ckey, civ := deriveTrafficKeys(chts, e.suite)
	skey, siv := deriveTrafficKeys(shts, e.suite)
	e.clientCipher, err = newAeadCipher(e.suite, ckey, civ)
	if err != nil {
		return err
	}
	e.serverCipher, err = newAeadCipher(e.suite, skey, siv)
	if err != nil {
		return err
	}
	return nil
}

// SetEncryptDecrypt transitions between the handshake and application
// stages. On transition to application it derives MS, CATS, SATS and
// installs per-direction application keys.
func (e *Engine) SetEncryptDecrypt(stage Stage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch stage {
	case StageHandshake:
		e.ks.stage = StageHandshake
		return nil
	case StageApplication:
		if e.dhsForApplication == nil {
			return fmt.Errorf("record: cannot move to application stage before handshake keys are installed")
		}
		cats, sats := deriveApplicationSecrets(e.dhsForApplication, e.applicationTranscriptHash, e.suite.hashLen())
		if !e.ks.handshakeKept {
			// zeroize handshake secrets unless notarization disclosure
			// requires them.
			zero(e.ks.clientSecret)
			zero(e.ks.serverSecret)
		}
		e.ks.clientSecret = cats
		e.ks.serverSecret = sats
		e.ks.stage = StageApplication

		ckey, civ := deriveTrafficKeys(cats, e.suite)
		skey, siv := deriveTrafficKeys(sats, e.suite)
		var err error
		e.clientCipher, err = newAeadCipher(e.suite, ckey, civ)
		if err != nil {
			return err
		}
		e.serverCipher, err = newAeadCipher(e.suite, skey, siv)
		if err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("record: invalid stage %v", stage)
	}
}

// SetApplicationTranscriptHash records H3, the transcript hash used to
// derive application traffic secrets. It must be called before transitioning
// SetEncryptDecrypt to StageApplication.
func (e *Engine) SetApplicationTranscriptHash(h3 []byte) {
	e.mu.Lock()
	e.applicationTranscriptHash = h3
	e.mu.Unlock()
}

// RetainHandshakeSecrets marks that the handshake secrets are not zeroized
// on the transition to the application stage (spec.md §9's "per-direction
// vs per-record MPC" design note). The engine itself does not keep them
// after that transition: its key schedule then holds only the application
// traffic secrets, and no method returns the handshake secrets.
func (e *Engine) RetainHandshakeSecrets() {
	e.mu.Lock()
	e.ks.handshakeKept = true
	e.mu.Unlock()
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
