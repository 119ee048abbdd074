package record

import (
	"fmt"
	"sync"
)

// WitnessEntry is one row of the notarization tap described in spec.md
// §4.1's "Notarization tap": every call to Encrypt or Decrypt appends an
// entry keyed by (direction, sequence, content_type, first_plaintext_byte).
type WitnessEntry struct {
	Direction   Direction
	Sequence    uint64
	ContentType ContentType
	FirstByte   byte
	Nonce       []byte
	AAD         []byte
	Plaintext   []byte
	Ciphertext  []byte
	Stage       Stage
	// DecryptMiss marks a tolerated post-handshake AEAD failure: ciphertext
	// is present, Plaintext is nil.
	DecryptMiss bool
}

// WitnessLog is an append-only per-connection record of every encrypt/
// decrypt call. Per spec.md §5 and §9, it is owned by whichever task last
// touched the record engine — ownership is transferred, not shared, so the
// log itself needs only enough locking to be safe for the rare case of a
// handoff race, not for concurrent writers.
type WitnessLog struct {
	mu      sync.Mutex
	entries []WitnessEntry
}

// NewWitnessLog constructs an empty log.
func NewWitnessLog() *WitnessLog { return &WitnessLog{} }

// Append adds an entry to the log.
func (w *WitnessLog) Append(e WitnessEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, e)
}

// Entries returns a copy of the log's entries in append order.
func (w *WitnessLog) Entries() []WitnessEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]WitnessEntry, len(w.entries))
	copy(out, w.entries)
	return out
}

// ForDirection returns the subset of entries for one direction, in append
// order. It is simply a filter and does not sort: append order equals
// ascending sequence order only when the engine was driven with increasing
// sequence numbers.
func (w *WitnessLog) ForDirection(dir Direction) []WitnessEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []WitnessEntry
	for _, e := range w.entries {
		if e.Direction == dir {
			out = append(out, e)
		}
	}
	return out
}

// CheckSequencing verifies the Transcript uniqueness invariant of spec.md
// §3: for each direction, (direction, seq) pairs are unique.
func (w *WitnessLog) CheckSequencing() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	seen := map[Direction]map[uint64]bool{
		DirectionClient: {},
		DirectionServer: {},
	}
	for _, e := range w.entries {
		if seen[e.Direction][e.Sequence] {
			return fmt.Errorf("record: duplicate (direction=%v, seq=%d) in witness log", e.Direction, e.Sequence)
		}
		seen[e.Direction][e.Sequence] = true
	}
	return nil
}
