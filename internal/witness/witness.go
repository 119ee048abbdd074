// Package witness reconstructs an ordered plaintext transcript from a
// session's archived ciphertext and the secrets its owner has chosen to
// disclose, per spec.md §4.5's Session Transcript Witness. Sequencing
// enforcement is grounded on the teacher's Session.sequenceCheck
// (session/session.go), adapted from a fixed numbered-message protocol to
// an open-ended, per-direction TLS record sequence.
package witness

import (
	"fmt"
	"sort"

	"github.com/webproof/notary/internal/record"
)

// Record is one transcript record, reconstructed either from a disclosed
// plaintext or left opaque when the owner withheld it.
type Record struct {
	Direction record.Direction
	Sequence  uint64
	Plaintext []byte
	Disclosed bool
}

// Transcript is the ordered reconstruction of a session's traffic.
type Transcript struct {
	Records []Record
}

// Reconstruct builds a Transcript from a session's archived witness log and
// the set of (direction, sequence) pairs the owner has chosen to disclose.
// Every archived entry must appear exactly once in the output, in
// (direction, sequence) order; disclosed entries carry their decrypted
// plaintext, withheld entries carry nil, mirroring spec.md §4.5's "plaintext
// is present only for disclosed records" invariant.
func Reconstruct(log *record.WitnessLog, disclose func(dir record.Direction, seq uint64) bool) (*Transcript, error) {
	entries := log.Entries()
	if err := log.CheckSequencing(); err != nil {
		return nil, fmt.Errorf("witness: transcript has duplicate (direction, sequence) pairs: %w", err)
	}

	sorted := make([]record.WitnessEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Direction != sorted[j].Direction {
			return sorted[i].Direction < sorted[j].Direction
		}
		return sorted[i].Sequence < sorted[j].Sequence
	})

	t := &Transcript{}
	for _, e := range sorted {
		r := Record{Direction: e.Direction, Sequence: e.Sequence}
		if e.DecryptMiss {
			// A withheld/failed-to-decrypt ciphertext is never disclosable.
			t.Records = append(t.Records, r)
			continue
		}
		if disclose(e.Direction, e.Sequence) {
			r.Plaintext = e.Plaintext
			r.Disclosed = true
		}
		t.Records = append(t.Records, r)
	}
	return t, nil
}

// DisclosedBytes concatenates every disclosed record's plaintext for one
// direction, in sequence order, reconstructing the ordered byte stream the
// manifest matcher operates on (spec.md §4.5).
func (t *Transcript) DisclosedBytes(dir record.Direction) []byte {
	var out []byte
	for _, r := range t.Records {
		if r.Direction == dir && r.Disclosed {
			out = append(out, r.Plaintext...)
		}
	}
	return out
}

// ForDirection filters the transcript to one direction's records.
func (t *Transcript) ForDirection(dir record.Direction) []Record {
	var out []Record
	for _, r := range t.Records {
		if r.Direction == dir {
			out = append(out, r)
		}
	}
	return out
}
