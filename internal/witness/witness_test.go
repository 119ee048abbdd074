package witness

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/webproof/notary/internal/record"
)

func buildLog() *record.WitnessLog {
	log := record.NewWitnessLog()
	log.Append(record.WitnessEntry{Direction: record.DirectionClient, Sequence: 1, Plaintext: []byte("GET "), Ciphertext: []byte{1}})
	log.Append(record.WitnessEntry{Direction: record.DirectionClient, Sequence: 0, Plaintext: []byte("hi"), Ciphertext: []byte{2}})
	log.Append(record.WitnessEntry{Direction: record.DirectionServer, Sequence: 0, Ciphertext: []byte{3}, DecryptMiss: true})
	return log
}

func TestReconstructOrdersBySequence(t *testing.T) {
	log := buildLog()
	tr, err := Reconstruct(log, func(dir record.Direction, seq uint64) bool { return true })
	require.NoError(t, err)

	clientRecords := tr.ForDirection(record.DirectionClient)
	require.Len(t, clientRecords, 2)
	require.Equal(t, uint64(0), clientRecords[0].Sequence)
	require.Equal(t, uint64(1), clientRecords[1].Sequence)
}

func TestReconstructWithholdsUndisclosed(t *testing.T) {
	log := buildLog()
	tr, err := Reconstruct(log, func(dir record.Direction, seq uint64) bool { return false })
	require.NoError(t, err)

	for _, r := range tr.Records {
		require.False(t, r.Disclosed)
		require.Nil(t, r.Plaintext)
	}
}

func TestReconstructNeverDisclosesDecryptMiss(t *testing.T) {
	log := buildLog()
	tr, err := Reconstruct(log, func(dir record.Direction, seq uint64) bool { return true })
	require.NoError(t, err)

	serverRecords := tr.ForDirection(record.DirectionServer)
	require.Len(t, serverRecords, 1)
	require.False(t, serverRecords[0].Disclosed)
}

func TestDisclosedBytesConcatenatesInOrder(t *testing.T) {
	log := buildLog()
	tr, err := Reconstruct(log, func(dir record.Direction, seq uint64) bool { return true })
	require.NoError(t, err)

	require.Equal(t, []byte("hiGET "), tr.DisclosedBytes(record.DirectionClient))
}

func TestReconstructRejectsDuplicateSequence(t *testing.T) {
	log := record.NewWitnessLog()
	log.Append(record.WitnessEntry{Direction: record.DirectionClient, Sequence: 0})
	log.Append(record.WitnessEntry{Direction: record.DirectionClient, Sequence: 0})

	_, err := Reconstruct(log, func(dir record.Direction, seq uint64) bool { return true })
	require.Error(t, err)
}
