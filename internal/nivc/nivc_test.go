package nivc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestROMOpcodesRejectsUnknownLabel(t *testing.T) {
	rom := ROM{"PLAINTEXT_AUTHENTICATION", "NOT_A_CIRCUIT"}
	_, err := rom.Opcodes()
	require.Error(t, err)
	require.Contains(t, err.Error(), "NOT_A_CIRCUIT")
}

func TestPaddedPublicROMPadsWithSentinel(t *testing.T) {
	rom := ROM{"PLAINTEXT_AUTHENTICATION", "HTTP_VERIFICATION"}
	padded, err := PaddedPublicROM(rom, 512)
	require.NoError(t, err)
	require.Len(t, padded, MaxROMLength512)
	require.Equal(t, uint64(OpcodePlaintextAuthentication), padded[0])
	require.Equal(t, uint64(OpcodeHttpVerification), padded[1])
	for _, v := range padded[2:] {
		require.Equal(t, ROMPadSentinel, v)
	}
}

func TestPaddedPublicROMRejectsOversizedBlock(t *testing.T) {
	_, err := PaddedPublicROM(ROM{"PLAINTEXT_AUTHENTICATION"}, 2048)
	require.Error(t, err)
}

func TestExpandSplitsInputEvenlyAcrossRepeatedLabel(t *testing.T) {
	rom := ROM{"JSON_MASK_OBJECT", "JSON_MASK_OBJECT", "JSON_MASK_OBJECT"}
	value := []byte("abcdefghi")
	p, err := NewOfflineProgram(rom, 512, []FoldInput{{Label: "JSON_MASK_OBJECT", Value: value}})
	require.NoError(t, err)

	expanded, err := p.Expand()
	require.NoError(t, err)

	inputs, err := expanded.FoldInputs()
	require.NoError(t, err)
	require.Len(t, inputs, 3)
	require.Equal(t, []byte("abc"), inputs[0].Value)
	require.Equal(t, []byte("def"), inputs[1].Value)
	require.Equal(t, []byte("ghi"), inputs[2].Value)
}

func TestExpandFailsOnMissingFoldInput(t *testing.T) {
	rom := ROM{"JSON_MASK_OBJECT"}
	p, err := NewOfflineProgram(rom, 512, nil)
	require.NoError(t, err)
	_, err = p.Expand()
	require.Error(t, err)
}

func TestToOnlineRequiresExpanded(t *testing.T) {
	rom := ROM{"PLAINTEXT_AUTHENTICATION"}
	p, err := NewOfflineProgram(rom, 512, []FoldInput{{Label: "PLAINTEXT_AUTHENTICATION", Value: []byte("x")}})
	require.NoError(t, err)
	_, err = p.ToOnline()
	require.Error(t, err)

	expanded, err := p.Expand()
	require.NoError(t, err)
	online, err := expanded.ToOnline()
	require.NoError(t, err)
	rom2, err := online.PublicROM()
	require.NoError(t, err)
	require.Len(t, rom2, MaxROMLength512)
}

type recordingProver struct {
	steps []Opcode
}

func (r *recordingProver) Fold(ctx context.Context, running StepProof, op Opcode, input FoldInput, romIndex int, publicROM []uint64) (StepProof, error) {
	r.steps = append(r.steps, op)
	return append(running, byte(op)), nil
}

func TestFoldDrivesProverInROMOrder(t *testing.T) {
	rom := ROM{"PLAINTEXT_AUTHENTICATION", "HTTP_VERIFICATION", "JSON_EXTRACT_VALUE"}
	p, err := NewOfflineProgram(rom, 512, []FoldInput{
		{Label: "PLAINTEXT_AUTHENTICATION", Value: []byte("a")},
		{Label: "HTTP_VERIFICATION", Value: []byte("b")},
		{Label: "JSON_EXTRACT_VALUE", Value: []byte("c")},
	})
	require.NoError(t, err)
	expanded, err := p.Expand()
	require.NoError(t, err)

	prover := &recordingProver{}
	proof, err := Fold(context.Background(), prover, expanded)
	require.NoError(t, err)
	require.Equal(t, []Opcode{OpcodePlaintextAuthentication, OpcodeHttpVerification, OpcodeJsonExtractValue}, prover.steps)
	require.Len(t, proof, 3)
}

func TestEncodeDecodeProvingParamsRoundTrip(t *testing.T) {
	type payload struct {
		A int
		B string
	}
	original := payload{A: 7, B: "params"}

	blob, err := EncodeProvingParams(original)
	require.NoError(t, err)

	var decoded payload
	require.NoError(t, DecodeProvingParams(blob, &decoded))
	require.Equal(t, original, decoded)
}
