package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip_Data(t *testing.T) {
	env, err := NewData("node-a", DataBody{
		GroupID:  "group-1",
		Total:    3,
		Index:    1,
		Data:     []byte("chunk-bytes"),
		Checksum: Checksum([]byte("chunk-bytes")),
		State:    DataChunk,
	})
	require.NoError(t, err)

	encoded, err := Marshal(&env)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, Unmarshal(encoded, &decoded))

	require.Equal(t, env.MessageID, decoded.MessageID)
	require.Equal(t, KindData, decoded.Kind)
	require.NotNil(t, decoded.Data)
	require.Equal(t, "group-1", decoded.Data.GroupID)
	require.Equal(t, []byte("chunk-bytes"), decoded.Data.Data)
}

func TestEnvelopeRoundTrip_NestedRouting(t *testing.T) {
	payload, err := NewData("node-a", DataBody{GroupID: "g", Total: 1, Index: 0, State: DataChunk})
	require.NoError(t, err)

	routed, err := NewRouting("node-a", "node-c", []string{"node-a"}, Flood, payload)
	require.NoError(t, err)

	encoded, err := Marshal(&routed)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, Unmarshal(encoded, &decoded))

	require.Equal(t, KindRouting, decoded.Kind)
	require.Equal(t, "node-c", decoded.Routing.TargetID)
	require.Equal(t, Flood, decoded.Routing.Strategy)
	require.NotNil(t, decoded.Routing.Payload)
	require.Equal(t, KindData, decoded.Routing.Payload.Kind)
}

func TestWriterReader_DelimitedFraming(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	r := NewReader(&buf)

	env, err := NewDiscoveryRequest("node-a")
	require.NoError(t, err)

	require.NoError(t, w.WriteEnvelope(&env))

	decoded, err := r.ReadEnvelope()
	require.NoError(t, err)
	require.Equal(t, KindDiscoveryRequest, decoded.Kind)
	require.Equal(t, env.MessageID, decoded.MessageID)
}

func TestWriterReader_MultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	r := NewReader(&buf)

	for i := 0; i < 5; i++ {
		env, err := NewPeerListRequest("node-a")
		require.NoError(t, err)
		require.NoError(t, w.WriteEnvelope(&env))
	}

	for i := 0; i < 5; i++ {
		decoded, err := r.ReadEnvelope()
		require.NoError(t, err)
		require.Equal(t, KindPeerListRequest, decoded.Kind)
	}
}

func TestChecksum_DetectsMismatch(t *testing.T) {
	a := Checksum([]byte("hello"))
	b := Checksum([]byte("hellp"))
	require.False(t, bytes.Equal(a, b))
}
