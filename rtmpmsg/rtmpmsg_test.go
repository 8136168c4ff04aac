package rtmpmsg

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBasicHeaderEscapeCid200(t *testing.T) {
	b := EncodeBasicHeader(HeaderFull, 200)
	require.Equal(t, []byte{0x00, 0x88}, b)

	ht, cid := DecodeBasicHeader(b)
	require.Equal(t, HeaderFull, ht)
	require.Equal(t, uint32(200), cid)
}

func TestBasicHeaderSmallCid(t *testing.T) {
	b := EncodeBasicHeader(HeaderSameLength, 5)
	require.Len(t, b, 1)
	ht, cid := DecodeBasicHeader(b)
	require.Equal(t, HeaderSameLength, ht)
	require.Equal(t, uint32(5), cid)
}

func TestBasicHeaderLargeCid(t *testing.T) {
	b := EncodeBasicHeader(HeaderFull, 1000)
	require.Len(t, b, 3)
	_, cid := DecodeBasicHeader(b)
	require.Equal(t, uint32(1000), cid)
}

func TestWriteReadSingleMessage(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	msg := &Message{Type: TypeCommandAMF0, StreamID: 0, Timestamp: 0, ChunkCSID: CSIDCommand, Payload: []byte("hello world")}
	require.NoError(t, w.WriteMessage(msg))

	r := NewReader(&buf)
	got, err := r.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, msg.Type, got.Type)
	require.Equal(t, msg.Payload, got.Payload)
	require.Equal(t, msg.Timestamp, got.Timestamp)
}

func TestWriteReadFragmentedMessage(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.SetChunkSize(16)
	payload := bytes.Repeat([]byte{0xAB}, 100)
	msg := &Message{Type: TypeVideo, StreamID: 1, Timestamp: 40, ChunkCSID: CSIDVideo, Payload: payload}
	require.NoError(t, w.WriteMessage(msg))

	r := NewReader(&buf)
	r.SetChunkSize(16)
	got, err := r.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, payload, got.Payload)
	require.Equal(t, uint32(40), got.Timestamp)
}

func TestHeaderCompressionChoosesType2ForSameTypeAndLength(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	first := &Message{Type: TypeAudio, StreamID: 1, Timestamp: 0, ChunkCSID: CSIDAudio, Payload: []byte{1, 2, 3}}
	require.NoError(t, w.WriteMessage(first))

	second := &Message{Type: TypeAudio, StreamID: 1, Timestamp: 30, ChunkCSID: CSIDAudio, Payload: []byte{4, 5, 6}}
	require.NoError(t, w.WriteMessage(second))

	// The second message starts after the first one's 1+11+3 bytes; its
	// basic header must carry fmt 2 on the audio chunk stream.
	require.Equal(t, byte(HeaderSameLength)<<6|byte(CSIDAudio), buf.Bytes()[1+11+3])

	r := NewReader(&buf)
	got1, err := r.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, got1.Payload)

	got2, err := r.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, []byte{4, 5, 6}, got2.Payload)
	require.Equal(t, uint32(30), got2.Timestamp)
}

func TestTimestampRegressionForcesType0(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteMessage(&Message{Type: TypeAudio, StreamID: 1, Timestamp: 100, ChunkCSID: CSIDAudio, Payload: []byte{1}}))
	require.NoError(t, w.WriteMessage(&Message{Type: TypeAudio, StreamID: 1, Timestamp: 50, ChunkCSID: CSIDAudio, Payload: []byte{2}}))

	// The second message starts after the first one's 1+11+1 bytes; its
	// basic header must carry fmt 0 on the audio chunk stream.
	require.Equal(t, byte(HeaderFull)<<6|byte(CSIDAudio), buf.Bytes()[1+11+1])

	r := NewReader(&buf)
	got1, err := r.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, uint32(100), got1.Timestamp)
	got2, err := r.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, uint32(50), got2.Timestamp)
}

func TestZeroMessageLengthIsProtocolError(t *testing.T) {
	var buf bytes.Buffer
	// Type-0 chunk with length = 0.
	buf.Write(EncodeBasicHeader(HeaderFull, CSIDAudio))
	buf.Write(EncodeMessageHeader(HeaderFull, MessageHeader{Timestamp: 0, MessageLen: 0, MessageType: TypeAudio, StreamID: 0}))

	r := NewReader(&buf)
	_, err := r.ReadMessage()
	require.ErrorIs(t, err, ErrProtocolError)
}

func TestSetChunkSizeRoundTrip(t *testing.T) {
	payload := EncodeSetChunkSize(4096)
	n, err := DecodeUint32BE(payload)
	require.NoError(t, err)
	require.Equal(t, uint32(4096), n)
}

func TestSetPeerBandwidthRoundTrip(t *testing.T) {
	payload := EncodeSetPeerBandwidth(2500000, LimitDynamic)
	n, lt, err := DecodeSetPeerBandwidth(payload)
	require.NoError(t, err)
	require.Equal(t, uint32(2500000), n)
	require.Equal(t, LimitDynamic, lt)
}

func TestUserControlPingRoundTrip(t *testing.T) {
	payload := EncodeUserControl(UserControlPingRequest, []byte{0, 0, 1, 2})
	event, data, err := DecodeUserControl(payload)
	require.NoError(t, err)
	require.Equal(t, UserControlPingRequest, event)
	require.Equal(t, []byte{0, 0, 1, 2}, data)
}

func TestBasicHeaderAtMaximumChunkStreamID(t *testing.T) {
	b := EncodeBasicHeader(HeaderFull, MaxChunkStreamID)
	_, cid := DecodeBasicHeader(b)
	require.Equal(t, uint32(MaxChunkStreamID), cid)
}
