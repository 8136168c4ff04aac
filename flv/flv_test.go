package flv

import (
	"bytes"
	"io"
	"testing"

	"github.com/strmio/rtmp/amf0"
	"github.com/stretchr/testify/require"
)

func TestFileHeaderBytesAudioAndVideo(t *testing.T) {
	var buf bytes.Buffer
	m := NewMuxer(&buf, true, true)
	require.NoError(t, m.WriteTag(TagScript, 0, []byte{0x01}))

	expectedHeader := []byte{'F', 'L', 'V', 0x01, 0x05, 0x00, 0x00, 0x00, 0x09, 0x00, 0x00, 0x00, 0x00}
	require.Equal(t, expectedHeader, buf.Bytes()[:13])
}

func TestMuxDemuxRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	m := NewMuxer(&buf, true, true)
	require.NoError(t, m.WriteTag(TagVideo, 0, []byte{0x17, 0x01, 0x00, 0x00, 0x00, 0xAA, 0xBB}))
	require.NoError(t, m.WriteTag(TagAudio, 33, []byte{0xAF, 0x01, 0xCC}))

	d := NewDemuxer(&buf)
	tag1, err := d.DecodeTagOnly()
	require.NoError(t, err)
	require.Equal(t, TagVideo, tag1.Type)
	require.Equal(t, uint32(0), tag1.Timestamp)

	tag2, err := d.DecodeTagOnly()
	require.NoError(t, err)
	require.Equal(t, TagAudio, tag2.Type)
	require.Equal(t, uint32(33), tag2.Timestamp)

	_, err = d.DecodeTagOnly()
	require.ErrorIs(t, err, io.EOF)
}

func TestPreviousTagSizeMatchesHeaderPlusBody(t *testing.T) {
	var buf bytes.Buffer
	m := NewMuxer(&buf, false, true)
	body := []byte{0x17, 0x01, 0x00, 0x00, 0x00, 1, 2, 3, 4}
	require.NoError(t, m.WriteTag(TagVideo, 100, body))
	require.Equal(t, uint32(headerSize+len(body)), m.PreviousTagSize())
}

func TestLegacyAACAudioRoundTrip(t *testing.T) {
	at := &AudioTag{
		Legacy:        true,
		LegacyFormat:  SoundAAC,
		SoundRate:     44100,
		SoundSize16:   true,
		Stereo:        true,
		AACPacketType: AACSequenceHeader,
		Payload:       []byte{0x12, 0x10},
	}
	body := encodeAudioTag(at)
	decoded, err := decodeAudioTag(body)
	require.NoError(t, err)
	require.True(t, decoded.Legacy)
	require.Equal(t, SoundAAC, decoded.LegacyFormat)
	require.Equal(t, uint32(44100), decoded.SoundRate)
	require.True(t, decoded.IsSequenceHeader)
	require.Equal(t, []byte{0x12, 0x10}, decoded.Payload)
}

func TestEnhancedAudioRoundTrip(t *testing.T) {
	at := &AudioTag{
		Enhanced:     true,
		EnhancedType: AudioPacketCodedFrames,
		Format:       FourCCOpus,
		Payload:      []byte{1, 2, 3},
	}
	body := encodeAudioTag(at)
	decoded, err := decodeAudioTag(body)
	require.NoError(t, err)
	require.True(t, decoded.Enhanced)
	require.Equal(t, FourCCOpus, decoded.Format)
	require.Equal(t, []byte{1, 2, 3}, decoded.Payload)
}

func TestLegacyAVCVideoRoundTrip(t *testing.T) {
	vt := &VideoTag{
		FrameType:       FrameKey,
		Legacy:          true,
		LegacyCodec:     CodecAVC,
		AVCPacketType:   AVCNALU,
		CompositionTime: 40,
		Payload:         []byte{0, 0, 0, 4, 0xAA, 0xBB, 0xCC, 0xDD},
	}
	body := encodeVideoTag(vt)
	decoded, err := decodeVideoTag(body)
	require.NoError(t, err)
	require.Equal(t, FrameKey, decoded.FrameType)
	require.Equal(t, AVCNALU, decoded.AVCPacketType)
	require.Equal(t, int32(40), decoded.CompositionTime)
	require.Equal(t, vt.Payload, decoded.Payload)
}

func TestLegacyAVCNegativeCompositionTime(t *testing.T) {
	vt := &VideoTag{
		Legacy:          true,
		LegacyCodec:     CodecAVC,
		AVCPacketType:   AVCNALU,
		CompositionTime: -100,
		Payload:         []byte{1, 2},
	}
	body := encodeVideoTag(vt)
	decoded, err := decodeVideoTag(body)
	require.NoError(t, err)
	require.Equal(t, int32(-100), decoded.CompositionTime)
}

func TestEnhancedVideoHEVCRoundTrip(t *testing.T) {
	vt := &VideoTag{
		FrameType:       FrameKey,
		Enhanced:        true,
		EnhancedType:    VideoPacketCodedFrames,
		Format:          FourCChvc1,
		CompositionTime: 10,
		Payload:         []byte{9, 9, 9},
	}
	body := encodeVideoTag(vt)
	decoded, err := decodeVideoTag(body)
	require.NoError(t, err)
	require.True(t, decoded.Enhanced)
	require.Equal(t, FourCChvc1, decoded.Format)
	require.Equal(t, int32(10), decoded.CompositionTime)
}

func TestEnhancedVideoSequenceStartNoCompositionTime(t *testing.T) {
	vt := &VideoTag{
		Enhanced:     true,
		EnhancedType: VideoPacketSequenceStart,
		Format:       FourCCavc1,
		Payload:      []byte{0xDE, 0xAD},
	}
	body := encodeVideoTag(vt)
	require.Len(t, body, 1+4+2) // marker + FourCC + payload, no composition time
	decoded, err := decodeVideoTag(body)
	require.NoError(t, err)
	require.True(t, decoded.IsSequenceHeader)
	require.Equal(t, []byte{0xDE, 0xAD}, decoded.Payload)
}

func TestOneTrackMultitrackRoundTrip(t *testing.T) {
	md := &MultitrackDescriptor{
		Type:      MultitrackOneTrack,
		InnerType: byte(VideoPacketCodedFrames),
		Format:    FourCCav01,
		Tracks:    []Track{{Body: []byte{1, 2, 3}}},
	}
	encoded := encodeMultitrackDescriptor(md)
	decoded, tail, err := decodeMultitrackDescriptor(encoded)
	require.NoError(t, err)
	require.Empty(t, tail)
	require.Equal(t, FourCCav01, decoded.Format)
	require.Len(t, decoded.Tracks, 1)
	require.Equal(t, []byte{1, 2, 3}, decoded.Tracks[0].Body)
}

func TestManyTrackManyCodecMultitrackRoundTrip(t *testing.T) {
	md := &MultitrackDescriptor{
		Type:      MultitrackManyTrackManyCodec,
		InnerType: byte(VideoPacketCodedFrames),
		Tracks: []Track{
			{TrackID: 0, Format: FourCCavc1, Body: []byte{1, 2}},
			{TrackID: 1, Format: FourCChvc1, Body: []byte{3, 4, 5}},
		},
	}
	encoded := encodeMultitrackDescriptor(md)
	decoded, _, err := decodeMultitrackDescriptor(encoded)
	require.NoError(t, err)
	require.Len(t, decoded.Tracks, 2)
	require.Equal(t, FourCChvc1, decoded.Tracks[1].Format)
	require.Equal(t, []byte{3, 4, 5}, decoded.Tracks[1].Body)
}

func TestEncryptedTagRejected(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(fileHeader(false, true))
	head := encodeHeader(TagVideo, 0, 1)
	head[0] |= 0x20 // set the encrypted bit
	buf.Write(head)
	buf.Write([]byte{0xAA})
	buf.Write([]byte{0, 0, 0, 12})

	d := NewDemuxer(&buf)
	_, err := d.DecodeTagOnly()
	require.ErrorIs(t, err, ErrUnsupportedFeature)
}

func TestScriptTagOnMetaDataRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	m := NewMuxer(&buf, true, true)

	props := amf0.Object()
	props.Set("width", amf0.Number(1920))
	props.Set("height", amf0.Number(1080))
	st := &ScriptTag{Values: []*amf0.Value{amf0.String("onMetaData"), props}}
	require.NoError(t, m.WriteScript(0, st))

	d := NewDemuxer(&buf)
	dt, err := d.Decode()
	require.NoError(t, err)
	require.Equal(t, TagScript, dt.Type)
	require.Len(t, dt.Script.Values, 2)
	require.Equal(t, "onMetaData", dt.Script.Values[0].Str())
}
