package flv

import "fmt"

// CodecID is the legacy 4-bit video codec identifier.
type CodecID byte

const (
	CodecJpeg         CodecID = 1
	CodecSorensonH263 CodecID = 2
	CodecScreenVideo  CodecID = 3
	CodecVP6          CodecID = 4
	CodecVP6Alpha     CodecID = 5
	CodecScreenVideo2 CodecID = 6
	CodecAVC          CodecID = 7
)

// FrameType is the legacy/enhanced 4-bit frame type.
type FrameType byte

const (
	FrameKey            FrameType = 1
	FrameInter          FrameType = 2
	FrameDisposable     FrameType = 3
	FrameGeneratedKey   FrameType = 4
	FrameCommand        FrameType = 5
)

// AVCPacketType distinguishes sequence header / NALU / end-of-sequence for
// legacy AVC tags.
type AVCPacketType byte

const (
	AVCSequenceHeader  AVCPacketType = 0
	AVCNALU            AVCPacketType = 1
	AVCEndOfSequence   AVCPacketType = 2
)

// VideoPacketType is the enhanced-video inner packet type.
type VideoPacketType byte

const (
	VideoPacketSequenceStart    VideoPacketType = 0
	VideoPacketCodedFrames      VideoPacketType = 1
	VideoPacketSequenceEnd      VideoPacketType = 2
	VideoPacketCodedFramesX     VideoPacketType = 3 // no composition time offset
	VideoPacketMetadata         VideoPacketType = 4
	VideoPacketMPEG2TSSequence  VideoPacketType = 5
	VideoPacketMultitrack       VideoPacketType = 6
)

// Enhanced video FourCCs (§3.2).
var (
	FourCCavc1 = FourCC{'a', 'v', 'c', '1'}
	FourCChvc1 = FourCC{'h', 'v', 'c', '1'}
	FourCCav01 = FourCC{'a', 'v', '0', '1'}
	FourCCvp09 = FourCC{'v', 'p', '0', '9'}
	FourCCvp08 = FourCC{'v', 'p', '0', '8'}
)

// VideoTag is the parsed form of an FLV video tag body.
type VideoTag struct {
	FrameType FrameType

	Legacy      bool
	LegacyCodec CodecID

	Enhanced     bool
	Format       FourCC
	EnhancedType VideoPacketType
	Multitrack   *MultitrackDescriptor

	AVCPacketType    AVCPacketType // valid only for Legacy && LegacyCodec == CodecAVC
	CompositionTime  int32         // signed 24-bit, milliseconds
	IsSequenceHeader bool
	Payload          []byte // AVCC length-prefixed NALUs, or codec-specific payload
}

// decodeVideoTag parses an FLV video tag body (§3.2).
func decodeVideoTag(body []byte) (*VideoTag, error) {
	if len(body) < 1 {
		return nil, fmt.Errorf("%w: empty video body", ErrInvalidFormat)
	}
	first := body[0]
	frameType := FrameType(first >> 4)
	extended := first&0x80 != 0

	if extended {
		return decodeEnhancedVideoTag(frameType&0x07, body)
	}

	vt := &VideoTag{
		FrameType:   frameType,
		Legacy:      true,
		LegacyCodec: CodecID(first & 0x0F),
	}
	rest := body[1:]
	if vt.LegacyCodec == CodecAVC {
		if len(rest) < 4 {
			return nil, fmt.Errorf("%w: truncated AVC video header", ErrInvalidFormat)
		}
		vt.AVCPacketType = AVCPacketType(rest[0])
		vt.CompositionTime = signed24(rest[1:4])
		vt.IsSequenceHeader = vt.AVCPacketType == AVCSequenceHeader
		vt.Payload = rest[4:]
	} else {
		vt.Payload = rest
	}
	return vt, nil
}

// decodeEnhancedVideoTag parses the extended video tag framing: byte 0 bit
// 7 set, low nibble is VideoPacketType, then a FourCC (or multitrack
// descriptor), then an optional composition time, then payload.
func decodeEnhancedVideoTag(frameType FrameType, body []byte) (*VideoTag, error) {
	packetType := VideoPacketType(body[0] & 0x0F)
	rest := body[1:]

	vt := &VideoTag{FrameType: frameType, Enhanced: true, EnhancedType: packetType}

	if packetType == VideoPacketMultitrack {
		md, tail, err := decodeMultitrackDescriptor(rest)
		if err != nil {
			return nil, err
		}
		vt.Multitrack = md
		vt.Payload = tail
		vt.IsSequenceHeader = packetType == VideoPacketSequenceStart
		return vt, nil
	}

	if len(rest) < 4 {
		return nil, fmt.Errorf("%w: missing video FourCC", ErrInvalidFormat)
	}
	copy(vt.Format[:], rest[:4])
	rest = rest[4:]

	if packetType == VideoPacketCodedFrames {
		if len(rest) < 3 {
			return nil, fmt.Errorf("%w: truncated composition time", ErrInvalidFormat)
		}
		vt.CompositionTime = signed24(rest[:3])
		rest = rest[3:]
	}

	vt.IsSequenceHeader = packetType == VideoPacketSequenceStart
	vt.Payload = rest
	return vt, nil
}

// encodeVideoTag re-serializes a VideoTag's body bytes.
func encodeVideoTag(vt *VideoTag) []byte {
	if vt.Enhanced {
		out := []byte{0x80 | byte(vt.FrameType)<<4 | byte(vt.EnhancedType)}
		if vt.Multitrack != nil {
			out = append(out, encodeMultitrackDescriptor(vt.Multitrack)...)
			return append(out, vt.Payload...)
		}
		out = append(out, vt.Format[:]...)
		if vt.EnhancedType == VideoPacketCodedFrames {
			ct := make([]byte, 3)
			putSigned24(ct, vt.CompositionTime)
			out = append(out, ct...)
		}
		return append(out, vt.Payload...)
	}

	out := []byte{byte(vt.FrameType)<<4 | byte(vt.LegacyCodec)}
	if vt.LegacyCodec == CodecAVC {
		out = append(out, byte(vt.AVCPacketType))
		ct := make([]byte, 3)
		putSigned24(ct, vt.CompositionTime)
		out = append(out, ct...)
	}
	return append(out, vt.Payload...)
}
