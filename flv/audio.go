package flv

import "fmt"

// SoundFormat is the legacy 4-bit audio codec identifier.
type SoundFormat byte

const (
	SoundLPCM     SoundFormat = 0
	SoundADPCM    SoundFormat = 1
	SoundMP3      SoundFormat = 2
	SoundLPCMLE   SoundFormat = 3
	SoundNelly16  SoundFormat = 4
	SoundNelly8   SoundFormat = 5
	SoundNelly    SoundFormat = 6
	SoundG711A    SoundFormat = 7
	SoundG711U    SoundFormat = 8
	SoundExHeader SoundFormat = 9 // marks an enhanced audio tag
	SoundAAC      SoundFormat = 10
	SoundSpeex    SoundFormat = 11
	SoundMP38k    SoundFormat = 14
	SoundDevice   SoundFormat = 15
)

// AACPacketType distinguishes the AAC sequence header from raw frames.
type AACPacketType byte

const (
	AACSequenceHeader AACPacketType = 0
	AACRaw            AACPacketType = 1
)

// AudioPacketType is the enhanced-audio inner packet type.
type AudioPacketType byte

const (
	AudioPacketSequenceStart  AudioPacketType = 0
	AudioPacketCodedFrames    AudioPacketType = 1
	AudioPacketSequenceEnd    AudioPacketType = 2
	AudioPacketMultichannel   AudioPacketType = 4
	AudioPacketMultitrack     AudioPacketType = 5
)

// Enhanced audio FourCCs (§3.2).
var (
	FourCCmp4a = FourCC{'m', 'p', '4', 'a'}
	FourCCOpus = FourCC{'O', 'p', 'u', 's'}
	FourCCac3  = FourCC{'a', 'c', '-', '3'}
	FourCCec3  = FourCC{'e', 'c', '-', '3'}
	FourCCflac = FourCC{'f', 'L', 'a', 'C'}
	FourCCmp3  = FourCC{'.', 'm', 'p', '3'}
)

// FourCC is a 4-byte big-endian codec identifier used by enhanced tags.
type FourCC [4]byte

func (f FourCC) String() string { return string(f[:]) }

var soundRates = [4]uint32{5512, 11025, 22050, 44100}

// AudioTag is the parsed form of an FLV audio tag body.
type AudioTag struct {
	Format FourCC // the wire FourCC of an enhanced tag; left zero for legacy tags, which use LegacyFormat

	Legacy       bool
	LegacyFormat SoundFormat
	SoundRate    uint32
	SoundSize16  bool
	Stereo       bool

	Enhanced        bool
	EnhancedType    AudioPacketType
	Multitrack      *MultitrackDescriptor

	AACPacketType AACPacketType // valid only when LegacyFormat == SoundAAC
	IsSequenceHeader bool
	Payload       []byte
}

// decodeAudioTag parses an FLV audio tag body (§3.2).
func decodeAudioTag(body []byte) (*AudioTag, error) {
	if len(body) < 1 {
		return nil, fmt.Errorf("%w: empty audio body", ErrInvalidFormat)
	}
	first := body[0]
	format := SoundFormat(first >> 4)

	if format == SoundExHeader {
		return decodeEnhancedAudioTag(body)
	}

	at := &AudioTag{
		Legacy:       true,
		LegacyFormat: format,
		SoundSize16:  first&0x02 != 0,
		Stereo:       first&0x01 != 0,
	}
	at.SoundRate = soundRates[(first>>2)&0x03]
	rest := body[1:]

	if format == SoundAAC {
		if len(rest) < 1 {
			return nil, fmt.Errorf("%w: missing AAC packet type", ErrInvalidFormat)
		}
		at.AACPacketType = AACPacketType(rest[0])
		at.IsSequenceHeader = at.AACPacketType == AACSequenceHeader
		at.Payload = rest[1:]
	} else {
		at.Payload = rest
	}
	return at, nil
}

// decodeEnhancedAudioTag parses the extended audio tag framing introduced
// by enhanced RTMP: a 4-bit marker + AudioPacketType byte, a FourCC (or
// multitrack descriptor), then payload.
func decodeEnhancedAudioTag(body []byte) (*AudioTag, error) {
	packetType := AudioPacketType(body[0] & 0x0F)
	rest := body[1:]

	at := &AudioTag{Enhanced: true, EnhancedType: packetType}

	if packetType == AudioPacketMultitrack {
		md, tail, err := decodeMultitrackDescriptor(rest)
		if err != nil {
			return nil, err
		}
		at.Multitrack = md
		at.Payload = tail
		at.IsSequenceHeader = packetType == AudioPacketSequenceStart
		return at, nil
	}

	if len(rest) < 4 {
		return nil, fmt.Errorf("%w: missing audio FourCC", ErrInvalidFormat)
	}
	copy(at.Format[:], rest[:4])
	at.Payload = rest[4:]
	at.IsSequenceHeader = packetType == AudioPacketSequenceStart
	return at, nil
}

// encodeAudioTag re-serializes an AudioTag's body bytes.
func encodeAudioTag(at *AudioTag) []byte {
	if at.Enhanced {
		out := []byte{0x90 | byte(at.EnhancedType)}
		if at.Multitrack != nil {
			out = append(out, encodeMultitrackDescriptor(at.Multitrack)...)
		} else {
			out = append(out, at.Format[:]...)
		}
		return append(out, at.Payload...)
	}

	first := byte(at.LegacyFormat) << 4
	switch at.SoundRate {
	case 11025:
		first |= 1 << 2
	case 22050:
		first |= 2 << 2
	case 44100:
		first |= 3 << 2
	}
	if at.SoundSize16 {
		first |= 0x02
	}
	if at.Stereo {
		first |= 0x01
	}
	out := []byte{first}
	if at.LegacyFormat == SoundAAC {
		out = append(out, byte(at.AACPacketType))
	}
	return append(out, at.Payload...)
}
