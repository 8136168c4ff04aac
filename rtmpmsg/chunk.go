// Package rtmpmsg implements the RTMP chunk stream protocol and its
// message layer: basic/message chunk headers, per-chunk-stream header
// compression state, message reassembly, and the typed message set
// (command/data/audio/video/control) that rides on top of chunks.
package rtmpmsg

import "encoding/binary"

// HeaderType is the chunk basic header's 2-bit fmt field, selecting how
// much of the message header is present on the wire.
type HeaderType uint32

const (
	// HeaderFull carries timestamp(3) + length(3) + type(1) + stream id(4).
	HeaderFull HeaderType = 0
	// HeaderSameStream carries delta(3) + length(3) + type(1).
	HeaderSameStream HeaderType = 1
	// HeaderSameLength carries delta(3) only.
	HeaderSameLength HeaderType = 2
	// HeaderContinuation carries nothing: reuse the previous chunk's header
	// verbatim (timestamp becomes delta-repeat).
	HeaderContinuation HeaderType = 3
)

const (
	extendedTimestampMarker = 0xFFFFFF
	basicHeaderMaxCID       = 64 + 255 + 255*256
)

// EncodeBasicHeader serializes the 1, 2, or 3-byte chunk basic header for
// the given header type and chunk stream id, per the teacher's
// rtmpChunkBasicHeaderCreate escape scheme (cid 2-63 in 1 byte, 64-319 in 2
// bytes via a +64 offset, 320+ in 3 bytes via a 16-bit +64 offset).
func EncodeBasicHeader(ht HeaderType, cid uint32) []byte {
	switch {
	case cid > 64+255:
		v := cid - 64
		return []byte{byte(ht)<<6 | 1, byte(v), byte(v >> 8)}
	case cid >= 64:
		return []byte{byte(ht) << 6, byte(cid - 64)}
	default:
		return []byte{byte(ht)<<6 | byte(cid)}
	}
}

// BasicHeaderLen returns how many bytes follow the first header byte,
// given that first byte's low 6 bits (the cid escape selector).
func BasicHeaderLen(firstByte byte) int {
	switch firstByte & 0x3f {
	case 0:
		return 2
	case 1:
		return 3
	default:
		return 1
	}
}

// DecodeBasicHeader parses a complete basic header (1-3 bytes, as sized by
// BasicHeaderLen) into its header type and chunk stream id.
func DecodeBasicHeader(b []byte) (ht HeaderType, cid uint32) {
	ht = HeaderType(b[0] >> 6)
	switch len(b) {
	case 3:
		cid = 64 + uint32(b[1]) + uint32(b[2])<<8
	case 2:
		cid = 64 + uint32(b[1])
	default:
		cid = uint32(b[0] & 0x3f)
	}
	return ht, cid
}

// MessageHeader is the decoded form of a chunk's message header fields —
// only the subset present is meaningful, per HeaderType.
type MessageHeader struct {
	Timestamp   uint32 // full timestamp (type 0) or delta (type 1/2); 0xFFFFFF marks "read extended timestamp"
	MessageLen  uint32
	MessageType byte
	StreamID    uint32 // little-endian on the wire, per the teacher/original implementation
}

// EncodeMessageHeader serializes the message header fields present for ht,
// saturating the 24-bit timestamp/delta field at 0xFFFFFF when an extended
// timestamp will follow.
func EncodeMessageHeader(ht HeaderType, h MessageHeader) []byte {
	var out []byte

	if ht <= HeaderSameLength {
		ts := h.Timestamp
		if ts >= extendedTimestampMarker {
			ts = extendedTimestampMarker
		}
		out = append(out, byte(ts>>16), byte(ts>>8), byte(ts))
	}

	if ht <= HeaderSameStream {
		l := h.MessageLen
		out = append(out, byte(l>>16), byte(l>>8), byte(l), h.MessageType)
	}

	if ht == HeaderFull {
		sid := make([]byte, 4)
		binary.LittleEndian.PutUint32(sid, h.StreamID)
		out = append(out, sid...)
	}

	return out
}

// messageHeaderLen returns the number of bytes EncodeMessageHeader would
// emit for ht, excluding any extended timestamp.
func messageHeaderLen(ht HeaderType) int {
	switch ht {
	case HeaderFull:
		return 11
	case HeaderSameStream:
		return 7
	case HeaderSameLength:
		return 3
	default:
		return 0
	}
}
