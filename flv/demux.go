package flv

import (
	"bufio"
	"fmt"
	"io"
)

// DecodedTag is a fully parsed tag: exactly one of Audio, Video, Script is
// non-nil depending on Type.
type DecodedTag struct {
	Type      TagType
	Timestamp uint32
	Audio     *AudioTag
	Video     *VideoTag
	Script    *ScriptTag
}

// RawTag is a tag whose body is returned unparsed, for callers that only
// relay bytes (e.g. forwarding an RTMP publisher's stream into an FLV file
// without re-parsing audio/video framing).
type RawTag struct {
	Type      TagType
	Timestamp uint32
	Body      []byte
}

// Demuxer reads FLV tags from an io.Reader, validating the file header on
// first use.
type Demuxer struct {
	r            *bufio.Reader
	readHeader   bool
	HasAudio     bool
	HasVideo     bool
}

// NewDemuxer wraps r for tag-by-tag FLV decoding.
func NewDemuxer(r io.Reader) *Demuxer {
	return &Demuxer{r: bufio.NewReader(r)}
}

func (d *Demuxer) ensureHeader() error {
	if d.readHeader {
		return nil
	}
	hdr := make([]byte, 9)
	if _, err := io.ReadFull(d.r, hdr); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if hdr[0] != 'F' || hdr[1] != 'L' || hdr[2] != 'V' {
		return fmt.Errorf("%w: bad FLV signature", ErrInvalidFormat)
	}
	d.HasAudio = hdr[4]&(1<<2) != 0
	d.HasVideo = hdr[4]&1 != 0
	offset := uint32(hdr[5])<<24 | uint32(hdr[6])<<16 | uint32(hdr[7])<<8 | uint32(hdr[8])
	if offset > 9 {
		if _, err := io.CopyN(io.Discard, d.r, int64(offset-9)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
	}
	// PreviousTagSize0, always 0.
	if _, err := io.CopyN(io.Discard, d.r, 4); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	d.readHeader = true
	return nil
}

// readRaw reads the next tag's header and body, then consumes the
// PreviousTagSize trailer that follows it. Returns io.EOF when no bytes at
// all remain at a tag boundary (the last tag's trailer having already been
// consumed); a partial tag header is ErrInvalidFormat.
func (d *Demuxer) readRaw() (TagType, uint32, []byte, error) {
	if err := d.ensureHeader(); err != nil {
		return 0, 0, nil, err
	}

	head := make([]byte, headerSize)
	n, err := io.ReadFull(d.r, head)
	if err != nil {
		if n == 0 {
			return 0, 0, nil, io.EOF
		}
		return 0, 0, nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if head[0]&0x20 != 0 {
		return 0, 0, nil, fmt.Errorf("%w: encrypted tags", ErrUnsupportedFeature)
	}

	t, timestamp, bodyLen, err := decodeHeader(head)
	if err != nil {
		return 0, 0, nil, err
	}
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(d.r, body); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: truncated tag body", ErrInvalidFormat)
	}
	if _, err := io.CopyN(io.Discard, d.r, 4); err != nil { // PreviousTagSize trailer
		return 0, 0, nil, fmt.Errorf("%w: missing PreviousTagSize", ErrInvalidFormat)
	}
	return t, timestamp, body, nil
}

// DecodeTagOnly returns the next tag's raw, unparsed body alongside its
// header metadata, letting the caller relay bytes without re-parsing
// audio/video framing.
func (d *Demuxer) DecodeTagOnly() (*RawTag, error) {
	t, ts, body, err := d.readRaw()
	if err != nil {
		return nil, err
	}
	return &RawTag{Type: t, Timestamp: ts, Body: body}, nil
}

// Decode returns the next tag fully parsed into its audio/video/script
// model.
func (d *Demuxer) Decode() (*DecodedTag, error) {
	t, ts, body, err := d.readRaw()
	if err != nil {
		return nil, err
	}

	dt := &DecodedTag{Type: t, Timestamp: ts}
	switch t {
	case TagAudio:
		dt.Audio, err = decodeAudioTag(body)
	case TagVideo:
		dt.Video, err = decodeVideoTag(body)
	case TagScript:
		dt.Script, err = decodeScriptTag(body)
	}
	if err != nil {
		return nil, err
	}
	return dt, nil
}
