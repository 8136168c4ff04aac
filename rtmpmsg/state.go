package rtmpmsg

// streamEntry is the "last message seen" record a chunk stream state map
// keeps per id, backing header compression (spec.md §3.5).
type streamEntry struct {
	timestamp   uint32
	streamID    uint32
	messageType byte
	length      uint32

	// in-progress reassembly of a partially received message
	buf        []byte
	wantLen    uint32
	extTSInUse bool
}

// StreamState tracks, per chunk-stream-id, the last message header seen —
// one instance for reading, one for writing, per connection (spec.md §3.5).
type StreamState struct {
	streams map[uint32]*streamEntry
}

// NewStreamState constructs an empty chunk-stream state map.
func NewStreamState() *StreamState {
	return &StreamState{streams: make(map[uint32]*streamEntry)}
}

func (s *StreamState) entry(cid uint32) *streamEntry {
	e, ok := s.streams[cid]
	if !ok {
		e = &streamEntry{}
		s.streams[cid] = e
	}
	return e
}

// ChooseHeaderType implements the write-side header-choice rule of spec.md
// §4.2: type 0 if this is the first message on the chunk stream, or if
// timestamps regressed, or the message-stream-id changed; type 2 if type
// and length are unchanged from the last message; otherwise type 1.
func (s *StreamState) ChooseHeaderType(cid uint32, streamID uint32, messageType byte, length uint32, timestamp uint32) HeaderType {
	e, seen := s.streams[cid]
	if !seen {
		return HeaderFull
	}
	if e.timestamp > timestamp {
		return HeaderFull
	}
	if e.streamID != streamID {
		return HeaderFull
	}
	if e.messageType == messageType && e.length == length {
		return HeaderSameLength
	}
	return HeaderSameStream
}

// LastTimestamp returns the last absolute timestamp recorded for cid, and
// whether any message has been recorded on it yet.
func (s *StreamState) LastTimestamp(cid uint32) (uint32, bool) {
	e, ok := s.streams[cid]
	if !ok {
		return 0, false
	}
	return e.timestamp, true
}

// RecordSent updates the write-side state after a message is sent in full.
func (s *StreamState) RecordSent(cid uint32, streamID uint32, messageType byte, length uint32, timestamp uint32) {
	e := s.entry(cid)
	e.timestamp = timestamp
	e.streamID = streamID
	e.messageType = messageType
	e.length = length
}

// BeginMessage starts (or resumes, for a HeaderContinuation chunk) message
// reassembly on cid, returning the entry used to accumulate payload bytes.
// For header types 0-2 the caller must have already updated the entry's
// timestamp/streamID/messageType/length fields via ApplyHeader.
func (s *StreamState) BeginMessage(cid uint32) *streamEntry {
	e := s.entry(cid)
	if e.buf == nil || uint32(len(e.buf)) >= e.wantLen {
		e.buf = make([]byte, 0, e.length)
		e.wantLen = e.length
	}
	return e
}

// ApplyHeader merges a decoded MessageHeader into the chunk stream's
// tracked state according to ht, computing absolute values for the delta
// forms (type 1/2 carry a delta from the previous message; type 3 repeats
// the previous message's fields outright).
func (s *StreamState) ApplyHeader(cid uint32, ht HeaderType, h MessageHeader) *streamEntry {
	e := s.entry(cid)
	switch ht {
	case HeaderFull:
		e.timestamp = h.Timestamp
		e.streamID = h.StreamID
		e.messageType = h.MessageType
		e.length = h.MessageLen
	case HeaderSameStream:
		e.timestamp += h.Timestamp
		e.messageType = h.MessageType
		e.length = h.MessageLen
	case HeaderSameLength:
		e.timestamp += h.Timestamp
	case HeaderContinuation:
		// Reuse every field from the previous message on this chunk stream,
		// except when an extended timestamp was repeated on this
		// continuation chunk (spec.md §4.2 open question (i)): the emitted
		// value is tolerated but not required to change the timestamp.
		if h.Timestamp != 0 {
			e.timestamp = h.Timestamp
		}
	}
	return e
}

// Append adds a received chunk's payload slice to the in-progress message,
// reporting whether the full message length has now been collected.
func (e *streamEntry) Append(b []byte) (complete bool) {
	e.buf = append(e.buf, b...)
	return uint32(len(e.buf)) >= e.wantLen
}

// Payload returns the accumulated message bytes once complete.
func (e *streamEntry) Payload() []byte { return e.buf }

// Timestamp returns the chunk stream's current absolute timestamp.
func (e *streamEntry) Timestamp() uint32 { return e.timestamp }

// MessageType returns the chunk stream's current message type id.
func (e *streamEntry) MessageType() byte { return e.messageType }

// MessageStreamID returns the chunk stream's current message-stream-id.
func (e *streamEntry) MessageStreamID() uint32 { return e.streamID }

// MessageLen returns the chunk stream's current declared message length.
func (e *streamEntry) MessageLen() uint32 { return e.length }
