package rtmp

import (
	"github.com/strmio/rtmp/amf0"
	"github.com/strmio/rtmp/internal/rtmplog"
	"github.com/strmio/rtmp/rtmpmsg"
)

// Session is one accepted connection's server-side state: the app/stream
// key it is publishing, and the per-connection stream-id allocator,
// generalizing the teacher's RTMPSession (rtmp_session.go) to the
// callback-driven dispatch of spec.md §4.7.
type Session struct {
	server *Server
	conn   *Conn

	id uint64
	ip string

	app             string
	streamKey       string
	streamID        string // control-plane-assigned id, set by the embedding server's OnPublish callback
	isConnected     bool
	isPublishing    bool
	publishStreamID uint32
	nextMessageSID  uint32

	receiveAudio bool
	receiveVideo bool
}

// ID returns the session's server-assigned identifier.
func (s *Session) ID() uint64 { return s.id }

// IP returns the remote address the connection was accepted from.
func (s *Session) IP() string { return s.ip }

// App returns the application name the client connected with.
func (s *Session) App() string { return s.app }

// StreamKey returns the key this session is publishing under, once known.
func (s *Session) StreamKey() string { return s.streamKey }

// StreamID returns the control-plane-assigned id for this publish session,
// if SetStreamID has been called.
func (s *Session) StreamID() string { return s.streamID }

// SetStreamID lets the embedding server record a control-plane-assigned id
// (e.g. from a coordinator or webhook response) against this session.
func (s *Session) SetStreamID(id string) { s.streamID = id }

// Kill forcibly terminates the connection, for use by an external
// control-plane command (Redis, coordinator STREAM-KILL).
func (s *Session) Kill() { s.conn.Close() }

// allocateStreamID hands out the next message-stream-id, skipping 0
// (control) and 2 (reserved for the control channel per spec.md §4.7).
func (s *Session) allocateStreamID() uint32 {
	id := s.nextMessageSID
	s.nextMessageSID++
	if s.nextMessageSID == 2 {
		s.nextMessageSID++
	}
	return id
}

// HandleMessage implements Handler: it classifies each reassembled message
// by type, and for commands, by name, dispatching to the callback set and
// emitting the canonical replies of spec.md §4.7.
func (s *Session) HandleMessage(c *Conn, msg *rtmpmsg.Message) {
	switch msg.Type {
	case rtmpmsg.TypeCommandAMF0:
		s.handleCommand(msg)
	case rtmpmsg.TypeDataAMF0:
		s.handleData(msg)
	case rtmpmsg.TypeAudio:
		if s.server.callbacks.OnAudio != nil {
			s.server.callbacks.OnAudio(s, msg.Timestamp, msg.Payload)
		}
	case rtmpmsg.TypeVideo:
		if s.server.callbacks.OnVideo != nil {
			s.server.callbacks.OnVideo(s, msg.Timestamp, msg.Payload)
		}
	default:
		if s.server.callbacks.OnUnknownMessage != nil {
			s.server.callbacks.OnUnknownMessage(s, msg.Type, msg.Payload)
		}
	}
}

func (s *Session) handleCommand(msg *rtmpmsg.Message) {
	cmd, err := DecodeCommand(msg.Payload)
	if err != nil {
		return
	}

	switch cmd.Name {
	case "connect":
		s.handleConnect(cmd)
	case "releaseStream":
		s.handleReleaseStream(cmd)
	case "FCPublish":
		s.handleFCPublish(cmd)
	case "FCUnpublish":
		if s.server.callbacks.OnFCUnpublish != nil {
			s.server.callbacks.OnFCUnpublish(s, firstArgString(cmd))
		}
	case "createStream":
		s.handleCreateStream(cmd)
	case "publish":
		s.handlePublish(cmd, msg.StreamID)
	case "play":
		if s.server.callbacks.OnPlay != nil {
			s.server.callbacks.OnPlay(s, firstArgString(cmd))
		}
	case "deleteStream":
		s.handleDeleteStream(cmd)
	case "closeStream":
		if s.server.callbacks.OnCloseStream != nil {
			s.server.callbacks.OnCloseStream(s)
		}
		s.endPublish()
	default:
		if s.server.callbacks.OnUnknownCommand != nil {
			s.server.callbacks.OnUnknownCommand(s, cmd)
		}
	}
}

func firstArgString(cmd *Command) string {
	if len(cmd.Args) == 0 {
		return ""
	}
	return cmd.Args[0].Str()
}

func (s *Session) handleData(msg *rtmpmsg.Message) {
	r := amf0.NewReader(msg.Payload)
	nameV, err := r.ReadValue()
	if err != nil {
		return
	}
	if nameV.Str() != "@setDataFrame" {
		if s.server.callbacks.OnUnknownData != nil {
			s.server.callbacks.OnUnknownData(s, msg.Payload)
		}
		return
	}
	if _, err := r.ReadValue(); err != nil { // "onMetaData" name
		return
	}
	props, err := r.ReadValue()
	if err != nil {
		return
	}
	if s.server.callbacks.OnSetDataFrame != nil {
		s.server.callbacks.OnSetDataFrame(s, props)
	}
}

// handleConnect runs the `connect` acceptance callback, then emits the
// canonical response sequence of spec.md §4.7: window ack size, peer
// bandwidth, stream-begin, chunk size, then `_result`.
func (s *Session) handleConnect(cmd *Command) {
	app := cmd.CommandObject.Get("app").Str()
	s.app = app
	s.server.log.Session(rtmplog.LevelInfo, s.id, s.ip, "CONNECT '%s'", app)

	if s.server.callbacks.OnConnect != nil {
		if err := s.server.callbacks.OnConnect(s, app, cmd.CommandObject); err != nil {
			s.conn.Send(NewCommandMessage(0, &Command{
				Name: "_error", TransactionID: cmd.TransactionID, CommandObject: amf0.Null(),
				Args: []*amf0.Value{StatusInfo("error", "NetConnection.Connect.Rejected", err.Error())},
			}))
			return
		}
	}
	s.isConnected = true

	s.conn.Send(&rtmpmsg.Message{
		Type: rtmpmsg.TypeWindowAckSize, ChunkCSID: rtmpmsg.CSIDProtocolControl,
		Payload: rtmpmsg.EncodeWindowAckSize(2_500_000),
	})
	s.conn.Send(&rtmpmsg.Message{
		Type: rtmpmsg.TypeSetPeerBandwidth, ChunkCSID: rtmpmsg.CSIDProtocolControl,
		Payload: rtmpmsg.EncodeSetPeerBandwidth(2_500_000, rtmpmsg.LimitDynamic),
	})
	s.conn.Send(&rtmpmsg.Message{
		Type: rtmpmsg.TypeUserControl, ChunkCSID: rtmpmsg.CSIDProtocolControl,
		Payload: rtmpmsg.EncodeUserControl(rtmpmsg.UserControlStreamBegin, []byte{0, 0, 0, 0}),
	})
	s.conn.Send(&rtmpmsg.Message{
		Type: rtmpmsg.TypeSetChunkSize, ChunkCSID: rtmpmsg.CSIDProtocolControl,
		Payload: rtmpmsg.EncodeSetChunkSize(rtmpmsg.DefaultChunkSize),
	})
	s.conn.writer.SetChunkSize(rtmpmsg.DefaultChunkSize)

	props := amf0.Object()
	props.Set("fmsVer", amf0.String("FMS/3,0,1,123"))
	props.Set("capabilities", amf0.Number(239))

	s.conn.Send(NewCommandMessage(0, &Command{
		Name: "_result", TransactionID: cmd.TransactionID, CommandObject: props,
		Args: []*amf0.Value{StatusInfo("status", "NetConnection.Connect.Success", "Connection succeeded.")},
	}))
}

func (s *Session) handleReleaseStream(cmd *Command) {
	streamKey := firstArgString(cmd)
	if s.server.callbacks.OnReleaseStream != nil {
		s.server.callbacks.OnReleaseStream(s, streamKey)
	}
	s.conn.Send(NewCommandMessage(0, &Command{
		Name: "_result", TransactionID: cmd.TransactionID, CommandObject: amf0.Null(),
		Args: []*amf0.Value{amf0.Number(1)},
	}))
}

func (s *Session) handleFCPublish(cmd *Command) {
	streamKey := firstArgString(cmd)
	if s.server.callbacks.OnFCPublish != nil {
		s.server.callbacks.OnFCPublish(s, streamKey)
	}
	s.conn.Send(NewCommandMessage(0, &Command{
		Name: "onFCPublish", TransactionID: 0, CommandObject: amf0.Null(),
	}))
}

func (s *Session) handleCreateStream(cmd *Command) {
	if s.server.callbacks.OnCreateStream != nil {
		if err := s.server.callbacks.OnCreateStream(s); err != nil {
			s.conn.Send(NewCommandMessage(0, &Command{
				Name: "_error", TransactionID: cmd.TransactionID, CommandObject: amf0.Null(),
				Args: []*amf0.Value{StatusInfo("error", "NetConnection.Call.Failed", err.Error())},
			}))
			return
		}
	}
	id := s.allocateStreamID()
	s.conn.Send(NewCommandMessage(0, &Command{
		Name: "_result", TransactionID: cmd.TransactionID, CommandObject: amf0.Null(),
		Args: []*amf0.Value{amf0.Number(float64(id))},
	}))
}

func (s *Session) handlePublish(cmd *Command, streamID uint32) {
	if len(cmd.Args) == 0 || !s.isConnected {
		return
	}
	streamKey := cmd.Args[0].Str()
	pubType := PublishLive
	if len(cmd.Args) > 1 {
		pubType = PublishType(cmd.Args[1].Str())
	}
	s.publishStreamID = streamID

	if s.isPublishing {
		s.sendStatus(streamID, "error", "NetStream.Publish.BadConnection", "Connection already publishing")
		return
	}
	if !s.server.trySetPublisher(s.app, s) {
		s.sendStatus(streamID, "error", "NetStream.Publish.BadName", "Stream already publishing")
		return
	}

	if s.server.callbacks.OnPublish != nil {
		if err := s.server.callbacks.OnPublish(s, streamKey, pubType); err != nil {
			s.server.removePublisher(s.app, s)
			s.sendStatus(streamID, "error", "NetStream.Publish.Failed", err.Error())
			return
		}
	}

	s.streamKey = streamKey
	s.isPublishing = true
	s.server.log.Session(rtmplog.LevelInfo, s.id, s.ip, "PUBLISH (%d) '%s/%s'", streamID, s.app, streamKey)
	s.sendStatus(streamID, "status", "NetStream.Publish.Start", "/"+s.app+"/"+streamKey+" is now published.")
}

func (s *Session) sendStatus(streamID uint32, level, code, description string) {
	s.conn.Send(NewCommandMessage(streamID, &Command{
		Name: "onStatus", TransactionID: 0, CommandObject: amf0.Null(),
		Args: []*amf0.Value{StatusInfo(level, code, description)},
	}))
}

func (s *Session) handleDeleteStream(cmd *Command) {
	if len(cmd.Args) == 0 {
		return
	}
	streamID := uint32(cmd.Args[0].Int64())
	if s.server.callbacks.OnDeleteStream != nil {
		s.server.callbacks.OnDeleteStream(s, streamID)
	}
	if streamID == s.publishStreamID {
		s.endPublish()
	}
}

func (s *Session) endPublish() {
	if !s.isPublishing {
		return
	}
	s.isPublishing = false
	s.server.removePublisher(s.app, s)
	s.publishStreamID = 0
}

func (s *Session) onClose() {
	s.endPublish()
	s.isConnected = false
}
