package rtmp

import (
	"sync"

	"github.com/strmio/rtmp/amf0"
	"github.com/strmio/rtmp/internal/rtmplog"
)

// Callbacks is the server's per-connection dispatch table, spec.md §4.7.
// Each field is optional; a nil callback accepts the request silently
// (connect/createStream/releaseStream/publish) or is routed to the unknown
// handlers (UnknownMessage/UnknownCommandMessage/UnknownDataMessage).
// An error returned by OnConnect or OnCreateStream makes the server reply
// with `_error`, and one returned by OnPublish with an onStatus of level
// "error", instead of the canonical success response; the connection stays
// open either way. Errors returned by OnReleaseStream, OnFCPublish,
// OnFCUnpublish and OnPlay are ignored: the server sends its usual reply
// (if any) regardless.
type Callbacks struct {
	OnConnect        func(s *Session, app string, cmdObj *amf0.Value) error
	OnCreateStream   func(s *Session) error
	OnReleaseStream  func(s *Session, streamKey string) error
	OnFCPublish      func(s *Session, streamKey string) error
	OnFCUnpublish    func(s *Session, streamKey string) error
	OnPublish        func(s *Session, streamKey string, pubType PublishType) error
	OnPlay           func(s *Session, streamKey string) error
	OnDeleteStream   func(s *Session, streamID uint32)
	OnCloseStream    func(s *Session)
	OnSetDataFrame   func(s *Session, props *amf0.Value)
	OnAudio          func(s *Session, timestamp uint32, body []byte)
	OnVideo          func(s *Session, timestamp uint32, body []byte)
	OnUnknownMessage func(s *Session, msgType byte, payload []byte)
	OnUnknownCommand func(s *Session, cmd *Command)
	OnUnknownData    func(s *Session, payload []byte)
}

// Server accepts RTMP publish connections and dispatches their commands
// through Callbacks, generalizing the teacher's RTMPServer/RTMPSession pair.
// Play/pull-client support, the GOP cache, and the IP-concurrency limiter
// are play-path features (spec.md's Non-goals exclude play/pull clients) and
// are not carried — see DESIGN.md.
type Server struct {
	callbacks Callbacks
	log       *rtmplog.Logger

	mu            sync.Mutex
	sessions      map[uint64]*Session
	publishers    map[string]*Session // app -> publishing session
	nextSessionID uint64
}

// NewServer constructs a Server with the given per-connection callbacks,
// logging through log (rtmplog.Default() if nil).
func NewServer(callbacks Callbacks, log *rtmplog.Logger) *Server {
	if log == nil {
		log = rtmplog.Default()
	}
	return &Server{
		callbacks:     callbacks,
		log:           log,
		sessions:      make(map[uint64]*Session),
		publishers:    make(map[string]*Session),
		nextSessionID: 1,
	}
}

// Serve accepts connections from ln until it returns an error (typically
// because ln was closed), handling each on its own goroutine.
func (srv *Server) Serve(ln *Listener) error {
	for {
		transport, ip, err := ln.Accept()
		if err != nil {
			return err
		}
		go srv.HandleConnection(transport, ip)
	}
}

func (srv *Server) nextID() uint64 {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	id := srv.nextSessionID
	srv.nextSessionID++
	return id
}

func (srv *Server) addSession(s *Session) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.sessions[s.id] = s
}

func (srv *Server) removeSession(id uint64) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	delete(srv.sessions, id)
}

// trySetPublisher registers s as the sole publisher for app, refusing if
// another session is already publishing to it.
func (srv *Server) trySetPublisher(app string, s *Session) bool {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if _, busy := srv.publishers[app]; busy {
		return false
	}
	srv.publishers[app] = s
	return true
}

func (srv *Server) removePublisher(app string, s *Session) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.publishers[app] == s {
		delete(srv.publishers, app)
	}
}

// GetPublisher returns the session currently publishing app, or nil.
func (srv *Server) GetPublisher(app string) *Session {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.publishers[app]
}

// KillPublisher terminates the session publishing app, if any. A streamID
// other than "" or "*" further restricts the kill to a session whose control-plane id
// matches, the way the teacher's "close-stream" Redis command and
// STREAM-KILL coordinator message do.
func (srv *Server) KillPublisher(app, streamID string) {
	s := srv.GetPublisher(app)
	if s == nil {
		return
	}
	if streamID != "" && streamID != "*" && s.StreamID() != streamID {
		return
	}
	s.Kill()
}

// KillAllPublishers terminates every currently-publishing session.
func (srv *Server) KillAllPublishers() {
	srv.mu.Lock()
	publishers := make([]*Session, 0, len(srv.publishers))
	for _, s := range srv.publishers {
		publishers = append(publishers, s)
	}
	srv.mu.Unlock()
	for _, s := range publishers {
		s.Kill()
	}
}

// HandleConnection performs the server-side handshake, then runs the
// session's reactor until the connection closes.
func (srv *Server) HandleConnection(transport Transport, ip string) {
	defer transport.Close()

	if err := ServerHandshake(transport); err != nil {
		srv.log.Warning("handshake failed from %s: %v", ip, err)
		return
	}

	s := &Session{
		server:         srv,
		id:             srv.nextID(),
		ip:             ip,
		nextMessageSID: 3, // 0 control, 2 reserved per spec.md §4.7; first user stream id is 3
		receiveAudio:   true,
		receiveVideo:   true,
	}
	s.conn = NewConn(transport, s)

	srv.addSession(s)
	srv.log.Session(rtmplog.LevelInfo, s.id, s.ip, "connected")
	defer srv.removeSession(s.id)
	defer srv.log.Session(rtmplog.LevelInfo, s.id, s.ip, "disconnected")
	defer s.onClose()

	s.conn.Start()
	<-s.conn.closeCh
}
