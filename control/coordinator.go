package control

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	messages "github.com/AgustinSRG/go-simple-rpc-message"
	"github.com/gorilla/websocket"

	"github.com/strmio/rtmp/internal/rtmplog"
)

// KillFunc is how the Coordinator asks the embedding server to terminate a
// publish session: channel is the app name, streamID "*" or "" means any
// session currently publishing that channel.
type KillFunc func(channel, streamID string)

// publishResult is the answer to a pending PUBLISH-REQUEST.
type publishResult struct {
	accepted bool
	streamID string
}

// Coordinator maintains a websocket connection to a control-plane server
// that approves publish attempts and can order streams killed, generalizing
// the teacher's ControlServerConnection. With no base URL configured it
// runs in stand-alone mode: RequestPublish always accepts immediately and
// PublishEnd is a no-op, matching the teacher's "enabled" flag.
type Coordinator struct {
	connectionURL string
	authSecret    string
	externalIP    string
	externalPort  string
	externalSSL   bool
	onKill        KillFunc
	log           *rtmplog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	nextReq uint64
	pending map[string]chan publishResult

	enabled bool
}

// CoordinatorConfig carries the environment surface the teacher reads
// directly off os.Getenv in ControlServerConnection.Initialize.
type CoordinatorConfig struct {
	BaseURL      string // CONTROL_BASE_URL; "" disables the coordinator
	AuthSecret   string // CONTROL_SECRET
	ExternalIP   string // EXTERNAL_IP
	ExternalPort string // EXTERNAL_PORT
	ExternalSSL  bool   // EXTERNAL_SSL == "YES"
}

// NewCoordinator builds a Coordinator from cfg. onKill is invoked whenever
// the control server orders a stream to be killed (a STREAM-KILL message).
func NewCoordinator(cfg CoordinatorConfig, onKill KillFunc, log *rtmplog.Logger) *Coordinator {
	c := &Coordinator{
		authSecret:   cfg.AuthSecret,
		externalIP:   cfg.ExternalIP,
		externalPort: cfg.ExternalPort,
		externalSSL:  cfg.ExternalSSL,
		onKill:       onKill,
		log:          log,
		pending:      make(map[string]chan publishResult),
	}
	if cfg.BaseURL == "" {
		log.Warning("CONTROL_BASE_URL not provided. The server will run in stand-alone mode.")
		return c
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		log.Error(fmt.Errorf("control: invalid CONTROL_BASE_URL: %w", err))
		return c
	}
	path, _ := url.Parse("/ws/control/rtmp")
	c.connectionURL = base.ResolveReference(path).String()
	c.enabled = true
	return c
}

// Start connects (with automatic reconnect) and begins the heartbeat loop.
// It returns immediately; call from the server's startup path.
func (c *Coordinator) Start() {
	if !c.enabled {
		return
	}
	go c.connect()
	go c.heartbeatLoop()
}

func (c *Coordinator) connect() {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return
	}
	c.log.Info("[WS-CONTROL] Connecting to %s", c.connectionURL)

	headers := http.Header{}
	if token, err := MakeAuthToken(c.authSecret); err == nil && token != "" {
		headers.Set("x-control-auth-token", token)
	}
	if c.externalIP != "" {
		headers.Set("x-external-ip", c.externalIP)
	}
	if c.externalPort != "" {
		headers.Set("x-custom-port", c.externalPort)
	}
	if c.externalSSL {
		headers.Set("x-ssl-use", "true")
	}

	conn, _, err := websocket.DefaultDialer.Dial(c.connectionURL, headers)
	if err != nil {
		c.mu.Unlock()
		c.log.Warning("[WS-CONTROL] connection error: %v", err)
		go c.reconnect()
		return
	}
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)
}

func (c *Coordinator) reconnect() {
	time.Sleep(10 * time.Second)
	c.connect()
}

func (c *Coordinator) onDisconnect(err error) {
	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	c.log.Info("[WS-CONTROL] disconnected: %v", err)
	go c.connect()
}

func (c *Coordinator) send(msg messages.RPCMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return false
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(msg.Serialize())) == nil
}

func (c *Coordinator) nextRequestID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextReq
	c.nextReq++
	return fmt.Sprint(id)
}

func (c *Coordinator) readLoop(conn *websocket.Conn) {
	for {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			c.onDisconnect(err)
			return
		}
		msg := messages.ParseRPCMessage(string(raw))
		c.dispatch(&msg)
	}
}

func (c *Coordinator) dispatch(msg *messages.RPCMessage) {
	switch msg.Method {
	case "ERROR":
		c.log.Warning("[WS-CONTROL] remote error %s: %s", msg.GetParam("Error-Code"), msg.GetParam("Error-Message"))
	case "PUBLISH-ACCEPT":
		c.resolve(msg.GetParam("Request-Id"), publishResult{accepted: true, streamID: msg.GetParam("Stream-Id")})
	case "PUBLISH-DENY":
		c.resolve(msg.GetParam("Request-Id"), publishResult{accepted: false})
	case "STREAM-KILL":
		if c.onKill != nil {
			c.onKill(msg.GetParam("Stream-Channel"), msg.GetParam("Stream-Id"))
		}
	}
}

func (c *Coordinator) resolve(requestID string, res publishResult) {
	c.mu.Lock()
	waiter, ok := c.pending[requestID]
	c.mu.Unlock()
	if !ok {
		return
	}
	waiter <- res
}

func (c *Coordinator) heartbeatLoop() {
	for {
		time.Sleep(20 * time.Second)
		c.send(messages.RPCMessage{Method: "HEARTBEAT"})
	}
}

// RequestPublish asks the coordinator to approve a publish attempt,
// blocking until it answers or 20 seconds elapse. In stand-alone mode
// (no CONTROL_BASE_URL) it always accepts immediately.
func (c *Coordinator) RequestPublish(channel, key, userIP string) (accepted bool, streamID string) {
	if !c.enabled {
		return true, ""
	}

	requestID := c.nextRequestID()
	waiter := make(chan publishResult, 1)

	c.mu.Lock()
	c.pending[requestID] = waiter
	c.mu.Unlock()

	sent := c.send(messages.RPCMessage{Method: "PUBLISH-REQUEST", Params: map[string]string{
		"Request-ID":    requestID,
		"Stream-Channel": channel,
		"Stream-Key":    key,
		"User-IP":       userIP,
	}})
	if !sent {
		c.mu.Lock()
		delete(c.pending, requestID)
		c.mu.Unlock()
		return false, ""
	}

	timer := time.AfterFunc(20*time.Second, func() {
		waiter <- publishResult{accepted: false}
	})
	res := <-waiter
	timer.Stop()

	c.mu.Lock()
	delete(c.pending, requestID)
	c.mu.Unlock()

	return res.accepted, res.streamID
}

// PublishEnd notifies the coordinator that a publish session has ended.
func (c *Coordinator) PublishEnd(channel, streamID string) bool {
	if !c.enabled {
		return true
	}
	return c.send(messages.RPCMessage{Method: "PUBLISH-END", Params: map[string]string{
		"Stream-Channel": channel,
		"Stream-ID":     streamID,
	}})
}
