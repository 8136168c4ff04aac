package rtmp

import (
	"fmt"
	"sync"
	"time"

	"github.com/strmio/rtmp/amf0"
	"github.com/strmio/rtmp/rtmpmsg"
)

// State is a publish client's position in the state machine of spec.md §4.6.
type State int

const (
	StateDisconnected State = iota
	StateHandshaken
	StateConnecting
	StateConnected
	StateFailed
	StateCreatingStream
	StateReady
	StatePublishingRequested
	StatePublishing
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateHandshaken:
		return "HANDSHAKEN"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateFailed:
		return "FAILED"
	case StateCreatingStream:
		return "CREATING_STREAM"
	case StateReady:
		return "READY"
	case StatePublishingRequested:
		return "PUBLISHING_REQUESTED"
	case StatePublishing:
		return "PUBLISHING"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// PublishType is the `publish` command's type argument, spec.md §4.6.
type PublishType string

const (
	PublishLive   PublishType = "live"
	PublishRecord PublishType = "record"
	PublishAppend PublishType = "append"
)

// ClientConfig carries the fields the `connect` command object sends,
// spec.md §4.6.
type ClientConfig struct {
	App            string
	FlashVer       string
	FPad           bool
	AudioCodecs    float64
	VideoCodecs    float64
	FourCcList     []string
	VideoFunction  float64
	ObjectEncoding float64
}

// DefaultClientConfig returns field values matching common RTMP publishers
// (capabilities fixed at 239 per spec.md §4.6; objectEncoding 0 selects
// AMF0).
func DefaultClientConfig(app string) ClientConfig {
	return ClientConfig{
		App:            app,
		FlashVer:       "FMLE/3.0 (compatible; strmio)",
		FPad:           false,
		AudioCodecs:    4071,
		VideoCodecs:    252,
		VideoFunction:  1,
		ObjectEncoding: 0,
	}
}

// Client drives the publish workflow of spec.md §4.6 over a Conn.
type Client struct {
	conn   *Conn
	url    *ParsedURL
	cfg    ClientConfig
	mu     sync.Mutex
	state  State
	txID   uint32
	stream uint32
}

// NewClient constructs a Client bound to an already-handshaken transport.
// Dial (below) performs the handshake and transport selection from a URL in
// one call.
func NewClient(transport Transport, u *ParsedURL, cfg ClientConfig) *Client {
	c := &Client{url: u, cfg: cfg, state: StateHandshaken}
	c.conn = NewConn(transport, HandlerFunc(func(*Conn, *rtmpmsg.Message) {}))
	return c
}

// Dial resolves rawURL, opens the appropriate transport, performs the
// handshake, and returns a Client ready to Connect.
func Dial(rawURL string, cfg ClientConfig) (*Client, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	if cfg.App == "" {
		cfg.App = u.App
	}

	var transport Transport
	switch {
	case u.IsTunneled():
		transport, err = DialHTTPTunnel(u.Addr(), u.IsSecure())
	case u.IsSecure():
		transport, err = NewTLSTransport(u.Addr(), u.Host)
	default:
		transport, err = NewTCPTransport(u.Addr())
	}
	if err != nil {
		return nil, err
	}

	if err := ClientHandshake(transport); err != nil {
		transport.Close()
		return nil, err
	}

	return NewClient(transport, u, cfg), nil
}

// State returns the client's current state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Connect starts the reactor and performs HANDSHAKEN -> CONNECTING ->
// CONNECTED: sends `connect` on transaction id 1 and waits for `_result`.
func (c *Client) Connect(timeout time.Duration) error {
	if c.State() != StateHandshaken {
		return fmt.Errorf("%w: Connect called in state %s", ErrProtocolError, c.State())
	}
	c.conn.Start()
	c.setState(StateConnecting)

	obj := amf0.Object()
	obj.Set("app", amf0.String(c.cfg.App))
	obj.Set("flashVer", amf0.String(c.cfg.FlashVer))
	obj.Set("tcUrl", amf0.String(c.url.TcURL))
	obj.Set("fpad", amf0.Boolean(c.cfg.FPad))
	obj.Set("capabilities", amf0.Number(239))
	obj.Set("audioCodecs", amf0.Number(c.cfg.AudioCodecs))
	obj.Set("videoCodecs", amf0.Number(c.cfg.VideoCodecs))
	if len(c.cfg.FourCcList) > 0 {
		fccs := make([]*amf0.Value, 0, len(c.cfg.FourCcList))
		for _, f := range c.cfg.FourCcList {
			fccs = append(fccs, amf0.String(f))
		}
		obj.Set("fourCcList", amf0.StrictArray(fccs...))
	}
	obj.Set("videoFunction", amf0.Number(c.cfg.VideoFunction))
	obj.Set("objectEncoding", amf0.Number(c.cfg.ObjectEncoding))

	const connectTxID = 1
	c.txID = connectTxID + 1

	cmd := &Command{Name: "connect", TransactionID: connectTxID, CommandObject: obj}
	waiter := c.conn.registerWaiter(txKeyID(connectTxID))
	if err := c.conn.Send(NewCommandMessage(0, cmd)); err != nil {
		c.setState(StateFailed)
		return err
	}

	result, err := c.waitFor(waiter, timeout)
	if err != nil {
		c.setState(StateFailed)
		return err
	}
	_ = result
	c.setState(StateConnected)
	return nil
}

func (c *Client) waitFor(done chan txResult, timeout time.Duration) (*rtmpmsg.Message, error) {
	if timeout <= 0 {
		r := <-done
		if r.err != nil {
			return nil, r.err
		}
		return r.val.(*rtmpmsg.Message), nil
	}
	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return r.val.(*rtmpmsg.Message), nil
	case <-time.After(timeout):
		return nil, ErrTimeoutElapsed
	}
}

func (c *Client) nextTxID() uint32 {
	id := c.txID
	c.txID++
	return id
}

// CreateStream performs CONNECTED -> CREATING_STREAM -> READY: sends
// releaseStream, FCPublish, then createStream, and waits for createStream's
// `_result` to learn the allocated message-stream-id.
func (c *Client) CreateStream(streamKey string, timeout time.Duration) error {
	if c.State() != StateConnected {
		return fmt.Errorf("%w: CreateStream called in state %s", ErrProtocolError, c.State())
	}
	c.setState(StateCreatingStream)

	if err := c.conn.Send(NewCommandMessage(0, &Command{
		Name: "releaseStream", TransactionID: c.nextTxID(), CommandObject: amf0.Null(),
		Args: []*amf0.Value{amf0.String(streamKey)},
	})); err != nil {
		return err
	}
	if err := c.conn.Send(NewCommandMessage(0, &Command{
		Name: "FCPublish", TransactionID: c.nextTxID(), CommandObject: amf0.Null(),
		Args: []*amf0.Value{amf0.String(streamKey)},
	})); err != nil {
		return err
	}

	tx := c.nextTxID()
	waiter := c.conn.registerWaiter(txKeyID(tx))
	if err := c.conn.Send(NewCommandMessage(0, &Command{
		Name: "createStream", TransactionID: tx, CommandObject: amf0.Null(),
	})); err != nil {
		c.setState(StateFailed)
		return err
	}

	result, err := c.waitFor(waiter, timeout)
	if err != nil {
		c.setState(StateFailed)
		return err
	}
	cmd, err := DecodeCommand(result.Payload)
	if err != nil || len(cmd.Args) == 0 {
		c.setState(StateFailed)
		return fmt.Errorf("%w: malformed createStream result", ErrProtocolError)
	}
	c.stream = uint32(cmd.Args[len(cmd.Args)-1].Int64())
	c.setState(StateReady)
	return nil
}

// Publish performs READY -> PUBLISHING_REQUESTED -> PUBLISHING: sends
// `publish` and waits for `onStatus{code:NetStream.Publish.Start}`.
func (c *Client) Publish(streamKey string, pubType PublishType, timeout time.Duration) error {
	if c.State() != StateReady {
		return fmt.Errorf("%w: Publish called in state %s", ErrProtocolError, c.State())
	}
	c.setState(StatePublishingRequested)

	waiter := c.conn.registerWaiter(txKeyName("onStatus:NetStream.Publish.Start"))
	failWaiter := c.conn.registerWaiter(txKeyName("onStatus:NetStream.Publish.BadName"))

	cmd := &Command{
		Name: "publish", TransactionID: c.nextTxID(), CommandObject: amf0.Null(),
		Args: []*amf0.Value{amf0.String(streamKey), amf0.String(string(pubType))},
	}
	if err := c.conn.Send(NewCommandMessage(c.stream, cmd)); err != nil {
		c.setState(StateFailed)
		return err
	}

	select {
	case r := <-waiter:
		if r.err != nil {
			c.setState(StateFailed)
			return r.err
		}
		c.setState(StatePublishing)
		return nil
	case r := <-failWaiter:
		c.setState(StateFailed)
		if r.err != nil {
			return r.err
		}
		return fmt.Errorf("%w: publish rejected", ErrRemoteServerError)
	case <-time.After(orForever(timeout)):
		c.setState(StateFailed)
		return ErrTimeoutElapsed
	}
}

func orForever(d time.Duration) time.Duration {
	if d <= 0 {
		return 365 * 24 * time.Hour
	}
	return d
}

// WriteAudio sends an FLV audio tag body as an AUDIO message.
func (c *Client) WriteAudio(timestamp uint32, body []byte) error {
	if c.State() != StatePublishing {
		return fmt.Errorf("%w: WriteAudio called in state %s", ErrProtocolError, c.State())
	}
	return c.conn.Send(&rtmpmsg.Message{
		Type: rtmpmsg.TypeAudio, StreamID: c.stream, Timestamp: timestamp,
		ChunkCSID: rtmpmsg.CSIDAudio, Payload: body,
	})
}

// WriteVideo sends an FLV video tag body as a VIDEO message.
func (c *Client) WriteVideo(timestamp uint32, body []byte) error {
	if c.State() != StatePublishing {
		return fmt.Errorf("%w: WriteVideo called in state %s", ErrProtocolError, c.State())
	}
	return c.conn.Send(&rtmpmsg.Message{
		Type: rtmpmsg.TypeVideo, StreamID: c.stream, Timestamp: timestamp,
		ChunkCSID: rtmpmsg.CSIDVideo, Payload: body,
	})
}

// WriteSetDataFrame sends an `@setDataFrame`/`onMetaData` DATA_AMF0 message
// carrying props (typically an EcmaArray of stream metadata).
func (c *Client) WriteSetDataFrame(props *amf0.Value) error {
	if c.State() != StatePublishing {
		return fmt.Errorf("%w: WriteSetDataFrame called in state %s", ErrProtocolError, c.State())
	}
	payload := amf0.Encode(amf0.String("@setDataFrame"))
	payload = append(payload, amf0.Encode(amf0.String("onMetaData"))...)
	payload = append(payload, amf0.Encode(props)...)
	return c.conn.Send(&rtmpmsg.Message{
		Type: rtmpmsg.TypeDataAMF0, StreamID: c.stream,
		ChunkCSID: rtmpmsg.CSIDCommand, Payload: payload,
	})
}

// Close performs PUBLISHING -> CLOSING -> DISCONNECTED: sends deleteStream,
// FCUnpublish, closeStream, then closes the transport.
func (c *Client) Close() error {
	c.setState(StateClosing)
	_ = c.conn.Send(NewCommandMessage(0, &Command{
		Name: "deleteStream", TransactionID: c.nextTxID(), CommandObject: amf0.Null(),
		Args: []*amf0.Value{amf0.Number(float64(c.stream))},
	}))
	_ = c.conn.Send(NewCommandMessage(0, &Command{
		Name: "FCUnpublish", TransactionID: c.nextTxID(), CommandObject: amf0.Null(),
	}))
	_ = c.conn.Send(NewCommandMessage(c.stream, &Command{
		Name: "closeStream", TransactionID: c.nextTxID(), CommandObject: amf0.Null(),
	}))
	err := c.conn.Close()
	c.setState(StateDisconnected)
	return err
}
