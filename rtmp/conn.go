package rtmp

import (
	"fmt"
	"sync"
	"time"

	"github.com/strmio/rtmp/rtmpmsg"
)

// outgoingEntry is one item on a Conn's outgoing message queue (spec.md
// §3.7): the message to write, a one-shot completion, and an optional
// deadline past which the message is abandoned instead of sent.
type outgoingEntry struct {
	msg      *rtmpmsg.Message
	done     chan error
	deadline time.Time
}

// txKey identifies a pending transaction: either a numeric transaction id
// (for `_result`/`_error` correlation) or a command name (for `onStatus`,
// matched by name rather than transaction id per spec.md §4.5).
type txKey struct {
	id   uint32
	name string
}

func txKeyID(id uint32) txKey  { return txKey{id: id} }
func txKeyName(n string) txKey { return txKey{name: n} }

// Handler receives fully reassembled, dispatch-ready messages the reactor
// does not itself own the semantics of: commands, data messages, audio,
// video. Protocol-control messages (SET_CHUNK_SIZE, WINDOW_ACK_SIZE,
// SET_PEER_BANDWIDTH, USER_CONTROL, ACK) are handled inside Conn directly,
// since every connection needs the same bookkeeping for them regardless of
// whether it is acting as a client or a server.
type Handler interface {
	HandleMessage(c *Conn, msg *rtmpmsg.Message)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(c *Conn, msg *rtmpmsg.Message)

func (f HandlerFunc) HandleMessage(c *Conn, msg *rtmpmsg.Message) { f(c, msg) }

// Conn is the per-connection reactor of spec.md §5/§9: one reader goroutine
// suspended on the transport, one writer goroutine suspended on the
// outgoing queue, a transaction table mediated entirely by the writer
// goroutine's select loop (no separate lock — inserts and completions are
// both just channel sends into that loop, per spec.md §9's guidance to
// avoid a raw mutex on shared reactor state).
type Conn struct {
	transport Transport
	reader    *rtmpmsg.Reader
	writer    *rtmpmsg.Writer
	handler   Handler

	outgoing chan outgoingEntry
	register chan txRegister
	complete chan txComplete
	closeCh  chan struct{}
	closeErr error
	closeMu  sync.Mutex

	nextTransactionID uint32

	readWindowAckSize uint32
	totalBytesRead    uint32
	lastAckSent       uint32

	peerBandwidth     uint32
	peerBandwidthType byte

	dropOlderThan time.Duration // 0 disables the frame-drop policy
	now           func() time.Time
}

type txRegister struct {
	key  txKey
	done chan txResult
}

type txComplete struct {
	key txKey
	val any
	err error
}

type txResult struct {
	val any
	err error
}

// NewConn wraps transport with a reactor. handler receives every message
// the reactor itself does not fully consume (commands, data, audio, video,
// and anything of an unrecognized type).
func NewConn(transport Transport, handler Handler) *Conn {
	c := &Conn{
		transport:         transport,
		reader:            rtmpmsg.NewReader(transport),
		writer:            rtmpmsg.NewWriter(transport),
		handler:           handler,
		outgoing:          make(chan outgoingEntry, 64),
		register:          make(chan txRegister),
		complete:          make(chan txComplete),
		closeCh:           make(chan struct{}),
		nextTransactionID: 1,
		readWindowAckSize: 2_500_000,
		now:               time.Now,
	}
	return c
}

// SetFrameDropPolicy turns the write-time drop check on for any Δ > 0;
// Δ=0 turns it off (the default). With it on, a message enqueued through
// SendWithDeadline whose deadline has already passed when the writer
// reaches it is not sent and completes with ErrFrameDropped. Only that
// caller-supplied deadline is checked: Δ is not compared against message
// timestamps.
func (c *Conn) SetFrameDropPolicy(delta time.Duration) { c.dropOlderThan = delta }

// NextTransactionID returns the next monotonic transaction id, reserving 1
// for the initial `connect` per spec.md §3.6.
func (c *Conn) NextTransactionID() uint32 {
	id := c.nextTransactionID
	c.nextTransactionID++
	return id
}

// Start launches the reader and writer goroutines. It returns immediately;
// termination shows up through Err, and through the errors Send and
// WaitResult return once the connection has closed.
func (c *Conn) Start() {
	go c.readLoop()
	go c.writeLoop()
}

// readLoop is the reactor's reader task (spec.md §5): it owns the read-side
// chunk-stream state exclusively and is the only goroutine that calls
// reader.ReadMessage.
func (c *Conn) readLoop() {
	for {
		msg, err := c.reader.ReadMessage()
		if err != nil {
			c.shutdown(fmt.Errorf("%w: %v", ErrConnectionClosed, err))
			return
		}

		c.totalBytesRead += uint32(len(msg.Payload))
		if c.readWindowAckSize > 0 && c.totalBytesRead-c.lastAckSent >= c.readWindowAckSize {
			c.lastAckSent = c.totalBytesRead
			_ = c.sendControl(&rtmpmsg.Message{
				Type:      rtmpmsg.TypeAck,
				ChunkCSID: rtmpmsg.CSIDProtocolControl,
				Payload:   rtmpmsg.EncodeAck(c.totalBytesRead),
			})
		}

		if c.dispatchControl(msg) {
			continue
		}

		c.dispatchTransaction(msg)

		if c.handler != nil {
			c.handler.HandleMessage(c, msg)
		}
	}
}

// dispatchControl handles protocol-control message types uniformly for
// both client and server connections, reporting whether it consumed msg.
func (c *Conn) dispatchControl(msg *rtmpmsg.Message) bool {
	switch msg.Type {
	case rtmpmsg.TypeSetChunkSize:
		n, err := rtmpmsg.DecodeUint32BE(msg.Payload)
		if err == nil {
			c.reader.SetChunkSize(n)
		}
		return true
	case rtmpmsg.TypeWindowAckSize:
		n, err := rtmpmsg.DecodeUint32BE(msg.Payload)
		if err == nil {
			c.readWindowAckSize = n
		}
		return true
	case rtmpmsg.TypeSetPeerBandwidth:
		n, lt, err := rtmpmsg.DecodeSetPeerBandwidth(msg.Payload)
		if err == nil {
			c.peerBandwidth = n
			c.peerBandwidthType = lt
			_ = c.sendControl(&rtmpmsg.Message{
				Type:      rtmpmsg.TypeWindowAckSize,
				ChunkCSID: rtmpmsg.CSIDProtocolControl,
				Payload:   rtmpmsg.EncodeWindowAckSize(c.readWindowAckSize),
			})
		}
		return true
	case rtmpmsg.TypeUserControl:
		event, data, err := rtmpmsg.DecodeUserControl(msg.Payload)
		if err == nil && event == rtmpmsg.UserControlPingRequest {
			_ = c.sendControl(&rtmpmsg.Message{
				Type:      rtmpmsg.TypeUserControl,
				ChunkCSID: rtmpmsg.CSIDProtocolControl,
				Payload:   rtmpmsg.EncodeUserControl(rtmpmsg.UserControlPingResponse, data),
			})
		}
		return true
	case rtmpmsg.TypeAck, rtmpmsg.TypeAbort:
		return true
	}
	return false
}

// dispatchTransaction completes any pending waiter keyed by a decoded
// command's transaction id or (for onStatus) name, per spec.md §4.5.
func (c *Conn) dispatchTransaction(msg *rtmpmsg.Message) {
	if msg.Type != rtmpmsg.TypeCommandAMF0 {
		return
	}
	name, txID, infoCode, ok := peekCommand(msg.Payload)
	if !ok {
		return
	}
	switch name {
	case "_result":
		c.completeTransaction(txKeyID(txID), msg, nil)
	case "_error":
		c.completeTransaction(txKeyID(txID), msg, &RemoteServerError{Command: name, Info: map[string]string{"code": infoCode}})
	case "onStatus":
		key := "onStatus"
		if infoCode != "" {
			key = "onStatus:" + infoCode
		}
		level := ""
		if cmd, derr := DecodeCommand(msg.Payload); derr == nil && len(cmd.Args) > 0 {
			level = cmd.Args[len(cmd.Args)-1].Get("level").Str()
		}
		var err error
		if level == "error" || (infoCode != "" && isErrorCode(infoCode)) {
			err = &RemoteServerError{Command: name, Info: map[string]string{"code": infoCode}}
		}
		c.completeTransaction(txKeyName(key), msg, err)
	}
}

func isErrorCode(code string) bool {
	return len(code) >= 7 && (code[len(code)-7:] == "Failed." || code[len(code)-6:] == "Error." || containsError(code))
}

func containsError(code string) bool {
	for i := 0; i+5 <= len(code); i++ {
		if code[i:i+5] == "Error" {
			return true
		}
	}
	return false
}

// writeLoop is the reactor's writer task: it owns the write-side
// chunk-stream state exclusively and serializes the transaction table
// through the same select loop, per spec.md §9.
func (c *Conn) writeLoop() {
	waiters := make(map[txKey]chan txResult)
	for {
		select {
		case entry := <-c.outgoing:
			if c.dropOlderThan > 0 && !entry.deadline.IsZero() && c.now().After(entry.deadline) {
				entry.done <- ErrFrameDropped
				continue
			}
			err := c.writer.WriteMessage(entry.msg)
			entry.done <- err
			if err != nil {
				c.shutdown(err)
				c.failAllWaiters(waiters, err)
				return
			}
		case reg := <-c.register:
			waiters[reg.key] = reg.done
		case comp := <-c.complete:
			if w, ok := waiters[comp.key]; ok {
				delete(waiters, comp.key)
				w <- txResult{val: comp.val, err: comp.err}
			}
		case <-c.closeCh:
			c.failAllWaiters(waiters, c.Err())
			return
		}
	}
}

func (c *Conn) failAllWaiters(waiters map[txKey]chan txResult, err error) {
	for k, w := range waiters {
		delete(waiters, k)
		w <- txResult{err: err}
	}
}

// sendControl enqueues a protocol-control message without a deadline,
// bypassing the transaction table (control messages never have replies
// matched by transaction id).
func (c *Conn) sendControl(msg *rtmpmsg.Message) error {
	done := make(chan error, 1)
	select {
	case c.outgoing <- outgoingEntry{msg: msg, done: done}:
	case <-c.closeCh:
		return c.Err()
	}
	select {
	case err := <-done:
		return err
	case <-c.closeCh:
		return c.Err()
	}
}

// Send enqueues msg and blocks until it is fully written (or dropped/failed).
func (c *Conn) Send(msg *rtmpmsg.Message) error {
	return c.SendWithDeadline(msg, time.Time{})
}

// SendWithDeadline enqueues msg with a deadline past which, under the
// frame-drop policy, the write is abandoned with ErrFrameDropped.
func (c *Conn) SendWithDeadline(msg *rtmpmsg.Message, deadline time.Time) error {
	done := make(chan error, 1)
	select {
	case c.outgoing <- outgoingEntry{msg: msg, done: done, deadline: deadline}:
	case <-c.closeCh:
		return c.Err()
	}
	select {
	case err := <-done:
		return err
	case <-c.closeCh:
		return c.Err()
	}
}

// registerWaiter installs a one-shot completion for key and returns the
// channel it will be delivered on.
func (c *Conn) registerWaiter(key txKey) chan txResult {
	done := make(chan txResult, 1)
	select {
	case c.register <- txRegister{key: key, done: done}:
	case <-c.closeCh:
		done <- txResult{err: c.Err()}
	}
	return done
}

func (c *Conn) completeTransaction(key txKey, msg *rtmpmsg.Message, err error) {
	select {
	case c.complete <- txComplete{key: key, val: msg, err: err}:
	case <-c.closeCh:
	}
}

// WaitResult blocks for the transaction keyed by key to complete, honoring
// timeout (0 disables it).
func (c *Conn) WaitResult(key txKey, timeout time.Duration) (*rtmpmsg.Message, error) {
	done := c.registerWaiter(key)
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

// Close cancels both reactor tasks: every outstanding transaction
// completion is failed with the cancellation cause and the outgoing queue
// stops accepting new entries (spec.md §5, Cancellation).
func (c *Conn) Close() error {
	c.shutdown(ErrConnectionClosed)
	return c.transport.Close()
}

func (c *Conn) shutdown(cause error) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closeErr != nil {
		return
	}
	c.closeErr = cause
	close(c.closeCh)
}

// Err returns the cause the connection was closed with, or nil if still open.
func (c *Conn) Err() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closeErr
}
