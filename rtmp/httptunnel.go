package rtmp

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const fcsContentType = "application/x-fcs"

// tunnelTransport implements Transport over the RTMPT family (rtmpt://,
// rtmpte://, rtmpts://, spec.md §6): every read and write is carried by an
// HTTP POST, since plain TCP is blocked by the peer's network. The wire
// handshake and chunk stream underneath are unaffected — only the carrier
// changes, so everything above Transport is unaware of the tunnel.
type tunnelTransport struct {
	client   *http.Client
	base     string // e.g. "http://host:80/"
	sid      string
	seq      uint64
	readBuf  bytes.Buffer
	mu       sync.Mutex
	deadline atomic.Value // time.Time
}

// DialHTTPTunnel opens an RTMPT session against addr (host:port), performing
// the fcs/ident2 and open/1 handshake POSTs and returning a ready Transport.
// secure selects https:// as the carrier for rtmpts://.
func DialHTTPTunnel(addr string, secure bool) (Transport, error) {
	scheme := "http"
	if secure {
		scheme = "https"
	}
	t := &tunnelTransport{
		client: &http.Client{Timeout: 30 * time.Second},
		base:   fmt.Sprintf("%s://%s/", scheme, addr),
	}

	if _, err := t.post("fcs/ident2", nil); err != nil {
		return nil, fmt.Errorf("%w: fcs/ident2: %v", ErrConnectionClosed, err)
	}

	body, err := t.post("open/1", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open/1: %v", ErrConnectionClosed, err)
	}
	t.sid = strings.TrimSpace(string(body))
	if t.sid == "" {
		return nil, fmt.Errorf("%w: empty session id from open/1", ErrProtocolError)
	}

	return t, nil
}

func (t *tunnelTransport) post(path string, body []byte) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPost, t.base+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", fcsContentType)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(raw) < 1 {
		return nil, fmt.Errorf("%w: empty tunnel response", ErrInvalidFormat)
	}
	// The first byte of every fcs response is a polling-interval hint the
	// client is free to ignore; the RTMP bytes start at offset 1.
	return raw[1:], nil
}

func (t *tunnelTransport) nextSeq() uint64 { return atomic.AddUint64(&t.seq, 1) - 1 }

// Write posts p to send/{sid}/{seq} and blocks until the POST completes.
func (t *tunnelTransport) Write(p []byte) (int, error) {
	seq := t.nextSeq()
	path := fmt.Sprintf("send/%s/%d", url.PathEscape(t.sid), seq)
	if _, err := t.post(path, p); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	return len(p), nil
}

// Read drains any buffered bytes from a prior poll, issuing a fresh
// idle/{sid}/{seq} poll POST when the buffer is empty.
func (t *tunnelTransport) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for t.readBuf.Len() == 0 {
		seq := t.nextSeq()
		path := fmt.Sprintf("idle/%s/%d", url.PathEscape(t.sid), seq)
		data, err := t.post(path, nil)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
		}
		if len(data) == 0 {
			continue
		}
		t.readBuf.Write(data)
	}
	return t.readBuf.Read(p)
}

func (t *tunnelTransport) SetReadDeadline(d time.Time) error {
	t.deadline.Store(d)
	return nil
}

func (t *tunnelTransport) SetWriteDeadline(d time.Time) error {
	t.deadline.Store(d)
	return nil
}

// Close posts close/{sid}, ending the tunnel session.
func (t *tunnelTransport) Close() error {
	_, err := t.post(fmt.Sprintf("close/%s", url.PathEscape(t.sid)), nil)
	return err
}
