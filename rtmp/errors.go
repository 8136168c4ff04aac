// Package rtmp implements the RTMP connection layer: handshake, transport
// adapters, the command/transaction reactor, a publish client state
// machine, and a server accept loop — the wire protocol that carries
// rtmpmsg messages and amf0-encoded commands between peers.
package rtmp

import "errors"

// Error kinds, spec.md §7.
var (
	// ErrInvalidFormat marks malformed bytes: unknown AMF marker, bad FLV
	// signature, truncated chunk.
	ErrInvalidFormat = errors.New("rtmp: invalid format")
	// ErrProtocolError marks a handshake echo mismatch, an unexpected
	// message for the connection's current state, or a non-positive
	// message length.
	ErrProtocolError = errors.New("rtmp: protocol error")
	// ErrRemoteServerError marks a peer-side failure: a `_error` response
	// or an onStatus with level "error". The raw command is carried via
	// RemoteServerError.
	ErrRemoteServerError = errors.New("rtmp: remote server error")
	// ErrConnectionClosed marks transport EOF or an explicit close.
	ErrConnectionClosed = errors.New("rtmp: connection closed")
	// ErrFrameDropped marks a message abandoned by the too-late write
	// policy (spec.md §5).
	ErrFrameDropped = errors.New("rtmp: frame dropped")
	// ErrTimeoutElapsed marks a handshake or transaction deadline expiry.
	ErrTimeoutElapsed = errors.New("rtmp: timeout elapsed")
	// ErrUnsupportedFeature marks AMF3, an encrypted tag body, or an
	// aggregate message — recognized but out of scope.
	ErrUnsupportedFeature = errors.New("rtmp: unsupported feature")
)

// RemoteServerError wraps ErrRemoteServerError with the raw AMF0 command
// the peer sent (a `_error` response or an onStatus carrying level=="error").
type RemoteServerError struct {
	Command string
	Info    map[string]string
}

func (e *RemoteServerError) Error() string {
	if e.Info != nil {
		return "rtmp: remote server error: " + e.Command + ": " + e.Info["code"]
	}
	return "rtmp: remote server error: " + e.Command
}

func (e *RemoteServerError) Unwrap() error { return ErrRemoteServerError }
