package rtmp

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHandshakeRoundTrip(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	clientErr := make(chan error, 1)
	serverErr := make(chan error, 1)

	go func() { clientErr <- ClientHandshake(clientConn) }()
	go func() { serverErr <- ServerHandshake(serverConn) }()

	select {
	case err := <-clientErr:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("client handshake timed out")
	}
	select {
	case err := <-serverErr:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server handshake timed out")
	}
}

func TestServerHandshakeRejectsBadVersion(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	go func() {
		clientConn.Write([]byte{99})
		clientConn.Write(make([]byte, sigSize))
	}()

	err := ServerHandshake(serverConn)
	require.ErrorIs(t, err, ErrProtocolError)
}

func TestClientHandshakeRejectsMismatchedS2Random(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	go func() {
		buf := make([]byte, 1+sigSize)
		serverConn.Read(buf) // drain C0/C1
		serverConn.Write([]byte{RTMPVersion})
		serverConn.Write(make([]byte, sigSize)) // S1
		bad := make([]byte, sigSize)            // S2 with a random block that cannot match C1's
		bad[8] = 0xFF
		bad[9] = 0xFF
		serverConn.Write(bad)
	}()

	err := ClientHandshake(clientConn)
	require.ErrorIs(t, err, ErrProtocolError)
}

func TestClientHandshakeRejectsBadVersion(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	go func() {
		// Drain C0/C1, then respond with a bad S0 version.
		buf := make([]byte, 1+sigSize)
		serverConn.Read(buf)
		serverConn.Write([]byte{77})
		serverConn.Write(make([]byte, sigSize))
		serverConn.Write(make([]byte, sigSize))
	}()

	err := ClientHandshake(clientConn)
	require.ErrorIs(t, err, ErrProtocolError)
}
