package rtmp

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strmio/rtmp/amf0"
	"github.com/strmio/rtmp/internal/rtmplog"
)

func handshakeOver(t *testing.T, clientConn, serverConn net.Conn) {
	t.Helper()
	clientErr := make(chan error, 1)
	serverErr := make(chan error, 1)
	go func() { clientErr <- ClientHandshake(clientConn) }()
	go func() { serverErr <- ServerHandshake(serverConn) }()
	require.NoError(t, <-clientErr)
	require.NoError(t, <-serverErr)
}

func TestServerPublishEndToEnd(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close(); serverConn.Close() })
	handshakeOver(t, clientConn, serverConn)

	published := make(chan string, 1)
	srv := NewServer(Callbacks{
		OnPublish: func(s *Session, streamKey string, pubType PublishType) error {
			published <- streamKey
			return nil
		},
	}, rtmplog.New(discard{}, rtmplog.LevelDebug))
	go srv.HandleConnection(serverConn, "127.0.0.1")

	u, err := ParseURL("rtmp://example.com/live/mykey")
	require.NoError(t, err)
	client := NewClient(clientConn, u, DefaultClientConfig("live"))

	require.NoError(t, client.Connect(2*time.Second))
	require.Equal(t, StateConnected, client.State())

	require.NoError(t, client.CreateStream("mykey", 2*time.Second))
	require.Equal(t, StateReady, client.State())

	require.NoError(t, client.Publish("mykey", PublishLive, 2*time.Second))
	require.Equal(t, StatePublishing, client.State())

	select {
	case key := <-published:
		require.Equal(t, "mykey", key)
	case <-time.After(2 * time.Second):
		t.Fatal("OnPublish never fired")
	}

	require.NoError(t, client.WriteAudio(0, []byte{0xAF, 0x01, 0xFF}))
	require.NoError(t, client.WriteVideo(0, []byte{0x17, 0x01, 0x00, 0x00, 0x00, 0xAA}))
}

func TestServerRejectsConcurrentPublishToSameApp(t *testing.T) {
	clientConnA, serverConnA := net.Pipe()
	clientConnB, serverConnB := net.Pipe()
	t.Cleanup(func() {
		clientConnA.Close()
		serverConnA.Close()
		clientConnB.Close()
		serverConnB.Close()
	})
	handshakeOver(t, clientConnA, serverConnA)
	handshakeOver(t, clientConnB, serverConnB)

	srv := NewServer(Callbacks{}, rtmplog.New(discard{}, rtmplog.LevelDebug))
	go srv.HandleConnection(serverConnA, "127.0.0.1")
	go srv.HandleConnection(serverConnB, "127.0.0.2")

	u, err := ParseURL("rtmp://example.com/live/keyA")
	require.NoError(t, err)

	clientA := NewClient(clientConnA, u, DefaultClientConfig("live"))
	clientB := NewClient(clientConnB, u, DefaultClientConfig("live"))

	require.NoError(t, clientA.Connect(2*time.Second))
	require.NoError(t, clientA.CreateStream("keyA", 2*time.Second))
	require.NoError(t, clientA.Publish("keyA", PublishLive, 2*time.Second))

	require.NoError(t, clientB.Connect(2*time.Second))
	require.NoError(t, clientB.CreateStream("keyB", 2*time.Second))
	err = clientB.Publish("keyB", PublishLive, 2*time.Second)
	require.Error(t, err)
	require.Equal(t, StateFailed, clientB.State())
}

func TestSessionHandleConnectSetsApp(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close(); serverConn.Close() })
	handshakeOver(t, clientConn, serverConn)

	var gotApp string
	srv := NewServer(Callbacks{
		OnConnect: func(s *Session, app string, cmdObj *amf0.Value) error {
			gotApp = app
			return nil
		},
	}, rtmplog.New(discard{}, rtmplog.LevelDebug))
	go srv.HandleConnection(serverConn, "127.0.0.1")

	u, err := ParseURL("rtmp://example.com/myapp/mykey")
	require.NoError(t, err)
	client := NewClient(clientConn, u, DefaultClientConfig("myapp"))
	require.NoError(t, client.Connect(2*time.Second))
	require.Equal(t, "myapp", gotApp)
}

// discard is an io.Writer sink for test logging.
type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
