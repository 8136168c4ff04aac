package rtmp

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strmio/rtmp/amf0"
	"github.com/strmio/rtmp/rtmpmsg"
)

func newConnPair(t *testing.T, serverHandler Handler) (client *Conn, server *Conn) {
	t.Helper()
	a, b := net.Pipe()
	client = NewConn(a, HandlerFunc(func(*Conn, *rtmpmsg.Message) {}))
	server = NewConn(b, serverHandler)
	client.Start()
	server.Start()
	t.Cleanup(func() { client.Close(); server.Close() })
	return client, server
}

func TestConnSendAndReceiveCommand(t *testing.T) {
	received := make(chan *rtmpmsg.Message, 1)
	client, _ := newConnPair(t, HandlerFunc(func(c *Conn, msg *rtmpmsg.Message) {
		received <- msg
	}))

	cmd := &Command{Name: "connect", TransactionID: 1, CommandObject: amf0.Null()}
	require.NoError(t, client.Send(NewCommandMessage(0, cmd)))

	select {
	case msg := <-received:
		got, err := DecodeCommand(msg.Payload)
		require.NoError(t, err)
		require.Equal(t, "connect", got.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}
}

func TestConnTransactionWaiterCompletesOnResult(t *testing.T) {
	client, _ := newConnPair(t, HandlerFunc(func(c *Conn, msg *rtmpmsg.Message) {
		cmd, err := DecodeCommand(msg.Payload)
		require.NoError(t, err)
		if cmd.Name == "connect" {
			c.Send(NewCommandMessage(0, &Command{
				Name: "_result", TransactionID: cmd.TransactionID, CommandObject: amf0.Null(),
			}))
		}
	}))

	require.NoError(t, client.Send(NewCommandMessage(0, &Command{Name: "connect", TransactionID: 1, CommandObject: amf0.Null()})))

	result, err := client.WaitResult(txKeyID(1), 2*time.Second)
	require.NoError(t, err)
	require.NotNil(t, result)
}

func TestConnOnStatusWaiterMatchesByCode(t *testing.T) {
	client, _ := newConnPair(t, HandlerFunc(func(c *Conn, msg *rtmpmsg.Message) {
		cmd, err := DecodeCommand(msg.Payload)
		require.NoError(t, err)
		if cmd.Name == "publish" {
			c.Send(NewCommandMessage(1, &Command{
				Name: "onStatus", CommandObject: amf0.Null(),
				Args: []*amf0.Value{StatusInfo("status", "NetStream.Publish.Start", "ok")},
			}))
		}
	}))

	waiter := client.registerWaiter(txKeyName("onStatus:NetStream.Publish.Start"))
	require.NoError(t, client.Send(NewCommandMessage(0, &Command{
		Name: "publish", TransactionID: 2, CommandObject: amf0.Null(),
		Args: []*amf0.Value{amf0.String("key"), amf0.String("live")},
	})))

	select {
	case r := <-waiter:
		require.NoError(t, r.err)
	case <-time.After(2 * time.Second):
		t.Fatal("onStatus waiter never completed")
	}
}

func TestConnWaitResultTimesOut(t *testing.T) {
	client, _ := newConnPair(t, HandlerFunc(func(*Conn, *rtmpmsg.Message) {}))
	_, err := client.WaitResult(txKeyID(42), 50*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeoutElapsed)
}

func TestConnCloseFailsPendingWaiters(t *testing.T) {
	client, _ := newConnPair(t, HandlerFunc(func(*Conn, *rtmpmsg.Message) {}))
	waiter := client.registerWaiter(txKeyID(1))
	client.Close()

	select {
	case r := <-waiter:
		require.Error(t, r.err)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was never failed")
	}
}
