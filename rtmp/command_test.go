package rtmp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strmio/rtmp/amf0"
)

func TestEncodeDecodeCommandRoundTrip(t *testing.T) {
	obj := amf0.Object()
	obj.Set("app", amf0.String("live"))
	cmd := &Command{
		Name:          "connect",
		TransactionID: 1,
		CommandObject: obj,
		Args:          []*amf0.Value{amf0.String("extra")},
	}

	payload := EncodeCommand(cmd)
	got, err := DecodeCommand(payload)
	require.NoError(t, err)
	require.Equal(t, "connect", got.Name)
	require.Equal(t, uint32(1), got.TransactionID)
	require.Equal(t, "live", got.CommandObject.Get("app").Str())
	require.Len(t, got.Args, 1)
	require.Equal(t, "extra", got.Args[0].Str())
}

func TestDecodeCommandNullObjectNoArgs(t *testing.T) {
	cmd := &Command{Name: "createStream", TransactionID: 5, CommandObject: amf0.Null()}
	got, err := DecodeCommand(EncodeCommand(cmd))
	require.NoError(t, err)
	require.Equal(t, "createStream", got.Name)
	require.True(t, got.CommandObject.IsNull())
	require.Empty(t, got.Args)
}

func TestPeekCommandExtractsOnStatusCode(t *testing.T) {
	info := StatusInfo("status", "NetStream.Publish.Start", "now live")
	cmd := &Command{Name: "onStatus", TransactionID: 0, CommandObject: amf0.Null(), Args: []*amf0.Value{info}}

	name, txID, code, ok := peekCommand(EncodeCommand(cmd))
	require.True(t, ok)
	require.Equal(t, "onStatus", name)
	require.Equal(t, uint32(0), txID)
	require.Equal(t, "NetStream.Publish.Start", code)
}

func TestDecodeCommandInvalidPayload(t *testing.T) {
	_, err := DecodeCommand([]byte{0xFF})
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestStatusInfoOmitsEmptyDescription(t *testing.T) {
	info := StatusInfo("status", "NetStream.Publish.Start", "")
	require.True(t, info.Get("description").IsNull())
	require.Equal(t, "NetStream.Publish.Start", info.Get("code").Str())
}
