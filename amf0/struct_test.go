package amf0

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type connectCommand struct {
	App      string  `amf0:"app"`
	FlashVer string  `amf0:"flashVer"`
	TcURL    string  `amf0:"tcUrl"`
	Capacity float64 `amf0:"capacity,omitempty"`
}

func TestStructMarshalOrderAndOmitempty(t *testing.T) {
	v, err := Marshal(&connectCommand{App: "live", FlashVer: "FMLE/3.0", TcURL: "rtmp://x/live"}, DefaultOptions)
	require.NoError(t, err)
	require.Equal(t, []string{"app", "flashVer", "tcUrl"}, v.Keys())
}

func TestStructMarshalExplicitNulls(t *testing.T) {
	opts := Options{ExplicitNulls: true}
	v, err := Marshal(&connectCommand{App: "live"}, opts)
	require.NoError(t, err)
	require.Equal(t, []string{"app", "flashVer", "tcUrl", "capacity"}, v.Keys())
	require.True(t, v.Get("capacity").IsNull())
}

func TestStructRoundTrip(t *testing.T) {
	src := &connectCommand{App: "live", FlashVer: "LNX 9,0,124,2", TcURL: "rtmp://example/live", Capacity: 239}
	v, err := Marshal(src, DefaultOptions)
	require.NoError(t, err)

	var dst connectCommand
	require.NoError(t, Unmarshal(v, &dst, DefaultOptions))
	require.Equal(t, *src, dst)
}

func TestStructUnmarshalUnknownKeyIgnored(t *testing.T) {
	obj := Object()
	obj.Set("app", String("live"))
	obj.Set("mystery", Number(1))

	var dst connectCommand
	require.NoError(t, Unmarshal(obj, &dst, DefaultOptions))
	require.Equal(t, "live", dst.App)
}

func TestStructUnmarshalUnknownKeyRejected(t *testing.T) {
	obj := Object()
	obj.Set("mystery", Number(1))

	var dst connectCommand
	err := Unmarshal(obj, &dst, Options{IgnoreUnknownKeys: false})
	require.Error(t, err)
}

type withTimestamp struct {
	PublishedAt time.Time `amf0:"publishedAt"`
}

func TestStructTimeRoundTrip(t *testing.T) {
	now := time.UnixMilli(1700000000000).UTC()
	v, err := Marshal(&withTimestamp{PublishedAt: now}, DefaultOptions)
	require.NoError(t, err)
	require.Equal(t, TypeDate, v.Get("publishedAt").typ)

	var dst withTimestamp
	require.NoError(t, Unmarshal(v, &dst, DefaultOptions))
	require.True(t, dst.PublishedAt.Equal(now))
}

func TestStructMarshalRequiresStruct(t *testing.T) {
	_, err := Marshal(42, DefaultOptions)
	require.Error(t, err)
}

func TestStructMarshalNilPointer(t *testing.T) {
	var p *connectCommand
	v, err := Marshal(p, DefaultOptions)
	require.NoError(t, err)
	require.True(t, v.IsNull())
}
