package rtmp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseURLDefaultPortRTMP(t *testing.T) {
	u, err := ParseURL("rtmp://live.example.com/app/streamkey")
	require.NoError(t, err)
	require.Equal(t, SchemeRTMP, u.Scheme)
	require.Equal(t, "live.example.com", u.Host)
	require.Equal(t, 1935, u.Port)
	require.Equal(t, "app", u.App)
	require.Equal(t, "streamkey", u.StreamKey)
	require.Equal(t, "live.example.com:1935", u.Addr())
	require.False(t, u.IsSecure())
	require.False(t, u.IsTunneled())
}

func TestParseURLExplicitPort(t *testing.T) {
	u, err := ParseURL("rtmp://live.example.com:1940/app/streamkey")
	require.NoError(t, err)
	require.Equal(t, 1940, u.Port)
}

func TestParseURLMultiSegmentApp(t *testing.T) {
	u, err := ParseURL("rtmp://live.example.com/app/sub/streamkey")
	require.NoError(t, err)
	require.Equal(t, "app/sub", u.App)
	require.Equal(t, "streamkey", u.StreamKey)
}

func TestParseURLRTMPSDefaultPort(t *testing.T) {
	u, err := ParseURL("rtmps://live.example.com/app/streamkey")
	require.NoError(t, err)
	require.Equal(t, 443, u.Port)
	require.True(t, u.IsSecure())
	require.False(t, u.IsTunneled())
}

func TestParseURLTunneledSchemes(t *testing.T) {
	for _, tc := range []struct {
		raw  string
		port int
	}{
		{"rtmpt://live.example.com/app/streamkey", 80},
		{"rtmpte://live.example.com/app/streamkey", 1935},
		{"rtmpts://live.example.com/app/streamkey", 443},
	} {
		u, err := ParseURL(tc.raw)
		require.NoError(t, err)
		require.Equal(t, tc.port, u.Port)
		require.True(t, u.IsTunneled())
	}
}

func TestParseURLMissingStreamKey(t *testing.T) {
	_, err := ParseURL("rtmp://live.example.com/app")
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestParseURLUnknownScheme(t *testing.T) {
	_, err := ParseURL("http://live.example.com/app/streamkey")
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestParseURLTcURL(t *testing.T) {
	u, err := ParseURL("rtmp://live.example.com/app/streamkey")
	require.NoError(t, err)
	require.Equal(t, "rtmp://live.example.com:1935/app", u.TcURL)
}
