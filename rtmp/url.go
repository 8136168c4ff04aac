package rtmp

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Scheme identifies which of the rtmp URL family a URL names.
type Scheme string

const (
	SchemeRTMP   Scheme = "rtmp"
	SchemeRTMPS  Scheme = "rtmps"
	SchemeRTMPT  Scheme = "rtmpt"
	SchemeRTMPTE Scheme = "rtmpte"
	SchemeRTMPTS Scheme = "rtmpts"
)

// defaultPorts gives each scheme's default port, spec.md §6.
var defaultPorts = map[Scheme]int{
	SchemeRTMP:   1935,
	SchemeRTMPS:  443,
	SchemeRTMPT:  80,
	SchemeRTMPTS: 443,
	SchemeRTMPTE: 1935,
}

// ParsedURL is a parsed rtmp[s|t|te|ts] URL: host/port to dial, the
// application name, and the stream key, per spec.md §6's URL surface.
type ParsedURL struct {
	Scheme     Scheme
	Host       string
	Port       int
	App        string
	StreamKey  string
	TcURL      string
}

// ParseURL parses an rtmp[s|t|te|ts]://host[:port]/app/streamKey URL. The
// path must have at least two segments; the last segment is the stream key
// and everything before it joins back into the application name.
func ParseURL(raw string) (*ParsedURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	scheme := Scheme(strings.ToLower(u.Scheme))
	port, ok := defaultPorts[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized scheme %q", ErrInvalidFormat, u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidFormat)
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid port %q", ErrInvalidFormat, p)
		}
		port = n
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" || segments[len(segments)-1] == "" {
		return nil, fmt.Errorf("%w: path must have at least 2 segments: app/streamKey", ErrInvalidFormat)
	}

	streamKey := segments[len(segments)-1]
	app := strings.Join(segments[:len(segments)-1], "/")

	tcURL := fmt.Sprintf("%s://%s:%d/%s", scheme, host, port, app)

	return &ParsedURL{
		Scheme:    scheme,
		Host:      host,
		Port:      port,
		App:       app,
		StreamKey: streamKey,
		TcURL:     tcURL,
	}, nil
}

// Addr returns the host:port to dial for the transport adapter.
func (p *ParsedURL) Addr() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// IsSecure reports whether this URL's scheme requires a TLS-wrapped
// connection (rtmps or rtmpts).
func (p *ParsedURL) IsSecure() bool {
	return p.Scheme == SchemeRTMPS || p.Scheme == SchemeRTMPTS
}

// IsTunneled reports whether this URL's scheme requires HTTP tunneling
// (rtmpt, rtmpte, rtmpts).
func (p *ParsedURL) IsTunneled() bool {
	return p.Scheme == SchemeRTMPT || p.Scheme == SchemeRTMPTE || p.Scheme == SchemeRTMPTS
}
