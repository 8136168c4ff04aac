package rtmp

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"

	certloader "github.com/AgustinSRG/go-tls-certificate-loader"
)

// Transport is the read/write byte-stream abstraction a connection runs its
// reactor over (spec.md §6): raw TCP, TLS-wrapped TCP, or an HTTP-tunneled
// adapter all satisfy it identically from the reactor's point of view.
type Transport interface {
	io.Reader
	io.Writer
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// netTransport adapts a net.Conn (plain TCP or tls.Conn) to Transport.
type netTransport struct {
	net.Conn
}

// NewTCPTransport dials addr over plain TCP.
func NewTCPTransport(addr string) (Transport, error) {
	c, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	return &netTransport{c}, nil
}

// NewTLSTransport dials addr over TLS, verifying against the given host
// name for certificate validation (pass "" to use addr's host as-is).
func NewTLSTransport(addr string, serverName string) (Transport, error) {
	c, err := tls.Dial("tcp", addr, &tls.Config{ServerName: serverName})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	return &netTransport{c}, nil
}

// Listener wraps net.Listener, producing Transport values from Accept.
type Listener struct {
	ln net.Listener
}

// ListenTCP binds a plain-TCP listener for the rtmp:// scheme.
func ListenTCP(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln}, nil
}

// CertificateSource supplies the TLS certificate a rtmps:// listener should
// present. ReloadingCertificateSource, below, backs this with a file-watching
// loader; tests may supply a static implementation.
type CertificateSource interface {
	GetCertificateFunc() func(*tls.ClientHelloInfo) (*tls.Certificate, error)
}

// ReloadingCertificateSource wraps the shared certificate loader the
// teacher's rtmp_ssl.go hand-rolled (stat-poll + mutex-guarded swap): this
// adapter delegates that concern to the library instead.
type ReloadingCertificateSource struct {
	loader *certloader.CertificateLoader
}

// NewReloadingCertificateSource loads certPath/keyPath once and starts a
// background goroutine that reloads them whenever their mtimes change,
// checking every checkIntervalSeconds.
func NewReloadingCertificateSource(certPath, keyPath string, checkIntervalSeconds int) (*ReloadingCertificateSource, error) {
	loader, err := certloader.NewCertificateLoader(certloader.CertificateLoaderConfig{
		CertificatePath:    certPath,
		KeyPath:            keyPath,
		CheckReloadSeconds: checkIntervalSeconds,
	})
	if err != nil {
		return nil, err
	}
	return &ReloadingCertificateSource{loader: loader}, nil
}

func (s *ReloadingCertificateSource) GetCertificateFunc() func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return s.loader.GetCertificateFunc()
}

// ListenTLS binds a TLS listener for the rtmps:// scheme, sourcing its
// certificate from src on every handshake (so reloads take effect without
// restarting the listener).
func ListenTLS(addr string, src CertificateSource) (*Listener, error) {
	config := &tls.Config{GetCertificate: src.GetCertificateFunc()}
	ln, err := tls.Listen("tcp", addr, config)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln}, nil
}

// Accept blocks for the next inbound connection and wraps it as a Transport.
func (l *Listener) Accept() (Transport, string, error) {
	c, err := l.ln.Accept()
	if err != nil {
		return nil, "", err
	}
	ip := c.RemoteAddr().String()
	if addr, ok := c.RemoteAddr().(*net.TCPAddr); ok {
		ip = addr.IP.String()
	}
	return &netTransport{c}, ip, nil
}

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }

// Addr returns the bound local address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }
