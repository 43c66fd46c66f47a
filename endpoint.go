package rsocket

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/core/transport"
)

// DefaultPort is the well-known RSocket port.
const DefaultPort = 7878

// Endpoint is where a client dials and a server listens.
type Endpoint struct {
	u         *url.URL
	err       error
	tlsConfig *tls.Config
	header    http.Header
}

// NewEndpoint creates an endpoint from an URI like "tcp://127.0.0.1:7878",
// "unix:///var/run/rsocket.sock" or "ws://127.0.0.1:7878/rsocket".
// A malformed URI fails when the transport is built.
func NewEndpoint(uri string) *Endpoint {
	u, err := url.Parse(uri)
	if err != nil {
		return &Endpoint{err: errors.Wrapf(err, "parse url failed: %s", uri)}
	}
	return &Endpoint{u: u}
}

// TCPEndpoint creates a TCP endpoint, a missing port means DefaultPort.
func TCPEndpoint(host string, port int) *Endpoint {
	if port == 0 {
		port = DefaultPort
	}
	return &Endpoint{
		u: &url.URL{Scheme: transport.SchemeTCP, Host: net.JoinHostPort(host, strconv.Itoa(port))},
	}
}

// UnixEndpoint creates an endpoint of a unix domain socket file.
func UnixEndpoint(path string) *Endpoint {
	return &Endpoint{
		u: &url.URL{Scheme: transport.SchemeUnix, Path: path},
	}
}

// WithTLS secures the endpoint.
func (e *Endpoint) WithTLS(c *tls.Config) *Endpoint {
	e.tlsConfig = c
	return e
}

// WithHeader sets the header of websocket handshakes. It fails other transports.
func (e *Endpoint) WithHeader(h http.Header) *Endpoint {
	e.header = h
	return e
}

func (e *Endpoint) uri() (*transport.URI, error) {
	if e.err != nil {
		return nil, e.err
	}
	u, err := transport.NewURI(e.u)
	if err != nil {
		return nil, err
	}
	if len(e.header) > 0 && !u.IsWebsocket() {
		return nil, errors.Errorf("header needs a websocket transport: %s", u)
	}
	return u, nil
}

func (e *Endpoint) String() string {
	if e.u == nil {
		return ""
	}
	return e.u.String()
}

// Client returns the ClientTransporter dialing the endpoint.
func (e *Endpoint) Client() transport.ClientTransporter {
	return func(ctx context.Context) (*transport.Transport, error) {
		u, err := e.uri()
		if err != nil {
			return nil, err
		}
		return u.MakeClientTransport(ctx, e.tlsConfig, e.header)
	}
}

// Server returns the ServerTransporter listening on the endpoint.
// A unix endpoint fails if its socket file exists.
func (e *Endpoint) Server() transport.ServerTransporter {
	return func(context.Context) (transport.ServerTransport, error) {
		u, err := e.uri()
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(u.Scheme, transport.SchemeUnix) {
			if _, err := os.Stat(u.Path); err == nil {
				return nil, errors.Errorf("sock file %s exists", u.Path)
			} else if !os.IsNotExist(err) {
				return nil, err
			}
		}
		return u.MakeServerTransport(e.tlsConfig)
	}
}

// Pipe is an in-memory transport connecting clients and a server of the same process.
type Pipe struct {
	l *transport.PipeListener
}

// PipeTransport creates an in-memory transport.
func PipeTransport() *Pipe {
	return &Pipe{
		l: transport.NewPipeListener("pipe-" + strings.Split(uuid.New().String(), "-")[0]),
	}
}

// Client returns the ClientTransporter dialing the pipe.
func (p *Pipe) Client() transport.ClientTransporter {
	return func(ctx context.Context) (*transport.Transport, error) {
		return transport.NewPipeClientTransport(ctx, p.l)
	}
}

// Server returns the ServerTransporter accepting connections of the pipe.
func (p *Pipe) Server() transport.ServerTransporter {
	return func(context.Context) (transport.ServerTransport, error) {
		return transport.NewPipeServerTransport(p.l), nil
	}
}

// Close closes the pipe, new connections are refused.
func (p *Pipe) Close() error {
	return p.l.Close()
}
