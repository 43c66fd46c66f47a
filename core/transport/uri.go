package transport

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// Supported URI schemes.
const (
	SchemeTCP             = "tcp"
	SchemeUnix            = "unix"
	SchemeWebsocket       = "ws"
	SchemeWebsocketSecure = "wss"
)

// URI locates a transport: tcp://host:port, unix:///path, ws://host:port/path or wss://host:port/path.
type URI url.URL

// ParseURI parses and validates a transport URI.
func ParseURI(raw string) (*URI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parse url failed: %s", raw)
	}
	return NewURI(u)
}

// NewURI validates u as a transport URI.
func NewURI(u *url.URL) (*URI, error) {
	switch scheme(u) {
	case SchemeTCP, SchemeWebsocket, SchemeWebsocketSecure:
		if u.Host == "" {
			return nil, errors.Errorf("missing host: %s", u)
		}
	case SchemeUnix:
		if u.Path == "" {
			return nil, errors.Errorf("missing path: %s", u)
		}
	default:
		return nil, errors.Errorf("unsupported transport url: %s", u)
	}
	return (*URI)(u), nil
}

func scheme(u *url.URL) string {
	return strings.ToLower(u.Scheme)
}

// IsWebsocket returns true if the URI is a websocket one.
func (p *URI) IsWebsocket() bool {
	s := scheme(p.url())
	return s == SchemeWebsocket || s == SchemeWebsocketSecure
}

// MakeClientTransport dials the URI. A ws URI with a TLS config is dialed as wss,
// a wss URI without one skips certificate verification. The header is sent by websocket handshakes only.
func (p *URI) MakeClientTransport(ctx context.Context, tc *tls.Config, header http.Header) (*Transport, error) {
	u := p.url()
	switch scheme(u) {
	case SchemeTCP:
		return NewTCPClientTransportWithAddr(ctx, SchemeTCP, u.Host, tc)
	case SchemeUnix:
		return NewTCPClientTransportWithAddr(ctx, SchemeUnix, u.Path, tc)
	case SchemeWebsocket:
		if tc != nil {
			secure := *u
			secure.Scheme = SchemeWebsocketSecure
			return NewWebsocketClientTransport(ctx, secure.String(), tc, header)
		}
		return NewWebsocketClientTransport(ctx, u.String(), nil, header)
	case SchemeWebsocketSecure:
		if tc == nil {
			tc = &tls.Config{InsecureSkipVerify: true}
		}
		return NewWebsocketClientTransport(ctx, u.String(), tc, header)
	default:
		return nil, errors.Errorf("unsupported transport url: %s", u)
	}
}

// MakeServerTransport creates a transport listening on the URI. wss requires a TLS config.
func (p *URI) MakeServerTransport(tc *tls.Config) (ServerTransport, error) {
	u := p.url()
	switch scheme(u) {
	case SchemeTCP:
		return NewTCPServerTransportWithAddr(SchemeTCP, u.Host, tc), nil
	case SchemeUnix:
		return NewTCPServerTransportWithAddr(SchemeUnix, u.Path, tc), nil
	case SchemeWebsocketSecure:
		if tc == nil {
			return nil, errors.Errorf("missing TLS config for %s", u)
		}
		return NewWebsocketServerTransportWithAddr(u.Host, wsPath(u), tc), nil
	case SchemeWebsocket:
		return NewWebsocketServerTransportWithAddr(u.Host, wsPath(u), tc), nil
	default:
		return nil, errors.Errorf("unsupported transport url: %s", u)
	}
}

func wsPath(u *url.URL) string {
	if u.Path == "" {
		return "/"
	}
	return u.Path
}

func (p *URI) String() string {
	return p.url().String()
}

func (p *URI) url() *url.URL {
	return (*url.URL)(p)
}
