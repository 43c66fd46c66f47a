package transport

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/core/framing"
)

type (
	// ClientTransporter creates a client-side transport.
	ClientTransporter func(context.Context) (*Transport, error)
	// ServerTransporter creates a server-side transport.
	ServerTransporter func(context.Context) (ServerTransport, error)
)

// ListenerFactory creates a net.Listener for stream server transports.
type ListenerFactory func(context.Context) (net.Listener, error)

// Dialer creates a net.Conn for stream client transports.
type Dialer func(context.Context) (net.Conn, error)

// Conn is connection for RSocket.
type Conn interface {
	io.Closer
	// SetDeadline set deadline for current connection.
	// After this deadline, connection will be closed.
	SetDeadline(deadline time.Time) error
	// SetCounter bind a counter which can count r/w bytes.
	SetCounter(c *core.TrafficCounter)
	// Read reads next frame from Conn.
	Read() (*framing.Frame, error)
	// Write writes a frame to Conn.
	Write(*framing.Frame) error
	// Flush.
	Flush() error
}
