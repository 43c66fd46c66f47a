package transport

import (
	"context"
	"net"
	"sync"

	"github.com/pkg/errors"
)

type pipeAddr string

func (p pipeAddr) Network() string {
	return "pipe"
}

func (p pipeAddr) String() string {
	return string(p)
}

// PipeListener is an in-memory net.Listener, connections are created by Dial.
type PipeListener struct {
	addr   pipeAddr
	conns  chan net.Conn
	closed chan struct{}
	once   sync.Once
}

// Accept waits for the next dialed connection.
func (p *PipeListener) Accept() (net.Conn, error) {
	select {
	case c := <-p.conns:
		return c, nil
	case <-p.closed:
		return nil, net.ErrClosed
	}
}

// Close closes the listener.
func (p *PipeListener) Close() error {
	p.once.Do(func() {
		close(p.closed)
	})
	return nil
}

// Addr returns the listener's network address.
func (p *PipeListener) Addr() net.Addr {
	return p.addr
}

// Dial creates a duplex connection and hands the other end to Accept.
func (p *PipeListener) Dial(ctx context.Context) (net.Conn, error) {
	server, client := net.Pipe()
	select {
	case p.conns <- server:
		return client, nil
	case <-p.closed:
		_ = server.Close()
		_ = client.Close()
		return nil, errors.Wrap(net.ErrClosed, "pipe listener closed")
	case <-ctx.Done():
		_ = server.Close()
		_ = client.Close()
		return nil, ctx.Err()
	}
}

// NewPipeListener creates an in-memory listener.
func NewPipeListener(name string) *PipeListener {
	return &PipeListener{
		addr:   pipeAddr(name),
		conns:  make(chan net.Conn),
		closed: make(chan struct{}),
	}
}

// NewPipeServerTransport creates a server transport accepting connections dialed on the listener.
func NewPipeServerTransport(l *PipeListener) ServerTransport {
	return NewTCPServerTransport(func(context.Context) (net.Listener, error) {
		select {
		case <-l.closed:
			return nil, errors.Wrap(net.ErrClosed, "pipe listener closed")
		default:
			return l, nil
		}
	})
}

// NewPipeClientTransport dials the listener and creates a client transport.
func NewPipeClientTransport(ctx context.Context, l *PipeListener) (*Transport, error) {
	return NewTCPClientTransport(ctx, l.Dial)
}
